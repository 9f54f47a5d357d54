// Package source translates vendor-specific capture-station output into
// normalized studies and loose images. Each vendor writes its own directory
// layout; the adapters parse those at the boundary so the rest of the
// pipeline never sees a vendor-specific shape.
package source

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentalos/dentalos/internal/domain/imaging"
)

// Adapter scans one vendor share and reports what it found. Scan must be
// safe to call repeatedly; already-handled material is deduplicated by the
// runner and the queue, not by the adapter.
type Adapter interface {
	Vendor() string
	Scan(ctx context.Context) ([]imaging.IncomingStudy, []imaging.IncomingImage, error)
}

// Ingestor is the slice of the imaging pipeline the runner feeds.
type Ingestor interface {
	IngestStudy(ctx context.Context, study imaging.IncomingStudy) (*imaging.IngestResult, error)
	IngestImage(ctx context.Context, img imaging.IncomingImage)
}

// Runner drives a set of adapters: each gets its own goroutine with a
// rescan ticker and an optional filesystem trigger, so a stuck or broken
// share never stalls the others.
type Runner struct {
	ingestor Ingestor
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	handled map[string]struct{}
}

func NewRunner(ingestor Ingestor, interval time.Duration, logger zerolog.Logger) *Runner {
	return &Runner{
		ingestor: ingestor,
		interval: interval,
		logger:   logger,
		handled:  make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled. trigger, when non-nil, forces an
// immediate rescan between ticks; the directory watcher feeds it.
func (r *Runner) Run(ctx context.Context, adapter Adapter, trigger <-chan struct{}) {
	log := r.logger.With().Str("vendor", adapter.Vendor()).Logger()
	log.Info().Dur("interval", r.interval).Msg("source adapter started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.scan(ctx, adapter, log)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("source adapter stopped")
			return
		case <-ticker.C:
		case <-trigger:
		}
		r.scan(ctx, adapter, log)
	}
}

func (r *Runner) scan(ctx context.Context, adapter Adapter, log zerolog.Logger) {
	studies, images, err := adapter.Scan(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scan failed")
		return
	}

	for _, study := range studies {
		if !r.claim("study:" + study.StudyFolderPath) {
			continue
		}
		if _, err := r.ingestor.IngestStudy(ctx, study); err != nil {
			r.unclaim("study:" + study.StudyFolderPath)
			log.Error().Err(err).Str("path", study.StudyFolderPath).Msg("ingest failed")
		}
	}
	for _, img := range images {
		if !r.claim("image:" + img.FilePath) {
			continue
		}
		r.ingestor.IngestImage(ctx, img)
	}
}

// claim remembers material this process already handed to the pipeline, so
// a share whose files could not be deleted is not re-ingested every tick.
func (r *Runner) claim(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handled[key]; ok {
		return false
	}
	r.handled[key] = struct{}{}
	return true
}

func (r *Runner) unclaim(key string) {
	r.mu.Lock()
	delete(r.handled, key)
	r.mu.Unlock()
}
