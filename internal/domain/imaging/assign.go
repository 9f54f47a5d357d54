package imaging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentalos/dentalos/internal/domain/consultation"
	"github.com/dentalos/dentalos/internal/platform/filestore"
)

// removeSource deletes a device-side source file; a variable so tests can
// observe deletions without a real filesystem.
var removeSource = os.Remove

// ImageFile is one image payload ready for assignment. Open yields the
// content; SourcePath, when set, names the device-side file to delete after
// a successful assignment.
type ImageFile struct {
	Filename   string
	Type       string
	GUID       string
	CapturedAt *time.Time
	Open       func() (io.ReadCloser, error)
	SourcePath string
}

// ResultMeta is the partial X-ray result update carried by an assignment.
// Nil fields leave the consultation's existing values untouched.
type ResultMeta struct {
	Note        *string
	Radiologist *string
	StudyGUID   *string
	StudyDate   *time.Time
}

// consultationLocks hands out one mutex per consultation id, so concurrent
// assignments to distinct consultations never serialize against each other.
type consultationLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newConsultationLocks() *consultationLocks {
	return &consultationLocks{locks: make(map[uuid.UUID]*refLock)}
}

func (cl *consultationLocks) acquire(id uuid.UUID) *refLock {
	cl.mu.Lock()
	l, ok := cl.locks[id]
	if !ok {
		l = &refLock{}
		cl.locks[id] = l
	}
	l.refs++
	cl.mu.Unlock()

	l.Lock()
	return l
}

func (cl *consultationLocks) release(id uuid.UUID, l *refLock) {
	l.Unlock()

	cl.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(cl.locks, id)
	}
	cl.mu.Unlock()
}

// Assigner performs the assignment transaction: persist image files, merge
// their metadata into the target consultation's X-ray result, and move the
// consultation to xray-done. Either every image in a call is merged or none
// is; a consultation must never reference files that were not stored.
type Assigner struct {
	files         filestore.FileStore
	consultations ConsultationStore
	locks         *consultationLocks
	logger        zerolog.Logger
}

func NewAssigner(files filestore.FileStore, consultations ConsultationStore, logger zerolog.Logger) *Assigner {
	return &Assigner{
		files:         files,
		consultations: consultations,
		locks:         newConsultationLocks(),
		logger:        logger,
	}
}

// Assign runs the transaction against one consultation. On any storage
// failure the already-stored files of this call are deleted best-effort and
// no metadata is merged. A terminal or vanished target yields
// consultation.ErrStaleConsultation; the caller must re-resolve.
func (a *Assigner) Assign(ctx context.Context, consultationID uuid.UUID, files []ImageFile, meta ResultMeta, uploadedBy string) (*consultation.Consultation, error) {
	lock := a.locks.acquire(consultationID)
	defer a.locks.release(consultationID, lock)

	stored := make([]string, 0, len(files))
	assigned := make([]consultation.AssignedImage, 0, len(files))

	for _, f := range files {
		relPath, img, err := a.storeOne(ctx, consultationID, f, uploadedBy)
		if err != nil {
			a.discard(stored)
			return nil, fmt.Errorf("store image %s: %w", f.Filename, err)
		}
		stored = append(stored, relPath)
		assigned = append(assigned, img)
	}

	merged, err := a.consultations.MergeImaging(ctx, consultationID, consultation.ImagingMerge{
		Images:      assigned,
		Note:        meta.Note,
		Radiologist: meta.Radiologist,
		StudyGUID:   meta.StudyGUID,
		StudyDate:   meta.StudyDate,
	})
	if err != nil {
		a.discard(stored)
		return nil, err
	}

	// The files are merged and owned by the consultation now; the device
	// copies are redundant. Deletion failures are logged, never fatal.
	for _, f := range files {
		if f.SourcePath == "" {
			continue
		}
		if err := removeSource(f.SourcePath); err != nil {
			a.logger.Warn().Err(err).Str("path", f.SourcePath).Msg("failed to delete source file")
		}
	}

	return merged, nil
}

func (a *Assigner) storeOne(ctx context.Context, consultationID uuid.UUID, f ImageFile, uploadedBy string) (string, consultation.AssignedImage, error) {
	content, err := f.Open()
	if err != nil {
		return "", consultation.AssignedImage{}, err
	}
	defer content.Close()

	// The random suffix keeps concurrent uploads with colliding device
	// filenames from overwriting each other under one consultation.
	suffix := strings.Split(uuid.New().String(), "-")[0]
	relPath := fmt.Sprintf("%s/%s-%s", consultationID, suffix, f.Filename)

	counted := &countingReader{r: content}
	url, err := a.files.Store(ctx, relPath, counted)
	if err != nil {
		return "", consultation.AssignedImage{}, err
	}

	return relPath, consultation.AssignedImage{
		Type:       f.Type,
		URL:        url,
		GUID:       f.GUID,
		CapturedAt: f.CapturedAt,
		Filename:   f.Filename,
		UploadedBy: uploadedBy,
		Size:       counted.n,
	}, nil
}

func (a *Assigner) discard(stored []string) {
	for _, relPath := range stored {
		if err := a.files.Delete(context.Background(), relPath); err != nil {
			a.logger.Warn().Err(err).Str("path", relPath).Msg("failed to delete orphaned file")
		}
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
