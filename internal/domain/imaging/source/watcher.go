package source

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch emits a pulse on the returned channel whenever something changes
// under dir. Bursts of filesystem events (a device writing a study is many
// creates in quick succession) are coalesced into a single pulse after a
// short settle delay, so the scanner sees complete folders.
//
// Watch failing is not fatal: some clinic shares are SMB mounts where
// inotify does not work, and the rescan ticker covers those. The caller
// gets a nil channel and the runner simply never sees a trigger.
func Watch(ctx context.Context, dir string, logger zerolog.Logger) <-chan struct{} {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("filesystem watch unavailable, relying on rescan ticker")
		return nil
	}
	if err := w.Add(dir); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("cannot watch directory, relying on rescan ticker")
		w.Close()
		return nil
	}

	const settle = 2 * time.Second
	pulse := make(chan struct{}, 1)

	go func() {
		defer w.Close()
		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(settle)
					fire = timer.C
				} else {
					timer.Reset(settle)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Str("dir", dir).Msg("watch error")
			case <-fire:
				timer = nil
				fire = nil
				select {
				case pulse <- struct{}{}:
				default:
				}
			}
		}
	}()

	return pulse
}
