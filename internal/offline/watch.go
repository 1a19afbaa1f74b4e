package offline

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// CountCallback receives the pending count after the queue file changed.
type CountCallback func(pending int)

// Watch watches the FileStorage backing file and calls cb with the pending
// count once the watch is in place and again whenever the content changes,
// until ctx is cancelled.
//
// The parent directory is watched rather than the file itself: writes land
// through a rename, which would detach a watch held on the old inode.
func Watch(ctx context.Context, store *FileStorage, logger *slog.Logger, cb CountCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(store.Path())
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("offline watcher: started", slog.String("path", store.Path()))

	last := snapshotSum(store)
	report(store, logger, cb)

	for {
		select {
		case <-ctx.Done():
			logger.Info("offline watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != store.Path() {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			sum := snapshotSum(store)
			if sum == last {
				continue
			}
			last = sum
			report(store, logger, cb)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("offline watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// report decodes the current snapshot and passes its size to cb. Snapshots
// that fail to decode are skipped; a later event carries the final state.
func report(store *FileStorage, logger *slog.Logger, cb CountCallback) {
	data, err := store.Read()
	if err != nil {
		logger.Warn("offline watcher: read failed", slog.String("error", err.Error()))
		return
	}
	notes, err := decode(data)
	if err != nil {
		logger.Debug("offline watcher: partial snapshot", slog.String("error", err.Error()))
		return
	}
	logger.Debug("offline watcher: queue changed", slog.Int("pending", len(notes)))
	if cb != nil {
		cb(len(notes))
	}
}

// snapshotSum fingerprints the stored snapshot so that events which leave
// the content unchanged are not reported.
func snapshotSum(store *FileStorage) [sha256.Size]byte {
	data, err := store.Read()
	if err != nil {
		return [sha256.Size]byte{}
	}
	return sha256.Sum256(data)
}
