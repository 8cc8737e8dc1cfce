package inbox

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch scans the root, then processes files as they are written until ctx
// is cancelled. A file is picked up once no write touched it, or its
// sidecar, for the debounce duration. Subdirectories are not watched.
func (in *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := in.fs.Root()
	if err := w.Add(root); err != nil {
		return err
	}
	log := in.opts.Logger
	log.Info("inbox: watching", slog.String("root", root), slog.Duration("debounce", in.opts.Debounce))

	if err := in.Scan(ctx); err != nil {
		log.Warn("inbox: initial scan failed", slog.String("error", err.Error()))
	}

	pending := map[string]time.Time{}
	debounce := time.NewTimer(in.opts.Debounce)
	debounce.Stop()
	rescan := time.NewTicker(in.opts.Rescan)
	defer rescan.Stop()

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			log.Info("inbox: stopped")
			return nil

		case <-rescan.C:
			if err := in.Scan(ctx); err != nil {
				log.Warn("inbox: rescan failed", slog.String("error", err.Error()))
			}

		case <-debounce.C:
			now := in.now()
			var next time.Duration
			for name, last := range pending {
				wait := in.opts.Debounce - now.Sub(last)
				if wait > 0 {
					if next == 0 || wait < next {
						next = wait
					}
					continue
				}
				delete(pending, name)
				if _, err := in.Process(ctx, name); err != nil {
					log.Warn("inbox: processing deferred", slog.String("file", name), slog.String("error", err.Error()))
				}
			}
			if next > 0 {
				debounce.Reset(next)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if filepath.Dir(ev.Name) != filepath.Clean(root) || strings.HasPrefix(name, ".") ||
				name == ProcessedDir || name == FailedDir {
				continue
			}
			name = strings.TrimSuffix(name, SidecarSuffix)
			pending[name] = in.now()
			debounce.Reset(in.opts.Debounce)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
