// Package watch notifies the session when a locally mounted directory
// changes on disk, so the shell can refresh its cache.
package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jcollard/webshell/internal/logging"
)

// Watcher coalesces filesystem events for a directory tree into debounced
// change notifications on C. The session loop drains C and refreshes the
// affected mount; the watcher itself never touches the filesystem cache,
// which is single-threaded.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration

	// C delivers one value per burst of changes. The channel has a buffer
	// of one; a notification that cannot be delivered is dropped because a
	// pending one already covers it.
	C chan struct{}

	done chan struct{}
}

// New watches dir and its subdirectories. Notifications settle for the
// debounce interval before delivery, so an editor save or a git checkout
// produces one refresh instead of hundreds.
func New(dir string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: debounce,
		C:        make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	// fsnotify does not recurse; register every directory up front and pick
	// up new ones from create events.
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(p)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	logging.Info("watching directory", zap.String("dir", dir), zap.Duration("debounce", debounce))
	return w, nil
}

// Close stops the watcher. C is not closed; a final pending notification
// may still be read after Close returns.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					if err := w.fsw.Add(event.Name); err != nil {
						logging.Warn("watch new directory", zap.String("dir", event.Name), zap.Error(err))
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-fire:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			select {
			case w.C <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher error", zap.Error(err))
		}
	}
}
