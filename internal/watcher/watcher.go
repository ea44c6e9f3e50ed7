// Package watcher reports debounced changes to a single file. It watches the
// parent directory so editors that replace files by rename are seen.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces bursts of events from one save.
const DefaultDebounce = 250 * time.Millisecond

// Change describes the settled state of the target after a burst of events.
type Change struct {
	Path    string
	Removed bool
}

// Watcher calls onChange once per settled burst of writes, creates, renames
// or removals of the target file.
type Watcher struct {
	targetPath string
	parentPath string
	onChange   func(Change)
	watcher    *fsnotify.Watcher
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	running    bool
	debounce   time.Duration
}

// New creates a watcher for targetPath. Call Start to begin.
func New(targetPath string, onChange func(Change)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	target := filepath.Clean(targetPath)

	return &Watcher{
		targetPath: target,
		parentPath: filepath.Dir(target),
		onChange:   onChange,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		debounce:   DefaultDebounce,
	}, nil
}

// SetDebounce changes the settle delay. It must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching. A missing parent directory is an error.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if _, err := os.Stat(w.parentPath); err != nil {
		return err
	}
	if err := w.watcher.Add(w.parentPath); err != nil {
		return err
	}

	w.running = true
	go w.watchLoop()
	return nil
}

// Stop stops the watcher. Pending callbacks are dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.targetPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			log.Debug().Str("path", w.targetPath).Str("op", event.Op.String()).Msg("Watched file event")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			w.emit()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("path", w.targetPath).Msg("Watcher error")
		}
	}
}

// emit reports the target's state once events have settled. A rename away
// followed by a create reads as a change, not a removal.
func (w *Watcher) emit() {
	_, err := os.Stat(w.targetPath)
	change := Change{Path: w.targetPath, Removed: os.IsNotExist(err)}

	log.Info().Str("path", change.Path).Bool("removed", change.Removed).Msg("Watched file changed")
	if w.onChange != nil {
		w.onChange(change)
	}
}
