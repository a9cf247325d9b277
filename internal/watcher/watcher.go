// Package watcher monitors source directories and triggers index rebuilds
// when documents change. Events are debounced so bulk copies cause one
// rebuild, not one per file.
package watcher

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"docsearch/internal/errlog"
)

// DefaultDebounce is how long the watcher waits after the last event before
// firing a rebuild.
const DefaultDebounce = 2 * time.Second

// Watcher monitors directories for changes to watched file types.
type Watcher struct {
	fsw        *fsnotify.Watcher
	extensions map[string]bool
	Debounce   time.Duration
}

// New creates a watcher for the given file types (extensions without dots).
func New(fileTypes []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	exts := map[string]bool{}
	for _, t := range fileTypes {
		exts["."+strings.ToLower(strings.TrimPrefix(t, "."))] = true
	}
	return &Watcher{fsw: fsw, extensions: exts, Debounce: DefaultDebounce}, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }

// Add registers a source for watching. Directories are walked so nested
// subdirectories are covered; plain files register their parent directory.
func (w *Watcher) Add(source string) error {
	info, err := os.Stat(source)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.fsw.Add(filepath.Dir(source))
	}
	return filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Run blocks, invoking onChange after each debounced burst of relevant
// events, until the context is canceled.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	var timer *time.Timer
	fired := make(chan struct{}, 1)

	for {
		var timerC <-chan struct{}
		if timer != nil {
			timerC = fired
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			log.Printf("[WATCH] %s %s", event.Op, event.Name)
			// New directories need registering to keep nested files covered.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.fsw.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.AfterFunc(w.Debounce, func() {
					select {
					case fired <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.Debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			errlog.Logf("watch error: %v", err)

		case <-timerC:
			timer = nil
			onChange()
		}
	}
}

// relevant filters events down to watched file types and directory creation.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	if w.extensions[ext] {
		return true
	}
	// Directory events carry no extension; check the path.
	if ext == "" {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}
