// Package watcher monitors an inbox directory for new vendor recording
// files and reports them once they stop changing.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is an inbox file that has been stable for the debounce window
// and is ready to import.
type Event struct {
	Path      string
	Size      int64
	Timestamp time.Time
}

// Watcher monitors one inbox directory.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	inbox     string
	debounce  time.Duration
	exts      map[string]bool

	// path -> last modification time of files not yet reported
	state   map[string]time.Time
	stateMu sync.RWMutex

	events chan Event
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher for inbox. Only files whose lowercase extension
// is listed in exts are reported; files must be unchanged for the
// debounce duration first.
func New(inbox string, debounce time.Duration, exts []string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		inbox:     inbox,
		debounce:  debounce,
		exts:      extSet,
		state:     make(map[string]time.Time),
		events:    make(chan Event, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of importable files.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start begins watching the inbox. Files already present are tracked
// and reported once stable.
func (w *Watcher) Start() error {
	abs, err := filepath.Abs(w.inbox)
	if err != nil {
		return err
	}
	w.inbox = abs

	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "watch", Path: abs, Err: os.ErrInvalid}
	}

	if err := w.fsWatcher.Add(abs); err != nil {
		return err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.trackFile(filepath.Join(abs, entry.Name()))
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	return nil
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

// importable reports whether a path has a handled extension.
func (w *Watcher) importable(path string) bool {
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

// trackFile adds an importable file to state tracking.
func (w *Watcher) trackFile(path string) {
	if !w.importable(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	w.stateMu.Lock()
	w.state[path] = info.ModTime()
	w.stateMu.Unlock()
}

// eventLoop handles fsnotify events.
func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.importable(event.Name) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}

			w.stateMu.Lock()
			w.state[event.Name] = time.Now()
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// debounceLoop periodically reports files that have stopped changing.
func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	tick := w.debounce / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case now := <-ticker.C:
			w.checkStableFiles(now)
		}
	}
}

// checkStableFiles emits events for files unchanged since the debounce
// threshold and drops them from tracking.
func (w *Watcher) checkStableFiles(now time.Time) {
	threshold := now.Add(-w.debounce)

	type stableFile struct {
		path    string
		lastMod time.Time
	}
	var stable []stableFile
	w.stateMu.RLock()
	for path, lastMod := range w.state {
		if lastMod.Before(threshold) {
			stable = append(stable, stableFile{path: path, lastMod: lastMod})
		}
	}
	w.stateMu.RUnlock()

	if len(stable) == 0 {
		return
	}

	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	for _, sf := range stable {
		// Skip files touched again while we were scanning.
		if mod, ok := w.state[sf.path]; !ok || mod != sf.lastMod {
			continue
		}
		info, err := os.Stat(sf.path)
		if err != nil {
			delete(w.state, sf.path)
			select {
			case w.errors <- err:
			default:
			}
			continue
		}

		select {
		case w.events <- Event{Path: sf.path, Size: info.Size(), Timestamp: now}:
			// Reported; a later write re-tracks the file.
			delete(w.state, sf.path)
		default:
			// Event channel full, try again next tick.
		}
	}
}

// TrackedFiles returns the number of files awaiting stability.
func (w *Watcher) TrackedFiles() int {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return len(w.state)
}
