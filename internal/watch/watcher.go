package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"shiwake/internal/log"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// FileEvent represents a file that appeared or changed in a watched folder
type FileEvent struct {
	Path      string
	Info      os.FileInfo
	Timestamp time.Time
	Op        fsnotify.Op
}

// Watcher monitors folders for new or changed files using fsnotify
type Watcher struct {
	directories []string
	ignore      []glob.Glob

	events    chan FileEvent
	stopChan  chan struct{}
	done      chan struct{}
	fsWatcher *fsnotify.Watcher

	// Lock for running state and the directory list
	mutex   sync.RWMutex
	running bool
	stopped bool
}

// ignoredAlways matches our own in-progress copies.
var ignoredAlways = glob.MustCompile(".shiwake-*.part")

// New creates a new folder watcher. Base names matching any ignore glob
// never produce events.
func New(ignore ...glob.Glob) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		ignore:    append([]glob.Glob{ignoredAlways}, ignore...),
		events:    make(chan FileEvent, 256),
		fsWatcher: fsWatcher,
	}, nil
}

// AddDirectory adds a folder to watch
func (w *Watcher) AddDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add directory %s to watcher: %w", dir, err)
	}

	w.mutex.Lock()
	found := false
	for _, existing := range w.directories {
		if existing == dir {
			found = true
			break
		}
	}
	if !found {
		w.directories = append(w.directories, dir)
	}
	w.mutex.Unlock()
	log.LogWithFields(log.F("directory", dir)).Info("Watching directory")
	return nil
}

// Events returns the channel that delivers file events. It is closed after
// Stop.
func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

// Start begins delivering events. A stopped watcher cannot be restarted.
func (w *Watcher) Start() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if w.stopped {
		return fmt.Errorf("watcher was stopped")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})

	go w.loop(w.stopChan, w.done)

	log.Debug("Watcher started")
	return nil
}

func (w *Watcher) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(w.events)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			// A rename into the folder shows up as Create.
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if w.ignored(filepath.Base(event.Name)) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				if !os.IsNotExist(err) {
					log.LogWithFields(log.F("file", event.Name), log.F("error", err)).Warn("Error stating file")
				}
				continue
			}
			if !info.Mode().IsRegular() {
				continue
			}

			ev := FileEvent{Path: event.Name, Info: info, Timestamp: time.Now(), Op: event.Op}
			select {
			case w.events <- ev:
			case <-stop:
				return
			default:
				log.LogWithFields(log.F("file", event.Name)).Warn("Event channel is full, dropped event")
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.LogWithFields(log.F("error", err)).Error("fsnotify watcher error")

		case <-stop:
			return
		}
	}
}

func (w *Watcher) ignored(name string) bool {
	for _, g := range w.ignore {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Stop halts the watcher and closes the event channel
func (w *Watcher) Stop() {
	w.mutex.Lock()
	if !w.running {
		w.mutex.Unlock()
		return
	}
	w.running = false
	w.stopped = true
	close(w.stopChan)
	done := w.done
	w.mutex.Unlock()

	<-done
	if err := w.fsWatcher.Close(); err != nil {
		log.LogWithFields(log.F("error", err)).Error("Error closing fsnotify watcher")
	}
	log.Debug("Watcher stopped")
}

// Close releases a watcher that was never started. Use Stop otherwise.
func (w *Watcher) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.running || w.stopped {
		return nil
	}
	w.stopped = true
	return w.fsWatcher.Close()
}

// IsRunning returns whether the watcher is currently active
func (w *Watcher) IsRunning() bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.running
}

// GetDirectories returns the folders being watched
func (w *Watcher) GetDirectories() []string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	out := make([]string, len(w.directories))
	copy(out, w.directories)
	return out
}
