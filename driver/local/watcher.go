package local

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fsnotifyWatcher adapts fsnotify.Watcher to fsWatcher. Events are
// forwarded until Close, after which pending sends are dropped instead of
// blocking the forwarding goroutine.
type fsnotifyWatcher struct {
	watcher   *fsnotify.Watcher
	events    chan fsEvent
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
}

func newFSWatcher() (fsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &fsnotifyWatcher{
		watcher: w,
		events:  make(chan fsEvent),
		errors:  make(chan error),
		done:    make(chan struct{}),
	}
	go fw.forward()

	return fw, nil
}

func (w *fsnotifyWatcher) forward() {
	defer close(w.events)
	defer close(w.errors)

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			select {
			case w.events <- fsEvent{Name: event.Name, Op: uint32(event.Op)}:
			case <-w.done:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

func (w *fsnotifyWatcher) Add(path string) error {
	return w.watcher.Add(path)
}

func (w *fsnotifyWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *fsnotifyWatcher) Events() <-chan fsEvent {
	return w.events
}

func (w *fsnotifyWatcher) Errors() <-chan error {
	return w.errors
}
