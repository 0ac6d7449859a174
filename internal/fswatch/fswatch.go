// Package fswatch provides a one-shot watcher over a set of paths:
// callback fires once, either because one of the paths changed or
// because the watcher was explicitly cancelled, and never again after
// that. Grounded on fswatch.h/fswatch.cc's pipe-cancellation design,
// rebuilt on github.com/fsnotify/fsnotify instead of hand-rolled
// inotify/kqueue plumbing.
package fswatch

import (
	"errors"
	"syscall"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches interestSet for the first change or cancellation and
// invokes callback exactly once.
type Watcher struct {
	fsw    *fsnotify.Watcher
	cancel chan struct{}
	done   chan struct{}
}

// New starts watching interestSet in the background. callback(shuttingDown)
// fires once: shuttingDown is true if Close was called before any file
// event arrived, false if a file event fired first.
func New(interestSet []string, callback func(shuttingDown bool)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range interestSet {
		if err := fsw.Add(p); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	w := &Watcher{
		fsw:    fsw,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		defer fsw.Close()
		for {
			select {
			case <-fsw.Events:
				callback(false)
				return
			case err, ok := <-fsw.Errors:
				if ok && errors.Is(err, syscall.EINTR) {
					continue
				}
				callback(true)
				return
			case <-w.cancel:
				callback(true)
				return
			}
		}
	}()

	return w, nil
}

// Close cancels the watch if it hasn't already fired, and blocks until
// the callback goroutine has returned.
func (w *Watcher) Close() {
	select {
	case <-w.cancel:
	default:
		close(w.cancel)
	}
	<-w.done
}
