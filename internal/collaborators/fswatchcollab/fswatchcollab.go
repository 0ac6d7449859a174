// Package fswatchcollab turns filesystem change notifications into a
// buffer-level vote that referenced files may have changed. Grounded
// on referenced_file_collaborator.cc/.h: an AsyncCollaborator that
// tracks the set of filenames named by the buffer's DependencyAttribute
// declarations, restarts an fswatch.Watcher whenever that set changes,
// and wakes its Pull loop once the watch fires.
package fswatchcollab

import (
	"sync"
	"time"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/fswatch"
	"github.com/annotext/annotext/internal/ids"
)

// Watcher is an AsyncCollaborator reporting referenced_file_changed
// whenever a file named by a DependencyAttribute is modified.
type Watcher struct {
	*collab.Base

	mu       sync.Mutex
	cond     *sync.Cond
	last     map[string]struct{}
	watch    *fswatch.Watcher
	update   bool
	shutdown bool

	newWatch func(files []string, callback func(bool)) (*fswatch.Watcher, error)
}

// New returns a Watcher with no files under watch yet; the first Push
// with dependency attributes starts the underlying fswatch.
func New() *Watcher {
	w := &Watcher{
		Base:     collab.NewBase("reffile", 0, 100*time.Millisecond),
		last:     make(map[string]struct{}),
		newWatch: fswatch.New,
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Push records the buffer's current dependency set and restarts the
// watch if it changed, and latches shutdown so Pull can unblock.
func (w *Watcher) Push(n collab.EditNotification) {
	referenced := make(map[string]struct{})
	n.Content.ForEachAttribute(crdt.TagDependency, func(_ ids.ID, attr crdt.Attribute) {
		if dep, ok := attr.(crdt.DependencyAttribute); ok {
			referenced[dep.Filename] = struct{}{}
		}
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	if n.Shutdown {
		w.shutdown = true
	}

	if !sameSet(referenced, w.last) {
		w.last = referenced
		w.restartWatchLocked()
	}
	w.cond.Broadcast()
}

// Pull blocks until a referenced file changes or the buffer shuts down.
func (w *Watcher) Pull() collab.EditResponse {
	w.mu.Lock()
	for !w.update && !w.shutdown {
		w.cond.Wait()
	}
	var r collab.EditResponse
	r.ReferencedFileChanged = w.update
	w.update = false
	r.Done = w.shutdown
	w.mu.Unlock()
	return r
}

func (w *Watcher) changedFile(shuttingDown bool) {
	w.mu.Lock()
	w.update = true
	if !shuttingDown {
		w.restartWatchLocked()
	}
	w.cond.Broadcast()
	w.mu.Unlock()
}

// restartWatchLocked replaces the current watch with one covering
// w.last. Called with mu held.
func (w *Watcher) restartWatchLocked() {
	if w.watch != nil {
		w.watch.Close()
		w.watch = nil
	}
	if len(w.last) == 0 {
		return
	}
	files := make([]string, 0, len(w.last))
	for f := range w.last {
		files = append(files, f)
	}
	watch, err := w.newWatch(files, w.changedFile)
	if err != nil {
		return
	}
	w.watch = watch
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
