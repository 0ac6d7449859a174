// Package fileloader implements the one-shot file-to-buffer loader
// every new buffer starts with. Grounded on io_collaborator.cc/.h: an
// AsyncCollaborator whose Pull reads the whole file once (chunked, on
// the original; in one os.ReadFile call here) and whose Push is a
// no-op since the loader has nothing to react to after its read is
// done.
package fileloader

import (
	"os"
	"sync"
	"time"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

// Loader is an AsyncCollaborator that inserts a file's bytes as one
// contiguous run of CRDT characters the first time it's pulled, then
// reports Done and BecomeLoaded.
type Loader struct {
	*collab.Base

	filename string

	mu   sync.Mutex
	read bool
	last ids.ID
}

// New returns a loader for filename, not yet started.
func New(filename string) *Loader {
	return &Loader{
		Base:     collab.NewBase("fileloader", 0, time.Second),
		filename: filename,
		last:     ids.Begin,
	}
}

// Push is a no-op: the loader never needs to react to buffer state.
func (l *Loader) Push(collab.EditNotification) {}

// Pull reads the whole file on its first call and returns an insert
// spanning its contents; every subsequent call returns an empty,
// already-done response.
func (l *Loader) Pull() collab.EditResponse {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.read {
		return collab.EditResponse{Done: true}
	}
	l.read = true

	var r collab.EditResponse
	r.Done = true
	r.BecomeLoaded = true

	data, err := os.ReadFile(l.filename)
	if err != nil {
		return r
	}

	l.last = crdt.MakeRawInsert(&r.ContentUpdates, l.Site(), data, l.last, ids.End)
	return r
}
