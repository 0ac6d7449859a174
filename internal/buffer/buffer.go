// Package buffer implements the orchestrator every collaborator is
// driven through: a single source of truth for one document's CRDT
// state, fanned out to async/sync/command-stream collaborators and
// passive listeners, throttled so a burst of keystrokes doesn't wake
// every collaborator on every character.
//
// Grounded on buffer.h/buffer.cc: the mutex-guarded EditNotification
// state, the NextNotification throttle algorithm, and the
// declared-no-edit quiescence protocol that lets Close() return once
// every collaborator has voluntarily stopped, translated from absl::Mutex
// condition waiting into sync.Cond plus timer-driven broadcasts.
package buffer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/collab"
)

// Buffer owns one document's CRDT state and coordinates the
// collaborators editing it.
type Buffer struct {
	filename string

	mu       sync.Mutex
	cond     *sync.Cond
	version  uint64
	updating bool
	lastUsed time.Time

	state collab.EditNotification

	collaborators    map[collab.Collaborator]struct{}
	declaredNoEdit   map[collab.Collaborator]struct{}
	done             map[collab.Collaborator]struct{}

	listeners map[*Listener]struct{}

	wg      sync.WaitGroup
	janitor *errgroup.Group
	janitorCtx context.Context
}

// New returns a Buffer for filename, optionally seeded with initial
// content (an empty AnnotatedString if initial is the zero value).
func New(filename string, initial crdt.AnnotatedString) *Buffer {
	b := &Buffer{
		filename:       filename,
		lastUsed:       time.Now().Add(-1000000 * time.Second),
		state:          collab.EditNotification{Content: initial},
		collaborators:  make(map[collab.Collaborator]struct{}),
		declaredNoEdit: make(map[collab.Collaborator]struct{}),
		done:           make(map[collab.Collaborator]struct{}),
		listeners:      make(map[*Listener]struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	jg, jctx := errgroup.WithContext(context.Background())
	jg.SetLimit(4)
	b.janitor = jg
	b.janitorCtx = jctx
	return b
}

// Filename returns the buffer's associated file path.
func (b *Buffer) Filename() string { return b.filename }

// ContentSnapshot returns the current document, an O(1) value copy
// that shares structure with whatever the next edit produces.
func (b *Buffer) ContentSnapshot() crdt.AnnotatedString {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Content
}

func (b *Buffer) register(c collab.Collaborator) {
	b.mu.Lock()
	b.collaborators[c] = struct{}{}
	b.mu.Unlock()
}

// RunAsync registers c and spins its independent push/pull loops.
func (b *Buffer) RunAsync(c collab.AsyncCollaborator) {
	b.register(c)
	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		b.runPush(c)
	}()
	go func() {
		defer b.wg.Done()
		b.runPull(c)
	}()
}

// RunSync registers c and spins its single edit-on-notify loop.
func (b *Buffer) RunSync(c collab.SyncCollaborator) {
	b.register(c)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.runSync(c)
	}()
}

// RunCommandStream registers c, forwards every committed command set
// to it via Push, and integrates whatever it Pulls back.
func (b *Buffer) RunCommandStream(c collab.CommandStreamCollaborator) {
	b.register(c)
	listener := b.Listen(func(crdt.AnnotatedString) {}, func(cmds crdt.CommandSet) {
		c.Push(cmds)
	})
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer listener.Close()
		for {
			cmds, ok := c.Pull()
			if !ok {
				b.mu.Lock()
				b.done[c] = struct{}{}
				b.declaredNoEdit[c] = struct{}{}
				b.mu.Unlock()
				c.Push(nil)
				return
			}
			b.publishToListeners(cmds, listener)
			b.UpdateState(c, false, func(s *collab.EditNotification) {
				s.Content = s.Content.IntegrateAll(cmds)
			})
		}
	}()
}

func (b *Buffer) runPush(c collab.AsyncCollaborator) {
	var processed uint64
	for {
		n, ok := b.NextNotification(c, &processed)
		if !ok {
			return
		}
		c.Push(n)
	}
}

func (b *Buffer) runPull(c collab.AsyncCollaborator) {
	for {
		if b.sinkResponse(c, c.Pull()) {
			return
		}
	}
}

func (b *Buffer) runSync(c collab.SyncCollaborator) {
	var processed uint64
	for {
		n, ok := b.NextNotification(c, &processed)
		if !ok {
			return
		}
		if b.sinkResponse(c, c.Edit(n)) {
			return
		}
	}
}

// NextNotification blocks until either the buffer's version has moved
// past lastProcessed or every collaborator has declared it has no more
// edits coming, whichever happens first. ok is false once this
// collaborator should stop: the buffer has fully shut down.
//
// The throttle loop chases the later of push_delay_from_idle (measured
// from the last time the buffer was actively used) and
// push_delay_from_start (measured from when this collaborator first saw
// the pending change), re-checking after each wait in case activity
// pushed last_used further out, exactly as buffer.cc's NextNotification
// does via absl::Mutex::AwaitWithTimeout.
func (b *Buffer) NextNotification(c collab.Collaborator, lastProcessed *uint64) (collab.EditNotification, bool) {
	b.mu.Lock()
	for {
		allComplete := b.state.Shutdown && len(b.declaredNoEdit) == len(b.collaborators)
		if b.version != *lastProcessed || allComplete {
			break
		}
		b.cond.Wait()
	}

	if b.version != *lastProcessed {
		firstSawChange := time.Now()
		if !b.state.Shutdown {
			for {
				lastUsedAtStart := b.lastUsed
				idleTime := time.Since(b.lastUsed)
				timeFromChange := time.Since(firstSawChange)
				delay := c.PushDelayFromIdle() - idleTime
				if alt := c.PushDelayFromStart() - timeFromChange; alt > delay {
					delay = alt
				}
				if *lastProcessed != 0 && delay > 0 {
					if b.awaitShutdownWithTimeout(delay) {
						break
					}
				}
				if b.lastUsed == lastUsedAtStart || b.state.Shutdown {
					break
				}
			}
		}
		*lastProcessed = b.version
		notification := b.state
		c.MarkRequest()
		b.mu.Unlock()
		return notification, true
	}

	b.done[c] = struct{}{}
	b.mu.Unlock()
	return collab.EditNotification{}, false
}

// awaitShutdownWithTimeout waits (with mu held) for either shutdown to
// become true or timeout to elapse, returning whether shutdown fired.
func (b *Buffer) awaitShutdownWithTimeout(timeout time.Duration) bool {
	if b.state.Shutdown {
		return true
	}
	done := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		b.mu.Lock()
		close(done)
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer timer.Stop()
	for !b.state.Shutdown {
		select {
		case <-done:
			return false
		default:
		}
		b.cond.Wait()
	}
	return true
}

// UpdateState serializes document mutation: only one updater runs f at
// a time, and the committed state always advances version by exactly
// one, regardless of how many collaborators are racing to update it.
func (b *Buffer) UpdateState(c collab.Collaborator, becomeUsed bool, f func(*collab.EditNotification)) {
	b.mu.Lock()
	for b.updating {
		b.cond.Wait()
	}
	if c != nil {
		c.MarkChange()
	}
	b.updating = true
	state := b.state
	b.mu.Unlock()

	f(&state)

	b.mu.Lock()
	b.updating = false
	b.version++
	declaredNoEdit := make(map[collab.Collaborator]struct{}, len(b.done))
	for done := range b.done {
		declaredNoEdit[done] = struct{}{}
	}
	b.declaredNoEdit = declaredNoEdit
	b.state = state
	if becomeUsed {
		b.lastUsed = time.Now()
	}
	b.cond.Broadcast()
	b.mu.Unlock()
}

// PushChanges integrates commands that originated outside any
// registered collaborator (e.g. a REST endpoint applying a patch).
func (b *Buffer) PushChanges(cmds crdt.CommandSet, becomeUsed bool) {
	b.publishToListeners(cmds, nil)
	b.UpdateState(nil, becomeUsed, func(s *collab.EditNotification) {
		s.Content = s.Content.IntegrateAll(cmds)
	})
}

// sinkResponse folds a collaborator's response into buffer state and
// reports whether the collaborator is now finished for good.
func (b *Buffer) sinkResponse(c collab.Collaborator, r collab.EditResponse) bool {
	c.MarkResponse()

	if r.HasUpdates() {
		b.publishToListeners(r.ContentUpdates, nil)
		b.UpdateState(c, r.BecomeUsed, func(s *collab.EditNotification) {
			s.Content = s.Content.IntegrateAll(r.ContentUpdates)
			if r.BecomeLoaded {
				s.FullyLoaded = true
			}
			if r.ReferencedFileChanged {
				s.ReferencedFileVersion++
			}
		})
	} else {
		b.mu.Lock()
		if r.BecomeUsed {
			b.lastUsed = time.Now()
		}
		b.declaredNoEdit[c] = struct{}{}
		b.mu.Unlock()
	}

	if r.Done {
		b.mu.Lock()
		b.done[c] = struct{}{}
		b.declaredNoEdit[c] = struct{}{}
		b.cond.Broadcast()
		b.mu.Unlock()
		return true
	}
	return false
}

// Listener receives every committed CommandSet until Close is called.
type Listener struct {
	buffer *Buffer
	update func(crdt.CommandSet)
}

// Listen registers a passive observer: initial is called once with the
// current document, then update is called with every subsequent
// committed command set until the returned Listener is closed.
func (b *Buffer) Listen(initial func(crdt.AnnotatedString), update func(crdt.CommandSet)) *Listener {
	l := &Listener{buffer: b, update: update}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	content := b.state.Content
	b.mu.Unlock()
	initial(content)
	return l
}

// Close unregisters the listener; no further updates are delivered.
func (l *Listener) Close() {
	l.buffer.mu.Lock()
	delete(l.buffer.listeners, l)
	l.buffer.mu.Unlock()
}

func (b *Buffer) publishToListeners(cmds crdt.CommandSet, except *Listener) {
	b.mu.Lock()
	ls := make([]*Listener, 0, len(b.listeners))
	for l := range b.listeners {
		if l == except {
			continue
		}
		ls = append(ls, l)
	}
	b.mu.Unlock()
	for _, l := range ls {
		l.update(cmds)
	}
}

// ScheduleCleanup hands f to the bounded janitor pool that reclaims
// resources for collaborators/child buffers that are no longer wanted,
// so a burst of closed side-buffers can't pile up unbounded goroutines.
func (b *Buffer) ScheduleCleanup(f func(context.Context) error) {
	b.janitor.Go(func() error { return f(b.janitorCtx) })
}

// Close marks the buffer shut down and waits for every collaborator
// goroutine plus any in-flight janitor cleanup to finish.
func (b *Buffer) Close() error {
	b.UpdateState(nil, false, func(s *collab.EditNotification) {
		s.Shutdown = true
	})
	b.wg.Wait()
	return b.janitor.Wait()
}

// ProfileData reports recent per-collaborator activity timestamps, the
// way buffer.cc's Buffer::ProfileData does; timestamps older than five
// seconds are left out. No endpoint or metric serves it.
func (b *Buffer) ProfileData() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	var out []string
	report := func(c collab.Collaborator, label string, ts time.Time) {
		age := now.Sub(ts)
		if age > 5*time.Second {
			return
		}
		out = append(out, b.filename+":"+c.Name()+":"+label+": "+ts.Format(time.RFC3339)+" ("+age.String()+" ago)")
	}
	for c := range b.collaborators {
		report(c, "chg", c.LastChange())
		report(c, "rsp", c.LastResponse())
		report(c, "rqst", c.LastRequest())
	}
	return out
}
