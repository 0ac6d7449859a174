// Package collab defines the collaborator contracts a Buffer drives:
// Async (independent push/pull loops), Sync (edits made only in
// response to a notification), and CommandStream (raw command-set
// push/pull, used for network peers and passive listeners).
package collab

import (
	"sync/atomic"
	"time"

	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

// EditNotification is what a buffer hands to a collaborator describing
// its current view of the document.
type EditNotification struct {
	Content               crdt.AnnotatedString
	FullyLoaded           bool
	Shutdown              bool
	ReferencedFileVersion uint64
}

// EditResponse is what a collaborator hands back: a command diff plus
// state transitions the buffer should fold in.
type EditResponse struct {
	ContentUpdates        crdt.CommandSet
	BecomeUsed            bool
	BecomeLoaded          bool
	ReferencedFileChanged bool
	Done                  bool
}

// HasUpdates reports whether r carries anything worth integrating.
func (r EditResponse) HasUpdates() bool {
	return r.BecomeLoaded || r.ReferencedFileChanged || len(r.ContentUpdates) > 0
}

// Base is embedded by every concrete collaborator; it tracks identity,
// per-site clock, throttle durations, and liveness timestamps the way
// buffer.h's Collaborator base class does.
type Base struct {
	name               string
	site               *ids.Site
	pushDelayFromIdle  time.Duration
	pushDelayFromStart time.Duration

	lastResponse atomic.Int64
	lastRequest  atomic.Int64
	lastChange   atomic.Int64
}

// NewBase constructs a Base with its own freshly-allocated Site.
func NewBase(name string, pushDelayFromIdle, pushDelayFromStart time.Duration) *Base {
	b := &Base{
		name:               name,
		site:               ids.NewSite(),
		pushDelayFromIdle:  pushDelayFromIdle,
		pushDelayFromStart: pushDelayFromStart,
	}
	now := time.Now().UnixNano()
	b.lastResponse.Store(now)
	b.lastRequest.Store(now)
	b.lastChange.Store(now)
	return b
}

func (b *Base) Name() string                      { return b.name }
func (b *Base) PushDelayFromIdle() time.Duration   { return b.pushDelayFromIdle }
func (b *Base) PushDelayFromStart() time.Duration  { return b.pushDelayFromStart }
func (b *Base) Site() *ids.Site                    { return b.site }
func (b *Base) MarkRequest()                       { b.lastRequest.Store(time.Now().UnixNano()) }
func (b *Base) MarkResponse()                      { b.lastResponse.Store(time.Now().UnixNano()) }
func (b *Base) MarkChange()                        { b.lastChange.Store(time.Now().UnixNano()) }
func (b *Base) LastResponse() time.Time            { return time.Unix(0, b.lastResponse.Load()) }
func (b *Base) LastRequest() time.Time             { return time.Unix(0, b.lastRequest.Load()) }
func (b *Base) LastChange() time.Time              { return time.Unix(0, b.lastChange.Load()) }

// Collaborator is the common surface every variant satisfies, used by
// the buffer orchestrator for liveness reporting independent of which
// push/pull/edit protocol a given collaborator speaks.
type Collaborator interface {
	Name() string
	PushDelayFromIdle() time.Duration
	PushDelayFromStart() time.Duration
	Site() *ids.Site
	MarkRequest()
	MarkResponse()
	MarkChange()
	LastResponse() time.Time
	LastRequest() time.Time
	LastChange() time.Time
}

// AsyncCollaborator runs its own independent push and pull loops: Push
// is driven by buffer state changes, Pull is driven by the
// collaborator's own background work (e.g. a compiler finishing a
// build).
type AsyncCollaborator interface {
	Collaborator
	Push(notification EditNotification)
	Pull() EditResponse
}

// SyncCollaborator only produces edits in direct response to a
// notification; it never has work of its own to push.
type SyncCollaborator interface {
	Collaborator
	Edit(notification EditNotification) EditResponse
}

// CommandStreamCollaborator speaks raw command sets rather than full
// notifications: the shape a network peer or a passive listener uses,
// since replicating document state over the wire means moving CRDT
// commands, not the buffer's EditState bookkeeping.
type CommandStreamCollaborator interface {
	Collaborator
	// Push delivers commands observed on the buffer to the peer. A nil
	// commands value is sent once, after Pull has reported the peer
	// gone; shutting the buffer down does not push nil.
	Push(commands crdt.CommandSet)
	// Pull blocks for the peer's next batch of commands, returning
	// ok=false once the peer has disconnected for good.
	Pull() (commands crdt.CommandSet, ok bool)
}
