// Package fixit auto-applies fixit annotations of a chosen kind,
// turning them from a proposed edit into an actual one. Grounded on
// fixit_collaborator.cc: a SyncCollaborator that consumes every
// matching FixitAttribute it sees, replacing [Begin,End) with its
// Replacement text and retiring the annotation so it isn't applied
// twice.
package fixit

import (
	"time"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

// Collaborator applies every fixit annotation whose Kind matches.
// Kinds the collaborator doesn't own (e.g. ones a human must approve
// interactively) are left alone.
type Collaborator struct {
	*collab.Base
	kind string
}

// New returns a fixit applier that auto-applies fixits tagged kind.
func New(kind string) *Collaborator {
	return &Collaborator{
		Base: collab.NewBase("fixit", 0, 100*time.Millisecond),
		kind: kind,
	}
}

// Edit consumes every matching fixit currently annotated on the
// buffer: deletes its range, inserts its replacement, and retires the
// annotation.
func (c *Collaborator) Edit(n collab.EditNotification) collab.EditResponse {
	var r collab.EditResponse
	n.Content.ForEachAnnotation(crdt.TagFixit, func(id, begin, end ids.ID, attr crdt.Attribute) {
		fx, ok := attr.(crdt.FixitAttribute)
		if !ok || fx.Kind != c.kind {
			return
		}
		crdt.MakeDelMark(&r.ContentUpdates, id)
		after := n.Content.Prev(begin)
		n.Content.MakeDeleteRange(&r.ContentUpdates, begin, end)
		if fx.Replacement != "" {
			n.Content.MakeInsert(&r.ContentUpdates, c.Site(), []byte(fx.Replacement), after)
		}
	})
	return r
}
