// Package latch guards collaborators against redoing work on content
// they've already seen.
package latch

import (
	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
)

// ContentLatch reports whether a notification's content is new since
// the last time it was asked, optionally also treating a change in
// referenced-file version as "new" for collaborators whose output
// depends on files other than the buffer itself (e.g. an #include).
// Grounded on content_latch.h.
type ContentLatch struct {
	consumesDependents bool
	lastContent        crdt.AnnotatedString
	lastDeps           uint64
}

// New returns a latch. Set consumesDependents for collaborators whose
// result depends on referenced-file content, not just buffer content.
func New(consumesDependents bool) *ContentLatch {
	return &ContentLatch{consumesDependents: consumesDependents, lastContent: crdt.New()}
}

// IsNewContent reports whether notification carries content this latch
// hasn't already been shown, and remembers it either way.
func (l *ContentLatch) IsNewContent(n collab.EditNotification) bool {
	isNew := true
	if n.Content.SameContentIdentity(l.lastContent) {
		if !l.consumesDependents {
			isNew = false
		} else if l.lastDeps == n.ReferencedFileVersion {
			isNew = false
		}
	}
	l.lastContent = n.Content
	l.lastDeps = n.ReferencedFileVersion
	return isNew
}
