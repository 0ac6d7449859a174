// Package diagnostics runs a pluggable Linter against a buffer's
// fully-loaded content and publishes its findings as diagnostic
// annotations (and candidate fixits). Grounded on
// referenced_file_collaborator.cc's latch-gated SyncCollaborator shape
// plus diagnostic.cc's DiagnosticEditor, generalized from a single
// hard-coded compiler invocation to any Linter implementation so a
// clang/gcc, golangci-lint, or eslint backend can be wired in without
// touching this package.
package diagnostics

import (
	"time"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/diagnostic"
	"github.com/annotext/annotext/internal/ids"
	"github.com/annotext/annotext/internal/latch"
)

// Diagnostic is one linter finding, expressed as byte offsets into the
// buffer's rendered text. A zero-width diagnostic (Begin == End) is
// rendered as a point mark rather than a range.
type Diagnostic struct {
	Severity crdt.Severity
	Message  string
	Begin    int
	End      int
	Fixits   []Fixit
}

// Fixit is one candidate replacement attached to a Diagnostic.
type Fixit struct {
	Kind        string
	Begin       int
	End         int
	Replacement string
}

// Linter runs an external or in-process check against text (the
// buffer's current rendered content) and reports what it finds.
type Linter interface {
	Lint(filename, text string) ([]Diagnostic, error)
}

// Collaborator is a SyncCollaborator that republishes a Linter's
// findings every time the buffer settles on new, fully-loaded content.
type Collaborator struct {
	*collab.Base

	filename string
	linter   Linter
	latch    *latch.ContentLatch
	editor   *diagnostic.Editor
}

// New returns a diagnostics collaborator for filename, backed by
// linter. consumesDependents should be true when linter's results
// depend on files other than the buffer itself (e.g. included
// headers), so a referenced-file-version bump re-triggers it even when
// the buffer text hasn't changed.
func New(filename string, linter Linter, consumesDependents bool) *Collaborator {
	base := collab.NewBase("diagnostics", 100*time.Millisecond, time.Second)
	return &Collaborator{
		Base:     base,
		filename: filename,
		linter:   linter,
		latch:    latch.New(consumesDependents),
		editor:   diagnostic.New(base.Site()),
	}
}

// Edit re-lints the buffer if its content (or referenced-file version)
// is new since the last run, and publishes the resulting diagnostics.
func (c *Collaborator) Edit(n collab.EditNotification) collab.EditResponse {
	var r collab.EditResponse
	if !n.FullyLoaded {
		return r
	}
	if !c.latch.IsNewContent(n) {
		return r
	}

	text := n.Content.RenderAll()
	findings, err := c.linter.Lint(c.filename, text)
	if err != nil {
		return r
	}

	idx := buildOffsetIndex(n.Content)
	for _, d := range findings {
		c.editor.StartDiagnostic(d.Severity, d.Message)
		if d.Begin == d.End {
			c.editor.AddPoint(idx.at(d.Begin))
		} else {
			c.editor.AddRange(idx.at(d.Begin), idx.at(d.End))
		}
		for _, fx := range d.Fixits {
			c.editor.StartFixit(fx.Kind).AddReplacement(idx.at(fx.Begin), idx.at(fx.End), fx.Replacement)
		}
	}
	c.editor.Publish(&r.ContentUpdates)
	return r
}

// offsetIndex maps a byte offset into rendered text back to the CRDT
// id of the character at that offset, clamping to ids.End past the
// document's end.
type offsetIndex struct {
	ids []ids.ID
}

func buildOffsetIndex(s crdt.AnnotatedString) offsetIndex {
	var idx offsetIndex
	for id := s.Next(ids.Begin); id != ids.End; id = s.Next(id) {
		if _, visible, _ := s.CharAt(id); visible {
			idx.ids = append(idx.ids, id)
		}
	}
	return idx
}

func (idx offsetIndex) at(offset int) ids.ID {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(idx.ids) {
		return ids.End
	}
	return idx.ids[offset]
}
