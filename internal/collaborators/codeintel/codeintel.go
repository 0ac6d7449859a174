// Package codeintel publishes token-level syntax tags and structure
// offsets from a pluggable Analyzer. Grounded on
// libclang_collaborator.cc's tokenize-and-annotate pass: for every
// token it marks TagsAttribute (syntax-highlighting classification)
// and, for fields with a known offset into their parent, a SizeAttribute.
// The original drives libclang directly; here that's an Analyzer
// interface so a tree-sitter or gopls-backed implementation can stand
// in without touching this package.
package codeintel

import (
	"time"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
	"github.com/annotext/annotext/internal/latch"
)

// Token is one lexical unit of source, expressed as byte offsets into
// the buffer's rendered text. SizeKind is empty for tokens that carry
// no structure-offset information.
type Token struct {
	Begin    int
	End      int
	Tags     []string
	SizeKind string
	Size     int64
	Bits     int
}

// Analyzer tokenizes text and reports structural information about it.
type Analyzer interface {
	Analyze(filename, text string) ([]Token, error)
}

// Collaborator republishes syntax/structure annotations every time the
// buffer settles on new, fully-loaded content.
type Collaborator struct {
	*collab.Base

	filename string
	analyzer Analyzer
	latch    *latch.ContentLatch
	marks    *crdt.AnnotationEditor
}

// New returns a code-intelligence collaborator for filename, backed by
// analyzer.
func New(filename string, analyzer Analyzer) *Collaborator {
	base := collab.NewBase("codeintel", 0, 500*time.Millisecond)
	return &Collaborator{
		Base:     base,
		filename: filename,
		analyzer: analyzer,
		latch:    latch.New(false),
		marks:    crdt.NewAnnotationEditor(base.Site()),
	}
}

// Edit re-analyzes the buffer if its content is new, and publishes the
// resulting token tags and size annotations.
func (c *Collaborator) Edit(n collab.EditNotification) collab.EditResponse {
	var r collab.EditResponse
	if !n.FullyLoaded {
		return r
	}
	if !c.latch.IsNewContent(n) {
		return r
	}

	tokens, err := c.analyzer.Analyze(c.filename, n.Content.RenderAll())
	if err != nil {
		return r
	}

	idx := buildOffsetIndex(n.Content)

	c.marks.BeginEdit()
	for _, tok := range tokens {
		begin, end := idx.at(tok.Begin), idx.at(tok.End)
		if len(tok.Tags) > 0 {
			c.marks.Mark(&r.ContentUpdates, begin, end, crdt.TagsAttribute{List: tok.Tags})
		}
		if tok.SizeKind != "" {
			c.marks.Mark(&r.ContentUpdates, begin, end, crdt.SizeAttribute{Kind: tok.SizeKind, Size: tok.Size, Bits: tok.Bits})
		}
	}
	c.marks.EndEdit(&r.ContentUpdates)

	return r
}

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
