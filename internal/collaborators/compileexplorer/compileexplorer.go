// Package compileexplorer compiles a buffer's content and annotates
// each source line with the assembly lines it produced, the way a
// compiler-explorer view pairs source and disassembly. Grounded on
// godbolt_collaborator.cc/.h: a SyncCollaborator gated on a content
// latch, publishing a side BufferAttribute holding the assembly text
// and one BufferRefAttribute-backed mark per annotated source line.
// The original shells out to a fixed clang + objdump pipeline; here
// that's a pluggable Compiler so any toolchain's explorer view can be
// wired in.
package compileexplorer

import (
	"time"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
	"github.com/annotext/annotext/internal/latch"
)

// Compiler turns source text into assembly (or other generated output)
// text, plus a map from zero-based source line index to the generated
// lines it produced.
type Compiler interface {
	Compile(filename, text string) (asm string, lineMap map[int][]int, err error)
}

// Collaborator republishes a fresh side buffer and source-line
// annotations every time the buffer settles on new, fully-loaded
// content.
type Collaborator struct {
	*collab.Base

	filename string
	compiler Compiler
	latch    *latch.ContentLatch
	lines    *crdt.AnnotationEditor

	prevBuffer ids.ID
	haveBuffer bool
}

// New returns a compile-explorer collaborator for filename, backed by
// compiler.
func New(filename string, compiler Compiler) *Collaborator {
	base := collab.NewBase("compileexplorer", 0, 2*time.Second)
	return &Collaborator{
		Base:     base,
		filename: filename,
		compiler: compiler,
		latch:    latch.New(false),
		lines:    crdt.NewAnnotationEditor(base.Site()),
	}
}

// Edit recompiles the buffer if its content is new, retires the
// previous side buffer, and publishes a fresh one plus line markers.
func (c *Collaborator) Edit(n collab.EditNotification) collab.EditResponse {
	var r collab.EditResponse
	if !n.FullyLoaded {
		return r
	}
	if !c.latch.IsNewContent(n) {
		return r
	}

	asm, lineMap, err := c.compiler.Compile(c.filename, n.Content.RenderAll())
	if err != nil {
		return r
	}

	if c.haveBuffer {
		crdt.MakeDelDecl(&r.ContentUpdates, c.prevBuffer)
	}
	c.prevBuffer = crdt.MakeDecl(&r.ContentUpdates, c.Site(), crdt.BufferAttribute{Name: c.filename + ".s", Contents: asm})
	c.haveBuffer = true

	c.lines.BeginEdit()
	lineIdx := 0
	for lineStart := ids.Begin; lineStart != ids.End; lineStart = n.Content.NextLineStart(lineStart) {
		if asmLines, ok := lineMap[lineIdx]; ok {
			end := n.Content.NextLineStart(lineStart)
			c.lines.Mark(&r.ContentUpdates, lineStart, end, crdt.BufferRefAttribute{BufferID: c.prevBuffer, Lines: asmLines})
		}
		lineIdx++
	}
	c.lines.EndEdit(&r.ContentUpdates)

	return r
}
