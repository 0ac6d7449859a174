// Package editor holds the cursor/selection state machine a collaborator
// embeds to turn user gestures into CRDT commands, grounded on
// editor.h/editor.cc's Editor class (its terminal-rendering half is
// out of scope; only edit-state bookkeeping, cursor/selection publishing,
// and child-buffer reconciliation are kept).
package editor

import (
	"github.com/annotext/annotext/internal/buffer"
	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

var noSelection ids.ID // zero value: site 0, clock 0, never a real id

// AppEnv is the shared environment Copy/Cut/Paste operate through,
// standing in for the original's clipboard-carrying AppEnv.
type AppEnv struct {
	Clipboard string
}

// childBuffer is one entry of the editor's child-buffer map: a
// synthetic side document (e.g. a disassembly view) declared by a
// BufferAttribute, plus the annotation editor used to mark cursor
// position into it.
type childBuffer struct {
	buf   *buffer.Buffer
	marks *crdt.AnnotationEditor
}

// Editor tracks one collaborator's cursor and selection against the
// buffer's current state, and accumulates the commands its gestures
// produce until the next MakeResponse.
type Editor struct {
	site *ids.Site

	cursor          ids.ID
	selectionAnchor ids.ID

	state          collab.EditNotification
	unpublished    crdt.CommandSet
	unacknowledged crdt.CommandSet

	marks        *crdt.AnnotationEditor
	childBuffers map[ids.ID]*childBuffer

	// newChildBuffer constructs the Buffer backing a newly-declared child
	// buffer; overridable in tests to avoid spinning up real collaborator
	// goroutines.
	newChildBuffer func(name string, initial crdt.AnnotatedString) *buffer.Buffer

	// CheckMostRecentEdit reports whether state reflects every edit this
	// editor itself has made; HasMostRecentEdit uses it to decide
	// whether it's safe to render yet. Defaults to always true.
	CheckMostRecentEdit func(collab.EditNotification) bool
}

// New returns an Editor positioned at the start of the document.
func New(site *ids.Site) *Editor {
	return &Editor{
		site:                site,
		cursor:              ids.Begin,
		selectionAnchor:     noSelection,
		marks:               crdt.NewAnnotationEditor(site),
		childBuffers:        make(map[ids.ID]*childBuffer),
		newChildBuffer:      func(name string, initial crdt.AnnotatedString) *buffer.Buffer { return buffer.New(name, initial) },
		CheckMostRecentEdit: func(collab.EditNotification) bool { return true },
	}
}

// UpdateState replaces the editor's view of the buffer: commands still
// pending acknowledgement are replayed against the new content, and any
// whose integration would now be a no-op (the new state already
// reflects them) are dropped. Child buffers are reconciled against the
// new set of declared BufferAttributes.
func (e *Editor) UpdateState(state collab.EditNotification) {
	s := state.Content
	var kept crdt.CommandSet
	for _, cmd := range e.unacknowledged {
		before := s
		s = s.IntegrateAll(crdt.CommandSet{cmd})
		if !before.SameTotalIdentity(s) {
			kept = append(kept, cmd)
		}
	}
	e.unacknowledged = kept

	e.state = state
	e.reconcileChildBuffers(state.Content)
}

// CurrentState returns the editor's last-seen buffer state.
func (e *Editor) CurrentState() collab.EditNotification { return e.state }

// HasMostRecentEdit reports whether it's safe to act on the current
// state: either the buffer is shutting down, or this editor's own
// in-flight edits have round-tripped back into state.
func (e *Editor) HasMostRecentEdit() bool {
	return e.state.Shutdown || e.CheckMostRecentEdit(e.state)
}

// HasCommands reports whether MakeResponse would return a non-empty
// response.
func (e *Editor) HasCommands() bool {
	return e.state.Shutdown || len(e.unpublished) > 0
}

// MakeResponse publishes the current cursor and selection as
// annotations, integrates the accumulated edit into the editor's local
// view of content, and drains unpublished commands into an
// EditResponse, moving them into unacknowledged until UpdateState
// confirms they've round-tripped.
func (e *Editor) MakeResponse() collab.EditResponse {
	e.publishCursor()

	r := collab.EditResponse{
		Done:       e.state.Shutdown,
		BecomeUsed: len(e.unpublished) > 0,
	}
	e.state.Content = e.state.Content.IntegrateAll(e.unpublished)
	r.ContentUpdates = e.unpublished
	e.unacknowledged = append(e.unacknowledged, e.unpublished...)
	e.unpublished = nil
	return r
}

// publishCursor marks the cursor (and selection, if any) as annotations
// via the editor's annotation editor, then echoes the cursor into any
// child buffer referenced by a buffer_ref attribute at the cursor's
// position.
func (e *Editor) publishCursor() {
	c := e.content()

	e.marks.BeginEdit()
	e.marks.Mark(&e.unpublished, e.cursor, c.Next(e.cursor), crdt.CursorAttribute{})
	if e.SelectMode() {
		begin, end := e.selectionRange()
		e.marks.Mark(&e.unpublished, begin, end, crdt.SelectionAttribute{})
	}
	e.marks.EndEdit(&e.unpublished)

	e.echoCursorIntoChildBuffers(c)
}

// echoCursorIntoChildBuffers finds any buffer_ref annotation covering
// the cursor's position and, for each line it names, marks a cursor
// annotation into the referenced child buffer — the mechanism behind
// synchronised source<->disassembly cursors.
func (e *Editor) echoCursorIntoChildBuffers(c crdt.AnnotatedString) {
	covering := c.AnnotationsAt(e.cursor)
	if len(covering) == 0 {
		return
	}
	coveringSet := make(map[ids.ID]bool, len(covering))
	for _, id := range covering {
		coveringSet[id] = true
	}

	c.ForEachAnnotation(crdt.TagBufferRef, func(id, _, _ ids.ID, attr crdt.Attribute) {
		if !coveringSet[id] {
			return
		}
		ref, ok := attr.(crdt.BufferRefAttribute)
		if !ok {
			return
		}
		cb, ok := e.childBuffers[ref.BufferID]
		if !ok {
			return
		}
		e.markCursorInChildBuffer(cb, ref.Lines)
	})
}

func (e *Editor) markCursorInChildBuffer(cb *childBuffer, lines []int) {
	content := cb.buf.ContentSnapshot()
	var cmds crdt.CommandSet

	cb.marks.BeginEdit()
	for _, line := range lines {
		start := lineStartByNumber(content, line)
		if start == ids.End {
			continue
		}
		end := content.NextLineStart(start)
		cb.marks.Mark(&cmds, start, end, crdt.CursorAttribute{})
	}
	cb.marks.EndEdit(&cmds)

	cb.buf.PushChanges(cmds, true)
}

// lineStartByNumber walks n line breaks forward from the document start,
// returning End if the document has fewer than n+1 lines.
func lineStartByNumber(c crdt.AnnotatedString, n int) ids.ID {
	start := ids.Begin
	for i := 0; i < n; i++ {
		start = c.NextLineStart(start)
		if start == ids.End {
			return ids.End
		}
	}
	return start
}

// reconcileChildBuffers rebuilds the child-buffer map against content's
// currently-declared BufferAttributes: buffers whose declaring id
// survives are carried over unchanged, newly-declared ones get a fresh
// synthetic Buffer seeded with their contents, and buffers whose
// declaration vanished are closed in the background.
func (e *Editor) reconcileChildBuffers(content crdt.AnnotatedString) {
	next := make(map[ids.ID]*childBuffer)

	content.ForEachAttribute(crdt.TagBuffer, func(id ids.ID, attr crdt.Attribute) {
		if existing, ok := e.childBuffers[id]; ok {
			next[id] = existing
			delete(e.childBuffers, id)
			return
		}
		decl, ok := attr.(crdt.BufferAttribute)
		if !ok {
			return
		}
		var cmds crdt.CommandSet
		_, initial := crdt.New().Insert(&cmds, e.site, []byte(decl.Contents), ids.Begin)
		next[id] = &childBuffer{
			buf:   e.newChildBuffer(decl.Name, initial),
			marks: crdt.NewAnnotationEditor(e.site),
		}
	})

	for _, stale := range e.childBuffers {
		buf := stale.buf
		go func() { _ = buf.Close() }()
	}
	e.childBuffers = next
}

// Cursor returns the editor's current cursor position.
func (e *Editor) Cursor() ids.ID { return e.cursor }

func (e *Editor) content() crdt.AnnotatedString { return e.state.Content }

// SelectMode reports whether a selection is currently active.
func (e *Editor) SelectMode() bool { return e.selectionAnchor != noSelection }

func (e *Editor) setSelectMode(sel bool) {
	if sel {
		if e.selectionAnchor == noSelection {
			e.selectionAnchor = e.cursor
		}
	} else {
		e.selectionAnchor = noSelection
	}
}

func (e *Editor) cursorLeft() {
	if e.cursor == ids.Begin {
		return
	}
	c := e.content()
	e.cursor = c.PrevVisible(c.Prev(e.cursor))
}

func (e *Editor) cursorRight() {
	if e.cursor == ids.End {
		return
	}
	c := e.content()
	e.cursor = c.NextVisible(c.Next(e.cursor))
}

func (e *Editor) cursorStartOfLine() {
	c := e.content()
	e.cursor = c.LineStart(e.cursor)
}

func (e *Editor) cursorEndOfLine() {
	c := e.content()
	next := c.NextLineStart(c.LineStart(e.cursor))
	if next == ids.End {
		e.cursor = c.PrevVisible(c.Prev(ids.End))
		return
	}
	// next is the newline character itself; land just before it.
	e.cursor = c.PrevVisible(c.Prev(next))
}

// column counts visible characters from the start of cursor's line up
// to cursor, used to preserve horizontal position across MoveUpN/DownN.
func column(c crdt.AnnotatedString, cursor ids.ID) int {
	line := c.LineStart(cursor)
	n := 0
	loc := line
	for loc != cursor {
		next := c.Next(loc)
		if next == ids.End {
			break
		}
		if c.Visible(next) {
			n++
		}
		loc = next
	}
	return n
}

// atColumn walks forward from line's start by n visible characters,
// stopping at the line's trailing newline or the document's end if the
// line is shorter than n.
func atColumn(c crdt.AnnotatedString, line ids.ID, n int) ids.ID {
	loc := line
	count := 0
	for count < n {
		next := c.Next(loc)
		if next == ids.End {
			return loc
		}
		ch, visible, _ := c.CharAt(next)
		if visible {
			if ch == '\n' {
				return loc
			}
			count++
		}
		loc = next
	}
	return loc
}

func (e *Editor) cursorDownN(n int) {
	c := e.content()
	col := column(c, e.cursor)
	line := c.LineStart(e.cursor)
	for i := 0; i < n; i++ {
		next := c.NextLineStart(line)
		if next == ids.End {
			break
		}
		line = next
	}
	e.cursor = atColumn(c, line, col)
}

func (e *Editor) cursorUpN(n int) {
	c := e.content()
	col := column(c, e.cursor)
	line := c.LineStart(e.cursor)
	for i := 0; i < n; i++ {
		line = c.PrevLineStart(line)
	}
	e.cursor = atColumn(c, line, col)
}

// MoveLeft moves the cursor left, clearing any active selection.
func (e *Editor) MoveLeft() { e.setSelectMode(false); e.cursorLeft() }

// SelectLeft extends the selection one character left.
func (e *Editor) SelectLeft() { e.setSelectMode(true); e.cursorLeft() }

// MoveRight moves the cursor right, clearing any active selection.
func (e *Editor) MoveRight() { e.setSelectMode(false); e.cursorRight() }

// SelectRight extends the selection one character right.
func (e *Editor) SelectRight() { e.setSelectMode(true); e.cursorRight() }

// MoveStartOfLine moves the cursor to the start of its line.
func (e *Editor) MoveStartOfLine() { e.setSelectMode(false); e.cursorStartOfLine() }

// MoveEndOfLine moves the cursor to the end of its line.
func (e *Editor) MoveEndOfLine() { e.setSelectMode(false); e.cursorEndOfLine() }

// MoveDownN moves the cursor down n lines, preserving column.
func (e *Editor) MoveDownN(n int) { e.setSelectMode(false); e.cursorDownN(n) }

// MoveUpN moves the cursor up n lines, preserving column.
func (e *Editor) MoveUpN(n int) { e.setSelectMode(false); e.cursorUpN(n) }

// MoveDown moves the cursor down one line.
func (e *Editor) MoveDown() { e.MoveDownN(1) }

// MoveUp moves the cursor up one line.
func (e *Editor) MoveUp() { e.MoveUpN(1) }

// SelectDownN extends the selection n lines down.
func (e *Editor) SelectDownN(n int) { e.setSelectMode(true); e.cursorDownN(n) }

// SelectUpN extends the selection n lines up.
func (e *Editor) SelectUpN(n int) { e.setSelectMode(true); e.cursorUpN(n) }

// SelectDown extends the selection one line down.
func (e *Editor) SelectDown() { e.SelectDownN(1) }

// SelectUp extends the selection one line up.
func (e *Editor) SelectUp() { e.SelectUpN(1) }

// selectionRange returns the ordered [begin,end) of the active
// selection, or (cursor,cursor) if none is active.
func (e *Editor) selectionRange() (ids.ID, ids.ID) {
	if !e.SelectMode() {
		return e.cursor, e.cursor
	}
	c := e.content()
	if c.OrderIDs(e.selectionAnchor, e.cursor) <= 0 {
		return e.selectionAnchor, e.cursor
	}
	return e.cursor, e.selectionAnchor
}

// DeleteSelection deletes the active selection, if any, and returns
// its text (empty if there was no selection).
func (e *Editor) DeleteSelection() string {
	if !e.SelectMode() {
		return ""
	}
	c := e.content()
	begin, end := e.selectionRange()
	text := c.Render(begin, end)
	c.MakeDeleteRange(&e.unpublished, begin, end)
	e.cursor = begin
	e.selectionAnchor = noSelection
	return text
}

// Backspace deletes the active selection, or the character left of the
// cursor if there is none.
func (e *Editor) Backspace() {
	if e.SelectMode() {
		e.DeleteSelection()
		return
	}
	if e.cursor == ids.Begin {
		return
	}
	target := e.cursor
	e.cursorLeft()
	crdt.MakeDelete(&e.unpublished, target)
}

// InsChar inserts c after the cursor and advances past it.
func (e *Editor) InsChar(ch byte) {
	e.DeleteSelection()
	c := e.content()
	last := c.MakeInsert(&e.unpublished, e.site, []byte{ch}, e.cursor)
	e.cursor = last
}

// InsNewLine inserts a line break at the cursor.
func (e *Editor) InsNewLine() { e.InsChar('\n') }

// Copy copies the active selection's text into env's clipboard without
// modifying the document.
func (e *Editor) Copy(env *AppEnv) {
	if !e.SelectMode() {
		return
	}
	c := e.content()
	begin, end := e.selectionRange()
	env.Clipboard = c.Render(begin, end)
}

// Cut copies the active selection into env's clipboard, then deletes
// it.
func (e *Editor) Cut(env *AppEnv) {
	if !e.SelectMode() {
		return
	}
	env.Clipboard = e.DeleteSelection()
}

// Paste inserts env's clipboard contents after the cursor, replacing
// the active selection if any.
func (e *Editor) Paste(env *AppEnv) {
	e.DeleteSelection()
	if env.Clipboard == "" {
		return
	}
	c := e.content()
	last := c.MakeInsert(&e.unpublished, e.site, []byte(env.Clipboard), e.cursor)
	e.cursor = last
}
