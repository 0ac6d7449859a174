package crdt

import "github.com/annotext/annotext/internal/ids"

// lineOf returns the id marking the start of id's line: either Begin,
// or the nearest preceding visible '\n'. Used as a skip-list anchor so
// OrderIDs only has to walk a full character run once, rather than on
// every comparison.
func (s AnnotatedString) lineOf(id ids.ID) ids.ID {
	cur := id
	for cur != ids.Begin {
		ci, ok := s.chars.Lookup(cur)
		if !ok {
			panic("crdt: reference to undeclared id " + idDebug(cur))
		}
		prev := ci.docPrev
		pci, ok := s.chars.Lookup(prev)
		if !ok {
			panic("crdt: reference to undeclared id " + idDebug(prev))
		}
		if prev == ids.Begin || (pci.visible && pci.chr == '\n') {
			return prev
		}
		cur = prev
	}
	return ids.Begin
}

// LineStart returns the id marking the start of id's line: Begin, or
// the nearest preceding visible '\n'. Exported for callers (e.g. the
// editor's vertical cursor movement) that need line boundaries without
// a full render.
func (s AnnotatedString) LineStart(id ids.ID) ids.ID { return s.lineOf(id) }

// NextLineStart returns the start of the line after the one beginning
// at lineStart, or End if lineStart is the last line.
func (s AnnotatedString) NextLineStart(lineStart ids.ID) ids.ID {
	brk, ok := s.lineBreaks.Lookup(lineStart)
	if !ok {
		return ids.End
	}
	return brk.next
}

// PrevLineStart returns the start of the line before the one beginning
// at lineStart, or Begin if lineStart is the first line.
func (s AnnotatedString) PrevLineStart(lineStart ids.ID) ids.ID {
	if lineStart == ids.Begin {
		return ids.Begin
	}
	brk, ok := s.lineBreaks.Lookup(lineStart)
	if !ok {
		return ids.Begin
	}
	return brk.prev
}

// OrderIDs returns -1 if a precedes b in document order, 1 if it
// follows, 0 if a==b. It first locates each id's line via the
// line-break index, then only falls back to a character-by-character
// walk when both ids share a line.
func (s AnnotatedString) OrderIDs(a, b ids.ID) int {
	if a == b {
		return 0
	}
	la := s.lineOf(a)
	lb := s.lineOf(b)
	if la == lb {
		cur := la
		for cur != ids.End {
			if cur == a {
				return -1
			}
			if cur == b {
				return 1
			}
			cur = s.docNext(cur)
		}
		panic("crdt: ids not found walking their own line")
	}

	cur := la
	for cur != ids.End {
		brk, ok := s.lineBreaks.Lookup(cur)
		if !ok {
			break
		}
		cur = brk.next
		if cur == lb {
			return -1
		}
	}
	return 1
}
