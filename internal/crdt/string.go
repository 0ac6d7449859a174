// Package crdt implements the annotated-string CRDT: characters with a
// line-break index, attribute declarations, and range annotations,
// convergent under concurrent edits from many sites without
// coordination. It is a direct port of google/ced's AnnotatedString
// (annotated_string.h/.cc), the WOOT integration rule in particular.
package crdt

import (
	"strings"

	"github.com/annotext/annotext/internal/avltree"
	"github.com/annotext/annotext/internal/ids"
)

type idSet = avltree.Tree[ids.ID, struct{}]

func newIDSet() idSet { return avltree.New[ids.ID, struct{}](ids.Compare) }

type attrByIDTree = avltree.Tree[ids.ID, Attribute]
type annByIDTree = avltree.Tree[ids.ID, Annotation]

type charInfo struct {
	visible      bool
	chr          byte
	docNext      ids.ID
	docPrev      ids.ID
	originAfter  ids.ID
	originBefore ids.ID
	annotations  idSet
}

type lineBreak struct {
	prev ids.ID
	next ids.ID
}

// AnnotatedString is the CRDT document. It is a plain value: every
// field is a persistent tree, so copying an AnnotatedString is O(1)
// and shares structure with the copy source. "Modifying" it (via
// Integrate) yields a new value; the old one is untouched and remains
// valid to render, diff against, or hand to a slow listener.
type AnnotatedString struct {
	chars             avltree.Tree[ids.ID, charInfo]
	lineBreaks        avltree.Tree[ids.ID, lineBreak]
	attributes        avltree.Tree[ids.ID, AttrTag]
	attributesByType  avltree.Tree[AttrTag, attrByIDTree]
	annotations       avltree.Tree[ids.ID, AttrTag]
	annotationsByType avltree.Tree[AttrTag, annByIDTree]
	graveyard         idSet
}

// New returns an empty annotated string: only the Begin/End sentinels
// are present, doubly linked to each other.
func New() AnnotatedString {
	var s AnnotatedString
	s.chars = avltree.New[ids.ID, charInfo](ids.Compare)
	s.lineBreaks = avltree.New[ids.ID, lineBreak](ids.Compare)
	s.attributes = avltree.New[ids.ID, AttrTag](ids.Compare)
	s.attributesByType = avltree.New[AttrTag, attrByIDTree](attrTagCmp)
	s.annotations = avltree.New[ids.ID, AttrTag](ids.Compare)
	s.annotationsByType = avltree.New[AttrTag, annByIDTree](attrTagCmp)
	s.graveyard = newIDSet()

	s.chars = s.chars.
		Add(ids.Begin, charInfo{visible: false, docNext: ids.End, docPrev: ids.Begin, originAfter: ids.End, originBefore: ids.End, annotations: newIDSet()}).
		Add(ids.End, charInfo{visible: false, chr: 1, docNext: ids.End, docPrev: ids.Begin, originAfter: ids.Begin, originBefore: ids.Begin, annotations: newIDSet()})
	s.lineBreaks = s.lineBreaks.
		Add(ids.Begin, lineBreak{prev: ids.End, next: ids.End}).
		Add(ids.End, lineBreak{prev: ids.Begin, next: ids.Begin})
	return s
}

func (s AnnotatedString) docNext(id ids.ID) ids.ID {
	ci, ok := s.chars.Lookup(id)
	if !ok {
		panic("crdt: reference to undeclared id " + idDebug(id))
	}
	return ci.docNext
}

// MakeRawInsert appends an InsertCommand declaring len(chars) new ids
// starting at a freshly issued block from site, inserted between after
// and before, and returns the id of the last character in the block.
// It does not touch s; the caller integrates separately.
func MakeRawInsert(cmds *CommandSet, site *ids.Site, chars []byte, after, before ids.ID) ids.ID {
	if len(chars) == 0 {
		return after
	}
	first := site.GenerateBlock(uint64(len(chars)))
	buf := make([]byte, len(chars))
	copy(buf, chars)
	*cmds = append(*cmds, InsertCommand{
		ID:           first,
		Characters:   buf,
		OriginAfter:  after,
		OriginBefore: before,
	})
	return ids.WithClock(first, first.Clock()+uint64(len(chars)-1))
}

// MakeInsert is MakeRawInsert with before taken to be the character
// currently following after in document order.
func (s AnnotatedString) MakeInsert(cmds *CommandSet, site *ids.Site, chars []byte, after ids.ID) ids.ID {
	return MakeRawInsert(cmds, site, chars, after, s.docNext(after))
}

// Insert emits and immediately integrates an insert of chars after
// after, returning the id of the last inserted character and the
// resulting string.
func (s AnnotatedString) Insert(cmds *CommandSet, site *ids.Site, chars []byte, after ids.ID) (ids.ID, AnnotatedString) {
	start := len(*cmds)
	last := s.MakeInsert(cmds, site, chars, after)
	for i := start; i < len(*cmds); i++ {
		s = s.Integrate((*cmds)[i])
	}
	return last, s
}

// MakeDelete appends a DeleteCommand tombstoning id.
func MakeDelete(cmds *CommandSet, id ids.ID) {
	*cmds = append(*cmds, DeleteCommand{ID: id})
}

// MakeDeleteRange appends a DeleteCommand for every character in
// [beg,end) in document order.
func (s AnnotatedString) MakeDeleteRange(cmds *CommandSet, beg, end ids.ID) {
	loc := beg
	for loc != end {
		MakeDelete(cmds, loc)
		loc = s.docNext(loc)
	}
}

// MakeDecl appends a DeclCommand declaring attr under a fresh id issued
// by site, and returns that id.
func MakeDecl(cmds *CommandSet, site *ids.Site, attr Attribute) ids.ID {
	id := site.Generate()
	*cmds = append(*cmds, DeclCommand{ID: id, Attribute: attr})
	return id
}

// MakeDelDecl appends a DelDeclCommand retiring the attribute at id.
func MakeDelDecl(cmds *CommandSet, id ids.ID) {
	*cmds = append(*cmds, DelDeclCommand{ID: id})
}

// MakeMark appends a MarkCommand recording ann under a fresh id issued
// by site, and returns that id.
func MakeMark(cmds *CommandSet, site *ids.Site, ann Annotation) ids.ID {
	id := site.Generate()
	*cmds = append(*cmds, MarkCommand{ID: id, Annotation: ann})
	return id
}

// MakeDelMark appends a DelMarkCommand retiring the annotation at id.
func MakeDelMark(cmds *CommandSet, id ids.ID) {
	*cmds = append(*cmds, DelMarkCommand{ID: id})
}

// MakeDeleteAttributesBySite emits DelMark/DelDecl for every annotation
// and attribute site created, so a departing collaborator's marks don't
// linger after it disconnects.
func (s AnnotatedString) MakeDeleteAttributesBySite(cmds *CommandSet, site *ids.Site) {
	s.annotationsByType.ForEach(func(_ AttrTag, byType annByIDTree) {
		byType.ForEach(func(id ids.ID, ann Annotation) {
			if site.CreatedID(id) || site.CreatedID(ann.Attribute) {
				MakeDelMark(cmds, id)
			}
		})
	})
	s.attributes.ForEach(func(id ids.ID, _ AttrTag) {
		if site.CreatedID(id) {
			MakeDelDecl(cmds, id)
		}
	})
}

// Integrate applies one command, returning the resulting string. s
// itself is never mutated (it is a value receiver); the returned value
// may share most of its trees with s.
func (s AnnotatedString) Integrate(cmd Command) AnnotatedString {
	switch c := cmd.(type) {
	case InsertCommand:
		s.integrateInsert(c)
	case DeleteCommand:
		s.integrateDelete(c.ID)
	case DeclCommand:
		s.integrateDecl(c.ID, c.Attribute)
	case DelDeclCommand:
		s.integrateDelDecl(c.ID)
	case MarkCommand:
		s.integrateMark(c.ID, c.Annotation)
	case DelMarkCommand:
		s.integrateDelMark(c.ID)
	default:
		panic(ErrUnknownCommand)
	}
	return s
}

// IntegrateAll applies every command in cmds in order.
func (s AnnotatedString) IntegrateAll(cmds CommandSet) AnnotatedString {
	for _, c := range cmds {
		s = s.Integrate(c)
	}
	return s
}

func (s *AnnotatedString) integrateInsert(cmd InsertCommand) {
	if _, ok := s.chars.Lookup(cmd.ID); ok {
		return // duplicate delivery: already integrated, idempotent no-op
	}
	after := cmd.OriginAfter
	before := cmd.OriginBefore
	id := cmd.ID
	for _, c := range cmd.Characters {
		s.integrateInsertChar(id, c, after, before)
		after = id
		id = ids.WithClock(id, id.Clock()+1)
	}
}

type listEntry struct {
	id   ids.ID
	info charInfo
}

// integrateInsertChar is the canonical WOOT integration rule: splice x
// between (after,before) if they're still adjacent, otherwise narrow
// the search to the filtered interior of [after,before] (the characters
// whose own origins are not strictly inside that range) and recurse.
// Grounded on annotated_string.cc's IntegrateInsertChar.
func (s *AnnotatedString) integrateInsertChar(id ids.ID, c byte, after, before ids.ID) {
	for {
		caft, ok1 := s.chars.Lookup(after)
		cbef, ok2 := s.chars.Lookup(before)
		if !ok1 || !ok2 {
			panic("crdt: insert references undeclared neighbour id")
		}
		if caft.docNext == before {
			if c == '\n' {
				s.spliceLineBreak(id, after, caft)
			}
			s.chars = s.chars.
				Add(after, charInfo{visible: caft.visible, chr: caft.chr, docNext: id, docPrev: caft.docPrev, originAfter: caft.originAfter, originBefore: caft.originBefore, annotations: caft.annotations}).
				Add(id, charInfo{visible: true, chr: c, docNext: before, docPrev: after, originAfter: after, originBefore: before, annotations: newIDSet()}).
				Add(before, charInfo{visible: cbef.visible, chr: cbef.chr, docNext: cbef.docNext, docPrev: id, originAfter: cbef.originAfter, originBefore: cbef.originBefore, annotations: cbef.annotations})
			return
		}

		var seq []listEntry
		inSeq := map[ids.ID]charInfo{}
		add := func(i ids.ID, ci charInfo) {
			inSeq[i] = ci
			seq = append(seq, listEntry{i, ci})
		}
		add(after, caft)
		n := caft.docNext
		for {
			cn, ok := s.chars.Lookup(n)
			if !ok {
				panic("crdt: insert walked off the document chain")
			}
			add(n, cn)
			if n == before {
				break
			}
			n = cn.docNext
		}

		strictlyInside := func(o ids.ID) bool {
			_, ok := inSeq[o]
			return ok && o != after && o != before
		}
		filtered := []listEntry{seq[0]}
		for i := 1; i < len(seq)-1; i++ {
			e := seq[i]
			if strictlyInside(e.info.originAfter) || strictlyInside(e.info.originBefore) {
				continue
			}
			filtered = append(filtered, e)
		}
		filtered = append(filtered, seq[len(seq)-1])
		seq = filtered

		i := 1
		for i < len(seq)-1 && seq[i].id < id {
			i++
		}
		after = seq[i-1].id
		before = seq[i].id
	}
}

func (s *AnnotatedString) spliceLineBreak(id, after ids.ID, caft charInfo) {
	prevLineID := after
	plic := caft
	for prevLineID != ids.Begin && !(plic.visible && plic.chr == '\n') {
		prevLineID = plic.docPrev
		next, ok := s.chars.Lookup(prevLineID)
		if !ok {
			break
		}
		plic = next
	}
	prevLB, _ := s.lineBreaks.Lookup(prevLineID)
	nextLB, _ := s.lineBreaks.Lookup(prevLB.next)
	s.lineBreaks = s.lineBreaks.
		Add(prevLineID, lineBreak{prev: prevLB.prev, next: id}).
		Add(id, lineBreak{prev: prevLineID, next: prevLB.next}).
		Add(prevLB.next, lineBreak{prev: id, next: nextLB.next})
}

func (s *AnnotatedString) integrateDelete(id ids.ID) {
	cdel, ok := s.chars.Lookup(id)
	if !ok || !cdel.visible {
		return // idempotent: already deleted, or never existed
	}
	if cdel.chr == '\n' {
		self, _ := s.lineBreaks.Lookup(id)
		prev, _ := s.lineBreaks.Lookup(self.prev)
		next, _ := s.lineBreaks.Lookup(self.next)
		s.lineBreaks = s.lineBreaks.Remove(id).
			Add(self.prev, lineBreak{prev: prev.prev, next: self.next}).
			Add(self.next, lineBreak{prev: self.prev, next: next.next})
	}
	s.chars = s.chars.Add(id, charInfo{
		visible:      false,
		chr:          cdel.chr,
		docNext:      cdel.docNext,
		docPrev:      cdel.docPrev,
		originAfter:  cdel.originAfter,
		originBefore: cdel.originBefore,
		annotations:  newIDSet(),
	})
}

func (s *AnnotatedString) integrateDecl(id ids.ID, attr Attribute) {
	if _, ok := s.graveyard.Lookup(id); ok {
		return
	}
	tag := attr.Tag()
	s.attributes = s.attributes.Add(id, tag)
	byType, ok := s.attributesByType.Lookup(tag)
	if !ok {
		byType = avltree.New[ids.ID, Attribute](ids.Compare)
	}
	s.attributesByType = s.attributesByType.Add(tag, byType.Add(id, attr))
}

func (s *AnnotatedString) integrateDelDecl(id ids.ID) {
	tag, ok := s.attributes.Lookup(id)
	if !ok {
		return
	}
	if byType, ok := s.attributesByType.Lookup(tag); ok {
		s.attributesByType = s.attributesByType.Add(tag, byType.Remove(id))
	}
	s.attributes = s.attributes.Remove(id)
	s.graveyard = s.graveyard.Add(id, struct{}{})
}

func isMarkable(loc ids.ID, ci charInfo) bool {
	return ci.visible || loc == ids.Begin
}

func (s *AnnotatedString) integrateMark(id ids.ID, ann Annotation) {
	if _, ok := s.graveyard.Lookup(id); ok {
		return
	}
	tag, ok := s.attributes.Lookup(ann.Attribute)
	if !ok {
		// Referenced attribute doesn't exist (yet, or ever): tolerate
		// out-of-order delivery by ignoring the mark rather than
		// aborting the integrating goroutine.
		return
	}
	s.annotations = s.annotations.Add(id, tag)
	byType, ok := s.annotationsByType.Lookup(tag)
	if !ok {
		byType = avltree.New[ids.ID, Annotation](ids.Compare)
	}
	s.annotationsByType = s.annotationsByType.Add(tag, byType.Add(id, ann))

	loc := ann.Begin
	for loc != ann.End {
		ci, ok := s.chars.Lookup(loc)
		if !ok {
			break
		}
		next := ci.docNext
		if isMarkable(loc, ci) {
			ci.annotations = ci.annotations.Add(id, struct{}{})
			s.chars = s.chars.Add(loc, ci)
		}
		loc = next
	}
}

func (s *AnnotatedString) integrateDelMark(id ids.ID) {
	tag, ok := s.annotations.Lookup(id)
	if !ok {
		return
	}
	byType, ok := s.annotationsByType.Lookup(tag)
	if !ok {
		return
	}
	ann, ok := byType.Lookup(id)
	if !ok {
		return
	}

	loc := ann.Begin
	for loc != ann.End {
		ci, ok := s.chars.Lookup(loc)
		if !ok {
			break
		}
		next := ci.docNext
		if isMarkable(loc, ci) {
			ci.annotations = ci.annotations.Remove(id)
			s.chars = s.chars.Add(loc, ci)
		}
		loc = next
	}
	s.annotationsByType = s.annotationsByType.Add(tag, byType.Remove(id))
	s.annotations = s.annotations.Remove(id)
	s.graveyard = s.graveyard.Add(id, struct{}{})
}

// Render returns the visible text in [beg,end), oriented automatically
// regardless of the order beg/end are supplied in.
func (s AnnotatedString) Render(beg, end ids.ID) string {
	if s.OrderIDs(beg, end) > 0 {
		beg, end = end, beg
	}
	var sb strings.Builder
	loc := beg
	for loc != end {
		ci, ok := s.chars.Lookup(loc)
		if !ok {
			break
		}
		if ci.visible {
			sb.WriteByte(ci.chr)
		}
		loc = ci.docNext
	}
	return sb.String()
}

// RenderAll renders the whole document.
func (s AnnotatedString) RenderAll() string {
	return s.Render(ids.Begin, ids.End)
}

// SameContentIdentity reports whether s and other share the same
// character tree root: a cheap check that text and per-char annotation
// caches are identical without walking either tree.
func (s AnnotatedString) SameContentIdentity(other AnnotatedString) bool {
	return s.chars.SameIdentity(other.chars)
}

// SameTotalIdentity additionally requires attribute and annotation
// declarations to share tree identity.
func (s AnnotatedString) SameTotalIdentity(other AnnotatedString) bool {
	return s.chars.SameIdentity(other.chars) &&
		s.attributesByType.SameIdentity(other.attributesByType) &&
		s.annotationsByType.SameIdentity(other.annotationsByType)
}

// ForEachAnnotation visits every currently-declared annotation of the
// given tag whose referenced attribute still exists, calling f with
// the annotation's id, range, and resolved attribute.
func (s AnnotatedString) ForEachAnnotation(tag AttrTag, f func(id, begin, end ids.ID, attr Attribute)) {
	m, ok := s.annotationsByType.Lookup(tag)
	if !ok {
		return
	}
	am, ok := s.attributesByType.Lookup(tag)
	if !ok {
		return
	}
	m.ForEach(func(id ids.ID, ann Annotation) {
		attr, ok := am.Lookup(ann.Attribute)
		if !ok {
			return
		}
		f(id, ann.Begin, ann.End, attr)
	})
}

// ForEachAttribute visits every currently-declared attribute of the
// given tag.
func (s AnnotatedString) ForEachAttribute(tag AttrTag, f func(id ids.ID, attr Attribute)) {
	m, ok := s.attributesByType.Lookup(tag)
	if !ok {
		return
	}
	m.ForEach(f)
}

// AnnotationsAt returns the ids of every annotation currently covering
// character loc (empty for a tombstoned character other than Begin).
func (s AnnotatedString) AnnotationsAt(loc ids.ID) []ids.ID {
	ci, ok := s.chars.Lookup(loc)
	if !ok {
		return nil
	}
	var out []ids.ID
	ci.annotations.ForEach(func(id ids.ID, _ struct{}) { out = append(out, id) })
	return out
}

// Next returns the document-order successor of id (Begin→...→End).
func (s AnnotatedString) Next(id ids.ID) ids.ID { return s.docNext(id) }

// Prev returns the document-order predecessor of id.
func (s AnnotatedString) Prev(id ids.ID) ids.ID {
	ci, ok := s.chars.Lookup(id)
	if !ok {
		panic("crdt: reference to undeclared id " + idDebug(id))
	}
	return ci.docPrev
}

// Visible reports whether id currently denotes a non-tombstoned
// character (Begin/End are never visible).
func (s AnnotatedString) Visible(id ids.ID) bool {
	ci, ok := s.chars.Lookup(id)
	return ok && ci.visible
}

// CharAt returns id's character and whether it's currently visible.
// ok is false only if id was never declared.
func (s AnnotatedString) CharAt(id ids.ID) (ch byte, visible bool, ok bool) {
	ci, ok := s.chars.Lookup(id)
	if !ok {
		return 0, false, false
	}
	return ci.chr, ci.visible, true
}

// NextVisible returns the next visible character at or after id,
// stopping at End.
func (s AnnotatedString) NextVisible(id ids.ID) ids.ID {
	for id != ids.End && !s.Visible(id) && id != ids.Begin {
		id = s.docNext(id)
	}
	if id == ids.Begin {
		id = s.docNext(id)
		for id != ids.End && !s.Visible(id) {
			id = s.docNext(id)
		}
	}
	return id
}

// PrevVisible returns the nearest visible character at or before id,
// stopping at Begin.
func (s AnnotatedString) PrevVisible(id ids.ID) ids.ID {
	for id != ids.Begin && !s.Visible(id) {
		id = s.Prev(id)
	}
	return id
}

func idDebug(id ids.ID) string {
	return "(" + itoa(int64(id.Site())) + "," + itoa(int64(id.Clock())) + ")"
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
