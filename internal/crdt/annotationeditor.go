package crdt

import (
	"bytes"
	"encoding/gob"

	"github.com/annotext/annotext/internal/ids"
)

func init() {
	gob.Register(CursorAttribute{})
	gob.Register(SelectionAttribute{})
	gob.Register(DiagnosticAttribute{})
	gob.Register(FixitAttribute{})
	gob.Register(TagsAttribute{})
	gob.Register(SizeAttribute{})
	gob.Register(DependencyAttribute{})
	gob.Register(BufferAttribute{})
	gob.Register(BufferRefAttribute{})
}

// attrKey gob-encodes an Attribute so two structurally-equal values
// (even across edit sessions) collapse to the same map key. Collaborators
// that redeclare the same diagnostic/cursor/tag set every edit rely on
// this to avoid emitting a fresh Decl/Mark pair each time.
func attrKey(a Attribute) string {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&a); err != nil {
		panic(err)
	}
	return buf.String()
}

func annKey(begin, end, attrID ids.ID) string {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(begin); err != nil {
		panic(err)
	}
	if err := enc.Encode(end); err != nil {
		panic(err)
	}
	if err := enc.Encode(attrID); err != nil {
		panic(err)
	}
	return buf.String()
}

type declaredAttr struct {
	id  ids.ID
	use bool
}

type declaredAnn struct {
	id  ids.ID
	use bool
}

// AnnotationEditor amortizes Decl/Mark churn across repeated edits from
// the same collaborator: on each BeginEdit/EndEdit cycle it diffs the
// attributes and annotations requested against what's still declared
// from the previous cycle, emitting Decl/Mark only for what's new and
// DelDecl/DelMark only for what's no longer requested.
type AnnotationEditor struct {
	site *ids.Site

	attrsByKey map[string]*declaredAttr
	annsByKey  map[string]*declaredAnn
}

// NewAnnotationEditor returns an editor that issues ids from site.
func NewAnnotationEditor(site *ids.Site) *AnnotationEditor {
	return &AnnotationEditor{
		site:       site,
		attrsByKey: make(map[string]*declaredAttr),
		annsByKey:  make(map[string]*declaredAnn),
	}
}

// BeginEdit marks every currently-declared attribute/annotation as
// unused; AttrID/Mark calls during this edit re-mark the ones still
// wanted, and EndEdit retires whatever remains unused.
func (e *AnnotationEditor) BeginEdit() {
	for _, d := range e.attrsByKey {
		d.use = false
	}
	for _, d := range e.annsByKey {
		d.use = false
	}
}

// AttrID returns the id of attr, declaring it via cmds if this is the
// first time it's been requested since the last time it dropped out.
func (e *AnnotationEditor) AttrID(cmds *CommandSet, attr Attribute) ids.ID {
	key := attrKey(attr)
	if d, ok := e.attrsByKey[key]; ok {
		d.use = true
		return d.id
	}
	id := MakeDecl(cmds, e.site, attr)
	e.attrsByKey[key] = &declaredAttr{id: id, use: true}
	return id
}

// Mark requests that attr cover [begin,end), declaring and marking it
// via cmds only if this exact (range, attribute) pair is new.
func (e *AnnotationEditor) Mark(cmds *CommandSet, begin, end ids.ID, attr Attribute) ids.ID {
	attrID := e.AttrID(cmds, attr)
	return e.MarkAttr(cmds, begin, end, attrID)
}

// MarkAttr is Mark for an attribute id already resolved via AttrID,
// e.g. so multiple ranges can share one diagnostic declaration.
func (e *AnnotationEditor) MarkAttr(cmds *CommandSet, begin, end, attrID ids.ID) ids.ID {
	key := annKey(begin, end, attrID)
	if d, ok := e.annsByKey[key]; ok {
		d.use = true
		return d.id
	}
	id := MakeMark(cmds, e.site, Annotation{Begin: begin, End: end, Attribute: attrID})
	e.annsByKey[key] = &declaredAnn{id: id, use: true}
	return id
}

// MarkRange is Mark without a prior AttrID call.
func (e *AnnotationEditor) MarkRange(cmds *CommandSet, begin, end ids.ID, attr Attribute) ids.ID {
	return e.Mark(cmds, begin, end, attr)
}

// EndEdit retires every attribute/annotation not re-requested since the
// matching BeginEdit.
func (e *AnnotationEditor) EndEdit(cmds *CommandSet) {
	for key, d := range e.annsByKey {
		if !d.use {
			MakeDelMark(cmds, d.id)
			delete(e.annsByKey, key)
		}
	}
	for key, d := range e.attrsByKey {
		if !d.use {
			MakeDelDecl(cmds, d.id)
			delete(e.attrsByKey, key)
		}
	}
}
