package crdt

import "github.com/annotext/annotext/internal/ids"

// Snapshot is the JSON-over-websocket wire form of an AnnotatedString: a
// flat, replayable description of its current state, used to bring a
// newly-joined collaborator up to date without shipping the whole
// integration history. Encode with ToWire, rebuild with FromWire.
type Snapshot struct {
	Chars       []WireChar       `json:"chars"`
	Attributes  []WireAttribute  `json:"attributes"`
	Annotations []WireAnnotation `json:"annotations"`
	Graveyard   []ids.ID         `json:"graveyard"`
}

// WireChar is one character slot in document order, visible or not.
type WireChar struct {
	ID      ids.ID `json:"id"`
	Char    byte   `json:"char"`
	Visible bool   `json:"visible"`
}

// WireAttribute is a flattened tagged-union encoding of one declared
// Attribute, chosen over Go's json interface support so the wire format
// stays a plain object instead of requiring a type-registry on every
// client.
type WireAttribute struct {
	ID ids.ID `json:"id"`

	Tag AttrTag `json:"tag"`

	Severity    Severity `json:"severity,omitempty"`
	Message     string   `json:"message,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	DiagID      ids.ID   `json:"diag_id,omitempty"`
	Begin       ids.ID   `json:"begin,omitempty"`
	End         ids.ID   `json:"end,omitempty"`
	Replacement string   `json:"replacement,omitempty"`
	List        []string `json:"list,omitempty"`
	Size        int64    `json:"size,omitempty"`
	Bits        int      `json:"bits,omitempty"`
	Filename    string   `json:"filename,omitempty"`
	Name        string   `json:"name,omitempty"`
	Contents    string   `json:"contents,omitempty"`
	BufferID    ids.ID   `json:"buffer_id,omitempty"`
	Lines       []int    `json:"lines,omitempty"`
}

// WireAnnotation is one declared Annotation.
type WireAnnotation struct {
	ID        ids.ID `json:"id"`
	Begin     ids.ID `json:"begin"`
	End       ids.ID `json:"end"`
	Attribute ids.ID `json:"attribute"`
}

func encodeAttribute(id ids.ID, a Attribute) WireAttribute {
	w := WireAttribute{ID: id, Tag: a.Tag()}
	switch v := a.(type) {
	case CursorAttribute:
	case SelectionAttribute:
	case DiagnosticAttribute:
		w.Severity = v.Severity
		w.Message = v.Message
	case FixitAttribute:
		w.Kind = v.Kind
		w.DiagID = v.DiagID
		w.Begin = v.Begin
		w.End = v.End
		w.Replacement = v.Replacement
	case TagsAttribute:
		w.List = v.List
	case SizeAttribute:
		w.Kind = v.Kind
		w.Size = v.Size
		w.Bits = v.Bits
	case DependencyAttribute:
		w.Filename = v.Filename
	case BufferAttribute:
		w.Name = v.Name
		w.Contents = v.Contents
	case BufferRefAttribute:
		w.BufferID = v.BufferID
		w.Lines = v.Lines
	}
	return w
}

func decodeAttribute(w WireAttribute) Attribute {
	switch w.Tag {
	case TagCursor:
		return CursorAttribute{}
	case TagSelection:
		return SelectionAttribute{}
	case TagDiagnostic:
		return DiagnosticAttribute{Severity: w.Severity, Message: w.Message}
	case TagFixit:
		return FixitAttribute{Kind: w.Kind, DiagID: w.DiagID, Begin: w.Begin, End: w.End, Replacement: w.Replacement}
	case TagTags:
		return TagsAttribute{List: w.List}
	case TagSize:
		return SizeAttribute{Kind: w.Kind, Size: w.Size, Bits: w.Bits}
	case TagDependency:
		return DependencyAttribute{Filename: w.Filename}
	case TagBuffer:
		return BufferAttribute{Name: w.Name, Contents: w.Contents}
	case TagBufferRef:
		return BufferRefAttribute{BufferID: w.BufferID, Lines: w.Lines}
	default:
		panic(ErrUnknownCommand)
	}
}

// EncodeAttributeValue flattens attr into its wire form, leaving ID
// zero; callers outside this package that need to encode a single
// Attribute (e.g. for a command, rather than a whole Snapshot) fill ID
// in themselves.
func EncodeAttributeValue(attr Attribute) WireAttribute { return encodeAttribute(0, attr) }

// DecodeAttributeValue is the inverse of EncodeAttributeValue.
func DecodeAttributeValue(w WireAttribute) Attribute { return decodeAttribute(w) }

// ToWire flattens s into a Snapshot suitable for JSON encoding.
func (s AnnotatedString) ToWire() Snapshot {
	var snap Snapshot
	for cur := s.docNext(ids.Begin); cur != ids.End; cur = s.docNext(cur) {
		ci, _ := s.chars.Lookup(cur)
		snap.Chars = append(snap.Chars, WireChar{ID: cur, Char: ci.chr, Visible: ci.visible})
	}
	s.attributesByType.ForEach(func(_ AttrTag, byType attrByIDTree) {
		byType.ForEach(func(id ids.ID, a Attribute) {
			snap.Attributes = append(snap.Attributes, encodeAttribute(id, a))
		})
	})
	s.annotationsByType.ForEach(func(_ AttrTag, byType annByIDTree) {
		byType.ForEach(func(id ids.ID, ann Annotation) {
			snap.Annotations = append(snap.Annotations, WireAnnotation{ID: id, Begin: ann.Begin, End: ann.End, Attribute: ann.Attribute})
		})
	})
	s.graveyard.ForEach(func(id ids.ID, _ struct{}) {
		snap.Graveyard = append(snap.Graveyard, id)
	})
	return snap
}

// FromWire rebuilds an AnnotatedString from a Snapshot produced by
// ToWire. The result has fresh persistent-tree identity: it will not
// compare SameTotalIdentity with the string that produced the
// snapshot, even though it renders and annotates identically.
func FromWire(snap Snapshot) AnnotatedString {
	s := New()
	running := ids.Begin
	for _, c := range snap.Chars {
		s = s.Integrate(InsertCommand{ID: c.ID, Characters: []byte{c.Char}, OriginAfter: running, OriginBefore: ids.End})
		if !c.Visible {
			s = s.Integrate(DeleteCommand{ID: c.ID})
		}
		running = c.ID
	}
	for _, a := range snap.Attributes {
		s = s.Integrate(DeclCommand{ID: a.ID, Attribute: decodeAttribute(a)})
	}
	for _, a := range snap.Annotations {
		s = s.Integrate(MarkCommand{ID: a.ID, Annotation: Annotation{Begin: a.Begin, End: a.End, Attribute: a.Attribute}})
	}
	for _, g := range snap.Graveyard {
		s.graveyard = s.graveyard.Add(g, struct{}{})
	}
	return s
}
