package crdt

import "github.com/annotext/annotext/internal/ids"

// AttrTag selects which variant of the Attribute tagged union a value
// holds. It doubles as the key for the attributes_by_type /
// annotations_by_type indices, so ForEachAttribute/ForEachAnnotation
// can fetch every attribute or annotation of one kind without a scan.
type AttrTag int

const (
	TagCursor AttrTag = iota + 1
	TagSelection
	TagDiagnostic
	TagFixit
	TagTags
	TagDependency
	TagBuffer
	TagBufferRef
	TagSize
)

func attrTagCmp(a, b AttrTag) int { return int(a) - int(b) }

// Severity is the diagnostic severity carried by a DiagnosticAttribute
// or a Fixit's parent diagnostic.
type Severity int

const (
	SeverityUnset Severity = iota
	SeverityIgnored
	SeverityNote
	SeverityWarning
	SeverityError
	SeverityFatal
)

// Attribute is a declared metadata record. Exactly one concrete type
// below implements it; Tag selects which.
type Attribute interface {
	Tag() AttrTag
}

// CursorAttribute marks a collaborator's cursor position.
type CursorAttribute struct{}

func (CursorAttribute) Tag() AttrTag { return TagCursor }

// SelectionAttribute marks a collaborator's selection range.
type SelectionAttribute struct{}

func (SelectionAttribute) Tag() AttrTag { return TagSelection }

// DiagnosticAttribute carries one diagnostic's severity and message.
type DiagnosticAttribute struct {
	Severity Severity
	Message  string
}

func (DiagnosticAttribute) Tag() AttrTag { return TagDiagnostic }

// FixitAttribute describes one candidate fix for a diagnostic: delete
// [Begin,End) and replace it with Replacement.
type FixitAttribute struct {
	Kind        string
	DiagID      ids.ID
	Begin       ids.ID
	End         ids.ID
	Replacement string
}

func (FixitAttribute) Tag() AttrTag { return TagFixit }

// TagsAttribute carries a list of opaque classification tags (e.g.
// syntax-highlighting token kinds) for the range it decorates.
type TagsAttribute struct {
	List []string
}

func (TagsAttribute) Tag() AttrTag { return TagTags }

// SizeAttribute records a type/value's size in bits, e.g. from a
// code-intelligence backend's hover information.
type SizeAttribute struct {
	Kind string
	Size int64
	Bits int
}

func (SizeAttribute) Tag() AttrTag { return TagSize }

// DependencyAttribute names an external file this range's content was
// derived from (e.g. an included header), used with referenced_file_version
// to decide whether dependent collaborators need to re-run.
type DependencyAttribute struct {
	Filename string
}

func (DependencyAttribute) Tag() AttrTag { return TagDependency }

// BufferAttribute declares a synthetic child buffer (e.g. a disassembly
// view) attached at the annotated range.
type BufferAttribute struct {
	Name     string
	Contents string
}

func (BufferAttribute) Tag() AttrTag { return TagBuffer }

// BufferRefAttribute marks a character as corresponding to specific
// lines of a previously-declared child buffer, the mechanism behind
// synchronised source<->disassembly cursors.
type BufferRefAttribute struct {
	BufferID ids.ID
	Lines    []int
}

func (BufferRefAttribute) Tag() AttrTag { return TagBufferRef }

// Annotation is a range-mark that logically applies its referenced
// Attribute to every currently-visible character in [Begin,End).
type Annotation struct {
	Begin     ids.ID
	End       ids.ID
	Attribute ids.ID
}
