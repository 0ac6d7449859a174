// Package diagnostic provides a fluent builder for publishing
// diagnostics and fix-its as CRDT commands, grounded on diagnostic.h/
// diagnostic.cc's DiagnosticEditor.
package diagnostic

import (
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

type replacement struct {
	begin, end ids.ID
	text       string
}

type fixit struct {
	kind         string
	replacements []replacement
}

type diagnostic struct {
	severity crdt.Severity
	message  string
	diagID   ids.ID
	ranges   [][2]ids.ID
	points   []ids.ID
	fixits   []fixit
}

// Editor accumulates a batch of diagnostics across Start/Add calls,
// then turns them into CRDT commands in one Publish, reusing the
// underlying crdt.AnnotationEditor so diagnostics unchanged since the
// previous publish don't get redeclared.
type Editor struct {
	annotations *crdt.AnnotationEditor
	pending     []diagnostic
}

// New returns an Editor issuing ids from site.
func New(site *ids.Site) *Editor {
	return &Editor{annotations: crdt.NewAnnotationEditor(site)}
}

// StartDiagnostic begins a new diagnostic; subsequent AddRange/AddPoint/
// StartFixit calls attach to it until the next StartDiagnostic.
func (e *Editor) StartDiagnostic(severity crdt.Severity, message string) *Editor {
	e.pending = append(e.pending, diagnostic{severity: severity, message: message})
	return e
}

func (e *Editor) current() *diagnostic {
	return &e.pending[len(e.pending)-1]
}

// AddRange attaches [begin,end) to the diagnostic under construction.
func (e *Editor) AddRange(begin, end ids.ID) *Editor {
	d := e.current()
	d.ranges = append(d.ranges, [2]ids.ID{begin, end})
	return e
}

// AddPoint attaches a zero-width location to the diagnostic under
// construction, for errors that don't span a range (e.g. "expected ;").
func (e *Editor) AddPoint(at ids.ID) *Editor {
	d := e.current()
	d.points = append(d.points, at)
	return e
}

// StartFixit begins a candidate fix of the given kind (e.g. "insert",
// "replace") for the diagnostic under construction.
func (e *Editor) StartFixit(kind string) *Editor {
	d := e.current()
	d.fixits = append(d.fixits, fixit{kind: kind})
	return e
}

// AddReplacement adds one delete-and-insert step to the fixit under
// construction.
func (e *Editor) AddReplacement(begin, end ids.ID, text string) *Editor {
	d := e.current()
	fx := &d.fixits[len(d.fixits)-1]
	fx.replacements = append(fx.replacements, replacement{begin: begin, end: end, text: text})
	return e
}

// Publish emits Decl/Mark commands for every pending diagnostic onto
// cmds, retires any previously-published diagnostic not reasserted
// since the last Publish, and clears the pending batch.
func (e *Editor) Publish(cmds *crdt.CommandSet) {
	e.annotations.BeginEdit()

	for i := range e.pending {
		d := &e.pending[i]
		d.diagID = e.annotations.AttrID(cmds, crdt.DiagnosticAttribute{Severity: d.severity, Message: d.message})
	}
	for _, d := range e.pending {
		for _, r := range d.ranges {
			e.annotations.MarkAttr(cmds, r[0], r[1], d.diagID)
		}
		for _, p := range d.points {
			e.annotations.MarkAttr(cmds, p, p, d.diagID)
		}
		for _, fx := range d.fixits {
			for _, rep := range fx.replacements {
				e.annotations.Mark(cmds, rep.begin, rep.end, crdt.FixitAttribute{
					Kind:        fx.kind,
					DiagID:      d.diagID,
					Begin:       rep.begin,
					End:         rep.end,
					Replacement: rep.text,
				})
			}
		}
	}

	e.annotations.EndEdit(cmds)
	e.pending = e.pending[:0]
}
