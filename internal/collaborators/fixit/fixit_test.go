package fixit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

func TestEditAppliesMatchingFixitAndRetiresAnnotation(t *testing.T) {
	site := ids.NewSite()
	var cmds crdt.CommandSet
	s := crdt.New()
	var beg ids.ID
	beg, s = s.Insert(&cmds, site, []byte("x"), ids.Begin)
	var end ids.ID
	end, s = s.Insert(&cmds, site, []byte("1"), beg)

	diagID := crdt.MakeDecl(&cmds, site, crdt.DiagnosticAttribute{Severity: crdt.SeverityError, Message: "bad literal"})
	fixitAttrID := crdt.MakeDecl(&cmds, site, crdt.FixitAttribute{Kind: "auto", DiagID: diagID, Begin: end, End: end, Replacement: "2"})
	markID := crdt.MakeMark(&cmds, site, crdt.Annotation{Begin: end, End: s.Next(end), Attribute: fixitAttrID})
	s = s.IntegrateAll(cmds)

	c := New("auto")
	r := c.Edit(collab.EditNotification{Content: s})
	require.NotEmpty(t, r.ContentUpdates)

	result := s.IntegrateAll(r.ContentUpdates)
	require.Equal(t, "x2", result.RenderAll())

	var stillPresent bool
	result.ForEachAnnotation(crdt.TagFixit, func(id, _, _ ids.ID, _ crdt.Attribute) {
		if id == markID {
			stillPresent = true
		}
	})
	require.False(t, stillPresent)
}

func TestEditIgnoresOtherKinds(t *testing.T) {
	site := ids.NewSite()
	var cmds crdt.CommandSet
	s := crdt.New()
	var beg ids.ID
	beg, s = s.Insert(&cmds, site, []byte("x"), ids.Begin)

	diagID := crdt.MakeDecl(&cmds, site, crdt.DiagnosticAttribute{Severity: crdt.SeverityWarning, Message: "manual review"})
	fixitAttrID := crdt.MakeDecl(&cmds, site, crdt.FixitAttribute{Kind: "manual", DiagID: diagID, Begin: beg, End: beg, Replacement: "y"})
	crdt.MakeMark(&cmds, site, crdt.Annotation{Begin: beg, End: s.Next(beg), Attribute: fixitAttrID})
	s = s.IntegrateAll(cmds)

	c := New("auto")
	r := c.Edit(collab.EditNotification{Content: s})
	require.Empty(t, r.ContentUpdates)
}
