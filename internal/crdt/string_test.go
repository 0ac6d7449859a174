package crdt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/annotext/annotext/internal/ids"
)

func TestInsertAndRender(t *testing.T) {
	s := New()
	site := ids.NewSite()
	var cmds CommandSet

	last, s := s.Insert(&cmds, site, []byte("hello"), ids.Begin)
	require.Equal(t, "hello", s.RenderAll())
	require.NotEqual(t, ids.Begin, last)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := New()
	site := ids.NewSite()
	var cmds CommandSet
	_, s = s.Insert(&cmds, site, []byte("abc"), ids.Begin)

	target := s.NextVisible(ids.Begin)
	s2 := s.Integrate(DeleteCommand{ID: target})
	s3 := s2.Integrate(DeleteCommand{ID: target})
	require.Equal(t, s2.RenderAll(), s3.RenderAll())
	require.Equal(t, "bc", s2.RenderAll())
}

func TestConvergenceAcrossTwoSites(t *testing.T) {
	base := New()
	site1 := ids.NewSiteWithID(1)
	site2 := ids.NewSiteWithID(2)

	var cmds1 CommandSet
	base.MakeInsert(&cmds1, site1, []byte("AAA"), ids.Begin)

	var cmds2 CommandSet
	base.MakeInsert(&cmds2, site2, []byte("BBB"), ids.Begin)

	// Site 1 sees its own edit first, then site 2's.
	replica1 := base.IntegrateAll(cmds1).IntegrateAll(cmds2)
	// Site 2 sees the opposite order.
	replica2 := base.IntegrateAll(cmds2).IntegrateAll(cmds1)

	require.Equal(t, replica1.RenderAll(), replica2.RenderAll())
}

func TestConvergenceWithConcurrentInsertAtSamePosition(t *testing.T) {
	base := New()
	site1 := ids.NewSiteWithID(1)
	site2 := ids.NewSiteWithID(2)

	var cmds1, cmds2 CommandSet
	base.MakeInsert(&cmds1, site1, []byte("X"), ids.Begin)
	base.MakeInsert(&cmds2, site2, []byte("Y"), ids.Begin)

	orderA := base.IntegrateAll(cmds1).IntegrateAll(cmds2)
	orderB := base.IntegrateAll(cmds2).IntegrateAll(cmds1)
	require.Equal(t, orderA.RenderAll(), orderB.RenderAll())
}

func TestLineBreaksTrackedAcrossInterleavedInserts(t *testing.T) {
	s := New()
	site := ids.NewSite()
	var cmds CommandSet
	last, s := s.Insert(&cmds, site, []byte("line one\nline two\n"), ids.Begin)
	require.Equal(t, "line one\nline two\n", s.RenderAll())

	var cmds2 CommandSet
	s.Insert(&cmds2, site, []byte("X"), last)
	s = s.IntegrateAll(cmds2)
	require.Equal(t, "line one\nline two\nX", s.RenderAll())
}

func TestDeclAndMarkRoundTrip(t *testing.T) {
	s := New()
	site := ids.NewSite()
	var cmds CommandSet
	aEnd, s := s.Insert(&cmds, site, []byte("hello world"), ids.Begin)
	_ = aEnd

	attrID := MakeDecl(&cmds, site, DiagnosticAttribute{Severity: SeverityError, Message: "boom"})
	s = s.IntegrateAll(cmds)
	cmds = nil

	begin := s.NextVisible(ids.Begin)
	markID := MakeMark(&cmds, site, Annotation{Begin: begin, End: s.Next(s.Next(begin)), Attribute: attrID})
	s = s.IntegrateAll(cmds)

	found := false
	s.ForEachAnnotation(TagDiagnostic, func(id, b, e ids.ID, attr Attribute) {
		if id == markID {
			found = true
			require.Equal(t, "boom", attr.(DiagnosticAttribute).Message)
		}
	})
	require.True(t, found)
}

func TestMarkIgnoredWhenAttributeUnknown(t *testing.T) {
	s := New()
	site := ids.NewSite()
	var cmds CommandSet
	_, s = s.Insert(&cmds, site, []byte("abc"), ids.Begin)

	ghostAttr := site.Generate()
	var cmds2 CommandSet
	id := MakeMark(&cmds2, site, Annotation{Begin: ids.Begin, End: ids.End, Attribute: ghostAttr})
	s2 := s.IntegrateAll(cmds2)

	found := false
	s2.ForEachAnnotation(TagDiagnostic, func(aid, b, e ids.ID, attr Attribute) { found = found || aid == id })
	require.False(t, found)
}

func TestDelDeclRemovesAnnotationsRenderedView(t *testing.T) {
	s := New()
	site := ids.NewSite()
	var cmds CommandSet
	_, s = s.Insert(&cmds, site, []byte("abc"), ids.Begin)
	attrID := MakeDecl(&cmds, site, TagsAttribute{List: []string{"kw"}})
	s = s.IntegrateAll(cmds)
	cmds = nil

	beg := s.NextVisible(ids.Begin)
	MakeMark(&cmds, site, Annotation{Begin: beg, End: s.Next(beg), Attribute: attrID})
	s = s.IntegrateAll(cmds)
	cmds = nil

	require.NotEmpty(t, s.AnnotationsAt(beg))

	MakeDelDecl(&cmds, attrID)
	s = s.IntegrateAll(cmds)

	count := 0
	s.ForEachAttribute(TagTags, func(id ids.ID, a Attribute) { count++ })
	require.Equal(t, 0, count)
}

func TestSameContentIdentitySharesStructure(t *testing.T) {
	s := New()
	site := ids.NewSite()
	var cmds CommandSet
	_, s2 := s.Insert(&cmds, site, []byte("abc"), ids.Begin)

	require.True(t, s2.SameContentIdentity(s2))
	require.False(t, s.SameContentIdentity(s2))
}

func TestWireRoundTrip(t *testing.T) {
	s := New()
	site := ids.NewSite()
	var cmds CommandSet
	_, s = s.Insert(&cmds, site, []byte("hi\nthere"), ids.Begin)
	attrID := MakeDecl(&cmds, site, DiagnosticAttribute{Severity: SeverityWarning, Message: "careful"})
	s = s.IntegrateAll(cmds)
	cmds = nil
	beg := s.NextVisible(ids.Begin)
	MakeMark(&cmds, site, Annotation{Begin: beg, End: s.Next(beg), Attribute: attrID})
	s = s.IntegrateAll(cmds)

	snap := s.ToWire()
	rebuilt := FromWire(snap)

	require.Equal(t, s.RenderAll(), rebuilt.RenderAll())

	count := 0
	rebuilt.ForEachAnnotation(TagDiagnostic, func(id, b, e ids.ID, attr Attribute) { count++ })
	require.Equal(t, 1, count)
}

func TestOrderIDsMatchesDocumentOrder(t *testing.T) {
	s := New()
	site := ids.NewSite()
	var cmds CommandSet
	_, s = s.Insert(&cmds, site, []byte("line1\nline2\nline3"), ids.Begin)

	var locs []ids.ID
	for loc := s.NextVisible(ids.Begin); loc != ids.End; loc = s.NextVisible(s.Next(loc)) {
		locs = append(locs, loc)
	}
	require.True(t, len(locs) > 3)
	for i := 0; i < len(locs)-1; i++ {
		require.Equal(t, -1, s.OrderIDs(locs[i], locs[i+1]))
		require.Equal(t, 1, s.OrderIDs(locs[i+1], locs[i]))
	}
}

func TestRandomizedConvergence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := New()
	site1 := ids.NewSiteWithID(10)
	site2 := ids.NewSiteWithID(20)

	var cmds1, cmds2 CommandSet
	s1 := base
	s2 := base
	after1 := ids.Begin
	after2 := ids.Begin
	for i := 0; i < 20; i++ {
		c := byte('a' + rng.Intn(26))
		after1, s1 = s1.Insert(&cmds1, site1, []byte{c}, after1)
		after2, s2 = s2.Insert(&cmds2, site2, []byte{c}, after2)
	}

	merged1 := base.IntegrateAll(cmds1).IntegrateAll(cmds2)
	merged2 := base.IntegrateAll(cmds2).IntegrateAll(cmds1)
	require.Equal(t, merged1.RenderAll(), merged2.RenderAll())
}
