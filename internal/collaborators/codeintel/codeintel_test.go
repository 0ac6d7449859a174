package codeintel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

type fakeAnalyzer struct {
	tokens []Token
	calls  int
}

func (f *fakeAnalyzer) Analyze(filename, text string) ([]Token, error) {
	f.calls++
	return f.tokens, nil
}

func seedContent(t *testing.T, text string) crdt.AnnotatedString {
	t.Helper()
	site := ids.NewSite()
	var cmds crdt.CommandSet
	s := crdt.New()
	_, s = s.Insert(&cmds, site, []byte(text), ids.Begin)
	return s
}

func TestEditPublishesTagsAndSizeAnnotations(t *testing.T) {
	content := seedContent(t, "struct Foo { int x; };")
	analyzer := &fakeAnalyzer{tokens: []Token{
		{Begin: 0, End: 6, Tags: []string{"keyword.c++"}},
		{Begin: 13, End: 20, SizeKind: "offset_into_parent", Size: 0, Bits: 0},
	}}
	c := New("main.c", analyzer)

	r := c.Edit(collab.EditNotification{Content: content, FullyLoaded: true})
	require.NotEmpty(t, r.ContentUpdates)

	result := content.IntegrateAll(r.ContentUpdates)

	var tagsFound, sizeFound bool
	result.ForEachAttribute(crdt.TagTags, func(_ ids.ID, attr crdt.Attribute) {
		tagsFound = true
		require.Equal(t, []string{"keyword.c++"}, attr.(crdt.TagsAttribute).List)
	})
	result.ForEachAttribute(crdt.TagSize, func(_ ids.ID, attr crdt.Attribute) {
		sizeFound = true
		require.Equal(t, "offset_into_parent", attr.(crdt.SizeAttribute).Kind)
	})
	require.True(t, tagsFound)
	require.True(t, sizeFound)
}

func TestEditSkipsUnchangedContent(t *testing.T) {
	content := seedContent(t, "x")
	analyzer := &fakeAnalyzer{}
	c := New("main.c", analyzer)

	n := collab.EditNotification{Content: content, FullyLoaded: true}
	c.Edit(n)
	c.Edit(n)
	require.Equal(t, 1, analyzer.calls)
}
