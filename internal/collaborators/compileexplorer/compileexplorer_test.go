package compileexplorer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

type fakeCompiler struct {
	asm     string
	lineMap map[int][]int
	calls   int
}

func (f *fakeCompiler) Compile(filename, text string) (string, map[int][]int, error) {
	f.calls++
	return f.asm, f.lineMap, nil
}

func seedTwoLines(t *testing.T) crdt.AnnotatedString {
	t.Helper()
	site := ids.NewSite()
	var cmds crdt.CommandSet
	s := crdt.New()
	_, s = s.Insert(&cmds, site, []byte("line0\nline1"), ids.Begin)
	return s
}

func TestEditPublishesSideBufferAndLineMarks(t *testing.T) {
	content := seedTwoLines(t)
	compiler := &fakeCompiler{asm: "mov eax, 1\nret", lineMap: map[int][]int{0: {0, 1}}}
	c := New("main.c", compiler)

	r := c.Edit(collab.EditNotification{Content: content, FullyLoaded: true})
	require.NotEmpty(t, r.ContentUpdates)

	result := content.IntegrateAll(r.ContentUpdates)

	var bufferFound bool
	result.ForEachAttribute(crdt.TagBuffer, func(_ ids.ID, attr crdt.Attribute) {
		buf := attr.(crdt.BufferAttribute)
		require.Equal(t, "mov eax, 1\nret", buf.Contents)
		bufferFound = true
	})
	require.True(t, bufferFound)

	var refFound bool
	result.ForEachAnnotation(crdt.TagBufferRef, func(_, _, _ ids.ID, attr crdt.Attribute) {
		ref := attr.(crdt.BufferRefAttribute)
		require.Equal(t, []int{0, 1}, ref.Lines)
		refFound = true
	})
	require.True(t, refFound)
}

func TestEditSkipsUnchangedContent(t *testing.T) {
	content := seedTwoLines(t)
	compiler := &fakeCompiler{asm: "ret", lineMap: map[int][]int{0: {0}}}
	c := New("main.c", compiler)

	n := collab.EditNotification{Content: content, FullyLoaded: true}
	c.Edit(n)
	c.Edit(n)
	require.Equal(t, 1, compiler.calls)
}
