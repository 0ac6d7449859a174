package formatter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

func seed(t *testing.T, text string) (crdt.AnnotatedString, *ids.Site) {
	t.Helper()
	site := ids.NewSite()
	var cmds crdt.CommandSet
	s := crdt.New()
	_, s = s.Insert(&cmds, site, []byte(text), ids.Begin)
	return s, site
}

func TestEditRewritesContentWithFormatterOutput(t *testing.T) {
	content, _ := seed(t, "a  b")

	f := New("cmd")
	f.runner = func(command, input string) (string, error) {
		require.Equal(t, "a  b", input)
		return "a b", nil
	}

	r := f.Edit(collab.EditNotification{Content: content, FullyLoaded: true})
	require.NotEmpty(t, r.ContentUpdates)

	result := content.IntegrateAll(r.ContentUpdates)
	require.Equal(t, "a b", result.RenderAll())
}

func TestEditSkipsUnloadedOrUnchangedContent(t *testing.T) {
	content, _ := seed(t, "same")
	f := New("cmd")
	f.runner = func(string, string) (string, error) { return "same", nil }

	r := f.Edit(collab.EditNotification{Content: content, FullyLoaded: false})
	require.Empty(t, r.ContentUpdates)

	r = f.Edit(collab.EditNotification{Content: content, FullyLoaded: true})
	require.Empty(t, r.ContentUpdates)
}

func TestEditDoesNotRerunOnSameContentTwice(t *testing.T) {
	content, _ := seed(t, "x")
	calls := 0
	f := New("cmd")
	f.runner = func(string, string) (string, error) {
		calls++
		return "y", nil
	}

	n := collab.EditNotification{Content: content, FullyLoaded: true}
	first := f.Edit(n)
	require.NotEmpty(t, first.ContentUpdates)
	second := f.Edit(n)
	require.Empty(t, second.ContentUpdates)
	require.Equal(t, 1, calls)
}
