package fswatchcollab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/fswatch"
	"github.com/annotext/annotext/internal/ids"
)

func TestPushStartsWatchAndPullReportsChange(t *testing.T) {
	w := New()

	var captured func(bool)
	w.newWatch = func(files []string, callback func(bool)) (*fswatch.Watcher, error) {
		require.Equal(t, []string{"dep.h"}, files)
		captured = callback
		return nil, nil
	}

	site := ids.NewSite()
	var cmds crdt.CommandSet
	s := crdt.New()
	crdt.MakeDecl(&cmds, site, crdt.DependencyAttribute{Filename: "dep.h"})
	s = s.IntegrateAll(cmds)

	w.Push(collab.EditNotification{Content: s})
	require.NotNil(t, captured)

	done := make(chan collab.EditResponse, 1)
	go func() { done <- w.Pull() }()

	captured(false)

	select {
	case r := <-done:
		require.True(t, r.ReferencedFileChanged)
		require.False(t, r.Done)
	case <-time.After(2 * time.Second):
		t.Fatal("Pull did not unblock after watch fired")
	}
}

func TestPushShutdownUnblocksPull(t *testing.T) {
	w := New()
	w.newWatch = func(files []string, callback func(bool)) (*fswatch.Watcher, error) {
		return nil, nil
	}

	done := make(chan collab.EditResponse, 1)
	go func() { done <- w.Pull() }()

	w.Push(collab.EditNotification{Shutdown: true})

	select {
	case r := <-done:
		require.True(t, r.Done)
	case <-time.After(2 * time.Second):
		t.Fatal("Pull did not unblock on shutdown")
	}
}
