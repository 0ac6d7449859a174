package collab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/annotext/annotext/internal/crdt"
)

func TestHasUpdatesReflectsAnyChange(t *testing.T) {
	require.False(t, EditResponse{}.HasUpdates())
	require.True(t, EditResponse{BecomeLoaded: true}.HasUpdates())
	require.True(t, EditResponse{ReferencedFileChanged: true}.HasUpdates())
	require.True(t, EditResponse{ContentUpdates: make(crdt.CommandSet, 1)}.HasUpdates())
}

func TestBaseTracksLivenessTimestamps(t *testing.T) {
	b := NewBase("c", 10*time.Millisecond, 20*time.Millisecond)
	require.Equal(t, "c", b.Name())
	require.Equal(t, 10*time.Millisecond, b.PushDelayFromIdle())
	require.Equal(t, 20*time.Millisecond, b.PushDelayFromStart())

	beforeReq := b.LastRequest()
	time.Sleep(2 * time.Millisecond)
	b.MarkRequest()
	require.True(t, b.LastRequest().After(beforeReq))

	beforeResp := b.LastResponse()
	time.Sleep(2 * time.Millisecond)
	b.MarkResponse()
	require.True(t, b.LastResponse().After(beforeResp))

	beforeChg := b.LastChange()
	time.Sleep(2 * time.Millisecond)
	b.MarkChange()
	require.True(t, b.LastChange().After(beforeChg))
}

func TestNewBaseAssignsDistinctSites(t *testing.T) {
	a := NewBase("a", 0, 0)
	b := NewBase("b", 0, 0)
	require.NotEqual(t, a.Site().SiteID(), b.Site().SiteID())
}

// Base must satisfy Collaborator on its own so fakes embedding it don't
// need to stub liveness bookkeeping themselves.
var _ Collaborator = (*Base)(nil)
