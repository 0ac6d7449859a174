package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

func sampleInsert(text string) crdt.CommandSet {
	site := ids.NewSite()
	var cmds crdt.CommandSet
	s := crdt.New()
	_, _ = s.Insert(&cmds, site, []byte(text), ids.Begin)
	return cmds
}

// Regression test for a quiescence bug: UpdateState's commit step must
// reset declaredNoEdit to exactly the current done set, not union new
// entries into it forever. A collaborator that once reported "nothing to
// add" must not keep counting as quiesced once a commit it never
// examined has landed.
func TestUpdateStateClearsStaleDeclaredNoEditVotes(t *testing.T) {
	b := New("doc", crdt.New())

	quiet := collab.NewBase("quiet", 0, 0)

	require.False(t, b.sinkResponse(quiet, collab.EditResponse{}))
	require.Contains(t, b.declaredNoEdit, collab.Collaborator(quiet))
	require.NotContains(t, b.done, collab.Collaborator(quiet))

	// A commit lands that quiet never saw (e.g. another collaborator's
	// edit, or an externally pushed change). quiet's old "I'm quiet" vote
	// said nothing about this new state, so it must not survive.
	b.PushChanges(sampleInsert("x"), true)

	require.NotContains(t, b.declaredNoEdit, collab.Collaborator(quiet))
}

func TestNextNotificationHonorsThrottleAfterFirstNotification(t *testing.T) {
	b := New("doc", crdt.New())
	c := collab.NewBase("throttled", 80*time.Millisecond, 0)

	// The very first notification a collaborator ever sees is delivered
	// without throttling: lastProcessed == 0 is the "just registered"
	// sentinel that skips the delay loop.
	var processed uint64
	b.UpdateState(nil, true, func(*collab.EditNotification) {})
	start := time.Now()
	_, ok := b.NextNotification(c, &processed)
	require.True(t, ok)
	require.Less(t, time.Since(start), 40*time.Millisecond)

	// The next change must be held back by PushDelayFromIdle.
	b.UpdateState(nil, true, func(*collab.EditNotification) {})
	start = time.Now()
	_, ok = b.NextNotification(c, &processed)
	elapsed := time.Since(start)
	require.True(t, ok)
	require.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestListenerFanOutSeesCommitsInCommitOrder(t *testing.T) {
	b := New("doc", crdt.New())

	var mu sync.Mutex
	var gotA, gotB []crdt.CommandSet

	lA := b.Listen(func(crdt.AnnotatedString) {}, func(cmds crdt.CommandSet) {
		mu.Lock()
		gotA = append(gotA, cmds)
		mu.Unlock()
	})
	defer lA.Close()
	lB := b.Listen(func(crdt.AnnotatedString) {}, func(cmds crdt.CommandSet) {
		mu.Lock()
		gotB = append(gotB, cmds)
		mu.Unlock()
	})
	defer lB.Close()

	first := sampleInsert("a")
	second := sampleInsert("b")
	b.PushChanges(first, true)
	b.PushChanges(second, true)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []crdt.CommandSet{first, second}, gotA)
	require.Equal(t, []crdt.CommandSet{first, second}, gotB)
}

// lateEditor reports nothing until the buffer asks it to shut down, then
// blocks (simulating slow in-flight work still catching up on the final
// state) before producing one real edit and declaring itself done.
type lateEditor struct {
	*collab.Base
	release chan struct{}
	edits   int
}

func (l *lateEditor) Edit(n collab.EditNotification) collab.EditResponse {
	if !n.Shutdown {
		return collab.EditResponse{}
	}
	<-l.release
	l.edits++
	return collab.EditResponse{ContentUpdates: sampleInsert("late"), Done: true}
}

func TestCloseWaitsForACollaboratorsFinalEditAfterShutdown(t *testing.T) {
	b := New("doc", crdt.New())

	late := &lateEditor{Base: collab.NewBase("late", 0, 0), release: make(chan struct{})}
	b.RunSync(late)

	closeDone := make(chan error, 1)
	go func() { closeDone <- b.Close() }()

	select {
	case <-closeDone:
		t.Fatal("Close returned before the late collaborator produced its final edit")
	case <-time.After(30 * time.Millisecond):
	}

	close(late.release)

	select {
	case err := <-closeDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the late collaborator finished")
	}
	require.Equal(t, 1, late.edits)
}
