package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/annotext/annotext/internal/buffer"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
	"github.com/annotext/annotext/internal/transport/wsproto"
)

func TestHubSendsSnapshotThenBroadcastsCommands(t *testing.T) {
	var buf *buffer.Buffer
	hub := NewHub(func(docID string) *buffer.Buffer {
		buf = buffer.New(docID, crdt.New())
		return buf
	})

	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?doc=alpha"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var env wsproto.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, wsproto.MessageSnapshot, env.Type)
	require.NotNil(t, env.Snapshot)

	site := ids.NewSite()
	insert := crdt.InsertCommand{ID: site.Generate(), Characters: []byte("hi"), OriginAfter: ids.Begin, OriginBefore: ids.End}
	buf.PushChanges(crdt.CommandSet{insert}, true)

	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, wsproto.MessageCommands, env.Type)
	require.Len(t, env.Commands, 1)
	require.Equal(t, "insert", env.Commands[0].Tag)
}

func TestHubIntegratesClientCommands(t *testing.T) {
	var buf *buffer.Buffer
	hub := NewHub(func(docID string) *buffer.Buffer {
		buf = buffer.New(docID, crdt.New())
		return buf
	})

	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?doc=beta"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, _, err = conn.Read(ctx) // discard initial snapshot
	require.NoError(t, err)

	site := ids.NewSite()
	insert := crdt.InsertCommand{ID: site.Generate(), Characters: []byte("x"), OriginAfter: ids.Begin, OriginBefore: ids.End}
	env := wsproto.Envelope{DocID: "beta", Type: wsproto.MessageCommands, Commands: wsproto.EncodeCommandSet(crdt.CommandSet{insert})}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))

	require.Eventually(t, func() bool {
		return buf.ContentSnapshot().RenderAll() == "x"
	}, 2*time.Second, 10*time.Millisecond)
}
