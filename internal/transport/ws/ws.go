// Package ws bridges websocket connections into buffer.Buffer command
// streams. Grounded on session.go's Hub/Document/Session structure
// (one Hub multiplexing many documents, one Session per connection),
// adapted from a bespoke RGA-backed document onto internal/buffer.Buffer,
// and from a hand-rolled RFC6455 frame parser onto nhooyr.io/websocket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/annotext/annotext/internal/buffer"
	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/transport/wsproto"
)

// Hub multiplexes connections across documents, creating a buffer for
// a doc id the first time it's requested and reusing it after that.
type Hub struct {
	mu      sync.Mutex
	buffers map[string]*buffer.Buffer
	open    func(docID string) *buffer.Buffer
}

// NewHub returns a Hub that calls open to construct a fresh Buffer the
// first time a given doc id is requested.
func NewHub(open func(docID string) *buffer.Buffer) *Hub {
	return &Hub{buffers: make(map[string]*buffer.Buffer), open: open}
}

// Buffer returns the buffer for docID, creating it via open if this is
// the first request for that id.
func (h *Hub) Buffer(docID string) *buffer.Buffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.buffers[docID]; ok {
		return b
	}
	b := h.open(docID)
	h.buffers[docID] = b
	return b
}

// ServeHTTP upgrades the request to a websocket and runs one Session
// until the client disconnects or sends a leave message. Closing the
// buffer does not end the session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("doc")
	if docID == "" {
		http.Error(w, "missing doc query parameter", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	sess := newSession(docID, conn)
	buf := h.Buffer(docID)

	if err := sess.sendSnapshot(buf); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send initial snapshot")
		return
	}

	buf.RunCommandStream(sess)
	<-sess.closed
	conn.Close(websocket.StatusNormalClosure, "")
}

// Session adapts one websocket connection into a
// collab.CommandStreamCollaborator: commands committed to the buffer
// are pushed to the client as they happen, and commands the client
// sends are pulled into the buffer.
type Session struct {
	*collab.Base

	docID string
	conn  *websocket.Conn
	ctx   context.Context

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(docID string, conn *websocket.Conn) *Session {
	return &Session{
		Base:   collab.NewBase("ws:"+docID, 100*time.Millisecond, time.Second),
		docID:  docID,
		conn:   conn,
		ctx:    context.Background(),
		closed: make(chan struct{}),
	}
}

func (s *Session) sendSnapshot(b *buffer.Buffer) error {
	snap := b.ContentSnapshot().ToWire()
	return s.writeEnvelope(wsproto.Envelope{
		DocID:     s.docID,
		Type:      wsproto.MessageSnapshot,
		Timestamp: unixNow(),
		Snapshot:  &snap,
	})
}

func (s *Session) writeEnvelope(env wsproto.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// Push sends a committed command batch to the client. A nil batch,
// which the buffer sends after Pull has reported the connection gone,
// ends the session.
func (s *Session) Push(cmds crdt.CommandSet) {
	if cmds == nil {
		s.close()
		return
	}
	_ = s.writeEnvelope(wsproto.Envelope{
		DocID:     s.docID,
		Type:      wsproto.MessageCommands,
		Timestamp: unixNow(),
		Commands:  wsproto.EncodeCommandSet(cmds),
	})
}

// Pull blocks for the client's next command batch. ok is false once
// the connection has dropped for good.
func (s *Session) Pull() (crdt.CommandSet, bool) {
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			return nil, false
		}
		var env wsproto.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case wsproto.MessageCommands:
			cmds, err := wsproto.DecodeCommandSet(env.Commands)
			if err != nil {
				continue
			}
			return cmds, true
		case wsproto.MessageLeave:
			return nil, false
		default:
			continue
		}
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func unixNow() int64 { return time.Now().Unix() }
