package wsproto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

func TestEncodeDecodeCommandRoundTrip(t *testing.T) {
	site := ids.NewSite()
	cmds := []crdt.Command{
		crdt.InsertCommand{ID: site.Generate(), Characters: []byte("a"), OriginAfter: ids.Begin, OriginBefore: ids.End},
		crdt.DeleteCommand{ID: site.Generate()},
		crdt.DeclCommand{ID: site.Generate(), Attribute: crdt.DiagnosticAttribute{Severity: crdt.SeverityError, Message: "boom"}},
		crdt.DelDeclCommand{ID: site.Generate()},
		crdt.MarkCommand{ID: site.Generate(), Annotation: crdt.Annotation{Begin: ids.Begin, End: ids.End, Attribute: site.Generate()}},
		crdt.DelMarkCommand{ID: site.Generate()},
	}

	for _, cmd := range cmds {
		w := EncodeCommand(cmd)
		got, err := DecodeCommand(w)
		require.NoError(t, err)
		require.Equal(t, cmd, got)
	}
}

func TestEncodeCommandSetRoundTripsThroughJSON(t *testing.T) {
	site := ids.NewSite()
	cmds := crdt.CommandSet{
		crdt.InsertCommand{ID: site.Generate(), Characters: []byte("hi"), OriginAfter: ids.Begin, OriginBefore: ids.End},
		crdt.MarkCommand{ID: site.Generate(), Annotation: crdt.Annotation{Begin: ids.Begin, End: ids.End, Attribute: site.Generate()}},
	}

	env := Envelope{DocID: "doc1", Type: MessageCommands, Commands: EncodeCommandSet(cmds)}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, MessageCommands, decoded.Type)

	got, err := DecodeCommandSet(decoded.Commands)
	require.NoError(t, err)
	require.Equal(t, cmds, got)
}

func TestDecodeCommandRejectsUnknownTag(t *testing.T) {
	_, err := DecodeCommand(WireCommand{Tag: "bogus"})
	require.Error(t, err)
}

func TestDecodeCommandRejectsDeclWithoutAttribute(t *testing.T) {
	_, err := DecodeCommand(WireCommand{Tag: tagDecl})
	require.Error(t, err)
}
