// Package wsproto defines the JSON wire protocol spoken over the
// websocket transport: envelopes carrying either a full document
// snapshot or a batch of CRDT commands. Grounded on session.go's
// Message shape (doc_id/type/payload/sender/ts), generalized from a
// single opaque payload to the six CRDT command tags.
package wsproto

import (
	"fmt"

	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
)

// MessageType selects which payload field of Envelope is populated.
type MessageType string

const (
	MessageSnapshot MessageType = "snapshot"
	MessageCommands MessageType = "commands"
	MessageJoin     MessageType = "join"
	MessageLeave    MessageType = "leave"
)

// Envelope is one message on the wire.
type Envelope struct {
	DocID     string      `json:"doc_id"`
	Type      MessageType `json:"type"`
	Sender    string      `json:"sender,omitempty"`
	Timestamp int64       `json:"ts,omitempty"`

	Snapshot *crdt.Snapshot `json:"snapshot,omitempty"`
	Commands []WireCommand  `json:"commands,omitempty"`
}

// WireCommand flattens crdt.Command's six concrete types into one
// JSON-friendly struct.
type WireCommand struct {
	Tag string `json:"tag"`

	ID           ids.ID `json:"id"`
	Characters   []byte `json:"characters,omitempty"`
	OriginAfter  ids.ID `json:"origin_after,omitempty"`
	OriginBefore ids.ID `json:"origin_before,omitempty"`

	Attribute *crdt.WireAttribute `json:"attribute,omitempty"`

	AnnotationBegin     ids.ID `json:"annotation_begin,omitempty"`
	AnnotationEnd       ids.ID `json:"annotation_end,omitempty"`
	AnnotationAttribute ids.ID `json:"annotation_attribute,omitempty"`
}

const (
	tagInsert  = "insert"
	tagDelete  = "delete"
	tagDecl    = "decl"
	tagDelDecl = "deldecl"
	tagMark    = "mark"
	tagDelMark = "delmark"
)

// EncodeCommand flattens one crdt.Command into its wire form.
func EncodeCommand(cmd crdt.Command) WireCommand {
	switch c := cmd.(type) {
	case crdt.InsertCommand:
		return WireCommand{Tag: tagInsert, ID: c.ID, Characters: c.Characters, OriginAfter: c.OriginAfter, OriginBefore: c.OriginBefore}
	case crdt.DeleteCommand:
		return WireCommand{Tag: tagDelete, ID: c.ID}
	case crdt.DeclCommand:
		w := crdt.EncodeAttributeValue(c.Attribute)
		return WireCommand{Tag: tagDecl, ID: c.ID, Attribute: &w}
	case crdt.DelDeclCommand:
		return WireCommand{Tag: tagDelDecl, ID: c.ID}
	case crdt.MarkCommand:
		return WireCommand{Tag: tagMark, ID: c.ID, AnnotationBegin: c.Annotation.Begin, AnnotationEnd: c.Annotation.End, AnnotationAttribute: c.Annotation.Attribute}
	case crdt.DelMarkCommand:
		return WireCommand{Tag: tagDelMark, ID: c.ID}
	default:
		panic(fmt.Sprintf("wsproto: unknown command type %T", cmd))
	}
}

// DecodeCommand is the inverse of EncodeCommand.
func DecodeCommand(w WireCommand) (crdt.Command, error) {
	switch w.Tag {
	case tagInsert:
		return crdt.InsertCommand{ID: w.ID, Characters: w.Characters, OriginAfter: w.OriginAfter, OriginBefore: w.OriginBefore}, nil
	case tagDelete:
		return crdt.DeleteCommand{ID: w.ID}, nil
	case tagDecl:
		if w.Attribute == nil {
			return nil, fmt.Errorf("wsproto: decl command missing attribute")
		}
		return crdt.DeclCommand{ID: w.ID, Attribute: crdt.DecodeAttributeValue(*w.Attribute)}, nil
	case tagDelDecl:
		return crdt.DelDeclCommand{ID: w.ID}, nil
	case tagMark:
		return crdt.MarkCommand{ID: w.ID, Annotation: crdt.Annotation{Begin: w.AnnotationBegin, End: w.AnnotationEnd, Attribute: w.AnnotationAttribute}}, nil
	case tagDelMark:
		return crdt.DelMarkCommand{ID: w.ID}, nil
	default:
		return nil, fmt.Errorf("wsproto: unknown command tag %q", w.Tag)
	}
}

// EncodeCommandSet flattens an entire CommandSet.
func EncodeCommandSet(cmds crdt.CommandSet) []WireCommand {
	out := make([]WireCommand, len(cmds))
	for i, c := range cmds {
		out[i] = EncodeCommand(c)
	}
	return out
}

// DecodeCommandSet is the inverse of EncodeCommandSet.
func DecodeCommandSet(ws []WireCommand) (crdt.CommandSet, error) {
	out := make(crdt.CommandSet, 0, len(ws))
	for _, w := range ws {
		c, err := DecodeCommand(w)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
