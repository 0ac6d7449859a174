package crdt

import "github.com/annotext/annotext/internal/ids"

// Command is one of the six CRDT operations a collaborator can emit.
// Concrete types below are the only implementations; Integrate type-
// switches over them.
type Command interface {
	CommandID() ids.ID
	isCommand()
}

// CommandSet is an ordered list of commands forming one atomic response.
type CommandSet []Command

// InsertCommand declares a contiguous block of ids starting at ID, one
// per byte of Characters. The first character is inserted between
// OriginAfter and OriginBefore; each subsequent character's OriginAfter
// is its predecessor in the block.
type InsertCommand struct {
	ID            ids.ID
	Characters    []byte
	OriginAfter   ids.ID
	OriginBefore  ids.ID
}

func (c InsertCommand) CommandID() ids.ID { return c.ID }
func (InsertCommand) isCommand()          {}

// DeleteCommand tombstones one character.
type DeleteCommand struct {
	ID ids.ID
}

func (c DeleteCommand) CommandID() ids.ID { return c.ID }
func (DeleteCommand) isCommand()          {}

// DeclCommand declares a named attribute under ID.
type DeclCommand struct {
	ID        ids.ID
	Attribute Attribute
}

func (c DeclCommand) CommandID() ids.ID { return c.ID }
func (DeclCommand) isCommand()          {}

// DelDeclCommand retires an attribute declaration, moving it to the
// graveyard.
type DelDeclCommand struct {
	ID ids.ID
}

func (c DelDeclCommand) CommandID() ids.ID { return c.ID }
func (DelDeclCommand) isCommand()          {}

// MarkCommand adds a range annotation under ID.
type MarkCommand struct {
	ID         ids.ID
	Annotation Annotation
}

func (c MarkCommand) CommandID() ids.ID { return c.ID }
func (MarkCommand) isCommand()          {}

// DelMarkCommand retires a range annotation, moving it to the graveyard.
type DelMarkCommand struct {
	ID ids.ID
}

func (c DelMarkCommand) CommandID() ids.ID { return c.ID }
func (DelMarkCommand) isCommand()          {}
