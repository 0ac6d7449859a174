package crdt

import "errors"

// ErrUnknownCommand means integration was asked to apply a command
// whose tag it doesn't recognise. The wire format is internal to this
// module, so this can only happen if a caller hand-builds a malformed
// Command; it is fatal to whichever goroutine calls Integrate.
var ErrUnknownCommand = errors.New("crdt: unknown command tag")
