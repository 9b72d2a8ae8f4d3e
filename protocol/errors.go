package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteCommand means the buffer does not yet hold a whole frame.
	// Callers should treat it as "read more bytes", never as a protocol
	// violation.
	ErrIncompleteCommand = errors.New("Command is incomplete, it does not end with the frame terminator")

	// ErrCommandMalformed means the frame is terminated but its tag or a
	// required field is missing or wrong. The connection that produced it is
	// desynchronized, there is no point retrying.
	ErrCommandMalformed = errors.New("Command is malformed")

	// ErrInvalidEncoding means the frame header is not valid UTF-8.
	ErrInvalidEncoding = errors.New("Command is not valid UTF-8")
)

// ArgumentError reports a command argument that failed validation when a
// command value was being constructed, before any bytes were produced.
type ArgumentError struct {
	// Field is the argument's wire-level name, e.g. "subject" or
	// "queue group".
	Field string

	// Reason says which rule the value broke.
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("Invalid %s: %s", e.Field, e.Reason)
}
