package protocol

import (
	"strings"
	"unicode"
)

// checkArgument enforces the one format rule every command argument shares:
// non-empty, no whitespace, no control characters. Whitespace is the wire
// separator and the terminator is made of control characters, so an argument
// embedding either would corrupt framing.
func checkArgument(field, value string) error {
	if value == "" {
		return &ArgumentError{Field: field, Reason: "must not be empty"}
	}

	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return &ArgumentError{Field: field, Reason: "must not contain whitespace"}
	}

	if strings.IndexFunc(value, unicode.IsControl) >= 0 {
		return &ArgumentError{Field: field, Reason: "must not contain control characters"}
	}

	return nil
}
