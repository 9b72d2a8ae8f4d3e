package protocol

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Command names as they appear on the wire, at the start of every frame.
var (
	NameSub   = []byte(nameSub)
	NameUnsub = []byte(nameUnsub)
	NamePub   = []byte(namePub)
	NameMsg   = []byte(nameMsg)
	NamePing  = []byte(namePing)
	NamePong  = []byte(namePong)
)

const (
	nameSub   = "SUB"
	nameUnsub = "UNSUB"
	namePub   = "PUB"
	nameMsg   = "MSG"
	namePing  = "PING"
	namePong  = "PONG"
)

var (
	// Terminal ends every frame.
	Terminal = []byte("\r\n")
)

// Separator goes between fields of a frame header.
const Separator byte = '\t'

// Command is the contract every wire command satisfies: a fixed name tag and
// a serialiser. Parsing is the per-type ParseXxx functions; the transport
// picks one by looking at the tag that starts an inbound frame.
type Command interface {
	// CommandName returns the command's wire tag, e.g. the three bytes "SUB".
	// The returned slice is shared and must not be mutated.
	CommandName() []byte

	// Encode returns the complete frame for this command, including the
	// terminator. It only fails when the value holds a field that could not
	// have passed construction, which is a programming error, not an input
	// error.
	Encode() ([]byte, error)
}

// CarriesPayload reports whether frames of the named command consist of a
// header line plus a counted payload. The framing layer needs this to know
// how many bytes belong to the frame.
func CarriesPayload(name []byte) bool {
	return bytes.Equal(name, NamePub) || bytes.Equal(name, NameMsg)
}

// frameFields strips the terminator off a complete single-line frame and
// splits the remainder into whitespace-separated tokens.
func frameFields(buf []byte) ([]string, error) {
	body, err := frameBody(buf)
	if err != nil {
		return nil, err
	}

	return strings.Fields(body), nil
}

// frameBody validates the terminator and text encoding of a frame and
// returns everything before the terminator.
func frameBody(buf []byte) (string, error) {
	if len(buf) < len(Terminal) || !bytes.HasSuffix(buf, Terminal) {
		return "", ErrIncompleteCommand
	}

	body := buf[:len(buf)-len(Terminal)]
	if !utf8.Valid(body) {
		return "", fmt.Errorf("Failed to decode command: %w", ErrInvalidEncoding)
	}

	return string(body), nil
}

// payloadFrame splits a header-plus-payload frame (PUB, MSG) at the first
// terminator. It returns the header's tokens and the raw bytes that follow
// the header line, still carrying their own trailing terminator.
func payloadFrame(buf []byte) (fields []string, rest []byte, err error) {
	if len(buf) < len(Terminal) || !bytes.HasSuffix(buf, Terminal) {
		return nil, nil, ErrIncompleteCommand
	}

	at := bytes.Index(buf, Terminal)
	header := buf[:at]

	if !utf8.Valid(header) {
		return nil, nil, fmt.Errorf("Failed to decode command: %w", ErrInvalidEncoding)
	}

	return strings.Fields(string(header)), buf[at+len(Terminal):], nil
}

// checkPayload verifies that rest is exactly a payload of the declared size
// followed by the terminator, and returns the payload.
//
// A short payload section means the transport cut the frame early, most
// likely because the payload itself contains a terminator sequence; the
// missing bytes are still in flight, so that is an incomplete frame rather
// than a malformed one.
func checkPayload(name string, rest []byte, size int) ([]byte, error) {
	want := size + len(Terminal)

	if len(rest) < want {
		return nil, fmt.Errorf("Failed to parse %s command, payload is short: %w", name, ErrIncompleteCommand)
	}

	if len(rest) > want || !bytes.Equal(rest[size:], Terminal) {
		return nil, fmt.Errorf("Failed to parse %s command, payload does not match its declared size: %w", name, ErrCommandMalformed)
	}

	payload := make([]byte, size)
	copy(payload, rest[:size])

	return payload, nil
}

// parseSize parses a payload byte count token. Only unsigned digits are
// accepted, so a negative or signed count is malformed rather than out of
// range.
func parseSize(name, token string) (int, error) {
	if token == "" {
		return 0, fmt.Errorf("Failed to parse %s command, no payload size: %w", name, ErrCommandMalformed)
	}

	size := 0
	for _, c := range token {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("Failed to parse %s command, bad payload size '%s': %w", name, token, ErrCommandMalformed)
		}

		size = size*10 + int(c-'0')
		if size > maxDeclaredSize {
			return 0, fmt.Errorf("Failed to parse %s command, payload size '%s' is too large: %w", name, token, ErrCommandMalformed)
		}
	}

	return size, nil
}

// maxDeclaredSize caps the payload size a frame may declare. It keeps a
// corrupt count from turning into a giant allocation; transports enforce
// their own, usually smaller, frame limits on top.
const maxDeclaredSize = 64 * 1024 * 1024
