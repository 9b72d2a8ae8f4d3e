package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

// UnsubCommand removes the subscription identified by Sid, immediately or
// after MaxMsgs further deliveries.
type UnsubCommand struct {
	// Sid is the id the subscription was registered under.
	Sid string

	// MaxMsgs, when positive, asks the server to keep the subscription alive
	// for that many more deliveries before dropping it. Zero means remove it
	// now.
	MaxMsgs int
}

type unsubBuilder struct {
	cmd UnsubCommand
}

// UnsubOption configures an optional field of an unsubscribe command.
type UnsubOption func(*unsubBuilder)

// WithMaxMsgs defers the unsubscribe until n more messages were delivered.
func WithMaxMsgs(n int) UnsubOption {
	return func(b *unsubBuilder) {
		b.cmd.MaxMsgs = n
	}
}

// NewUnsub builds an unsubscribe command for the given sid.
func NewUnsub(sid string, opts ...UnsubOption) (*UnsubCommand, error) {
	b := unsubBuilder{}
	for _, opt := range opts {
		opt(&b)
	}

	b.cmd.Sid = sid

	if err := checkArgument("sid", b.cmd.Sid); err != nil {
		return nil, err
	}

	if b.cmd.MaxMsgs < 0 {
		return nil, &ArgumentError{Field: "max msgs", Reason: "must not be negative"}
	}

	return &b.cmd, nil
}

// CommandName returns the UNSUB wire tag.
func (c *UnsubCommand) CommandName() []byte {
	return NameUnsub
}

// Encode returns the frame `UNSUB\t<sid>[\t<max_msgs>]\r\n`. The max_msgs
// segment is only emitted when positive.
func (c *UnsubCommand) Encode() ([]byte, error) {
	if err := checkArgument("sid", c.Sid); err != nil {
		return nil, err
	}

	if c.MaxMsgs < 0 {
		return nil, &ArgumentError{Field: "max msgs", Reason: "must not be negative"}
	}

	var buf bytes.Buffer
	buf.Write(NameUnsub)
	buf.WriteByte(Separator)
	buf.WriteString(c.Sid)

	if c.MaxMsgs > 0 {
		buf.WriteByte(Separator)
		buf.WriteString(strconv.Itoa(c.MaxMsgs))
	}

	buf.Write(Terminal)

	return buf.Bytes(), nil
}

// ParseUnsub parses one complete UNSUB frame. A trailing token, when
// present, is the max_msgs count and must be an unsigned integer; zero
// parses to the same value an absent count takes.
func ParseUnsub(buf []byte) (*UnsubCommand, error) {
	fields, err := frameFields(buf)
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 || fields[0] != nameUnsub {
		return nil, fmt.Errorf("Failed to parse UNSUB command, wrong or missing tag: %w", ErrCommandMalformed)
	}

	if len(fields) < 2 {
		return nil, fmt.Errorf("Failed to parse UNSUB command, no sid: %w", ErrCommandMalformed)
	}

	cmd := &UnsubCommand{Sid: fields[1]}

	if len(fields) > 2 {
		token := fields[len(fields)-1]

		n, err := strconv.Atoi(token)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("Failed to parse UNSUB command, bad max_msgs '%s': %w", token, ErrCommandMalformed)
		}

		cmd.MaxMsgs = n
	}

	return cmd, nil
}

var _ Command = (*UnsubCommand)(nil)
