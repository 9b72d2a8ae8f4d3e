package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

// PubCommand publishes a payload to a subject. The payload is opaque bytes;
// it is framed by its declared size, never by content, so it may contain
// separators or terminator sequences.
type PubCommand struct {
	// Subject is the subject the payload is published to.
	Subject string

	// ReplyTo, when non-empty, names the subject replies should be published
	// to.
	ReplyTo string

	// Payload is the published body. An empty payload is legal.
	Payload []byte
}

type pubBuilder struct {
	cmd      PubCommand
	replySet bool
}

// PubOption configures an optional field of a publish command.
type PubOption func(*pubBuilder)

// WithReplyTo asks subscribers to publish replies to the given subject.
// Passing a blank subject is a validation error, leave the option out for
// no reply subject.
func WithReplyTo(subject string) PubOption {
	return func(b *pubBuilder) {
		b.cmd.ReplyTo = subject
		b.replySet = true
	}
}

// NewPub builds a publish command carrying payload to subject.
func NewPub(subject string, payload []byte, opts ...PubOption) (*PubCommand, error) {
	b := pubBuilder{}
	for _, opt := range opts {
		opt(&b)
	}

	b.cmd.Subject = subject
	b.cmd.Payload = payload

	if err := checkArgument("subject", b.cmd.Subject); err != nil {
		return nil, err
	}

	if b.replySet {
		if err := checkArgument("reply to", b.cmd.ReplyTo); err != nil {
			return nil, err
		}
	}

	return &b.cmd, nil
}

// CommandName returns the PUB wire tag.
func (c *PubCommand) CommandName() []byte {
	return NamePub
}

// Encode returns the frame
// `PUB\t<subject>[\t<reply_to>]\t<#bytes>\r\n<payload>\r\n`.
func (c *PubCommand) Encode() ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(NamePub)
	buf.WriteByte(Separator)
	buf.WriteString(c.Subject)

	if c.ReplyTo != "" {
		buf.WriteByte(Separator)
		buf.WriteString(c.ReplyTo)
	}

	buf.WriteByte(Separator)
	buf.WriteString(strconv.Itoa(len(c.Payload)))
	buf.Write(Terminal)
	buf.Write(c.Payload)
	buf.Write(Terminal)

	return buf.Bytes(), nil
}

func (c *PubCommand) validate() error {
	if err := checkArgument("subject", c.Subject); err != nil {
		return err
	}

	if c.ReplyTo != "" {
		return checkArgument("reply to", c.ReplyTo)
	}

	return nil
}

// ParsePub parses one complete PUB frame, header line plus counted payload.
// The payload size is the last header token; the reply subject is a single
// leftover token between the subject and the size.
//
// A payload section shorter than the declared size is an incomplete frame:
// the transport split at a terminator sequence inside the payload and the
// remaining bytes are still in flight. A longer section, or one that does
// not end in the terminator, is malformed.
func ParsePub(buf []byte) (*PubCommand, error) {
	fields, rest, err := payloadFrame(buf)
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 || fields[0] != namePub {
		return nil, fmt.Errorf("Failed to parse PUB command, wrong or missing tag: %w", ErrCommandMalformed)
	}

	if len(fields) < 2 {
		return nil, fmt.Errorf("Failed to parse PUB command, no subject: %w", ErrCommandMalformed)
	}

	if len(fields) < 3 {
		return nil, fmt.Errorf("Failed to parse PUB command, no payload size: %w", ErrCommandMalformed)
	}

	size, err := parseSize(namePub, fields[len(fields)-1])
	if err != nil {
		return nil, err
	}

	payload, err := checkPayload(namePub, rest, size)
	if err != nil {
		return nil, err
	}

	cmd := &PubCommand{
		Subject: fields[1],
		Payload: payload,
	}

	if len(fields) > 3 {
		cmd.ReplyTo = fields[2]
	}

	return cmd, nil
}

var _ Command = (*PubCommand)(nil)
