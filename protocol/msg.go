package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

// MsgCommand delivers a published payload to one subscription. It is the
// server's side of the exchange a SUB opens: the sid says which
// subscription the delivery belongs to, the subject is the one the payload
// was published under.
type MsgCommand struct {
	Subject string
	Sid     string

	// ReplyTo carries the publisher's reply subject, when one was given.
	ReplyTo string

	Payload []byte
}

type msgBuilder struct {
	cmd      MsgCommand
	replySet bool
}

// MsgOption configures an optional field of a delivery command.
type MsgOption func(*msgBuilder)

// WithMsgReplyTo forwards the publisher's reply subject with the delivery.
func WithMsgReplyTo(subject string) MsgOption {
	return func(b *msgBuilder) {
		b.cmd.ReplyTo = subject
		b.replySet = true
	}
}

// NewMsg builds a delivery command for the subscription sid on subject.
// Servers build these; clients normally only parse them.
func NewMsg(subject, sid string, payload []byte, opts ...MsgOption) (*MsgCommand, error) {
	b := msgBuilder{}
	for _, opt := range opts {
		opt(&b)
	}

	b.cmd.Subject = subject
	b.cmd.Sid = sid
	b.cmd.Payload = payload

	if err := checkArgument("subject", b.cmd.Subject); err != nil {
		return nil, err
	}

	if err := checkArgument("sid", b.cmd.Sid); err != nil {
		return nil, err
	}

	if b.replySet {
		if err := checkArgument("reply to", b.cmd.ReplyTo); err != nil {
			return nil, err
		}
	}

	return &b.cmd, nil
}

// CommandName returns the MSG wire tag.
func (c *MsgCommand) CommandName() []byte {
	return NameMsg
}

// Encode returns the frame
// `MSG\t<subject>\t<sid>[\t<reply_to>]\t<#bytes>\r\n<payload>\r\n`.
func (c *MsgCommand) Encode() ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(NameMsg)
	buf.WriteByte(Separator)
	buf.WriteString(c.Subject)
	buf.WriteByte(Separator)
	buf.WriteString(c.Sid)

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

func (c *MsgCommand) validate() error {
	if err := checkArgument("subject", c.Subject); err != nil {
		return err
	}

	if err := checkArgument("sid", c.Sid); err != nil {
		return err
	}

	if c.ReplyTo != "" {
		return checkArgument("reply to", c.ReplyTo)
	}

	return nil
}

// ParseMsg parses one complete MSG frame. Same shape as ParsePub with the
// sid as the third required header field: the payload size is taken from
// the back of the header and a single leftover token between the sid and
// the size is the reply subject.
func ParseMsg(buf []byte) (*MsgCommand, error) {
	fields, rest, err := payloadFrame(buf)
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 || fields[0] != nameMsg {
		return nil, fmt.Errorf("Failed to parse MSG command, wrong or missing tag: %w", ErrCommandMalformed)
	}

	if len(fields) < 2 {
		return nil, fmt.Errorf("Failed to parse MSG command, no subject: %w", ErrCommandMalformed)
	}

	if len(fields) < 3 {
		return nil, fmt.Errorf("Failed to parse MSG command, no sid: %w", ErrCommandMalformed)
	}

	if len(fields) < 4 {
		return nil, fmt.Errorf("Failed to parse MSG command, no payload size: %w", ErrCommandMalformed)
	}

	size, err := parseSize(nameMsg, fields[len(fields)-1])
	if err != nil {
		return nil, err
	}

	payload, err := checkPayload(nameMsg, rest, size)
	if err != nil {
		return nil, err
	}

	cmd := &MsgCommand{
		Subject: fields[1],
		Sid:     fields[2],
		Payload: payload,
	}

	if len(fields) > 4 {
		cmd.ReplyTo = fields[3]
	}

	return cmd, nil
}

var _ Command = (*MsgCommand)(nil)
