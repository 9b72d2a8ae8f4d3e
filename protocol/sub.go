package protocol

import (
	"bytes"
	"fmt"
)

// SubCommand registers interest in a subject, optionally joining a
// distributed queue group, under a client-generated subscription id. Values
// are immutable once constructed; build them with NewSub so the argument
// rules hold.
type SubCommand struct {
	// Subject is the subject name to subscribe to.
	Subject string

	// QueueGroup, when non-empty, is the queue group the subscription joins.
	// The server load-balances deliveries across a group's members instead
	// of broadcasting to every subscriber.
	QueueGroup string

	// Sid identifies this subscription within the connection's lifetime.
	Sid string
}

type subBuilder struct {
	cmd      SubCommand
	queueSet bool
	sidSet   bool
	generate SidGenerator
}

// SubOption configures an optional field of a subscribe command.
type SubOption func(*subBuilder)

// WithQueueGroup makes the subscription join the named queue group. Passing
// a blank name is a validation error, leave the option out for no group.
func WithQueueGroup(group string) SubOption {
	return func(b *subBuilder) {
		b.cmd.QueueGroup = group
		b.queueSet = true
	}
}

// WithSid sets the subscription id explicitly instead of generating one.
func WithSid(sid string) SubOption {
	return func(b *subBuilder) {
		b.cmd.Sid = sid
		b.sidSet = true
	}
}

// WithSidGenerator overrides the generator used when no explicit sid is
// supplied.
func WithSidGenerator(generate SidGenerator) SubOption {
	return func(b *subBuilder) {
		b.generate = generate
	}
}

// NewSub builds a subscribe command for subject. Every supplied field is
// checked against the argument rules before the value exists; the error
// names the offending field. When no WithSid option is given the sid is
// generated, and the generated id goes through the same checks as a
// user-supplied one.
func NewSub(subject string, opts ...SubOption) (*SubCommand, error) {
	b := subBuilder{generate: RandomSid}
	for _, opt := range opts {
		opt(&b)
	}

	b.cmd.Subject = subject
	if !b.sidSet {
		b.cmd.Sid = b.generate()
	}

	if err := checkArgument("subject", b.cmd.Subject); err != nil {
		return nil, err
	}

	if b.queueSet {
		if err := checkArgument("queue group", b.cmd.QueueGroup); err != nil {
			return nil, err
		}
	}

	if err := checkArgument("sid", b.cmd.Sid); err != nil {
		return nil, err
	}

	return &b.cmd, nil
}

// CommandName returns the SUB wire tag.
func (c *SubCommand) CommandName() []byte {
	return NameSub
}

// Encode returns the frame `SUB\t<subject>[\t<queue_group>]\t<sid>\r\n`.
// The queue group segment, including its separator, is only emitted when
// the subscription joins a group.
func (c *SubCommand) Encode() ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(NameSub)
	buf.WriteByte(Separator)
	buf.WriteString(c.Subject)

	if c.QueueGroup != "" {
		buf.WriteByte(Separator)
		buf.WriteString(c.QueueGroup)
	}

	buf.WriteByte(Separator)
	buf.WriteString(c.Sid)
	buf.Write(Terminal)

	return buf.Bytes(), nil
}

// validate re-checks the construction invariants, so a value assembled
// around NewSub cannot leak a corrupt frame onto the wire.
func (c *SubCommand) validate() error {
	if err := checkArgument("subject", c.Subject); err != nil {
		return err
	}

	if c.QueueGroup != "" {
		if err := checkArgument("queue group", c.QueueGroup); err != nil {
			return err
		}
	}

	return checkArgument("sid", c.Sid)
}

// ParseSub parses one complete SUB frame.
//
// The sid is taken from the back of the token list and a single leftover
// middle token becomes the queue group, mirroring the field order Encode
// produces without needing a marker for the optional field.
func ParseSub(buf []byte) (*SubCommand, error) {
	fields, err := frameFields(buf)
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 || fields[0] != nameSub {
		return nil, fmt.Errorf("Failed to parse SUB command, wrong or missing tag: %w", ErrCommandMalformed)
	}

	if len(fields) < 2 {
		return nil, fmt.Errorf("Failed to parse SUB command, no subject: %w", ErrCommandMalformed)
	}

	if len(fields) < 3 {
		return nil, fmt.Errorf("Failed to parse SUB command, no sid: %w", ErrCommandMalformed)
	}

	cmd := &SubCommand{
		Subject: fields[1],
		Sid:     fields[len(fields)-1],
	}

	if len(fields) > 3 {
		cmd.QueueGroup = fields[2]
	}

	return cmd, nil
}

var _ Command = (*SubCommand)(nil)
