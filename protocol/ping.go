package protocol

import "fmt"

// PingCommand is a liveness probe. Either side may send one; the peer
// answers with PONG.
type PingCommand struct{}

// PongCommand answers a PING. The protocol has no request ids, so pongs
// match pings in order.
type PongCommand struct{}

// CommandName returns the PING wire tag.
func (c *PingCommand) CommandName() []byte {
	return NamePing
}

// Encode returns the frame `PING\r\n`.
func (c *PingCommand) Encode() ([]byte, error) {
	return bareFrame(NamePing), nil
}

// CommandName returns the PONG wire tag.
func (c *PongCommand) CommandName() []byte {
	return NamePong
}

// Encode returns the frame `PONG\r\n`.
func (c *PongCommand) Encode() ([]byte, error) {
	return bareFrame(NamePong), nil
}

// ParsePing parses one complete PING frame. The tag must be the frame's
// only token.
func ParsePing(buf []byte) (*PingCommand, error) {
	if err := parseBare(namePing, buf); err != nil {
		return nil, err
	}

	return &PingCommand{}, nil
}

// ParsePong parses one complete PONG frame. The tag must be the frame's
// only token.
func ParsePong(buf []byte) (*PongCommand, error) {
	if err := parseBare(namePong, buf); err != nil {
		return nil, err
	}

	return &PongCommand{}, nil
}

// bareFrame builds a frame that is nothing but a tag and the terminator.
func bareFrame(name []byte) []byte {
	frame := make([]byte, 0, len(name)+len(Terminal))
	frame = append(frame, name...)
	frame = append(frame, Terminal...)

	return frame
}

func parseBare(name string, buf []byte) error {
	fields, err := frameFields(buf)
	if err != nil {
		return err
	}

	if len(fields) != 1 || fields[0] != name {
		return fmt.Errorf("Failed to parse %s command, the tag must stand alone: %w", name, ErrCommandMalformed)
	}

	return nil
}

var _ Command = (*PingCommand)(nil)
var _ Command = (*PongCommand)(nil)
