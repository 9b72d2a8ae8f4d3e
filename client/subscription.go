package client

import (
	"context"
	"sync"

	"github.com/luma/hermes/protocol"
)

// Msg is one delivery handed to a subscription.
type Msg struct {
	// Subject the payload was published under.
	Subject string

	// ReplyTo is the publisher's reply subject, when one was given.
	ReplyTo string

	Payload []byte
}

// Subscription is one registered interest in a subject. Deliveries arrive
// on the Messages channel until Unsubscribe, a delivery allowance running
// out, or the connection closing.
type Subscription struct {
	conn *Conn

	subject    string
	queueGroup string
	sid        string

	msgChan chan *Msg

	mu sync.Mutex

	// remaining is the delivery allowance set by an Unsubscribe with
	// MaxMsgs, or -1 for no limit.
	remaining int
	closed    bool
}

func newSubscription(conn *Conn, cmd *protocol.SubCommand) *Subscription {
	return &Subscription{
		conn:       conn,
		subject:    cmd.Subject,
		queueGroup: cmd.QueueGroup,
		sid:        cmd.Sid,
		msgChan:    make(chan *Msg, MessageBufferSize),
		remaining:  -1,
	}
}

// Subject returns the subject the subscription was registered for.
func (s *Subscription) Subject() string {
	return s.subject
}

// QueueGroup returns the queue group the subscription joined, or "".
func (s *Subscription) QueueGroup() string {
	return s.queueGroup
}

// Sid returns the subscription id this subscription is registered under.
func (s *Subscription) Sid() string {
	return s.sid
}

// Messages returns the delivery channel. It is closed when the
// subscription ends.
func (s *Subscription) Messages() <-chan *Msg {
	return s.msgChan
}

// Unsubscribe removes the subscription. With protocol.WithMaxMsgs(n) the
// removal is deferred until n more messages were delivered; the Messages
// channel closes when the allowance runs out.
func (s *Subscription) Unsubscribe(ctx context.Context, opts ...protocol.UnsubOption) error {
	cmd, err := protocol.NewUnsub(s.sid, opts...)
	if err != nil {
		return err
	}

	if err := s.conn.writeCommand(ctx, cmd); err != nil {
		return err
	}

	if cmd.MaxMsgs > 0 {
		s.mu.Lock()
		s.remaining = cmd.MaxMsgs
		s.mu.Unlock()

		return nil
	}

	s.conn.forgetSubscription(s.sid)
	s.finish()

	return nil
}

// deliver hands one decoded MSG to the subscription. It never blocks; when
// the buffer is full the delivery is dropped and the caller told so. The
// second return value reports whether a delivery allowance just ran out.
func (s *Subscription) deliver(msg *Msg) (delivered, exhausted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, false
	}

	select {
	case s.msgChan <- msg:
		delivered = true

	default:
		return false, false
	}

	if s.remaining > 0 {
		s.remaining--
		if s.remaining == 0 {
			s.closed = true
			close(s.msgChan)

			return delivered, true
		}
	}

	return delivered, false
}

// finish closes the delivery channel exactly once.
func (s *Subscription) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.msgChan)
	}
}
