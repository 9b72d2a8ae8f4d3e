// Package client implements a Hermes connection: dialing a broker,
// subscribing, publishing and pinging over the wire protocol, and routing
// inbound deliveries to their subscriptions.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/hermes/protocol"
	"github.com/luma/hermes/transport"
)

// ErrConnClosed is returned by operations on a connection that was closed,
// torn down after desynchronizing, or never connected.
var ErrConnClosed = errors.New("Connection is closed")

type Conn struct {
	ctx    context.Context
	cancel context.CancelFunc

	conn   net.Conn
	reader *transport.FrameReader
	writer *transport.FrameWriter

	loopWaiter sync.WaitGroup

	subMu sync.RWMutex
	subs  map[string]*Subscription

	// pendingPongs matches inbound PONGs to in-flight Pings in order; the
	// protocol has no request ids.
	pongMu       sync.Mutex
	pendingPongs []chan struct{}

	generate     protocol.SidGenerator
	dialTimeout  time.Duration
	maxFrameSize int

	log *zap.Logger
}

func New(options Options) *Conn {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	generate := options.SidGenerator
	if generate == nil {
		generate = protocol.RandomSid
	}

	dialTimeout := options.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	return &Conn{
		subs:         make(map[string]*Subscription),
		generate:     generate,
		dialTimeout:  dialTimeout,
		maxFrameSize: options.MaxFrameSize,
		log:          log,
	}
}

// Connect dials the broker and starts the read loop. The connection stays
// up until Close, a read error, or an inbound frame that marks the stream
// as desynchronized.
func (c *Conn) Connect(ctx context.Context, addr string) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	dialer := net.Dialer{Timeout: c.dialTimeout}

	conn, err := dialer.DialContext(c.ctx, "tcp", addr)
	if err != nil {
		c.cancel()
		return fmt.Errorf("Failed to connect to %s: %w", addr, err)
	}

	c.conn = conn
	c.reader = transport.NewFrameReader(conn, transport.Options{MaxFrameSize: c.maxFrameSize})
	c.writer = transport.NewFrameWriter(conn)
	c.log = c.log.With(zap.String("connID", uuid.NewString()))

	c.loopWaiter.Add(1)
	go func() {
		defer c.loopWaiter.Done()
		c.readLoop()
	}()

	return nil
}

// Subscribe registers interest in subject and returns the live
// subscription. The sid defaults to a generated one; pass
// protocol.WithSid or protocol.WithQueueGroup to control the registration.
func (c *Conn) Subscribe(ctx context.Context, subject string, opts ...protocol.SubOption) (*Subscription, error) {
	// The connection-level generator is a default, an explicit option wins.
	opts = append([]protocol.SubOption{protocol.WithSidGenerator(c.generate)}, opts...)

	cmd, err := protocol.NewSub(subject, opts...)
	if err != nil {
		return nil, err
	}

	sub := newSubscription(c, cmd)

	// Register before writing so a delivery racing the SUB ack cannot slip
	// past the router.
	c.subMu.Lock()
	if _, taken := c.subs[cmd.Sid]; taken {
		c.subMu.Unlock()
		return nil, &protocol.ArgumentError{Field: "sid", Reason: "is already in use on this connection"}
	}
	c.subs[cmd.Sid] = sub
	c.subMu.Unlock()

	if err := c.writeCommand(ctx, cmd); err != nil {
		c.forgetSubscription(cmd.Sid)
		return nil, err
	}

	return sub, nil
}

// Publish sends payload to subject. Pass protocol.WithReplyTo to ask
// subscribers for replies on another subject.
func (c *Conn) Publish(ctx context.Context, subject string, payload []byte, opts ...protocol.PubOption) error {
	cmd, err := protocol.NewPub(subject, payload, opts...)
	if err != nil {
		return err
	}

	return c.writeCommand(ctx, cmd)
}

// Ping sends a liveness probe and waits for the broker's PONG.
func (c *Conn) Ping(ctx context.Context) error {
	// Buffered so a pong that arrives after the caller gave up does not
	// block the read loop.
	pongChan := make(chan struct{}, 1)

	c.pongMu.Lock()
	c.pendingPongs = append(c.pendingPongs, pongChan)
	c.pongMu.Unlock()

	if err := c.writeCommand(ctx, &protocol.PingCommand{}); err != nil {
		c.pongMu.Lock()
		for i, ch := range c.pendingPongs {
			if ch == pongChan {
				c.pendingPongs = append(c.pendingPongs[:i], c.pendingPongs[i+1:]...)
				break
			}
		}
		c.pongMu.Unlock()

		return err
	}

	select {
	case _, ok := <-pongChan:
		if !ok {
			return ErrConnClosed
		}

		return nil

	case <-c.ctx.Done():
		return ErrConnClosed

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the connection down and waits for the read loop to exit.
// Every open subscription's channel is closed and in-flight Pings fail
// with ErrConnClosed.
func (c *Conn) Close() (err error) {
	if c.conn == nil {
		return nil
	}

	c.cancel()
	err = multierr.Append(err, c.conn.Close())

	c.loopWaiter.Wait()

	if err != nil && errors.Is(err, net.ErrClosed) {
		// Already closed by the read loop's teardown.
		err = nil
	}

	return err
}

func (c *Conn) writeCommand(ctx context.Context, cmd protocol.Command) error {
	if !c.isRunning() {
		return ErrConnClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return c.writer.WriteCommand(cmd)
}

// readLoop reads frames and routes them until the connection dies. Any
// malformed or undecodable frame means the stream is desynchronized; the
// loop logs it and tears the connection down rather than guessing where
// the next frame starts.
func (c *Conn) readLoop() {
	log := c.log.Named("readLoop")

	defer c.teardown()

	for {
		frame, err := c.reader.ReadFrame()
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Debug("Read loop exiting")
				return
			}

			log.Warn("Connection lost", zap.Error(err))
			return
		}

		if err := c.dispatch(log, frame); err != nil {
			log.Error("Connection is desynchronized, closing",
				zap.ByteString("frame", frame),
				zap.Error(err))
			return
		}
	}
}

func (c *Conn) dispatch(log *zap.Logger, frame []byte) error {
	switch {
	case frameIs(frame, protocol.NameMsg):
		cmd, err := protocol.ParseMsg(frame)
		if err != nil {
			return err
		}

		c.routeMsg(log, cmd)
		return nil

	case frameIs(frame, protocol.NamePing):
		if _, err := protocol.ParsePing(frame); err != nil {
			return err
		}

		return c.writer.WriteCommand(&protocol.PongCommand{})

	case frameIs(frame, protocol.NamePong):
		if _, err := protocol.ParsePong(frame); err != nil {
			return err
		}

		c.resolvePong()
		return nil

	default:
		return fmt.Errorf("Broker sent a frame no client-side parser accepts: %w", protocol.ErrCommandMalformed)
	}
}

func (c *Conn) routeMsg(log *zap.Logger, cmd *protocol.MsgCommand) {
	c.subMu.RLock()
	sub, ok := c.subs[cmd.Sid]
	c.subMu.RUnlock()

	if !ok {
		// Deliveries can trail an unsubscribe, that is not an error.
		log.Debug("Dropping delivery for unknown sid",
			zap.String("subject", cmd.Subject),
			zap.String("sid", cmd.Sid))
		return
	}

	delivered, exhausted := sub.deliver(&Msg{
		Subject: cmd.Subject,
		ReplyTo: cmd.ReplyTo,
		Payload: cmd.Payload,
	})

	if !delivered {
		log.Warn("Dropped delivery for slow subscriber",
			zap.String("subject", cmd.Subject),
			zap.String("sid", cmd.Sid))
	}

	if exhausted {
		c.forgetSubscription(cmd.Sid)
	}
}

func (c *Conn) resolvePong() {
	c.pongMu.Lock()
	defer c.pongMu.Unlock()

	if len(c.pendingPongs) == 0 {
		// An unsolicited pong, nothing to match.
		return
	}

	pongChan := c.pendingPongs[0]
	c.pendingPongs = c.pendingPongs[1:]

	pongChan <- struct{}{}
}

func (c *Conn) forgetSubscription(sid string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	delete(c.subs, sid)
}

// teardown finishes every subscription and fails every in-flight ping.
// It runs exactly once, when the read loop exits.
func (c *Conn) teardown() {
	c.cancel()
	_ = c.conn.Close()

	c.subMu.Lock()
	for sid, sub := range c.subs {
		sub.finish()
		delete(c.subs, sid)
	}
	c.subMu.Unlock()

	c.pongMu.Lock()
	for _, pongChan := range c.pendingPongs {
		close(pongChan)
	}
	c.pendingPongs = nil
	c.pongMu.Unlock()
}

// isRunning returns true until Close is called or the read loop tears the
// connection down.
func (c *Conn) isRunning() bool {
	if c.ctx == nil {
		return false
	}

	select {
	case <-c.ctx.Done():
		return false

	default:
		return true
	}
}

// frameIs reports whether the frame's leading tag is name.
func frameIs(frame, name []byte) bool {
	if len(frame) < len(name) {
		return false
	}

	for i := range name {
		if frame[i] != name[i] {
			return false
		}
	}

	// The tag must end here, "PINGX" is not a PING frame.
	rest := frame[len(name):]
	return len(rest) == 0 || rest[0] == protocol.Separator || rest[0] == ' ' || rest[0] == '\r'
}
