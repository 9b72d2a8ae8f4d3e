// Package brokertest runs a minimal in-process Hermes broker over real TCP.
// It exists so client and integration tests can exercise the full wire
// path without an external broker; it implements exact-match subjects,
// queue groups and delivery allowances, and nothing more.
package brokertest

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"
	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/hermes/protocol"
	"github.com/luma/hermes/transport"
)

type Options struct {
	// Addr to listen on. Use "127.0.0.1:0" (the default) to let the kernel
	// pick a free port and read it back with Addr().
	Addr string

	// MaxFrameSize is handed to each connection's FrameReader.
	MaxFrameSize int

	Log *zap.Logger
}

type Broker struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr     string
	listener net.Listener

	registry *registry

	mu          sync.Mutex
	activeConns map[*brokerConn]struct{}

	maxFrameSize int
	log          *zap.Logger
}

func New(options Options) *Broker {
	addr := options.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Broker{
		addr:         addr,
		registry:     newRegistry(),
		activeConns:  make(map[*brokerConn]struct{}),
		maxFrameSize: options.MaxFrameSize,
		log:          log,
	}
}

// Start binds the listener and begins accepting connections. It returns
// once the broker is listening, so callers can dial Addr() immediately.
func (b *Broker) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	b.cancel = cancel

	listener, err := reuseport.Listen("tcp", b.addr)
	if err != nil {
		cancel()
		return err
	}

	b.listener = listener

	b.log.Info("Broker listening", zap.String("addr", listener.Addr().String()))

	b.stopWaiter.Add(1)
	go func() {
		defer b.stopWaiter.Done()
		b.acceptLoop(ctx)
	}()

	return nil
}

// Addr returns the address the broker is listening on.
func (b *Broker) Addr() string {
	return b.listener.Addr().String()
}

// Close stops accepting, closes every active connection and waits for the
// connection loops to drain.
func (b *Broker) Close() (err error) {
	b.log.Info("Stopping broker")

	b.cancel()
	err = multierr.Append(err, b.listener.Close())

	b.mu.Lock()
	for conn := range b.activeConns {
		err = multierr.Append(err, conn.close())
		delete(b.activeConns, conn)
	}
	b.mu.Unlock()

	b.stopWaiter.Wait()

	// "use of closed network connection" is the listener reacting to our own
	// Close, not a failure.
	if err != nil && errors.Is(err, net.ErrClosed) {
		err = nil
	}

	return err
}

func (b *Broker) acceptLoop(ctx context.Context) {
	log := b.log.Named("acceptLoop")

	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				log.Info("Stopped accepting new connections")
				return
			}

			log.Warn("Failed to accept connection", zap.Error(err))
			continue
		}

		bc := newBrokerConn(conn, b, log.Named("conn").With(
			zap.String("connID", uuid.NewString()),
			zap.String("remote", conn.RemoteAddr().String()),
		))

		b.addConn(bc)

		b.stopWaiter.Add(1)
		go func() {
			defer b.stopWaiter.Done()

			bc.readLoop(ctx)

			b.registry.dropConn(bc)
			b.removeConn(bc)
		}()
	}
}

// deliver fans one published message out to the matching subscriptions.
func (b *Broker) deliver(cmd *protocol.PubCommand) {
	for _, sub := range b.registry.targets(cmd.Subject) {
		var opts []protocol.MsgOption
		if cmd.ReplyTo != "" {
			opts = append(opts, protocol.WithMsgReplyTo(cmd.ReplyTo))
		}

		msg, err := protocol.NewMsg(cmd.Subject, sub.sid, cmd.Payload, opts...)
		if err != nil {
			b.log.Error("Failed to build delivery",
				zap.String("subject", cmd.Subject),
				zap.String("sid", sub.sid),
				zap.Error(err))
			continue
		}

		if err := sub.conn.writer.WriteCommand(msg); err != nil {
			b.log.Warn("Failed to deliver message",
				zap.String("subject", cmd.Subject),
				zap.String("sid", sub.sid),
				zap.Error(err))
		}
	}
}

func (b *Broker) addConn(conn *brokerConn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.activeConns[conn] = struct{}{}
}

func (b *Broker) removeConn(conn *brokerConn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.activeConns, conn)
}

type brokerConn struct {
	conn   net.Conn
	reader *transport.FrameReader
	writer *transport.FrameWriter

	broker *Broker
	log    *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func newBrokerConn(conn net.Conn, broker *Broker, log *zap.Logger) *brokerConn {
	return &brokerConn{
		conn:   conn,
		reader: transport.NewFrameReader(conn, transport.Options{MaxFrameSize: broker.maxFrameSize}),
		writer: transport.NewFrameWriter(conn),
		broker: broker,
		log:    log,
	}
}

func (c *brokerConn) close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})

	return c.closeErr
}

// readLoop reads frames off the connection and dispatches them by their
// leading tag until the peer disconnects, the broker stops, or the peer
// desynchronizes. A malformed frame closes the connection: once framing is
// in doubt there is no safe way to keep parsing the stream.
func (c *brokerConn) readLoop(ctx context.Context) {
	log := c.log.Named("readLoop")

	defer func() {
		if err := c.close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Warn("Failed to close connection cleanly", zap.Error(err))
		}
	}()

	for {
		frame, err := c.reader.ReadFrame()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}

			log.Info("Client disconnected", zap.Error(err))
			return
		}

		if err := c.dispatch(frame); err != nil {
			log.Warn("Dropping desynchronized client",
				zap.ByteString("frame", frame),
				zap.Error(err))
			return
		}
	}
}

func (c *brokerConn) dispatch(frame []byte) error {
	tag := frame
	if at := bytes.IndexAny(frame, "\t\r\n "); at >= 0 {
		tag = frame[:at]
	}

	switch {
	case bytes.Equal(tag, protocol.NameSub):
		cmd, err := protocol.ParseSub(frame)
		if err != nil {
			return err
		}

		c.broker.registry.add(c, cmd)
		return nil

	case bytes.Equal(tag, protocol.NameUnsub):
		cmd, err := protocol.ParseUnsub(frame)
		if err != nil {
			return err
		}

		c.broker.registry.unsubscribe(c, cmd)
		return nil

	case bytes.Equal(tag, protocol.NamePub):
		cmd, err := protocol.ParsePub(frame)
		if err != nil {
			return err
		}

		c.broker.deliver(cmd)
		return nil

	case bytes.Equal(tag, protocol.NamePing):
		if _, err := protocol.ParsePing(frame); err != nil {
			return err
		}

		return c.writer.WriteCommand(&protocol.PongCommand{})

	case bytes.Equal(tag, protocol.NamePong):
		// Unsolicited pongs are harmless.
		_, err := protocol.ParsePong(frame)
		return err

	default:
		return protocol.ErrCommandMalformed
	}
}
