package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/luma/hermes/protocol"
)

const (
	// DefaultDialTimeout bounds Connect when the options do not set one.
	DefaultDialTimeout = 5 * time.Second

	// MessageBufferSize is how many undelivered messages a subscription
	// buffers before the read loop starts dropping deliveries for it.
	MessageBufferSize = 255
)

type Options struct {
	// SidGenerator overrides the generator used for default subscription
	// ids. Nil means protocol.RandomSid.
	SidGenerator protocol.SidGenerator

	// DialTimeout bounds the Connect dial. Zero means DefaultDialTimeout.
	DialTimeout time.Duration

	// MaxFrameSize caps inbound frames, see transport.Options.
	MaxFrameSize int

	Log *zap.Logger
}
