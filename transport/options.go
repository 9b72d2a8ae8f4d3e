package transport

// DefaultMaxFrameSize is the frame size cap a FrameReader applies when its
// options do not set one.
const DefaultMaxFrameSize = 1 << 20

type Options struct {
	// MaxFrameSize caps the size of a single frame, header plus payload.
	// It protects readers against hostile or corrupt payload counts.
	// Zero means DefaultMaxFrameSize.
	MaxFrameSize int
}
