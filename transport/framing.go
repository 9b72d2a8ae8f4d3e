package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/luma/hermes/protocol"
)

// ErrFrameTooLarge means a frame, header plus any declared payload, exceeds
// the reader's maximum frame size. The stream past an oversized frame is
// unusable, treat the connection as desynchronized.
var ErrFrameTooLarge = errors.New("Frame exceeds the maximum frame size")

// FrameReader assembles complete frames out of a byte stream. It owns the
// framing side of the transport contract: the protocol parsers are always
// handed one whole, terminator-ending frame and never see partial reads.
type FrameReader struct {
	r   *bufio.Reader
	max int
}

func NewFrameReader(r io.Reader, options Options) *FrameReader {
	max := options.MaxFrameSize
	if max <= 0 {
		max = DefaultMaxFrameSize
	}

	return &FrameReader{
		r:   bufio.NewReader(r),
		max: max,
	}
}

// ReadFrame blocks until one complete frame is available and returns it,
// terminator included. For commands that carry a counted payload (PUB, MSG)
// the returned frame is the header line plus the declared payload bytes and
// the payload's own terminator.
//
// ReadFrame does not validate the frame beyond its framing. A header whose
// payload size token is unreadable is returned as just the header line; the
// command parser is the one to reject it.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	header, err := fr.readLine()
	if err != nil {
		return nil, err
	}

	if !protocol.CarriesPayload(leadingTag(header)) {
		return header, nil
	}

	size, ok := declaredSize(header)
	if !ok {
		return header, nil
	}

	want := size + len(protocol.Terminal)
	if len(header)+want > fr.max {
		return nil, fmt.Errorf("Failed to read payload of %d bytes: %w", size, ErrFrameTooLarge)
	}

	frame := make([]byte, len(header)+want)
	copy(frame, header)

	if _, err := io.ReadFull(fr.r, frame[len(header):]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}

		return nil, err
	}

	return frame, nil
}

// readLine reads up to and including the next '\n', enforcing the maximum
// frame size while the line accumulates.
func (fr *FrameReader) readLine() ([]byte, error) {
	var line []byte

	for {
		chunk, err := fr.r.ReadSlice('\n')
		line = append(line, chunk...)

		if len(line) > fr.max {
			return nil, fmt.Errorf("Failed to read frame header of %d+ bytes: %w", len(line), ErrFrameTooLarge)
		}

		if err == nil {
			return line, nil
		}

		if !errors.Is(err, bufio.ErrBufferFull) {
			if len(line) > 0 && errors.Is(err, io.EOF) {
				// A stream that ends mid-line still hands the partial frame
				// to the parser, which reports it as incomplete.
				return line, nil
			}

			return nil, err
		}
	}
}

// leadingTag returns the frame's command tag, the bytes before the first
// whitespace.
func leadingTag(frame []byte) []byte {
	end := bytes.IndexFunc(frame, func(r rune) bool {
		return r == rune(protocol.Separator) || r == ' ' || r == '\r' || r == '\n'
	})

	if end < 0 {
		return frame
	}

	return frame[:end]
}

// declaredSize extracts the payload size a header line declares, which is
// its last whitespace-separated token.
func declaredSize(header []byte) (int, bool) {
	fields := strings.Fields(strings.TrimSuffix(string(header), string(protocol.Terminal)))
	if len(fields) < 2 {
		return 0, false
	}

	size, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || size < 0 {
		return 0, false
	}

	return size, true
}

// FrameWriter writes encoded frames to a stream. Every frame goes out in a
// single Write call under a mutex, so frames from concurrent writers never
// interleave.
type FrameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes one already-encoded frame.
func (fw *FrameWriter) WriteFrame(frame []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("Failed to write frame: %w", err)
	}

	return nil
}

// WriteCommand encodes cmd and writes the resulting frame.
func (fw *FrameWriter) WriteCommand(cmd protocol.Command) error {
	frame, err := cmd.Encode()
	if err != nil {
		return fmt.Errorf("Failed to encode %s command: %w", cmd.CommandName(), err)
	}

	return fw.WriteFrame(frame)
}
