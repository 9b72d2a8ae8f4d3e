package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luma/hermes/protocol"
)

var _ = Describe("PubCommand", func() {
	Describe("ParsePub()", func() {
		It("parses a frame without a reply subject", func() {
			cmd, err := protocol.ParsePub([]byte("PUB\tFOO\t5\r\nhello\r\n"))
			Expect(err).To(Succeed())
			Expect(cmd.Subject).To(Equal("FOO"))
			Expect(cmd.ReplyTo).To(BeEmpty())
			Expect(cmd.Payload).To(Equal([]byte("hello")))
		})

		It("parses a frame with a reply subject", func() {
			cmd, err := protocol.ParsePub([]byte("PUB\tFOO\tINBOX.42\t5\r\nhello\r\n"))
			Expect(err).To(Succeed())
			Expect(cmd.ReplyTo).To(Equal("INBOX.42"))
			Expect(cmd.Payload).To(Equal([]byte("hello")))
		})

		It("parses an empty payload", func() {
			cmd, err := protocol.ParsePub([]byte("PUB\tFOO\t0\r\n\r\n"))
			Expect(err).To(Succeed())
			Expect(cmd.Payload).To(BeEmpty())
		})

		It("keeps payload bytes opaque, separators and all", func() {
			cmd, err := protocol.ParsePub([]byte("PUB\tFOO\t6\r\na\tb\r\nc\r\n"))
			Expect(err).To(Succeed())
			Expect(cmd.Payload).To(Equal([]byte("a\tb\r\nc")))
		})

		It("accepts a binary payload that is not valid UTF-8", func() {
			cmd, err := protocol.ParsePub([]byte("PUB\tFOO\t2\r\n\xff\xfe\r\n"))
			Expect(err).To(Succeed())
			Expect(cmd.Payload).To(Equal([]byte{0xff, 0xfe}))
		})

		It("returns ErrIncompleteCommand when the terminator is missing", func() {
			_, err := protocol.ParsePub([]byte("PUB\tFOO\t5\r\nhello"))
			Expect(err).To(MatchError(protocol.ErrIncompleteCommand))
		})

		It("returns ErrIncompleteCommand when the payload section is short", func() {
			// The transport split at a terminator inside the payload; the
			// rest of the payload has not arrived yet.
			_, err := protocol.ParsePub([]byte("PUB\tFOO\t12\r\nhello\r\n"))
			Expect(err).To(MatchError(protocol.ErrIncompleteCommand))
		})

		It("returns ErrCommandMalformed when the payload section is long", func() {
			_, err := protocol.ParsePub([]byte("PUB\tFOO\t2\r\nhello\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("returns ErrCommandMalformed when the size is not a number", func() {
			_, err := protocol.ParsePub([]byte("PUB\tFOO\tfive\r\nhello\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("returns ErrCommandMalformed for a signed size", func() {
			_, err := protocol.ParsePub([]byte("PUB\tFOO\t-5\r\nhello\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("returns ErrCommandMalformed when the tag belongs to another command", func() {
			_, err := protocol.ParsePub([]byte("MSG\tFOO\t5\r\nhello\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("returns ErrCommandMalformed when subject or size are missing", func() {
			_, err := protocol.ParsePub([]byte("PUB\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))

			_, err = protocol.ParsePub([]byte("PUB\tFOO\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})
	})

	Describe("Encode()", func() {
		It("produces the exact frame without a reply subject", func() {
			cmd, err := protocol.NewPub("FOO", []byte("hello"))
			Expect(err).To(Succeed())

			frame, err := cmd.Encode()
			Expect(err).To(Succeed())
			Expect(string(frame)).To(Equal("PUB\tFOO\t5\r\nhello\r\n"))
		})

		It("produces the exact frame with a reply subject", func() {
			cmd, err := protocol.NewPub("FOO", []byte("hello"),
				protocol.WithReplyTo("INBOX.42"))
			Expect(err).To(Succeed())

			frame, err := cmd.Encode()
			Expect(err).To(Succeed())
			Expect(string(frame)).To(Equal("PUB\tFOO\tINBOX.42\t5\r\nhello\r\n"))
		})

		It("encodes an empty payload as a zero count", func() {
			cmd, err := protocol.NewPub("FOO", nil)
			Expect(err).To(Succeed())

			frame, err := cmd.Encode()
			Expect(err).To(Succeed())
			Expect(string(frame)).To(Equal("PUB\tFOO\t0\r\n\r\n"))
		})
	})

	Describe("round-trip", func() {
		It("recovers the constructed value", func() {
			want, err := protocol.NewPub("orders.created", []byte(`{"id":7}`),
				protocol.WithReplyTo("orders.ack"))
			Expect(err).To(Succeed())

			frame, err := want.Encode()
			Expect(err).To(Succeed())

			got, err := protocol.ParsePub(frame)
			Expect(err).To(Succeed())
			Expect(got).To(Equal(want))
		})
	})

	Describe("NewPub()", func() {
		It("rejects an empty subject, naming the field", func() {
			_, err := protocol.NewPub("", []byte("hello"))

			var argErr *protocol.ArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Field).To(Equal("subject"))
		})

		It("rejects a blank reply subject, naming the field", func() {
			_, err := protocol.NewPub("FOO", nil, protocol.WithReplyTo(""))

			var argErr *protocol.ArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Field).To(Equal("reply to"))
		})
	})
})
