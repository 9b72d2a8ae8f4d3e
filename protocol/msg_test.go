package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luma/hermes/protocol"
)

var _ = Describe("MsgCommand", func() {
	Describe("ParseMsg()", func() {
		It("parses a delivery without a reply subject", func() {
			cmd, err := protocol.ParseMsg([]byte("MSG\tFOO\tpouet\t5\r\nhello\r\n"))
			Expect(err).To(Succeed())
			Expect(cmd.Subject).To(Equal("FOO"))
			Expect(cmd.Sid).To(Equal("pouet"))
			Expect(cmd.ReplyTo).To(BeEmpty())
			Expect(cmd.Payload).To(Equal([]byte("hello")))
		})

		It("parses a delivery with a reply subject", func() {
			cmd, err := protocol.ParseMsg([]byte("MSG\tFOO\tpouet\tINBOX.42\t5\r\nhello\r\n"))
			Expect(err).To(Succeed())
			Expect(cmd.ReplyTo).To(Equal("INBOX.42"))
		})

		It("returns ErrCommandMalformed when the sid is missing", func() {
			_, err := protocol.ParseMsg([]byte("MSG\tFOO\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("returns ErrCommandMalformed when the size is missing", func() {
			_, err := protocol.ParseMsg([]byte("MSG\tFOO\tpouet\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("returns ErrCommandMalformed when the tag belongs to another command", func() {
			_, err := protocol.ParseMsg([]byte("SUB\tFOO\tpouet\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("returns ErrIncompleteCommand when the payload section is short", func() {
			_, err := protocol.ParseMsg([]byte("MSG\tFOO\tpouet\t10\r\nhello\r\n"))
			Expect(err).To(MatchError(protocol.ErrIncompleteCommand))
		})
	})

	Describe("Encode()", func() {
		It("produces the exact frame", func() {
			cmd, err := protocol.NewMsg("FOO", "pouet", []byte("hello"))
			Expect(err).To(Succeed())

			frame, err := cmd.Encode()
			Expect(err).To(Succeed())
			Expect(string(frame)).To(Equal("MSG\tFOO\tpouet\t5\r\nhello\r\n"))
		})

		It("produces the exact frame with a reply subject", func() {
			cmd, err := protocol.NewMsg("FOO", "pouet", []byte("hello"),
				protocol.WithMsgReplyTo("INBOX.42"))
			Expect(err).To(Succeed())

			frame, err := cmd.Encode()
			Expect(err).To(Succeed())
			Expect(string(frame)).To(Equal("MSG\tFOO\tpouet\tINBOX.42\t5\r\nhello\r\n"))
		})
	})

	Describe("round-trip", func() {
		It("recovers the constructed value", func() {
			want, err := protocol.NewMsg("orders.created", "a1B2c3D4e5F6", []byte("x"),
				protocol.WithMsgReplyTo("orders.ack"))
			Expect(err).To(Succeed())

			frame, err := want.Encode()
			Expect(err).To(Succeed())

			got, err := protocol.ParseMsg(frame)
			Expect(err).To(Succeed())
			Expect(got).To(Equal(want))
		})
	})

	Describe("NewMsg()", func() {
		It("rejects a blank sid, naming the field", func() {
			_, err := protocol.NewMsg("FOO", "", nil)

			var argErr *protocol.ArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Field).To(Equal("sid"))
		})
	})
})
