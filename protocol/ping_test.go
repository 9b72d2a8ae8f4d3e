package protocol_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luma/hermes/protocol"
)

var _ = Describe("PingCommand and PongCommand", func() {
	It("encodes PING as a bare tag frame", func() {
		frame, err := (&protocol.PingCommand{}).Encode()
		Expect(err).To(Succeed())
		Expect(string(frame)).To(Equal("PING\r\n"))
	})

	It("encodes PONG as a bare tag frame", func() {
		frame, err := (&protocol.PongCommand{}).Encode()
		Expect(err).To(Succeed())
		Expect(string(frame)).To(Equal("PONG\r\n"))
	})

	It("parses its own output", func() {
		_, err := protocol.ParsePing([]byte("PING\r\n"))
		Expect(err).To(Succeed())

		_, err = protocol.ParsePong([]byte("PONG\r\n"))
		Expect(err).To(Succeed())
	})

	It("rejects a PONG frame handed to the PING parser", func() {
		_, err := protocol.ParsePing([]byte("PONG\r\n"))
		Expect(err).To(MatchError(protocol.ErrCommandMalformed))
	})

	It("rejects extra tokens after the tag", func() {
		_, err := protocol.ParsePing([]byte("PING\tnow\r\n"))
		Expect(err).To(MatchError(protocol.ErrCommandMalformed))
	})

	It("returns ErrIncompleteCommand when the terminator is missing", func() {
		_, err := protocol.ParsePong([]byte("PONG"))
		Expect(err).To(MatchError(protocol.ErrIncompleteCommand))
	})
})
