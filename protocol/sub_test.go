package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luma/hermes/protocol"
)

var _ = Describe("SubCommand", func() {
	Describe("ParseSub()", func() {
		It("parses a frame without a queue group", func() {
			cmd, err := protocol.ParseSub([]byte("SUB\tFOO\tpouet\r\n"))
			Expect(err).To(Succeed())
			Expect(cmd.Subject).To(Equal("FOO"))
			Expect(cmd.QueueGroup).To(BeEmpty())
			Expect(cmd.Sid).To(Equal("pouet"))
		})

		It("parses a frame with a queue group", func() {
			cmd, err := protocol.ParseSub([]byte("SUB\tFOO\tGRP1\tpouet\r\n"))
			Expect(err).To(Succeed())
			Expect(cmd.Subject).To(Equal("FOO"))
			Expect(cmd.QueueGroup).To(Equal("GRP1"))
			Expect(cmd.Sid).To(Equal("pouet"))
		})

		It("accepts any run of whitespace as a separator", func() {
			cmd, err := protocol.ParseSub([]byte("SUB FOO  pouet\r\n"))
			Expect(err).To(Succeed())
			Expect(cmd.Subject).To(Equal("FOO"))
			Expect(cmd.Sid).To(Equal("pouet"))
		})

		It("takes the sid from the back and the queue group from the middle", func() {
			cmd, err := protocol.ParseSub([]byte("SUB\tFOO\tGRP1\tignored\tpouet\r\n"))
			Expect(err).To(Succeed())
			Expect(cmd.QueueGroup).To(Equal("GRP1"))
			Expect(cmd.Sid).To(Equal("pouet"))
		})

		It("returns ErrIncompleteCommand when the terminator is missing", func() {
			_, err := protocol.ParseSub([]byte("SUB\tFOO\tpouet"))
			Expect(err).To(MatchError(protocol.ErrIncompleteCommand))
		})

		It("returns ErrIncompleteCommand for buffers shorter than the terminator", func() {
			for _, buf := range [][]byte{nil, {}, []byte("\r"), []byte("\n"), []byte("S")} {
				_, err := protocol.ParseSub(buf)
				Expect(err).To(MatchError(protocol.ErrIncompleteCommand))
			}
		})

		It("returns ErrCommandMalformed when the tag belongs to another command", func() {
			_, err := protocol.ParseSub([]byte("PUB\tFOO\tpouet\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("matches the tag case-sensitively", func() {
			_, err := protocol.ParseSub([]byte("sub\tFOO\tpouet\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("returns ErrCommandMalformed for an empty frame", func() {
			_, err := protocol.ParseSub([]byte("\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("returns ErrCommandMalformed when the subject is missing", func() {
			_, err := protocol.ParseSub([]byte("SUB\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("returns ErrCommandMalformed when the sid is missing", func() {
			_, err := protocol.ParseSub([]byte("SUB\tFOO\r\n"))
			Expect(err).To(MatchError(protocol.ErrCommandMalformed))
		})

		It("rejects frames that are not valid UTF-8", func() {
			_, err := protocol.ParseSub([]byte{'S', 'U', 'B', '\t', 0xff, 0xfe, '\r', '\n'})
			Expect(err).To(MatchError(protocol.ErrInvalidEncoding))
		})
	})

	Describe("Encode()", func() {
		It("produces the exact frame without a queue group", func() {
			cmd, err := protocol.NewSub("FOO", protocol.WithSid("pouet"))
			Expect(err).To(Succeed())

			frame, err := cmd.Encode()
			Expect(err).To(Succeed())
			Expect(string(frame)).To(Equal("SUB\tFOO\tpouet\r\n"))
		})

		It("produces the exact frame with a queue group", func() {
			cmd, err := protocol.NewSub("FOO",
				protocol.WithQueueGroup("GRP1"),
				protocol.WithSid("pouet"))
			Expect(err).To(Succeed())

			frame, err := cmd.Encode()
			Expect(err).To(Succeed())
			Expect(string(frame)).To(Equal("SUB\tFOO\tGRP1\tpouet\r\n"))
		})

		It("never emits two consecutive separators when the queue group is absent", func() {
			cmd, err := protocol.NewSub("FOO", protocol.WithSid("pouet"))
			Expect(err).To(Succeed())

			frame, err := cmd.Encode()
			Expect(err).To(Succeed())
			Expect(string(frame)).NotTo(ContainSubstring("\t\t"))
		})

		It("fails on a value that bypassed construction", func() {
			cmd := &protocol.SubCommand{Subject: "FOO"}
			_, err := cmd.Encode()

			var argErr *protocol.ArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Field).To(Equal("sid"))
		})
	})

	Describe("round-trip", func() {
		It("recovers every constructed value, with and without a queue group", func() {
			cmds := []*protocol.SubCommand{}

			cmd, err := protocol.NewSub("orders.created", protocol.WithSid("a1B2c3D4e5F6"))
			Expect(err).To(Succeed())
			cmds = append(cmds, cmd)

			cmd, err = protocol.NewSub("orders.created",
				protocol.WithQueueGroup("billing"),
				protocol.WithSid("ZZtop00plonk"))
			Expect(err).To(Succeed())
			cmds = append(cmds, cmd)

			cmd, err = protocol.NewSub("metrics")
			Expect(err).To(Succeed())
			cmds = append(cmds, cmd)

			for _, want := range cmds {
				frame, err := want.Encode()
				Expect(err).To(Succeed())

				got, err := protocol.ParseSub(frame)
				Expect(err).To(Succeed())
				Expect(got).To(Equal(want))
			}
		})
	})

	Describe("NewSub()", func() {
		It("rejects an empty subject, naming the field", func() {
			_, err := protocol.NewSub("")

			var argErr *protocol.ArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Field).To(Equal("subject"))
		})

		It("rejects a subject containing whitespace", func() {
			_, err := protocol.NewSub("FOO BAR")

			var argErr *protocol.ArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Field).To(Equal("subject"))
		})

		It("rejects a subject containing control characters", func() {
			_, err := protocol.NewSub("FOO\x00BAR")

			var argErr *protocol.ArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Field).To(Equal("subject"))
		})

		It("rejects a blank queue group, naming the field", func() {
			_, err := protocol.NewSub("FOO", protocol.WithQueueGroup(""))

			var argErr *protocol.ArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Field).To(Equal("queue group"))
		})

		It("rejects a queue group containing whitespace", func() {
			_, err := protocol.NewSub("FOO", protocol.WithQueueGroup("queue group"))

			var argErr *protocol.ArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Field).To(Equal("queue group"))
		})

		It("rejects a blank explicit sid, naming the field", func() {
			_, err := protocol.NewSub("FOO", protocol.WithSid(""))

			var argErr *protocol.ArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Field).To(Equal("sid"))
		})

		It("leaves the queue group absent when the option is not given", func() {
			cmd, err := protocol.NewSub("FOO")
			Expect(err).To(Succeed())
			Expect(cmd.QueueGroup).To(BeEmpty())
		})

		It("generates a sid when none is supplied", func() {
			cmd, err := protocol.NewSub("FOO")
			Expect(err).To(Succeed())
			Expect(cmd.Sid).To(MatchRegexp(`^[0-9A-Za-z]{12}$`))
		})

		It("uses the injected generator for the default sid", func() {
			cmd, err := protocol.NewSub("FOO",
				protocol.WithSidGenerator(func() string { return "fixedfixed12" }))
			Expect(err).To(Succeed())
			Expect(cmd.Sid).To(Equal("fixedfixed12"))
		})

		It("prefers an explicit sid over the generator", func() {
			cmd, err := protocol.NewSub("FOO",
				protocol.WithSid("pouet"),
				protocol.WithSidGenerator(func() string { return "nope" }))
			Expect(err).To(Succeed())
			Expect(cmd.Sid).To(Equal("pouet"))
		})

		It("validates generator output like a user-supplied sid", func() {
			_, err := protocol.NewSub("FOO",
				protocol.WithSidGenerator(func() string { return "has space" }))

			var argErr *protocol.ArgumentError
			Expect(errors.As(err, &argErr)).To(BeTrue())
			Expect(argErr.Field).To(Equal("sid"))
		})
	})
})
