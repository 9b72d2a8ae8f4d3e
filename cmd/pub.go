package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/luma/hermes/protocol"
)

var (
	// Ask subscribers for replies on this subject
	replyTo string
)

func init() {
	flags := PubCmd.PersistentFlags()

	flags.StringVar(&replyTo, "reply-to", "", "Ask subscribers to publish replies to this subject")
}

var PubCmd = &cobra.Command{
	Use:   "pub <subject> [payload]",
	Short: "Publish a payload to a subject",
	Long: `Publish a payload to a subject.

The payload is the second argument, or stdin when the argument is "-" or
missing.

Usage
	hermes pub orders.created '{"id":42}'
	cat payload.json | hermes pub orders.created -

`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
		defer signalStop()

		payload, err := readPayload(args)
		if err != nil {
			return err
		}

		conf, log, err := setup(ctx)
		if err != nil {
			return err
		}

		conn, err := connect(ctx, conf, log)
		if err != nil {
			return err
		}
		defer conn.Close()

		var opts []protocol.PubOption
		if replyTo != "" {
			opts = append(opts, protocol.WithReplyTo(replyTo))
		}

		if err := conn.Publish(ctx, args[0], payload, opts...); err != nil {
			return err
		}

		// A ping round trip proves the broker consumed the publish before we
		// hang up.
		return conn.Ping(ctx)
	},
}

func readPayload(args []string) ([]byte, error) {
	if len(args) < 2 || args[1] == "-" {
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("Failed to read payload from stdin: %w", err)
		}

		return payload, nil
	}

	return []byte(args[1]), nil
}
