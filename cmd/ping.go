package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var PingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure the round-trip time to the broker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
		defer signalStop()

		conf, log, err := setup(ctx)
		if err != nil {
			return err
		}

		conn, err := connect(ctx, conf, log)
		if err != nil {
			return err
		}
		defer conn.Close()

		started := time.Now()
		if err := conn.Ping(ctx); err != nil {
			return err
		}

		fmt.Printf("PONG from %s in %s\n", brokerAddr(conf), time.Since(started).Round(time.Microsecond))
		return nil
	},
}
