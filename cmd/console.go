package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/luma/hermes/cache"
	"github.com/luma/hermes/client"
	"github.com/luma/hermes/protocol"
)

var ConsoleCmd *cobra.Command

func init() {
	ConsoleCmd = &cobra.Command{
		Use:   "console",
		Short: "An interactive console against a running broker",
		Long: `An interactive console against a running broker.

Commands
	sub <subject> [queue_group]   subscribe, prints the sid
	unsub <sid> [max_msgs]        unsubscribe
	pub <subject> <payload...>    publish
	ping                          round-trip a PONG
	last [subject]                print the last cached value, or all of them
	help                          this text
	quit                          leave

Incoming deliveries are printed as they arrive.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
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

			l, err := readline.NewEx(&readline.Config{
				Prompt:          "hermes> ",
				HistoryFile:     "/tmp/hermes_console.history",
				InterruptPrompt: "^C",
				EOFPrompt:       "quit",
			})
			if err != nil {
				return err
			}
			defer l.Close()

			console := &console{
				ctx:   ctx,
				conn:  conn,
				store: cache.NewLastValue(),
				subs:  make(map[string]*client.Subscription),
				out:   l.Stdout(),
			}

			fmt.Fprintf(console.out, "Connected to %s. Type 'help' for commands.\n", brokerAddr(conf))

			for {
				line, err := l.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if err != nil {
					// EOF, or the signal context fired.
					return nil
				}

				tokens := strings.Fields(line)
				if len(tokens) == 0 {
					continue
				}

				if tokens[0] == "quit" || tokens[0] == "exit" {
					return nil
				}

				if err := console.run(tokens); err != nil {
					fmt.Fprintf(console.out, "error: %v\n", err)
				}
			}
		},
	}
}

// console holds the interactive session's live state: the connection, the
// subscriptions made so far and the last-value cache the `last` command
// reads.
type console struct {
	ctx   context.Context
	conn  *client.Conn
	store cache.Store
	subs  map[string]*client.Subscription
	out   io.Writer
}

func (c *console) run(tokens []string) error {
	switch tokens[0] {
	case "sub":
		return c.subscribe(tokens[1:])

	case "unsub":
		return c.unsubscribe(tokens[1:])

	case "pub":
		return c.publish(tokens[1:])

	case "ping":
		if err := c.conn.Ping(c.ctx); err != nil {
			return err
		}

		fmt.Fprintln(c.out, "PONG")
		return nil

	case "last":
		return c.last(tokens[1:])

	case "help":
		fmt.Fprint(c.out, ConsoleCmd.Long)
		return nil

	default:
		return fmt.Errorf("unknown command %q, try 'help'", tokens[0])
	}
}

func (c *console) subscribe(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: sub <subject> [queue_group]")
	}

	var opts []protocol.SubOption
	if len(args) > 1 {
		opts = append(opts, protocol.WithQueueGroup(args[1]))
	}

	sub, err := c.conn.Subscribe(c.ctx, args[0], opts...)
	if err != nil {
		return err
	}

	c.subs[sub.Sid()] = sub

	go func() {
		for msg := range sub.Messages() {
			if err := c.store.Put(msg.Subject, msg.Payload); err != nil {
				fmt.Fprintf(c.out, "error: failed to cache delivery: %v\n", err)
			}

			fmt.Fprintf(c.out, "[%s] %s\n", msg.Subject, msg.Payload)
		}
	}()

	fmt.Fprintf(c.out, "subscribed to %s with sid %s\n", sub.Subject(), sub.Sid())
	return nil
}

func (c *console) unsubscribe(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: unsub <sid> [max_msgs]")
	}

	sub, ok := c.subs[args[0]]
	if !ok {
		return fmt.Errorf("no subscription with sid %q", args[0])
	}

	var opts []protocol.UnsubOption
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("max_msgs must be a number, got %q", args[1])
		}

		opts = append(opts, protocol.WithMaxMsgs(n))
	}

	if err := sub.Unsubscribe(c.ctx, opts...); err != nil {
		return err
	}

	delete(c.subs, args[0])
	return nil
}

func (c *console) publish(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: pub <subject> <payload...>")
	}

	return c.conn.Publish(c.ctx, args[0], []byte(strings.Join(args[1:], " ")))
}

func (c *console) last(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(c.out, "%s\n", c.store.Snapshot())
		return nil
	}

	value, ok := c.store.Get(args[0])
	if !ok {
		return fmt.Errorf("nothing cached for %q", args[0])
	}

	fmt.Fprintf(c.out, "%s\n", value)
	return nil
}
