package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/luma/hermes/cache"
	"github.com/luma/hermes/client"
	"github.com/luma/hermes/protocol"
)

var (
	// The queue group to join, if any
	queueGroup string

	// An explicit subscription id; empty means a generated one
	subSid string

	// Emit deliveries as JSON lines instead of raw payloads
	jsonOut bool

	// A gjson path; only JSON payloads where the path exists are printed
	filterPath string

	// When set, serve /healthz, /stats and /last/*subject on this address
	statusAddr string
)

func init() {
	flags := SubCmd.PersistentFlags()

	flags.StringVarP(&queueGroup, "queue", "q", "", "Join this queue group so the broker load-balances deliveries")
	flags.StringVar(&subSid, "sid", "", "Use this subscription id instead of a generated one")
	flags.BoolVar(&jsonOut, "json", false, "Print each delivery as a JSON line")
	flags.StringVar(&filterPath, "filter", "", "Only print JSON payloads where this gjson path exists")
	flags.StringVar(&statusAddr, "status-addr", "", "Serve a status HTTP endpoint on this address")
}

var SubCmd = &cobra.Command{
	Use:   "sub <subject>",
	Short: "Subscribe to a subject and print deliveries",
	Long: `Subscribe to a subject and print deliveries until interrupted.

Usage
	hermes sub orders.created
	hermes sub orders.created --queue billing --json
	hermes sub metrics --filter cpu --status-addr 127.0.0.1:7362

`,
	Args: cobra.ExactArgs(1),
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

		var opts []protocol.SubOption
		if queueGroup != "" {
			opts = append(opts, protocol.WithQueueGroup(queueGroup))
		}
		if subSid != "" {
			opts = append(opts, protocol.WithSid(subSid))
		}

		sub, err := conn.Subscribe(ctx, args[0], opts...)
		if err != nil {
			return err
		}

		log.Info("Subscribed",
			zap.String("subject", sub.Subject()),
			zap.String("queueGroup", sub.QueueGroup()),
			zap.String("sid", sub.Sid()))

		var (
			store     = cache.NewLastValue()
			delivered atomic.Int64
			dropped   atomic.Int64
		)

		var status *http.Server
		if statusAddr != "" {
			status = startStatusServer(log, store, sub, &delivered, &dropped)
		}

	deliveries:
		for {
			select {
			case msg, ok := <-sub.Messages():
				if !ok {
					break deliveries
				}

				delivered.Add(1)

				if err := store.Put(msg.Subject, msg.Payload); err != nil {
					log.Warn("Failed to cache delivery", zap.Error(err))
				}

				if err := printDelivery(msg); err != nil {
					log.Warn("Failed to print delivery", zap.Error(err))
					dropped.Add(1)
				}

			case <-ctx.Done():
				break deliveries
			}
		}

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := sub.Unsubscribe(shutdownCtx); err != nil && !errors.Is(err, client.ErrConnClosed) {
			log.Warn("Failed to unsubscribe cleanly", zap.Error(err))
		}

		if status != nil {
			status.SetKeepAlivesEnabled(false)

			if err := status.Shutdown(shutdownCtx); err != nil {
				log.Error("Http server forced to shutdown", zap.Error(err))
			}
		}

		if err := conn.Close(); err != nil {
			log.Error("Connection did not close cleanly", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}

// printDelivery writes one delivery to stdout, honouring --filter and
// --json.
func printDelivery(msg *client.Msg) error {
	if filterPath != "" {
		if !gjson.ValidBytes(msg.Payload) || !gjson.GetBytes(msg.Payload, filterPath).Exists() {
			return nil
		}
	}

	if !jsonOut {
		fmt.Printf("%s\n", msg.Payload)
		return nil
	}

	line, err := deliveryRecord(msg)
	if err != nil {
		return err
	}

	fmt.Println(string(line))
	return nil
}

// deliveryRecord builds the --json output line for one delivery.
func deliveryRecord(msg *client.Msg) ([]byte, error) {
	line, err := sjson.SetBytes([]byte(`{}`), "subject", msg.Subject)
	if err != nil {
		return nil, err
	}

	if msg.ReplyTo != "" {
		if line, err = sjson.SetBytes(line, "replyTo", msg.ReplyTo); err != nil {
			return nil, err
		}
	}

	if gjson.ValidBytes(msg.Payload) {
		line, err = sjson.SetRawBytes(line, "payload", msg.Payload)
	} else {
		line, err = sjson.SetBytes(line, "payload", string(msg.Payload))
	}
	if err != nil {
		return nil, err
	}

	return sjson.SetBytes(line, "receivedAt", time.Now().UTC().Format(time.RFC3339))
}

// startStatusServer runs the gin status endpoint beside the subscription.
func startStatusServer(
	log *zap.Logger,
	store cache.Store,
	sub *client.Subscription,
	delivered *atomic.Int64,
	dropped *atomic.Int64,
) *http.Server {
	router := setupRouter(log)

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"subject":    sub.Subject(),
			"queueGroup": sub.QueueGroup(),
			"sid":        sub.Sid(),
			"delivered":  delivered.Load(),
			"dropped":    dropped.Load(),
		})
	})

	router.GET("/last/*subject", func(c *gin.Context) {
		subject := c.Param("subject")[1:]
		if subject == "" {
			c.Data(http.StatusOK, "application/json", store.Snapshot())
			return
		}

		value, ok := store.Get(subject)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no value recorded for subject"})
			return
		}

		c.Data(http.StatusOK, "application/json", value)
	})

	s := &http.Server{
		Addr:    statusAddr,
		Handler: router,
	}

	// Initializing the server in a goroutine so that
	// it won't block the delivery loop
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Http server errored", zap.Error(err))
		}
	}()

	log.Info("Status endpoint listening", zap.String("addr", statusAddr))

	return s
}

func setupRouter(log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/healthz"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}
