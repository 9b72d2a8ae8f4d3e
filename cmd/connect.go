package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/luma/hermes/client"
	"github.com/luma/hermes/internal/env"
)

var (
	// The broker address. Empty means whatever the environment configures.
	addr string
)

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVarP(&addr, "addr", "a", "", "The broker address to connect to (default HERMES_ADDR)")
}

// setup loads the environment config and builds the logger every command
// shares.
func setup(ctx context.Context) (*env.Config, *zap.Logger, error) {
	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	log, err := env.MakeLogger(conf.Debug)
	if err != nil {
		return nil, nil, err
	}

	return conf, log, nil
}

// brokerAddr resolves the address to dial: the --addr flag when given,
// otherwise the configured one.
func brokerAddr(conf *env.Config) string {
	if addr != "" {
		return addr
	}

	return conf.Addr
}

// connect dials the broker with the shared config applied.
func connect(ctx context.Context, conf *env.Config, log *zap.Logger) (*client.Conn, error) {
	conn := client.New(client.Options{
		Log:         log.Named("client"),
		DialTimeout: conf.ConnectTimeout,
	})

	if err := conn.Connect(ctx, brokerAddr(conf)); err != nil {
		return nil, err
	}

	return conn, nil
}
