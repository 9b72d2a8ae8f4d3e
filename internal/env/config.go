package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// Addr is the broker address commands connect to unless a flag
	// overrides it.
	Addr string `env:"HERMES_ADDR,default=127.0.0.1:7363"`

	// ConnectTimeout bounds the broker dial.
	ConnectTimeout time.Duration `env:"HERMES_CONNECT_TIMEOUT,default=5s"`

	// Debug switches the logger to debug level.
	Debug bool `env:"HERMES_DEBUG"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
