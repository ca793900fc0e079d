// Command eventtap subscribes to the events channel and logs every envelope.
// It is an operator tool for watching what the delivery tier receives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lalith-99/parley/internal/config"
	"github.com/lalith-99/parley/internal/events"
	"github.com/lalith-99/parley/internal/observ"
	"github.com/lalith-99/parley/internal/pubsub"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	channel := flag.String("channel", cfg.EventsChannel, "pub/sub channel to watch")
	payloads := flag.Bool("payloads", false, "log event data as well as the type")
	flag.Parse()

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, err := pubsub.NewRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer bus.Close()

	return bus.Subscribe(ctx, *channel, tap(logger, *payloads))
}

// tap logs one line per envelope. Unknown types are logged, not dropped.
func tap(logger *zap.Logger, withData bool) func([]byte) {
	return func(payload []byte) {
		env, err := events.Decode(payload)
		if err != nil {
			logger.Warn("undecodable event", zap.Error(err), zap.ByteString("payload", payload))
			return
		}
		fields := []zap.Field{
			zap.String("type", string(env.Type)),
			zap.Bool("known", env.Type.Known()),
		}
		if withData {
			fields = append(fields, zap.ByteString("data", env.Data))
		}
		logger.Info("event", fields...)
	}
}
