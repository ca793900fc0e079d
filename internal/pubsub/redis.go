// Package pubsub connects the event broadcaster to Redis pub/sub.
package pubsub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is a publish/subscribe client with an explicit lifecycle:
// NewRedis connects and pings, Health re-checks, Close releases.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis parses a redis:// URL, connects and verifies the connection.
func NewRedis(ctx context.Context, redisURL string, logger *zap.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis connection established",
		zap.String("addr", opt.Addr),
		zap.Int("db", opt.DB),
	)
	return &Redis{client: client, logger: logger}, nil
}

// Publish sends payload to every subscriber of channel.
func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe calls handle for every message on channel until ctx is done or
// the subscription closes. It returns an error only if subscribing fails.
func (r *Redis) Subscribe(ctx context.Context, channel string, handle func(payload []byte)) error {
	sub := r.client.Subscribe(ctx, channel)
	defer sub.Close()

	// Wait for the subscription confirmation so no message is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	r.logger.Info("subscribed", zap.String("channel", channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle([]byte(msg.Payload))
		}
	}
}

func (r *Redis) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	r.logger.Info("closing redis connection")
	return r.client.Close()
}
