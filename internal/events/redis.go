package events

import (
	"context"
	"fmt"

	"ecotrack-api-server/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is used when redis.channel is empty.
const DefaultChannel = "ecotrack:events"

// relayBuffer is how many relayed events may wait for the bus.
const relayBuffer = 64

// RedisRelay lets several API instances share events: every instance
// publishes to one channel and fans out what it receives to its own clients.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
}

var _ Relay = (*RedisRelay)(nil)

func NewRedisRelay(ctx context.Context, cfg config.RedisConfig) (*RedisRelay, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{rdb: rdb, channel: channel}, nil
}

func (r *RedisRelay) Channel() string { return r.channel }

func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}

func (r *RedisRelay) Publish(ctx context.Context, payload []byte) error {
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription. The returned
// channel is closed when ctx ends or the connection is closed.
func (r *RedisRelay) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	out := make(chan []byte, relayBuffer)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := func() {
		if err := pubsub.Close(); err != nil {
			log.Warn().Err(err).Str("channel", r.channel).Msg("close redis subscription")
		}
	}
	return out, stop, nil
}
