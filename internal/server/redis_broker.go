package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultRedisChannel = "seoulchat:rooms"

// RedisBroker fans envelopes out through redis pub/sub so that several
// instances share their rooms.
type RedisBroker struct {
	client    *redis.Client
	channel   string
	pubsub    *redis.PubSub
	out       chan Envelope
	log       zerolog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewRedisClient parses a redis URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func NewRedisBroker(ctx context.Context, client *redis.Client, channel string, logger zerolog.Logger) (*RedisBroker, error) {
	if channel == "" {
		channel = DefaultRedisChannel
	}

	pubsub := client.Subscribe(ctx, channel)
	// Wait for the subscription so nothing published afterwards is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	b := &RedisBroker{
		client:  client,
		channel: channel,
		pubsub:  pubsub,
		out:     make(chan Envelope, 256),
		log:     logger.With().Str("component", "redis_broker").Logger(),
		done:    make(chan struct{}),
	}
	go b.receive()

	return b, nil
}

func (b *RedisBroker) receive() {
	defer close(b.out)

	for msg := range b.pubsub.Channel() {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.log.Error().Err(err).Msg("failed to decode envelope")
			continue
		}

		select {
		case b.out <- env:
		case <-b.done:
			return
		}
	}
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBroker) Envelopes() <-chan Envelope {
	return b.out
}

func (b *RedisBroker) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		err = b.pubsub.Close()
	})
	return err
}
