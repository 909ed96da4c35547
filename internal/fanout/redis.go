package fanout

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fvnks/konecte-chatbridge/internal/models"
)

const channelPrefix = "fanout:user:"

// userChannel returns the pub/sub channel for a user's room.
func userChannel(userID string) string {
	return channelPrefix + userID
}

// RedisBus carries notifications across process boundaries over redis
// pub/sub. Every bridge process publishes on Notify and subscribes once,
// feeding its own hub, so the process holding a user's live connection
// receives the push no matter which process ingested the message.
type RedisBus struct {
	client *redis.Client
	hub    *Hub
	logger zerolog.Logger
}

// NewRedisBus creates a bus over the given redis client and local hub.
func NewRedisBus(ctx context.Context, redisURL string, hub *Hub, logger zerolog.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisBus{client: client, hub: hub, logger: logger}, nil
}

// Close closes the redis connection.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// Ping checks the redis connection.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Client exposes the underlying redis client for shared concerns such as
// rate limiting.
func (b *RedisBus) Client() *redis.Client {
	return b.client
}

// Notify publishes the message on the user's channel. Local delivery
// happens through the subscriber loop like any other process's.
func (b *RedisBus) Notify(ctx context.Context, userID string, msg *models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, userChannel(userID), payload).Err()
}

// Run subscribes to all user channels and feeds the local hub until ctx
// is cancelled. Malformed payloads are logged and skipped.
func (b *RedisBus) Run(ctx context.Context) {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			userID := strings.TrimPrefix(m.Channel, channelPrefix)

			var msg models.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.Warn().
					Err(err).
					Str("channel", m.Channel).
					Msg("dropping malformed fanout payload")
				continue
			}
			b.hub.Notify(userID, &msg)
		}
	}
}
