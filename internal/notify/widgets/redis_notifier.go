package widgets

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel widget events are published on.
const DefaultChannel = "insights:widgets"

// RedisNotifier publishes widget events to a Redis channel.
type RedisNotifier struct {
	RDB     *redis.Client
	Channel string
}

// NewRedisNotifier constructs a RedisNotifier.
func NewRedisNotifier(rdb *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{RDB: rdb, Channel: channel}
}

// Notify publishes ev.
func (n *RedisNotifier) Notify(ctx context.Context, ev Event) error {
	if n == nil || n.RDB == nil {
		return nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.RDB.Publish(ctx, n.Channel, b).Err()
}
