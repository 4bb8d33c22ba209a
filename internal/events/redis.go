package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures RedisSink. With Stream set events are appended to
// a Redis stream the sync worker consumes with a consumer group; otherwise
// they are published on "<channel>.<event name>".
type RedisConfig struct {
	Enabled bool     `yaml:"enabled"`
	DSN     string   `yaml:"dsn"`
	Channel string   `yaml:"channel"`
	Stream  string   `yaml:"stream"`
	MaxLen  int64    `yaml:"max_len"`
	Events  []string `yaml:"events"`
}

// DefaultChannel prefixes the pub/sub channels of RedisSink.
const DefaultChannel = "insights:events"

// RedisSink publishes events through Redis.
type RedisSink struct {
	Client  *redis.Client
	Channel string
	Stream  string
	MaxLen  int64
}

// NewRedisSink returns a RedisSink based on config, or nil when disabled.
func NewRedisSink(c RedisConfig) (*RedisSink, error) {
	if !c.Enabled || c.DSN == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(c.DSN)
	if err != nil {
		return nil, err
	}
	ch := c.Channel
	if ch == "" {
		ch = DefaultChannel
	}
	return &RedisSink{Client: redis.NewClient(opt), Channel: ch, Stream: c.Stream, MaxLen: c.MaxLen}, nil
}

func (s *RedisSink) Emit(ctx context.Context, e Event) error {
	if s == nil || s.Client == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if s.Stream != "" {
		return s.Client.XAdd(ctx, &redis.XAddArgs{
			Stream: s.Stream,
			MaxLen: s.MaxLen,
			Approx: s.MaxLen > 0,
			Values: map[string]any{"id": e.ID, "name": e.Name, "tenant": e.Tenant, "event": string(data)},
		}).Err()
	}
	return s.Client.Publish(ctx, s.Channel+"."+e.Name, data).Err()
}
