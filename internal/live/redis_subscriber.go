package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beexponential/insights/internal/notify/widgets"
)

// RedisSubscriber relays widget events published by any instance into the
// local hub.
type RedisSubscriber struct {
	RDB          *redis.Client
	Channel      string
	Hub          *Hub
	Logger       *slog.Logger
	BackoffMS    int
	BackoffMaxMS int
}

// Start begins consuming events in a background goroutine.
func (s *RedisSubscriber) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		backoff := time.Duration(s.BackoffMS) * time.Millisecond
		if backoff <= 0 {
			backoff = 500 * time.Millisecond
		}
		max := time.Duration(s.BackoffMaxMS) * time.Millisecond
		if max < backoff {
			max = 30 * time.Second
		}
		for {
			if err := s.loop(ctx); err != nil && s.Logger != nil {
				s.Logger.Warn("redis subscribe loop error", "err", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
				backoff *= 2
				if backoff > max {
					backoff = max
				}
			}
		}
	}()
	return cancel
}

func (s *RedisSubscriber) channel() string {
	if s.Channel == "" {
		return widgets.DefaultChannel
	}
	return s.Channel
}

func (s *RedisSubscriber) loop(ctx context.Context) error {
	sub := s.RDB.Subscribe(ctx, s.channel())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("subscribed", "channel", s.channel())
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return context.Canceled
			}
			s.relay(ctx, msg.Payload)
		}
	}
}

func (s *RedisSubscriber) relay(ctx context.Context, payload string) {
	var ev widgets.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		if s.Logger != nil {
			s.Logger.Warn("invalid payload", "payload", payload, "err", err)
		}
		return
	}
	_ = s.Hub.Notify(ctx, ev)
}
