package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/beexponential/insights/internal/notify/widgets"
)

// PGListener relays Postgres NOTIFY widget events into the hub.
type PGListener struct {
	ConnString string
	Hub        *Hub
	Logger     *slog.Logger
}

func NewPGListener(conn string, hub *Hub, logger *slog.Logger) *PGListener {
	return &PGListener{ConnString: conn, Hub: hub, Logger: logger}
}

func (l *PGListener) Start(ctx context.Context) (func(), error) {
	listener := pq.NewListener(l.ConnString, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil && l.Logger != nil {
			l.Logger.Error("pg listener", "err", err)
		}
	})
	if err := listener.Listen(widgets.PGChannel); err != nil {
		return nil, err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				listener.Close()
				return
			case n := <-listener.Notify:
				if n == nil {
					continue
				}
				l.apply(ctx, n.Extra)
			}
		}
	}()
	return func() { listener.Close() }, nil
}

func (l *PGListener) apply(ctx context.Context, payload string) {
	var ev widgets.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		if l.Logger != nil {
			l.Logger.Warn("invalid notification", "payload", payload, "err", err)
		}
		return
	}
	_ = l.Hub.Notify(ctx, ev)
}
