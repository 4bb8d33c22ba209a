package server

import (
	"context"

	"github.com/beexponential/insights/internal/live"
	"github.com/beexponential/insights/internal/logger"
	"github.com/beexponential/insights/internal/notify/widgets"
)

// initLive picks how widget changes reach open dashboards. With Redis every
// instance publishes to the channel and relays it into its hub; with
// Postgres NOTIFY does the same; otherwise the hub is fed directly.
func initLive(ctx context.Context, d Deps, hub *live.Hub) widgets.Notifier {
	if d.Redis != nil {
		sub := &live.RedisSubscriber{RDB: d.Redis, Hub: hub, Logger: logger.L}
		sub.Start(ctx)
		return widgets.NewRedisNotifier(d.Redis, "")
	}
	if d.DB != nil && d.Config.DB.Driver == "postgres" && d.Config.DB.DSN != "" {
		l := live.NewPGListener(d.Config.DB.DSN, hub, logger.L)
		if _, err := l.Start(ctx); err != nil {
			logger.L.Error("start widget listener", "err", err)
		} else {
			return &widgets.PGNotifier{DB: d.DB}
		}
	}
	return hub
}
