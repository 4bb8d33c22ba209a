package server

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beexponential/insights/internal/server/middleware"
	"github.com/beexponential/insights/pkg/metrics"
)

// setupMetrics mounts /metrics and, when syncs is set, keeps the sync gauge
// fresh until ctx is done.
func setupMetrics(ctx context.Context, api huma.API, r chi.Router, syncs metrics.SyncCounter) {
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	api.UseMiddleware(middleware.MetricsMW)
	if syncs != nil {
		metrics.StartSyncGauge(ctx, syncs, 0)
	}
}
