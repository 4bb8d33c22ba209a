package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/beexponential/insights/internal/logger"
)

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_api_requests_total",
			Help: "Number of API requests",
		},
		[]string{"tenant", "method", "path", "status"},
	)
	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insights_api_latency_seconds",
			Help:    "API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tenant", "method", "path"},
	)
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_catalog_cache_hits_total",
			Help: "Catalog cache hits",
		},
	)
	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_catalog_cache_misses_total",
			Help: "Catalog cache misses",
		},
	)
	PreviewLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insights_preview_seconds",
			Help:    "Latency of widget preview queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	WidgetEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_widget_events_total",
			Help: "Widget create, update and delete operations",
		},
		[]string{"action"},
	)
	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_sync_runs_total",
			Help: "Scheduled sync runs requested",
		},
		[]string{"sync_type", "status"},
	)
	SyncConfigs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "insights_sync_configs",
			Help: "Enabled sync configurations by type",
		},
		[]string{"sync_type"},
	)
	AuditEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_audit_events_total",
			Help: "Audit log events",
		},
		[]string{"action"},
	)
	AuditErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_audit_errors_total",
			Help: "Audit write errors",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequests,
		APILatency,
		CacheHits,
		CacheMisses,
		PreviewLatency,
		WidgetEvents,
		SyncRuns,
		SyncConfigs,
		AuditEvents,
		AuditErrors,
	)
}

// SyncCounter is implemented by repositories able to count sync
// configurations per type.
type SyncCounter interface {
	CountByType(ctx context.Context) (map[string]int, error)
}

// StartSyncGauge starts a background job that refreshes the sync gauge
// every interval until ctx is done.
func StartSyncGauge(ctx context.Context, repo SyncCounter, interval time.Duration) {
	if repo == nil {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshSyncGauge(ctx, repo)
			}
		}
	}()
}

func refreshSyncGauge(ctx context.Context, repo SyncCounter) {
	counts, err := repo.CountByType(ctx)
	if err != nil {
		logger.L.Error("count sync configs", "err", err)
		return
	}
	for t, n := range counts {
		SyncConfigs.WithLabelValues(t).Set(float64(n))
	}
}
