package middleware

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/pkg/metrics"
)

// MetricsMW records API request metrics.
func MetricsMW(ctx huma.Context, next func(huma.Context)) {
	r, w := humachi.Unwrap(ctx)
	m := httpsnoop.CaptureMetricsFn(w, func(w http.ResponseWriter) {
		next(humachi.NewContext(ctx.Operation(), r, w))
	})
	// the route template keeps label cardinality bounded
	path := ctx.Operation().Path
	if path == "" {
		path = normalizePath(r.URL.Path)
	}
	tid := tenant.FromContext(r.Context())
	labels := prometheus.Labels{"tenant": tid, "method": r.Method, "path": path, "status": strconv.Itoa(m.Code)}
	metrics.APIRequests.With(labels).Inc()
	metrics.APILatency.WithLabelValues(tid, r.Method, path).Observe(m.Duration.Seconds())
}

var idRe = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}|\d+`)

func normalizePath(path string) string {
	return idRe.ReplaceAllString(path, ":id")
}
