package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type counts map[string]int

func (c counts) CountByType(context.Context) (map[string]int, error) {
	if c == nil {
		return nil, errors.New("down")
	}
	return c, nil
}

func TestRefreshSyncGauge(t *testing.T) {
	refreshSyncGauge(context.Background(), counts{"tasks": 3, "time_entries": 1})
	if got := testutil.ToFloat64(SyncConfigs.WithLabelValues("tasks")); got != 3 {
		t.Fatalf("tasks gauge = %v", got)
	}
	refreshSyncGauge(context.Background(), counts(nil))
	if got := testutil.ToFloat64(SyncConfigs.WithLabelValues("tasks")); got != 3 {
		t.Fatalf("gauge must keep the last value on error, got %v", got)
	}
}
