package widgetsrepo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/beexponential/insights/internal/widget"
)

// ErrNotFound is returned when no widget matches the id in the caller's tenant.
var ErrNotFound = errors.New("widget not found")

// Repo defines the widget repository interface. Every call is scoped to the
// tenant stored in ctx.
type Repo interface {
	Create(ctx context.Context, w widget.Widget) (string, error)
	UpdateConfig(ctx context.Context, id string, t widget.Type, cfg widget.Config) error
	UpdateLayout(ctx context.Context, id string, l widget.Layout) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (widget.Widget, error)
	ListByDashboard(ctx context.Context, dashboardID string) ([]widget.Widget, error)
	GetETagAndLastMod(ctx context.Context, dashboardID string) (string, time.Time, error)
}

// etag derives a validator from the widgets of a dashboard.
func etag(ws []widget.Widget) (string, time.Time) {
	var last time.Time
	h := sha256.New()
	for _, w := range ws {
		fmt.Fprintf(h, "%s@%s#", w.ID, w.UpdatedAt.UTC().Format(time.RFC3339Nano))
		if w.UpdatedAt.After(last) {
			last = w.UpdatedAt
		}
	}
	if len(ws) == 0 {
		return `""`, last
	}
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`, last
}
