package widgetsrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/faciam-dev/goquent/orm/query"
	"github.com/google/uuid"

	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/internal/widget"
)

// PGRepo implements Repo for PostgreSQL databases using goquent ORM.
type PGRepo struct {
	DB          *sql.DB
	TablePrefix string
}

// NewPGRepo creates a new PGRepo.
func NewPGRepo(db *sql.DB, prefix string) Repo { return &PGRepo{DB: db, TablePrefix: prefix} }

func (r *PGRepo) table() string {
	if r.TablePrefix == "" {
		return "bi_widgets"
	}
	return r.TablePrefix + "widgets"
}

func (r *PGRepo) q(ctx context.Context) *query.Query {
	return query.New(r.DB, r.table(), ormdriver.PostgresDialect{}).WithContext(ctx)
}

var widgetColumns = []string{"id", "dashboard_id", "widget_type", "config", "layout", "updated_at"}

type dbRow struct {
	ID          string    `db:"id"`
	DashboardID string    `db:"dashboard_id"`
	Type        string    `db:"widget_type"`
	Config      []byte    `db:"config"`
	Layout      []byte    `db:"layout"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r0 dbRow) widget(tid string) (widget.Widget, error) {
	w := widget.Widget{
		ID:          r0.ID,
		TenantID:    tid,
		DashboardID: r0.DashboardID,
		Type:        widget.Type(r0.Type),
		Layout:      widget.DefaultLayout,
		UpdatedAt:   r0.UpdatedAt,
	}
	if len(r0.Layout) > 0 {
		if err := json.Unmarshal(r0.Layout, &w.Layout); err != nil {
			return widget.Widget{}, fmt.Errorf("widget %s layout: %w", r0.ID, err)
		}
	}
	if !w.Type.Valid() {
		// kept so the dashboard can render a placeholder
		return w, nil
	}
	cfg, err := widget.DecodeConfig(w.Type, r0.Config)
	if err != nil {
		return widget.Widget{}, fmt.Errorf("widget %s: %w", r0.ID, err)
	}
	w.Config = cfg
	return w, nil
}

// Create inserts a widget and returns its id.
func (r *PGRepo) Create(ctx context.Context, w widget.Widget) (string, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	cfg, err := json.Marshal(w.Config)
	if err != nil {
		return "", err
	}
	layout, _ := json.Marshal(w.Layout)
	data := map[string]any{
		"id":           w.ID,
		"tenant_id":    tenant.FromContext(ctx),
		"dashboard_id": w.DashboardID,
		"widget_type":  string(w.Type),
		"config":       cfg,
		"layout":       layout,
		"updated_at":   time.Now(),
	}
	if _, err := r.q(ctx).Upsert([]map[string]any{data}, []string{"id"}, []string{"config", "layout", "updated_at"}); err != nil {
		return "", err
	}
	return w.ID, nil
}

// UpdateConfig replaces the configuration of a widget of type t.
func (r *PGRepo) UpdateConfig(ctx context.Context, id string, t widget.Type, cfg widget.Config) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	_, err = r.q(ctx).
		Where("tenant_id", tenant.FromContext(ctx)).
		Where("id", id).
		Update(map[string]any{"widget_type": string(t), "config": b, "updated_at": time.Now()})
	return err
}

// UpdateLayout moves or resizes a widget.
func (r *PGRepo) UpdateLayout(ctx context.Context, id string, l widget.Layout) error {
	b, _ := json.Marshal(l)
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	_, err := r.q(ctx).
		Where("tenant_id", tenant.FromContext(ctx)).
		Where("id", id).
		Update(map[string]any{"layout": b, "updated_at": time.Now()})
	return err
}

// Delete removes a widget.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q(ctx).Where("tenant_id", tenant.FromContext(ctx)).Where("id", id).Delete()
	return err
}

// GetByID retrieves a widget by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (widget.Widget, error) {
	tid := tenant.FromContext(ctx)
	var rs []dbRow
	err := r.q(ctx).
		Select(widgetColumns...).
		Where("tenant_id", tid).
		Where("id", id).
		Limit(1).
		Get(&rs)
	if err != nil {
		return widget.Widget{}, err
	}
	if len(rs) == 0 {
		return widget.Widget{}, ErrNotFound
	}
	return rs[0].widget(tid)
}

// ListByDashboard returns the widgets of a dashboard, least recently updated first.
func (r *PGRepo) ListByDashboard(ctx context.Context, dashboardID string) ([]widget.Widget, error) {
	tid := tenant.FromContext(ctx)
	var rs []dbRow
	err := r.q(ctx).
		Select(widgetColumns...).
		Where("tenant_id", tid).
		Where("dashboard_id", dashboardID).
		OrderBy("updated_at", "asc").
		Get(&rs)
	if err != nil {
		return nil, err
	}
	out := make([]widget.Widget, 0, len(rs))
	for _, r0 := range rs {
		w, err := r0.widget(tid)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// GetETagAndLastMod returns an ETag and last modified timestamp for the
// widgets of a dashboard.
func (r *PGRepo) GetETagAndLastMod(ctx context.Context, dashboardID string) (string, time.Time, error) {
	ws, err := r.ListByDashboard(ctx, dashboardID)
	if err != nil {
		return "", time.Time{}, err
	}
	tag, last := etag(ws)
	return tag, last, nil
}
