package widgetsrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/internal/widget"
)

// MySQLRepo implements Repo for MySQL databases.
type MySQLRepo struct {
	DB          *sql.DB
	TablePrefix string
}

// NewMySQLRepo creates a new MySQLRepo.
func NewMySQLRepo(db *sql.DB, prefix string) Repo { return &MySQLRepo{DB: db, TablePrefix: prefix} }

func (r *MySQLRepo) table() string {
	if r.TablePrefix == "" {
		return "bi_widgets"
	}
	return r.TablePrefix + "widgets"
}

const mysqlColumns = "id,dashboard_id,widget_type,config,layout,updated_at"

// Create inserts a widget and returns its id.
func (r *MySQLRepo) Create(ctx context.Context, w widget.Widget) (string, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	cfg, err := json.Marshal(w.Config)
	if err != nil {
		return "", err
	}
	layout, _ := json.Marshal(w.Layout)
	_, err = r.DB.ExecContext(ctx, `
        INSERT INTO `+r.table()+` (id,tenant_id,dashboard_id,widget_type,config,layout,updated_at)
        VALUES (?,?,?,?,?,?,NOW(6))
        ON DUPLICATE KEY UPDATE config=VALUES(config), layout=VALUES(layout), updated_at=NOW(6)
    `, w.ID, tenant.FromContext(ctx), w.DashboardID, string(w.Type), cfg, layout)
	if err != nil {
		return "", err
	}
	return w.ID, nil
}

func (r *MySQLRepo) update(ctx context.Context, id, set string, args ...any) error {
	args = append(args, tenant.FromContext(ctx), id)
	res, err := r.DB.ExecContext(ctx, `UPDATE `+r.table()+` SET `+set+`, updated_at=NOW(6) WHERE tenant_id=? AND id=?`, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateConfig replaces the configuration of a widget of type t.
func (r *MySQLRepo) UpdateConfig(ctx context.Context, id string, t widget.Type, cfg widget.Config) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return r.update(ctx, id, "widget_type=?, config=?", string(t), b)
}

// UpdateLayout moves or resizes a widget.
func (r *MySQLRepo) UpdateLayout(ctx context.Context, id string, l widget.Layout) error {
	b, _ := json.Marshal(l)
	return r.update(ctx, id, "layout=?", b)
}

// Delete removes a widget.
func (r *MySQLRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM `+r.table()+` WHERE tenant_id=? AND id=?`, tenant.FromContext(ctx), id)
	return err
}

// GetByID retrieves a widget by ID.
func (r *MySQLRepo) GetByID(ctx context.Context, id string) (widget.Widget, error) {
	tid := tenant.FromContext(ctx)
	var r0 dbRow
	err := r.DB.QueryRowContext(ctx, `SELECT `+mysqlColumns+` FROM `+r.table()+` WHERE tenant_id=? AND id=?`, tid, id).
		Scan(&r0.ID, &r0.DashboardID, &r0.Type, &r0.Config, &r0.Layout, &r0.UpdatedAt)
	if err == sql.ErrNoRows {
		return widget.Widget{}, ErrNotFound
	}
	if err != nil {
		return widget.Widget{}, err
	}
	return r0.widget(tid)
}

// ListByDashboard returns the widgets of a dashboard, least recently updated first.
func (r *MySQLRepo) ListByDashboard(ctx context.Context, dashboardID string) ([]widget.Widget, error) {
	tid := tenant.FromContext(ctx)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+mysqlColumns+` FROM `+r.table()+` WHERE tenant_id=? AND dashboard_id=? ORDER BY updated_at ASC`, tid, dashboardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []widget.Widget
	for rows.Next() {
		var r0 dbRow
		if err := rows.Scan(&r0.ID, &r0.DashboardID, &r0.Type, &r0.Config, &r0.Layout, &r0.UpdatedAt); err != nil {
			return nil, err
		}
		w, err := r0.widget(tid)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetETagAndLastMod returns an ETag and last modified timestamp for the
// widgets of a dashboard.
func (r *MySQLRepo) GetETagAndLastMod(ctx context.Context, dashboardID string) (string, time.Time, error) {
	ws, err := r.ListByDashboard(ctx, dashboardID)
	if err != nil {
		return "", time.Time{}, err
	}
	tag, last := etag(ws)
	return tag, last, nil
}
