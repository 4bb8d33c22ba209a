package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/faciam-dev/goquent/orm/query"

	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/internal/util"
)

// ErrNotFound is returned for an unknown audit record.
var ErrNotFound = errors.New("audit record not found")

// Record represents a single audit log entry in the database.
type Record struct {
	ID         int64          `db:"id" json:"id"`
	WidgetID   string         `db:"widget_id" json:"widgetId"`
	Actor      string         `db:"actor" json:"actor"`
	Action     string         `db:"action" json:"action"`
	BeforeJSON sql.NullString `db:"before_json" json:"-"`
	AfterJSON  sql.NullString `db:"after_json" json:"-"`
	QueryDiff  sql.NullString `db:"query_diff" json:"-"`
	AppliedAt  time.Time      `db:"applied_at" json:"appliedAt"`
}

// Repo provides access to audit log records.
type Repo struct {
	DB          *sql.DB
	Dialect     ormdriver.Dialect
	TablePrefix string
}

var recordColumns = []string{"id", "widget_id", "actor", "action", "before_json", "after_json", "query_diff", "applied_at"}

func (r *Repo) q(ctx context.Context) *query.Query {
	tbl := "bi_audit_logs"
	if r.TablePrefix != "" {
		tbl = r.TablePrefix + "audit_logs"
	}
	return query.New(r.DB, tbl, r.Dialect).
		WithContext(ctx).
		Select(recordColumns...).
		Where("tenant_id", tenant.FromContext(ctx))
}

// ListByWidget returns the newest records of a widget.
func (r *Repo) ListByWidget(ctx context.Context, widgetID string, limit int) ([]Record, error) {
	if r == nil || r.DB == nil {
		return nil, sql.ErrConnDone
	}
	var out []Record
	err := r.q(ctx).
		Where("widget_id", widgetID).
		OrderBy("id", "desc").
		Limit(util.SanitizeLimit(limit)).
		Get(&out)
	return out, err
}

// FindByID returns a record by its ID.
func (r *Repo) FindByID(ctx context.Context, id int64) (Record, error) {
	if r == nil || r.DB == nil {
		return Record{}, sql.ErrConnDone
	}
	var out []Record
	if err := r.q(ctx).Where("id", id).Limit(1).Get(&out); err != nil {
		return Record{}, err
	}
	if len(out) == 0 {
		return Record{}, ErrNotFound
	}
	return out[0], nil
}
