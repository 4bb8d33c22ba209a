// Package audit records widget changes with a diff of the generated query.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/faciam-dev/goquent/orm/query"

	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/internal/widget"
	"github.com/beexponential/insights/pkg/metrics"
)

// Actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Recorder writes audit logs to the database.
type Recorder struct {
	DB          *sql.DB
	Dialect     ormdriver.Dialect
	TablePrefix string
}

func (r *Recorder) table() string {
	if r.TablePrefix == "" {
		return "bi_audit_logs"
	}
	return r.TablePrefix + "audit_logs"
}

// Write records a widget change. old is nil for creations and new is nil
// for deletions.
func (r *Recorder) Write(ctx context.Context, actor string, old, new *widget.Widget) error {
	if r == nil || r.DB == nil {
		return nil
	}
	action := ActionUpdate
	switch {
	case old == nil && new != nil:
		action = ActionCreate
	case old != nil && new == nil:
		action = ActionDelete
	case old == nil && new == nil:
		return fmt.Errorf("audit: nothing to record")
	}
	data := map[string]any{
		"tenant_id":  tenant.FromContext(ctx),
		"actor":      actor,
		"action":     action,
		"applied_at": time.Now().UTC(),
	}
	var beforeQ, afterQ string
	if old != nil {
		b, err := json.Marshal(old.Config)
		if err != nil {
			return err
		}
		data["widget_id"] = old.ID
		data["before_json"] = string(b)
		beforeQ = old.Config.Query
	}
	if new != nil {
		b, err := json.Marshal(new.Config)
		if err != nil {
			return err
		}
		data["widget_id"] = new.ID
		data["after_json"] = string(b)
		afterQ = new.Config.Query
	}
	if beforeQ != afterQ {
		d, _, _ := QueryDiff(beforeQ, afterQ)
		data["query_diff"] = d
	}
	if _, err := query.New(r.DB, r.table(), r.Dialect).WithContext(ctx).InsertGetId(data); err != nil {
		metrics.AuditErrors.WithLabelValues(action).Inc()
		return err
	}
	metrics.AuditEvents.WithLabelValues(action).Inc()
	return nil
}
