package schema

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/beexponential/insights/internal/audit"
)

// AuditLog is one recorded widget change returned by
// GET /v1/widgets/{id}/audit-logs.
type AuditLog struct {
	ID         int64          `json:"id"`
	WidgetID   string         `json:"widgetId"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	BeforeJSON sql.NullString `json:"-"`
	AfterJSON  sql.NullString `json:"-"`
	QueryDiff  string         `json:"queryDiff,omitempty"`
	AppliedAt  time.Time      `json:"appliedAt"`
}

// NewAuditLog converts a stored record.
func NewAuditLog(r audit.Record) AuditLog {
	return AuditLog{
		ID:         r.ID,
		WidgetID:   r.WidgetID,
		Actor:      r.Actor,
		Action:     r.Action,
		BeforeJSON: r.BeforeJSON,
		AfterJSON:  r.AfterJSON,
		QueryDiff:  r.QueryDiff.String,
		AppliedAt:  r.AppliedAt,
	}
}

func (a AuditLog) MarshalJSON() ([]byte, error) {
	type Alias AuditLog
	return json.Marshal(&struct {
		BeforeJSON *json.RawMessage `json:"beforeJson"`
		AfterJSON  *json.RawMessage `json:"afterJson"`
		*Alias
	}{
		BeforeJSON: nullableJSON(a.BeforeJSON),
		AfterJSON:  nullableJSON(a.AfterJSON),
		Alias:      (*Alias)(&a),
	})
}

func nullableJSON(ns sql.NullString) *json.RawMessage {
	if !ns.Valid {
		return nil
	}
	raw := json.RawMessage(ns.String)
	return &raw
}

// AuditDiff compares the before and after state of one audit record.
type AuditDiff struct {
	Config  string `json:"config"`
	Query   string `json:"query"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}
