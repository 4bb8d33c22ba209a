// Package widgets announces widget changes so open dashboards refresh.
package widgets

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event types.
const (
	TypeUpsert = "upsert"
	TypeRemove = "remove"
)

// Event is a widget change on one dashboard.
type Event struct {
	Type        string    `json:"type"`
	Tenant      string    `json:"tenant"`
	DashboardID string    `json:"dashboard_id"`
	ID          string    `json:"id"`
	TS          time.Time `json:"ts"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, tenant, dashboardID, id string) Event {
	return Event{Type: typ, Tenant: tenant, DashboardID: dashboardID, ID: id, TS: time.Now().UTC()}
}

// Notifier publishes widget changes.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// PGChannel is the LISTEN/NOTIFY channel used by PGNotifier.
const PGChannel = "widgets_changed"

// PGNotifier sends notifications through Postgres NOTIFY.
type PGNotifier struct {
	DB *sql.DB
}

// Notify emits a database notification carrying ev as JSON.
func (n *PGNotifier) Notify(ctx context.Context, ev Event) error {
	if n == nil || n.DB == nil {
		return nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, PGChannel, string(b))
	return err
}

// Multi fans an event out to several notifiers and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
