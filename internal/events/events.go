// Package events fans domain events out to external sinks.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/google/uuid"
)

// Event names.
const (
	SyncRunRequested = "sync.run_requested"
	SyncSaved        = "sync.saved"
	WidgetCreated    = "widget.created"
	WidgetUpdated    = "widget.updated"
	WidgetDeleted    = "widget.deleted"
)

// Default is the global dispatcher used by Emit.
var Default *Dispatcher

// Event represents a notification payload.
type Event struct {
	Name   string    `json:"name"`
	Tenant string    `json:"tenant,omitempty"`
	Time   time.Time `json:"time"`
	Data   any       `json:"data"`
	ID     string    `json:"id"`
}

// New stamps an event with an id and the current time.
func New(name, tenant string, data any) Event {
	return Event{Name: name, Tenant: tenant, Time: time.Now().UTC(), Data: data, ID: uuid.NewString()}
}

// Sink publishes events.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// Emitter accepts events for asynchronous delivery.
type Emitter interface {
	Dispatch(ctx context.Context, e Event)
}

// DLQ stores failed events.
type DLQ interface {
	Store(ctx context.Context, e Event, attempts int, lastErr string) error
}

// Dispatcher broadcasts events to multiple sinks with retries.
type Dispatcher struct {
	sinks        []Sink
	maxAttempts  int
	initialDelay time.Duration
	dlq          DLQ
}

// Config provides dispatcher settings.
type Config struct {
	Sinks struct {
		Webhook WebhookConfig `yaml:"webhook"`
		Redis   RedisConfig   `yaml:"redis"`
		Kafka   KafkaConfig   `yaml:"kafka"`
	} `yaml:"sinks"`
	Retry RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// NewDispatcher creates a dispatcher from sinks and retry config.
func NewDispatcher(cfg Config, dlq DLQ, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{maxAttempts: 3, initialDelay: time.Second}
	if cfg.Retry.MaxAttempts > 0 {
		d.maxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialDelay > 0 {
		d.initialDelay = cfg.Retry.InitialDelay
	}
	d.sinks = append(d.sinks, sinks...)
	d.dlq = dlq
	return d
}

// Emit sends an event using the global dispatcher if set.
func Emit(ctx context.Context, e Event) {
	if Default != nil {
		Default.Dispatch(ctx, e)
	}
}

// Dispatch sends the event to all sinks asynchronously. Delivery outlives
// the request: cancellation of ctx is ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	if d == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, s := range d.sinks {
		go d.retrySend(ctx, s, e)
	}
}

// DispatchSync delivers the event to every sink and waits for the outcome.
func (d *Dispatcher) DispatchSync(ctx context.Context, e Event) {
	if d == nil {
		return
	}
	for _, s := range d.sinks {
		d.retrySend(ctx, s, e)
	}
}

func (d *Dispatcher) retrySend(ctx context.Context, s Sink, e Event) {
	delay := d.initialDelay
	var err error
	for i := 1; i <= d.maxAttempts; i++ {
		if err = s.Emit(ctx, e); err == nil {
			return
		}
		if i == d.maxAttempts {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			err = ctx.Err()
			i = d.maxAttempts
		case <-t.C:
		}
		delay *= 2
	}
	if d.dlq != nil {
		_ = d.dlq.Store(ctx, e, d.maxAttempts, err.Error())
	}
}

// SQLDLQ stores failed events in the database.
type SQLDLQ struct {
	DB          *sql.DB
	Dialect     ormdriver.Dialect
	TablePrefix string
}

// Store inserts the failed event.
func (q *SQLDLQ) Store(ctx context.Context, e Event, attempts int, lastErr string) error {
	if q == nil || q.DB == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ph := func(int) string { return "?" }
	if q.Dialect != nil {
		ph = q.Dialect.Placeholder
	}
	tbl := q.TablePrefix + "events_failed"
	stmt := fmt.Sprintf("INSERT INTO %s(name, payload, attempts, last_error) VALUES (%s, %s, %s, %s)", tbl, ph(1), ph(2), ph(3), ph(4))
	_, err = q.DB.ExecContext(ctx, stmt, e.Name, string(data), attempts, lastErr)
	return err
}
