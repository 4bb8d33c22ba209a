// Package syncrepo persists ClickUp sync configurations.
package syncrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/faciam-dev/goquent/orm/query"
	"github.com/google/uuid"

	"github.com/beexponential/insights/internal/events"
	"github.com/beexponential/insights/internal/syncwizard"
	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/pkg/crypto"
	"github.com/beexponential/insights/pkg/metrics"
)

// ErrNotFound is returned when no sync configuration matches.
var ErrNotFound = errors.New("sync config not found")

// Config is a stored sync configuration.
type Config struct {
	ID        string
	TenantID  string
	SyncType  syncwizard.SyncType
	Cron      string
	Enabled   bool
	Payload   syncwizard.Payload
	UpdatedAt time.Time
}

// Repo stores sync configurations. The ClickUp token is sealed with
// pkg/crypto and kept out of the payload column.
type Repo struct {
	DB          *sql.DB
	Dialect     ormdriver.Dialect
	TablePrefix string
	Events      events.Emitter
}

func (r *Repo) prefix() string {
	if r.TablePrefix != "" {
		return r.TablePrefix
	}
	return "bi_"
}

func (r *Repo) table() string { return r.prefix() + "sync_configs" }

func (r *Repo) q(ctx context.Context) *query.Query {
	return query.New(r.DB, r.table(), r.Dialect).WithContext(ctx)
}

var columns = []string{"id", "tenant_id", "sync_type", "cron", "enabled", "payload", "token_enc", "updated_at"}

type row struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	SyncType  string    `db:"sync_type"`
	Cron      string    `db:"cron"`
	Enabled   bool      `db:"enabled"`
	Payload   []byte    `db:"payload"`
	TokenEnc  string    `db:"token_enc"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r0 row) config() (Config, error) {
	c := Config{
		ID:        r0.ID,
		TenantID:  r0.TenantID,
		SyncType:  syncwizard.SyncType(r0.SyncType),
		Cron:      r0.Cron,
		Enabled:   r0.Enabled,
		UpdatedAt: r0.UpdatedAt,
	}
	if err := json.Unmarshal(r0.Payload, &c.Payload); err != nil {
		return Config{}, fmt.Errorf("sync %s payload: %w", r0.ID, err)
	}
	if r0.TokenEnc != "" {
		tok, err := crypto.DecryptString(r0.TokenEnc)
		if err != nil {
			return Config{}, fmt.Errorf("sync %s token: %w", r0.ID, err)
		}
		c.Payload.SyncConfig.APIToken = tok
	}
	return c, nil
}

// Save stores the payload for the caller's tenant and requests the first
// run. It implements syncwizard.Store.
func (r *Repo) Save(ctx context.Context, p syncwizard.Payload) (string, error) {
	if r == nil || r.DB == nil {
		return "", fmt.Errorf("repo not initialized")
	}
	tid, err := tenant.Require(ctx)
	if err != nil {
		return "", err
	}
	sealed, err := crypto.EncryptString(p.SyncConfig.APIToken)
	if err != nil {
		return "", fmt.Errorf("seal token: %w", err)
	}
	stored := p
	stored.SyncConfig.APIToken = ""
	body, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	data := map[string]any{
		"id":         id,
		"tenant_id":  tid,
		"sync_type":  string(p.SyncConfig.SyncType),
		"cron":       p.Cron,
		"enabled":    true,
		"payload":    body,
		"token_enc":  sealed,
		"created_at": now,
		"updated_at": now,
	}
	if _, err := r.q(ctx).Upsert([]map[string]any{data}, []string{"id"}, []string{"cron", "payload", "token_enc", "updated_at"}); err != nil {
		return "", fmt.Errorf("save sync config: %w", err)
	}
	r.emit(ctx, events.SyncSaved, tid, id, p.SyncConfig.SyncType)
	r.emit(ctx, events.SyncRunRequested, tid, id, p.SyncConfig.SyncType)
	metrics.SyncRuns.WithLabelValues(string(p.SyncConfig.SyncType), "requested").Inc()
	return id, nil
}

// RunRequest is the data of a sync.run_requested event.
type RunRequest struct {
	SyncID   string              `json:"sync_id"`
	SyncType syncwizard.SyncType `json:"sync_type"`
}

func (r *Repo) emit(ctx context.Context, name, tid, id string, t syncwizard.SyncType) {
	if r.Events == nil {
		return
	}
	r.Events.Dispatch(ctx, events.New(name, tid, RunRequest{SyncID: id, SyncType: t}))
}

// Get returns one configuration of the caller's tenant.
func (r *Repo) Get(ctx context.Context, id string) (Config, error) {
	if r == nil || r.DB == nil {
		return Config{}, fmt.Errorf("repo not initialized")
	}
	var rs []row
	err := r.q(ctx).
		Select(columns...).
		Where("tenant_id", tenant.FromContext(ctx)).
		Where("id", id).
		Limit(1).
		Get(&rs)
	if err != nil {
		return Config{}, err
	}
	if len(rs) == 0 {
		return Config{}, ErrNotFound
	}
	return rs[0].config()
}

// List returns the configurations of the caller's tenant, newest first.
func (r *Repo) List(ctx context.Context) ([]Config, error) {
	if r == nil || r.DB == nil {
		return nil, fmt.Errorf("repo not initialized")
	}
	var rs []row
	err := r.q(ctx).
		Select(columns...).
		Where("tenant_id", tenant.FromContext(ctx)).
		OrderBy("updated_at", "desc").
		Get(&rs)
	if err != nil {
		return nil, err
	}
	return toConfigs(rs)
}

// ListEnabled returns enabled configurations across tenants.
func (r *Repo) ListEnabled(ctx context.Context) ([]Config, error) {
	if r == nil || r.DB == nil {
		return nil, fmt.Errorf("repo not initialized")
	}
	var rs []row
	err := r.q(ctx).
		Select(columns...).
		Where("enabled", true).
		OrderBy("id", "asc").
		Get(&rs)
	if err != nil {
		return nil, err
	}
	return toConfigs(rs)
}

func toConfigs(rs []row) ([]Config, error) {
	out := make([]Config, 0, len(rs))
	for _, r0 := range rs {
		c, err := r0.config()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SetEnabled pauses or resumes a configuration.
func (r *Repo) SetEnabled(ctx context.Context, id string, on bool) error {
	if r == nil || r.DB == nil {
		return fmt.Errorf("repo not initialized")
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	_, err := r.q(ctx).
		Where("tenant_id", tenant.FromContext(ctx)).
		Where("id", id).
		Update(map[string]any{"enabled": on, "updated_at": time.Now().UTC()})
	return err
}

// RequestRun asks the worker for an immediate run of a configuration.
func (r *Repo) RequestRun(ctx context.Context, id string) error {
	c, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	r.emit(ctx, events.SyncRunRequested, c.TenantID, c.ID, c.SyncType)
	metrics.SyncRuns.WithLabelValues(string(c.SyncType), "manual").Inc()
	return nil
}

// CountByType counts enabled configurations per sync type.
func (r *Repo) CountByType(ctx context.Context) (map[string]int, error) {
	if r == nil || r.DB == nil {
		return nil, fmt.Errorf("repo not initialized")
	}
	q := r.q(ctx).
		Select("sync_type").
		SelectRaw("COUNT(*) as cnt").
		Where("enabled", true).
		GroupBy("sync_type")

	type count struct {
		SyncType string `db:"sync_type"`
		Cnt      int    `db:"cnt"`
	}
	var rows []count
	if err := q.Get(&rows); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, c := range rows {
		out[c.SyncType] = c.Cnt
	}
	return out, nil
}
