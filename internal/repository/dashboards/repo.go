// Package dashboardsrepo stores dashboards and scopes them by department.
package dashboardsrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/faciam-dev/goquent/orm/query"
	"github.com/google/uuid"

	"github.com/beexponential/insights/internal/tenant"
)

// ErrNotFound is returned when the dashboard does not exist or the viewer
// may not see it.
var ErrNotFound = errors.New("dashboard not found")

// ErrInvalid is returned by Create for a dashboard without name or department.
var ErrInvalid = errors.New("dashboard name and department are required")

// Dashboard groups widgets on a grid.
type Dashboard struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Department  string    `db:"department" json:"department"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Viewer is who is asking. Admins see every dashboard of the tenant;
// everyone else sees their department's dashboards.
type Viewer struct {
	Department string
	Admin      bool
}

// Repo is backed by goquent.
type Repo struct {
	DB          *sql.DB
	Dialect     ormdriver.Dialect
	TablePrefix string
}

func (r *Repo) table() string {
	if r.TablePrefix == "" {
		return "bi_dashboards"
	}
	return r.TablePrefix + "dashboards"
}

var columns = []string{"id", "name", "department", "description", "created_at"}

func (r *Repo) scoped(ctx context.Context, v Viewer) *query.Query {
	q := query.New(r.DB, r.table(), r.Dialect).
		WithContext(ctx).
		Where("tenant_id", tenant.FromContext(ctx))
	if !v.Admin {
		q = q.Where("department", v.Department)
	}
	return q
}

// List returns the dashboards visible to v ordered by name.
func (r *Repo) List(ctx context.Context, v Viewer) ([]Dashboard, error) {
	if r == nil || r.DB == nil {
		return nil, fmt.Errorf("repo not initialized")
	}
	var out []Dashboard
	if err := r.scoped(ctx, v).Select(columns...).OrderBy("name", "asc").Get(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one dashboard visible to v.
func (r *Repo) Get(ctx context.Context, v Viewer, id string) (Dashboard, error) {
	if r == nil || r.DB == nil {
		return Dashboard{}, fmt.Errorf("repo not initialized")
	}
	var out []Dashboard
	if err := r.scoped(ctx, v).Select(columns...).Where("id", id).Limit(1).Get(&out); err != nil {
		return Dashboard{}, err
	}
	if len(out) == 0 {
		return Dashboard{}, ErrNotFound
	}
	return out[0], nil
}

// Create stores d in the caller's tenant. An empty department is rejected.
func (r *Repo) Create(ctx context.Context, d Dashboard) (Dashboard, error) {
	if r == nil || r.DB == nil {
		return Dashboard{}, fmt.Errorf("repo not initialized")
	}
	tid, err := tenant.Require(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" || d.Department == "" {
		return Dashboard{}, ErrInvalid
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = time.Now().UTC()
	data := map[string]any{
		"id":          d.ID,
		"tenant_id":   tid,
		"name":        d.Name,
		"department":  d.Department,
		"description": d.Description,
		"created_at":  d.CreatedAt,
	}
	if _, err := query.New(r.DB, r.table(), r.Dialect).WithContext(ctx).Upsert([]map[string]any{data}, []string{"id"}, []string{"name", "department", "description"}); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// Delete removes a dashboard. Only admins may delete.
func (r *Repo) Delete(ctx context.Context, v Viewer, id string) error {
	if r == nil || r.DB == nil {
		return fmt.Errorf("repo not initialized")
	}
	if _, err := r.Get(ctx, v, id); err != nil {
		return err
	}
	_, err := r.scoped(ctx, v).Where("id", id).Delete()
	return err
}
