package auth

import (
	"context"
	"database/sql"
	"fmt"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/faciam-dev/goquent/orm/query"
)

// User represents an application user.
type User struct {
	ID           string `db:"id"`
	TenantID     string `db:"tenant_id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	Department   string `db:"department"`
}

// UserRepo provides access to the users table.
type UserRepo struct {
	DB          *sql.DB
	Dialect     ormdriver.Dialect
	TablePrefix string
}

func (r *UserRepo) table() string {
	if r.TablePrefix == "" {
		return "bi_users"
	}
	return r.TablePrefix + "users"
}

// GetByUsername returns a user of a tenant by name, or nil when unknown.
func (r *UserRepo) GetByUsername(ctx context.Context, tenantID, name string) (*User, error) {
	if r == nil || r.DB == nil {
		return nil, fmt.Errorf("repo not initialized")
	}
	var us []User
	err := query.New(r.DB, r.table(), r.Dialect).
		Select("id", "tenant_id", "username", "password_hash", "role", "department").
		Where("tenant_id", tenantID).
		Where("username", name).
		Limit(1).
		WithContext(ctx).
		Get(&us)
	if err != nil {
		return nil, err
	}
	if len(us) == 0 {
		return nil, nil
	}
	return &us[0], nil
}
