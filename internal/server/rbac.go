package server

import (
	"context"
	"database/sql"

	"github.com/casbin/casbin/v2"

	"github.com/beexponential/insights/internal/logger"
	"github.com/beexponential/insights/internal/rbac"
)

// initEnforcer creates the Casbin enforcer and adds the policies stored in
// the database. A failed load keeps the built-in policies.
func initEnforcer(ctx context.Context, db *sql.DB, tablePrefix string) (*casbin.Enforcer, error) {
	e, err := rbac.NewEnforcer()
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := rbac.Load(ctx, db, tablePrefix, e); err != nil {
			logger.L.Error("load rbac", "err", err)
		}
	}
	return e, nil
}
