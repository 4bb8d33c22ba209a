package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/casbin/casbin/v2"
)

// Load adds the role grants and user assignments stored under the given
// table prefix to e.
func Load(ctx context.Context, db *sql.DB, prefix string, e *casbin.Enforcer) error {
	if db == nil || e == nil {
		return nil
	}
	roles := prefix + "roles"
	q := fmt.Sprintf("SELECT r.name, p.path, p.method FROM %s r JOIN %srole_policies p ON r.id=p.role_id", roles, prefix)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("load role policies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role, path, method string
		if err := rows.Scan(&role, &path, &method); err != nil {
			return err
		}
		if _, err := e.AddPolicy(role, path, method); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	q = fmt.Sprintf("SELECT ur.user_id, r.name FROM %suser_roles ur JOIN %s r ON ur.role_id=r.id", prefix, roles)
	rows2, err := db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("load user roles: %w", err)
	}
	defer rows2.Close()
	for rows2.Next() {
		var uid int64
		var role string
		if err := rows2.Scan(&uid, &role); err != nil {
			return err
		}
		if _, err := e.AddGroupingPolicy(fmt.Sprint(uid), role); err != nil {
			return err
		}
	}
	return rows2.Err()
}
