package server

import (
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/beexponential/insights/internal/clickup"
	"github.com/beexponential/insights/internal/config"
	"github.com/beexponential/insights/internal/session"
)

// Deps are the collaborators of the API server. Only Config is required;
// without DB the repositories report "not initialized" errors.
type Deps struct {
	Config config.Config
	// DB is the application database.
	DB *sql.DB
	// Reporting is the database widget queries run against. Defaults to DB.
	Reporting *sql.DB
	// Redis shares sessions and live events across instances when set.
	Redis *redis.Client
	// Sessions overrides the session store derived from Redis.
	Sessions session.Store
	// ClickUp overrides the ClickUp client built from Config.
	ClickUp clickup.API
	// Log receives the sync wizard traces; nil discards them.
	Log *zap.SugaredLogger
}

func (d Deps) reporting() (*sql.DB, string) {
	if d.Reporting != nil {
		drv := d.Config.Reporting.Driver
		if drv == "" {
			drv = d.Config.DB.Driver
		}
		return d.Reporting, drv
	}
	return d.DB, d.Config.DB.Driver
}

func (d Deps) sessions() session.Store {
	switch {
	case d.Sessions != nil:
		return d.Sessions
	case d.Redis != nil:
		return &session.RedisStore{RDB: d.Redis}
	}
	return session.NewMemoryStore()
}
