package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/faciam-dev/goquent/orm/query"
	"gopkg.in/yaml.v3"

	pkgutil "github.com/beexponential/insights/pkg/util"
)

// Config holds global configuration values.
type Config struct {
	TablePrefix    string        `yaml:"table_prefix"`
	Addr           string        `yaml:"addr"`
	DB             DB            `yaml:"db"`
	Reporting      DB            `yaml:"reporting"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	RedisURL       string        `yaml:"redis_url"`
	ClickUpBaseURL string        `yaml:"clickup_base_url"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	EventsConfig   string        `yaml:"events_config"`
	Log            Log           `yaml:"log"`
	Preview        Preview       `yaml:"preview"`
	Scheduler      Scheduler     `yaml:"scheduler"`
	DraftTTL       time.Duration `yaml:"draft_ttl"`
}

// DB describes one database connection.
type DB struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Log struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type Preview struct {
	MaxRows  int           `yaml:"max_rows"`
	ReadOnly bool          `yaml:"read_only"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Scheduler struct {
	Enabled bool          `yaml:"enabled"`
	Reload  time.Duration `yaml:"reload"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		TablePrefix:    "bi_",
		Addr:           ":8080",
		DB:             DB{Driver: "postgres"},
		TokenTTL:       15 * time.Minute,
		ClickUpBaseURL: "https://api.clickup.com/api/v2",
		AllowedOrigins: []string{"http://localhost:5173"},
		Log:            Log{Format: "text", Level: "info"},
		Preview:        Preview{MaxRows: 500, ReadOnly: true, Timeout: 30 * time.Second},
		Scheduler:      Scheduler{Enabled: true, Reload: 5 * time.Minute},
		DraftTTL:       30 * time.Minute,
	}
}

// Load reads path (when non-empty) over the defaults and applies
// environment overrides.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, err
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	c.applyEnv()
	if c.Reporting.DSN == "" {
		c.Reporting = c.DB
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.TablePrefix = pkgutil.GetEnv("TABLE_PREFIX", c.TablePrefix)
	c.DB.DSN = pkgutil.GetEnv("DATABASE_URL", c.DB.DSN)
	c.Reporting.DSN = pkgutil.GetEnv("REPORTING_DATABASE_URL", c.Reporting.DSN)
	c.JWTSecret = pkgutil.GetEnv("JWT_SECRET", c.JWTSecret)
	c.RedisURL = pkgutil.GetEnv("REDIS_URL", c.RedisURL)
	c.ClickUpBaseURL = pkgutil.GetEnv("CLICKUP_BASE_URL", c.ClickUpBaseURL)
	c.EventsConfig = pkgutil.GetEnv("INSIGHTS_EVENTS_CONFIG", c.EventsConfig)
	c.Log.Level = pkgutil.GetEnv("LOG_LEVEL", c.Log.Level)
	c.AllowedOrigins = pkgutil.GetEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.Preview.MaxRows = pkgutil.GetEnvInt("PREVIEW_MAX_ROWS", c.Preview.MaxRows)
	c.DraftTTL = pkgutil.GetEnvDuration("DRAFT_TTL", c.DraftTTL)
}

// T prefixes the given table name with the configured prefix.
func (c *Config) T(name string) string {
	return c.TablePrefix + name
}

// CheckPrefix verifies that tables with the configured prefix exist in the
// connected database. It returns an error if none are found.
func CheckPrefix(ctx context.Context, db *sql.DB, dialect ormdriver.Dialect, prefix string) error {
	q := query.New(db, "information_schema.tables", dialect).
		SelectRaw("COUNT(*) AS cnt").
		WhereRaw("table_name LIKE :p", map[string]any{"p": prefix + "%"}).
		WithContext(ctx)

	var res struct{ Cnt int }
	if err := q.First(&res); err != nil {
		return err
	}
	if res.Cnt == 0 {
		return fmt.Errorf("no tables with prefix %q found; run migrations or set TABLE_PREFIX correctly", prefix)
	}
	return nil
}
