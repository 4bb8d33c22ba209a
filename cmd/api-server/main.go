package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/beexponential/insights/internal/config"
	"github.com/beexponential/insights/internal/events"
	"github.com/beexponential/insights/internal/logger"
	"github.com/beexponential/insights/internal/scheduler"
	"github.com/beexponential/insights/internal/server"
	"github.com/beexponential/insights/pkg/crypto"
	"github.com/beexponential/insights/pkg/util"
)

func main() {
	cfgPath := flag.String("config", util.GetEnv("INSIGHTS_CONFIG", ""), "YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	openapi := flag.String("openapi", "", "write OpenAPI JSON and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.L.Error("load config", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	logger.Set(logger.New(os.Stdout, cfg.Log.Format, cfg.Log.Level))
	workers := logger.Sugared(cfg.Log.Level == "debug")
	defer func() { _ = workers.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *openapi != "" {
		// the OpenAPI document needs no database; any secret will do
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = "openapi"
		}
		s, err := server.New(ctx, server.Deps{Config: cfg})
		if err != nil {
			logger.L.Error("build api", "err", err)
			os.Exit(1)
		}
		writeOpenAPI(s, *openapi)
		return
	}

	if err := crypto.CheckEnv(); err != nil {
		logger.L.Error("crypto key", "err", err)
		os.Exit(1)
	}

	db, err := openDB(ctx, &cfg.DB)
	if err != nil {
		logger.L.Error("db open", "err", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := config.CheckPrefix(ctx, db, util.DialectFromDriver(cfg.DB.Driver), cfg.TablePrefix); err != nil {
			logger.L.Error("prefix check", "err", err)
			os.Exit(1)
		}
	}
	deps := server.Deps{Config: cfg, DB: db, Log: workers}
	if cfg.Reporting.DSN != "" && cfg.Reporting.DSN != cfg.DB.DSN {
		rdb, err := openDB(ctx, &cfg.Reporting)
		if err != nil {
			logger.L.Error("reporting db open", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		deps.Reporting = rdb
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.L.Error("redis url", "err", err)
			os.Exit(1)
		}
		deps.Redis = redis.NewClient(opts)
		defer deps.Redis.Close()
	}

	s, err := server.New(ctx, deps)
	if err != nil {
		logger.L.Error("build api", "err", err)
		os.Exit(1)
	}

	if db != nil && cfg.Scheduler.Enabled {
		sched := scheduler.New(s.Syncs, events.Default, workers.Named("scheduler"))
		go func() {
			if err := sched.Start(ctx, cfg.Scheduler.Reload); err != nil {
				logger.L.Error("start scheduler", "err", err)
			}
		}()
	}

	logger.L.Info("listening", "addr", cfg.Addr, "table_prefix", cfg.TablePrefix)
	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 5 * time.Second,
		// no WriteTimeout: widget streams stay open
		IdleTimeout: 120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L.Error("server error", "err", err)
		os.Exit(1)
	}
}

// openDB opens c, detecting the driver from a URL-style DSN and recording
// it in c. An empty DSN yields a nil handle.
func openDB(ctx context.Context, c *config.DB) (*sql.DB, error) {
	if c.DSN == "" {
		return nil, nil
	}
	driver := c.Driver
	if detected, err := util.DetectDriver(c.DSN); err == nil {
		if driver != "" && driver != detected {
			logger.L.Warn("driver mismatch, using the dsn scheme", "driver", driver, "detected", detected)
		}
		driver = detected
	}
	c.Driver = driver
	db, err := sql.Open(driver, util.OpenDSN(driver, c.DSN))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func writeOpenAPI(s *server.Server, path string) {
	data, err := json.MarshalIndent(s.API.OpenAPI(), "", "  ")
	if err != nil {
		logger.L.Error("marshal openapi", "err", err)
		os.Exit(1)
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
		logger.L.Error("write openapi", "err", err)
		os.Exit(1)
	}
}
