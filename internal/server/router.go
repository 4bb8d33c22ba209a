package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/beexponential/insights/internal/api/handler"
	"github.com/beexponential/insights/internal/audit"
	"github.com/beexponential/insights/internal/auth"
	"github.com/beexponential/insights/internal/catalog"
	"github.com/beexponential/insights/internal/clickup"
	"github.com/beexponential/insights/internal/events"
	"github.com/beexponential/insights/internal/live"
	"github.com/beexponential/insights/internal/preview"
	dashboardsrepo "github.com/beexponential/insights/internal/repository/dashboards"
	syncrepo "github.com/beexponential/insights/internal/repository/syncs"
	widgetsrepo "github.com/beexponential/insights/internal/repository/widgets"
	"github.com/beexponential/insights/internal/server/middleware"
	widgetsvc "github.com/beexponential/insights/internal/service/widgets"
	"github.com/beexponential/insights/pkg/metrics"
	"github.com/beexponential/insights/pkg/util"
)

// catalogTTL bounds how stale the table and column lists may get.
const catalogTTL = 5 * time.Minute

// Server is the wired HTTP API.
type Server struct {
	API   huma.API
	Hub   *live.Hub
	Syncs *syncrepo.Repo
}

// Handler serves the API, the widget stream and /metrics.
func (s *Server) Handler() http.Handler { return s.API.Adapter() }

// New wires the API. Background work (draft sweeps, live relays, gauges)
// stops when ctx is done.
func New(ctx context.Context, d Deps) (*Server, error) {
	cfg := d.Config
	secret, err := jwtSecret(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	dialect := util.DialectFromDriver(cfg.DB.Driver)
	prefix := cfg.TablePrefix

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.TenantHeader, "If-None-Match", "If-Modified-Since"},
		ExposedHeaders:   []string{"ETag", "Last-Modified"},
		AllowCredentials: true,
	}))

	enf, err := initEnforcer(ctx, d.DB, prefix)
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}
	if err := initEvents(cfg.EventsConfig, d.DB, dialect, prefix); err != nil {
		return nil, fmt.Errorf("events config: %w", err)
	}

	api := humachi.New(r, huma.DefaultConfig("Insights API", "1.0.0"))
	jwtHandler := auth.NewJWT(secret, cfg.TokenTTL)
	sessions := d.sessions()
	authH := &auth.Handler{
		Repo:     &auth.UserRepo{DB: d.DB, Dialect: dialect, TablePrefix: prefix},
		JWT:      jwtHandler,
		Sessions: sessions,
	}

	// Tenant from header first so login can scope the user lookup.
	api.UseMiddleware(middleware.ExtractTenant(api))
	auth.Register(api, authH)

	api.UseMiddleware(auth.Middleware(api, jwtHandler, sessions))
	api.UseMiddleware(middleware.RequireTenant(api))
	auth.RegisterSession(api, authH)
	authz := middleware.NewAuthorizer(enf, auth.Roles)
	handler.RegisterAuth(api, &handler.AuthHandler{Authz: authz})

	api.UseMiddleware(authz.Middleware(api))

	syncs := &syncrepo.Repo{DB: d.DB, Dialect: dialect, TablePrefix: prefix, Events: events.Default}
	var gauge metrics.SyncCounter
	if d.DB != nil {
		gauge = syncs
	}
	setupMetrics(ctx, api, r, gauge)

	hub := live.NewHub()
	var wrepo widgetsrepo.Repo
	if cfg.DB.Driver == "mysql" {
		wrepo = widgetsrepo.NewMySQLRepo(d.DB, prefix)
	} else {
		wrepo = widgetsrepo.NewPGRepo(d.DB, prefix)
	}
	svc := &widgetsvc.Service{
		Repo:     wrepo,
		Audit:    &audit.Recorder{DB: d.DB, Dialect: dialect, TablePrefix: prefix},
		Notifier: initLive(ctx, d, hub),
		Events:   events.Default,
	}
	dashboards := &dashboardsrepo.Repo{DB: d.DB, Dialect: dialect, TablePrefix: prefix}

	reportDB, reportDriver := d.reporting()
	cat := catalog.NewCached(&catalog.SQLCatalog{
		DB:          reportDB,
		Dialect:     util.DialectFromDriver(reportDriver),
		TablePrefix: prefix,
	}, catalogTTL)
	var querier preview.Querier
	if reportDB != nil {
		querier = &preview.Executor{DB: reportDB, MaxRows: cfg.Preview.MaxRows, ReadOnly: cfg.Preview.ReadOnly}
	}

	cu := d.ClickUp
	if cu == nil {
		cu = clickup.New(cfg.ClickUpBaseURL)
	}

	handler.RegisterDashboards(api, &handler.DashboardHandler{Repo: dashboards})
	handler.RegisterCatalog(api, &handler.CatalogHandler{Catalog: cat})
	wh := &handler.WidgetHandler{
		Repo:       wrepo,
		Writer:     svc,
		Dashboards: dashboards,
		Hub:        hub,
		Audit:      &audit.Repo{DB: d.DB, Dialect: dialect, TablePrefix: prefix},
	}
	handler.RegisterWidget(api, wh)
	dialogs := handler.NewDialogHandler(handler.DialogHandler{
		Store:          svc,
		Widgets:        wrepo,
		Dashboards:     dashboards,
		Fields:         cat,
		Preview:        querier,
		PreviewTimeout: cfg.Preview.Timeout,
	}, cfg.DraftTTL)
	handler.RegisterDialogs(api, dialogs)
	wizards := handler.NewSyncWizardHandler(handler.SyncWizardHandler{
		API:    cu,
		Store:  syncs,
		Logger: d.Log,
	}, cfg.DraftTTL)
	handler.RegisterSyncWizard(api, wizards)
	handler.RegisterSyncs(api, &handler.SyncHandler{Repo: syncs})

	// EventSource cannot send headers, so the stream authenticates on its own.
	r.With(auth.HTTPMiddleware(jwtHandler, sessions)).Get("/v1/dashboards/{id}/widgets/stream", wh.Stream)

	sweep := time.Minute
	if cfg.DraftTTL > 0 && cfg.DraftTTL < sweep {
		sweep = cfg.DraftTTL
	}
	go dialogs.Drafts.Run(ctx, sweep)
	go wizards.Drafts.Run(ctx, sweep)

	return &Server{API: api, Hub: hub, Syncs: syncs}, nil
}
