package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	humago "github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/beexponential/insights/internal/api/schema"
	"github.com/beexponential/insights/internal/audit"
	"github.com/beexponential/insights/internal/auth"
	"github.com/beexponential/insights/internal/live"
	"github.com/beexponential/insights/internal/logger"
	dashboardsrepo "github.com/beexponential/insights/internal/repository/dashboards"
	widgetsrepo "github.com/beexponential/insights/internal/repository/widgets"
	"github.com/beexponential/insights/internal/server/middleware"
	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/internal/widget"
)

// Dashboards resolves a dashboard for the caller.
type Dashboards interface {
	Get(ctx context.Context, v dashboardsrepo.Viewer, id string) (dashboardsrepo.Dashboard, error)
}

// WidgetWriter changes stored widgets.
type WidgetWriter interface {
	UpdateLayout(ctx context.Context, id string, l widget.Layout) error
	Delete(ctx context.Context, id string) error
}

// WidgetHandler serves dashboard widgets and their change stream.
type WidgetHandler struct {
	Repo       widgetsrepo.Repo
	Writer     WidgetWriter
	Dashboards Dashboards
	Hub        *live.Hub
	Audit      *audit.Repo
}

type listWidgetParams struct {
	DashboardID     string    `path:"id"`
	IfNoneMatch     string    `header:"If-None-Match"`
	IfModifiedSince time.Time `header:"If-Modified-Since"`
}

type widgetsOut struct {
	ETag         string `header:"ETag"`
	LastModified string `header:"Last-Modified"`
	Body         struct {
		Widgets []schema.Widget `json:"widgets"`
		Total   int             `json:"total"`
	}
}

type widgetIDParam struct {
	ID string `path:"id"`
}

type widgetOut struct{ Body schema.Widget }

type layoutInput struct {
	ID   string `path:"id"`
	Body schema.LayoutInput
}

type widgetTypesOut struct {
	Body struct {
		Types []widget.Descriptor `json:"types"`
	}
}

type auditListParams struct {
	ID    string `path:"id"`
	Limit int    `query:"limit"`
}

type auditListOut struct {
	Body struct {
		Items []schema.AuditLog `json:"items"`
	}
}

type auditDiffParams struct {
	ID int64 `path:"id"`
}

type auditDiffOut struct{ Body schema.AuditDiff }

// RegisterWidget registers widget endpoints. The SSE stream is a plain chi
// route; see Stream.
func RegisterWidget(api humago.API, h *WidgetHandler) {
	humago.Register(api, humago.Operation{
		OperationID: "listDashboardWidgets",
		Method:      http.MethodGet,
		Path:        "/v1/dashboards/{id}/widgets",
		Summary:     "List the widgets of a dashboard",
		Tags:        []string{"Widgets"},
	}, h.list)
	humago.Register(api, humago.Operation{
		OperationID: "getWidget",
		Method:      http.MethodGet,
		Path:        "/v1/widgets/{id}",
		Summary:     "Get a widget",
		Tags:        []string{"Widgets"},
	}, h.get)
	humago.Register(api, humago.Operation{
		OperationID: "updateWidgetLayout",
		Method:      http.MethodPut,
		Path:        "/v1/widgets/{id}/layout",
		Summary:     "Move or resize a widget",
		Tags:        []string{"Widgets"},
	}, h.updateLayout)
	humago.Register(api, humago.Operation{
		OperationID:   "deleteWidget",
		Method:        http.MethodDelete,
		Path:          "/v1/widgets/{id}",
		Summary:       "Delete a widget",
		Tags:          []string{"Widgets"},
		DefaultStatus: http.StatusNoContent,
	}, h.delete)
	humago.Register(api, humago.Operation{
		OperationID: "listWidgetTypes",
		Method:      http.MethodGet,
		Path:        "/v1/widget-types",
		Summary:     "List the widget types offered by the picker",
		Tags:        []string{"Widgets"},
	}, h.types)
	humago.Register(api, humago.Operation{
		OperationID: "listWidgetAuditLogs",
		Method:      http.MethodGet,
		Path:        "/v1/widgets/{id}/audit-logs",
		Summary:     "List the change history of a widget",
		Tags:        []string{"Audit"},
	}, h.auditLogs)
	humago.Register(api, humago.Operation{
		OperationID: "getWidgetAuditDiff",
		Method:      http.MethodGet,
		Path:        "/v1/audit-logs/{id}/diff",
		Summary:     "Get the config and query diff of an audit record",
		Tags:        []string{"Audit"},
	}, h.auditDiff)
}

// visibleDashboard fails with dashboardsrepo.ErrNotFound when the caller's
// department may not see dashboard id.
func visibleDashboard(ctx context.Context, ds Dashboards, id string) error {
	if ds == nil {
		return nil
	}
	dept, admin := auth.Viewer(ctx)
	_, err := ds.Get(ctx, dashboardsrepo.Viewer{Department: dept, Admin: admin}, id)
	return err
}

// visibleWidget loads widget id and checks its dashboard like visibleDashboard.
// A widget on a hidden dashboard is reported as not found.
func visibleWidget(ctx context.Context, repo widgetsrepo.Repo, ds Dashboards, id string) (widget.Widget, error) {
	w, err := repo.GetByID(ctx, id)
	if err != nil {
		return widget.Widget{}, err
	}
	if err := visibleDashboard(ctx, ds, w.DashboardID); err != nil {
		if errors.Is(err, dashboardsrepo.ErrNotFound) {
			return widget.Widget{}, widgetsrepo.ErrNotFound
		}
		return widget.Widget{}, err
	}
	return w, nil
}

func (h *WidgetHandler) list(ctx context.Context, p *listWidgetParams) (*widgetsOut, error) {
	tenantID := tenant.FromContext(ctx)
	user := middleware.UserFromContext(ctx)
	logger.L.Info("widgets list", "tenant", tenantID, "user", user, "dashboard", p.DashboardID)

	if err := visibleDashboard(ctx, h.Dashboards, p.DashboardID); err != nil {
		return nil, apiError("list widgets", err)
	}
	etag, last, err := h.Repo.GetETagAndLastMod(ctx, p.DashboardID)
	if err != nil {
		return nil, apiError("list widgets", err)
	}
	lastStr := last.UTC().Format(http.TimeFormat)
	if (p.IfNoneMatch != "" && p.IfNoneMatch == etag) ||
		(p.IfNoneMatch == "" && !p.IfModifiedSince.IsZero() && !last.After(p.IfModifiedSince)) {
		hdr := http.Header{}
		hdr.Set("ETag", etag)
		hdr.Set("Last-Modified", lastStr)
		return nil, humago.ErrorWithHeaders(humago.NewError(http.StatusNotModified, ""), hdr)
	}
	items, err := h.Repo.ListByDashboard(ctx, p.DashboardID)
	if err != nil {
		return nil, apiError("list widgets", err)
	}
	out := &widgetsOut{ETag: etag, LastModified: lastStr}
	out.Body.Widgets = make([]schema.Widget, 0, len(items))
	for _, w := range items {
		out.Body.Widgets = append(out.Body.Widgets, schema.NewWidget(w))
	}
	out.Body.Total = len(items)
	return out, nil
}

func (h *WidgetHandler) get(ctx context.Context, p *widgetIDParam) (*widgetOut, error) {
	w, err := visibleWidget(ctx, h.Repo, h.Dashboards, p.ID)
	if err != nil {
		return nil, apiError("get widget", err)
	}
	return &widgetOut{Body: schema.NewWidget(w)}, nil
}

func (h *WidgetHandler) updateLayout(ctx context.Context, in *layoutInput) (*widgetOut, error) {
	if _, err := visibleWidget(ctx, h.Repo, h.Dashboards, in.ID); err != nil {
		return nil, apiError("update widget layout", err)
	}
	l := widget.Layout{X: in.Body.X, Y: in.Body.Y, W: in.Body.W, H: in.Body.H}
	if err := h.Writer.UpdateLayout(ctx, in.ID, l); err != nil {
		return nil, apiError("update widget layout", err)
	}
	return h.get(ctx, &widgetIDParam{ID: in.ID})
}

func (h *WidgetHandler) delete(ctx context.Context, p *widgetIDParam) (*struct{}, error) {
	if _, err := visibleWidget(ctx, h.Repo, h.Dashboards, p.ID); err != nil {
		return nil, apiError("delete widget", err)
	}
	if err := h.Writer.Delete(ctx, p.ID); err != nil {
		return nil, apiError("delete widget", err)
	}
	return nil, nil
}

func (h *WidgetHandler) types(_ context.Context, _ *struct{}) (*widgetTypesOut, error) {
	out := &widgetTypesOut{}
	out.Body.Types = widget.Catalog()
	return out, nil
}

func (h *WidgetHandler) auditLogs(ctx context.Context, p *auditListParams) (*auditListOut, error) {
	if _, err := visibleWidget(ctx, h.Repo, h.Dashboards, p.ID); err != nil {
		return nil, apiError("list audit logs", err)
	}
	recs, err := h.Audit.ListByWidget(ctx, p.ID, p.Limit)
	if err != nil {
		return nil, apiError("list audit logs", err)
	}
	out := &auditListOut{}
	out.Body.Items = make([]schema.AuditLog, 0, len(recs))
	for _, r := range recs {
		out.Body.Items = append(out.Body.Items, schema.NewAuditLog(r))
	}
	return out, nil
}

func (h *WidgetHandler) auditDiff(ctx context.Context, p *auditDiffParams) (*auditDiffOut, error) {
	rec, err := h.Audit.FindByID(ctx, p.ID)
	if err != nil {
		return nil, apiError("audit diff", err)
	}
	// records of deleted widgets stay readable; live ones follow dashboard visibility
	if w, err := h.Repo.GetByID(ctx, rec.WidgetID); err == nil {
		if err := visibleDashboard(ctx, h.Dashboards, w.DashboardID); err != nil {
			return nil, apiError("audit diff", audit.ErrNotFound)
		}
	} else if !errors.Is(err, widgetsrepo.ErrNotFound) {
		return nil, apiError("audit diff", err)
	}
	unified, add, del := audit.ConfigDiff([]byte(rec.BeforeJSON.String), []byte(rec.AfterJSON.String))
	return &auditDiffOut{Body: schema.AuditDiff{
		Config:  unified,
		Query:   rec.QueryDiff.String,
		Added:   add,
		Removed: del,
	}}, nil
}

// Stream pushes widget changes of one dashboard as server-sent events.
func (h *WidgetHandler) Stream(w http.ResponseWriter, r *http.Request) {
	tenantID := tenant.FromContext(r.Context())
	user := middleware.UserFromContext(r.Context())
	dashboardID := chi.URLParam(r, "id")
	logger.L.Info("widgets stream", "tenant", tenantID, "user", user, "dashboard", dashboardID)

	if err := visibleDashboard(r.Context(), h.Dashboards, dashboardID); err != nil {
		http.Error(w, "dashboard not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	ch, unsub := h.Hub.Subscribe(tenantID, dashboardID)
	defer unsub()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				logger.L.Error("sse keepalive failed", "error", err)
				return
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				logger.L.Error("sse marshal failed", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, b); err != nil {
				logger.L.Error("sse write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
