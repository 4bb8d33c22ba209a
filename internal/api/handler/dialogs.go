package handler

import (
	"context"
	"net/http"
	"time"

	humago "github.com/danielgtaylor/huma/v2"

	"github.com/beexponential/insights/internal/api/schema"
	"github.com/beexponential/insights/internal/drafts"
	huma "github.com/beexponential/insights/internal/huma"
	"github.com/beexponential/insights/internal/preview"
	widgetsrepo "github.com/beexponential/insights/internal/repository/widgets"
	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/internal/widget"
	"github.com/beexponential/insights/internal/widgetconfig"
	"github.com/beexponential/insights/internal/widgetdialog"
)

// DialogDraft is one open widget dialog with its preview session and the
// notifications raised since the last response.
type DialogDraft struct {
	Dialog  *widgetdialog.Dialog
	Inbox   *widgetdialog.Inbox
	Preview *preview.Session
}

func (d *DialogDraft) view(id string) schema.Dialog {
	s := d.Dialog.State()
	v := schema.Dialog{
		ID:            id,
		Step:          d.Dialog.Step(),
		Editing:       d.Dialog.Editing(),
		Type:          s.Type(),
		Name:          s.Name,
		Options:       s.Options,
		Query:         s.Query,
		CanSave:       d.Dialog.CanSave(),
		Notifications: d.Inbox.Drain(),
	}
	if v.Type != "" {
		v.Aggregations = widget.Aggregations(v.Type)
	}
	return v
}

// DialogHandler serves the widget create/edit dialog.
type DialogHandler struct {
	Drafts     *drafts.Store[*DialogDraft]
	Store      widgetdialog.Store
	Widgets    widgetsrepo.Repo
	Dashboards Dashboards
	Fields     widgetdialog.FieldSource
	// Preview runs dialog queries; nil disables the preview endpoint.
	Preview preview.Querier
	// PreviewTimeout bounds one preview run.
	PreviewTimeout time.Duration
}

// NewDialogHandler returns a handler whose drafts are cancelled after ttl
// of inactivity, which also releases their preview sessions.
func NewDialogHandler(h DialogHandler, ttl time.Duration) *DialogHandler {
	h.Drafts = drafts.New(ttl, func(d *DialogDraft) { d.Dialog.Cancel() })
	return &h
}

type openDialogInput struct {
	Body schema.OpenDialog
}

type dialogOut struct{ Body schema.Dialog }

type dialogIDParam struct {
	ID string `path:"id"`
}

type chooseTypeInput struct {
	ID   string `path:"id"`
	Body schema.ChooseType
}

type configPatchInput struct {
	ID   string `path:"id"`
	Body schema.ConfigPatch
}

type measureParam struct {
	ID    string `path:"id"`
	Index int    `path:"index"`
}

type measurePatchInput struct {
	ID    string `path:"id"`
	Index int    `path:"index"`
	Body  schema.MeasurePatch
}

type previewOut struct{ Body schema.Preview }

type savedWidgetOut struct {
	Body struct {
		Widget        schema.Widget               `json:"widget"`
		Notifications []widgetdialog.Notification `json:"notifications"`
	}
}

// RegisterDialogs registers the widget dialog endpoints.
func RegisterDialogs(api humago.API, h *DialogHandler) {
	humago.Register(api, humago.Operation{
		OperationID:   "openWidgetDialog",
		Method:        http.MethodPost,
		Path:          "/v1/widget-dialogs",
		Summary:       "Open a widget create or edit dialog",
		Tags:          []string{"Widget dialogs"},
		DefaultStatus: http.StatusCreated,
	}, h.open)
	humago.Register(api, humago.Operation{
		OperationID: "getWidgetDialog",
		Method:      http.MethodGet,
		Path:        "/v1/widget-dialogs/{id}",
		Summary:     "Get the state of a widget dialog",
		Tags:        []string{"Widget dialogs"},
	}, h.get)
	humago.Register(api, humago.Operation{
		OperationID: "chooseWidgetType",
		Method:      http.MethodPost,
		Path:        "/v1/widget-dialogs/{id}/type",
		Summary:     "Choose the widget type",
		Tags:        []string{"Widget dialogs"},
	}, h.chooseType)
	humago.Register(api, humago.Operation{
		OperationID: "widgetDialogBack",
		Method:      http.MethodPost,
		Path:        "/v1/widget-dialogs/{id}/back",
		Summary:     "Return to type selection",
		Tags:        []string{"Widget dialogs"},
	}, h.back)
	humago.Register(api, humago.Operation{
		OperationID: "patchWidgetDialogConfig",
		Method:      http.MethodPatch,
		Path:        "/v1/widget-dialogs/{id}/config",
		Summary:     "Change the widget configuration",
		Tags:        []string{"Widget dialogs"},
	}, h.patchConfig)
	humago.Register(api, humago.Operation{
		OperationID: "addPivotMeasure",
		Method:      http.MethodPost,
		Path:        "/v1/widget-dialogs/{id}/measures",
		Summary:     "Add an empty pivot measure",
		Tags:        []string{"Widget dialogs"},
	}, h.addMeasure)
	humago.Register(api, humago.Operation{
		OperationID: "updatePivotMeasure",
		Method:      http.MethodPatch,
		Path:        "/v1/widget-dialogs/{id}/measures/{index}",
		Summary:     "Change a pivot measure",
		Tags:        []string{"Widget dialogs"},
	}, h.updateMeasure)
	humago.Register(api, humago.Operation{
		OperationID: "removePivotMeasure",
		Method:      http.MethodDelete,
		Path:        "/v1/widget-dialogs/{id}/measures/{index}",
		Summary:     "Remove a pivot measure",
		Tags:        []string{"Widget dialogs"},
	}, h.removeMeasure)
	humago.Register(api, humago.Operation{
		OperationID: "previewWidgetDialog",
		Method:      http.MethodPost,
		Path:        "/v1/widget-dialogs/{id}/preview",
		Summary:     "Run the derived query",
		Tags:        []string{"Widget dialogs"},
	}, h.preview)
	humago.Register(api, humago.Operation{
		OperationID: "saveWidgetDialog",
		Method:      http.MethodPost,
		Path:        "/v1/widget-dialogs/{id}/save",
		Summary:     "Save the widget and close the dialog",
		Tags:        []string{"Widget dialogs"},
	}, h.save)
	humago.Register(api, humago.Operation{
		OperationID:   "cancelWidgetDialog",
		Method:        http.MethodDelete,
		Path:          "/v1/widget-dialogs/{id}",
		Summary:       "Close the dialog without saving",
		Tags:          []string{"Widget dialogs"},
		DefaultStatus: http.StatusNoContent,
	}, h.cancel)
}

func (h *DialogHandler) open(ctx context.Context, in *openDialogInput) (*dialogOut, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, apiError("open dialog", err)
	}
	d := &DialogDraft{Inbox: &widgetdialog.Inbox{}}
	deps := widgetdialog.Deps{Store: h.Store, Fields: h.Fields, Notifier: d.Inbox}
	if in.Body.WidgetID != "" {
		w, err := visibleWidget(ctx, h.Widgets, h.Dashboards, in.Body.WidgetID)
		if err != nil {
			return nil, apiError("open dialog", err)
		}
		if !w.Type.Valid() {
			return nil, apiError("open dialog", widgetconfig.ErrWrongType)
		}
		d.Dialog = widgetdialog.NewEdit(w, deps)
	} else {
		if in.Body.DashboardID == "" {
			return nil, huma.Error422("body.dashboardId", "dashboardId or widgetId is required")
		}
		if err := visibleDashboard(ctx, h.Dashboards, in.Body.DashboardID); err != nil {
			return nil, apiError("open dialog", err)
		}
		d.Dialog = widgetdialog.NewCreate(in.Body.DashboardID, in.Body.Layout, deps)
	}
	if h.Preview != nil {
		d.Preview = preview.NewSession(h.Preview)
		d.Dialog.OnClose(func() { _ = d.Preview.Close() })
	}
	// a failed field load is reported through the inbox; the dialog stays usable
	_ = d.Dialog.Open(ctx)
	id := h.Drafts.Put(tid, d)
	return &dialogOut{Body: d.view(id)}, nil
}

func (h *DialogHandler) draft(ctx context.Context, id string) (*DialogDraft, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	return h.Drafts.Get(tid, id)
}

// with runs fn on the dialog and renders the resulting state.
func (h *DialogHandler) with(ctx context.Context, op, id string, fn func(*DialogDraft) error) (*dialogOut, error) {
	d, err := h.draft(ctx, id)
	if err != nil {
		return nil, apiError(op, err)
	}
	if err := fn(d); err != nil {
		return nil, apiError(op, err)
	}
	return &dialogOut{Body: d.view(id)}, nil
}

func (h *DialogHandler) get(ctx context.Context, p *dialogIDParam) (*dialogOut, error) {
	return h.with(ctx, "get dialog", p.ID, func(*DialogDraft) error { return nil })
}

func (h *DialogHandler) chooseType(ctx context.Context, in *chooseTypeInput) (*dialogOut, error) {
	return h.with(ctx, "choose widget type", in.ID, func(d *DialogDraft) error {
		return d.Dialog.ChooseType(in.Body.Type)
	})
}

func (h *DialogHandler) back(ctx context.Context, p *dialogIDParam) (*dialogOut, error) {
	return h.with(ctx, "dialog back", p.ID, func(d *DialogDraft) error { return d.Dialog.Back() })
}

func (h *DialogHandler) patchConfig(ctx context.Context, in *configPatchInput) (*dialogOut, error) {
	return h.with(ctx, "patch widget config", in.ID, func(d *DialogDraft) error {
		var actions []widgetconfig.Action
		if in.Body.Name != nil {
			actions = append(actions, widgetconfig.SetName{Name: *in.Body.Name})
		}
		if len(in.Body.Options) > 0 {
			actions = append(actions, widgetconfig.Merge{Patch: in.Body.Options})
		}
		_, err := d.Dialog.Apply(actions...)
		return err
	})
}

func (h *DialogHandler) addMeasure(ctx context.Context, p *dialogIDParam) (*dialogOut, error) {
	return h.with(ctx, "add measure", p.ID, func(d *DialogDraft) error {
		_, err := d.Dialog.Apply(widgetconfig.AddMeasure{})
		return err
	})
}

func (h *DialogHandler) updateMeasure(ctx context.Context, in *measurePatchInput) (*dialogOut, error) {
	return h.with(ctx, "update measure", in.ID, func(d *DialogDraft) error {
		_, err := d.Dialog.Apply(widgetconfig.UpdateMeasure{
			Index:       in.Index,
			Column:      in.Body.Column,
			Aggregation: in.Body.Aggregation,
		})
		return err
	})
}

func (h *DialogHandler) removeMeasure(ctx context.Context, p *measureParam) (*dialogOut, error) {
	return h.with(ctx, "remove measure", p.ID, func(d *DialogDraft) error {
		_, err := d.Dialog.Apply(widgetconfig.RemoveMeasure{Index: p.Index})
		return err
	})
}

func (h *DialogHandler) preview(ctx context.Context, p *dialogIDParam) (*previewOut, error) {
	d, err := h.draft(ctx, p.ID)
	if err != nil {
		return nil, apiError("preview", err)
	}
	if d.Preview == nil {
		return nil, humago.Error501NotImplemented("preview is not configured")
	}
	s := d.Dialog.State()
	if !s.Ready() {
		return nil, apiError("preview", widgetdialog.ErrNotReady)
	}
	if h.PreviewTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.PreviewTimeout)
		defer cancel()
	}
	res, err := d.Preview.Run(ctx, s.Query)
	if err != nil {
		return nil, apiError("preview", err)
	}
	return &previewOut{Body: schema.Preview{
		Query:     s.Query,
		Columns:   res.Columns,
		Rows:      res.Rows,
		Truncated: res.Truncated,
	}}, nil
}

func (h *DialogHandler) save(ctx context.Context, p *dialogIDParam) (*savedWidgetOut, error) {
	d, err := h.draft(ctx, p.ID)
	if err != nil {
		return nil, apiError("save widget", err)
	}
	w, err := d.Dialog.Save(ctx)
	if err != nil {
		return nil, apiError("save widget", err)
	}
	tid := tenant.FromContext(ctx)
	h.Drafts.Delete(tid, p.ID)
	out := &savedWidgetOut{}
	out.Body.Widget = schema.NewWidget(w)
	out.Body.Notifications = nonNil(d.Inbox.Drain())
	return out, nil
}

func (h *DialogHandler) cancel(ctx context.Context, p *dialogIDParam) (*struct{}, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, apiError("cancel dialog", err)
	}
	d, ok := h.Drafts.Delete(tid, p.ID)
	if !ok {
		return nil, apiError("cancel dialog", drafts.ErrNotFound)
	}
	d.Dialog.Cancel()
	return nil, nil
}
