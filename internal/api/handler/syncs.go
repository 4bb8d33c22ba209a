package handler

import (
	"context"
	"net/http"
	"time"

	humago "github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/beexponential/insights/internal/api/schema"
	"github.com/beexponential/insights/internal/clickup"
	"github.com/beexponential/insights/internal/drafts"
	syncrepo "github.com/beexponential/insights/internal/repository/syncs"
	"github.com/beexponential/insights/internal/schedule"
	"github.com/beexponential/insights/internal/syncwizard"
	"github.com/beexponential/insights/internal/tenant"
)

// SyncWizardHandler serves the ClickUp sync setup wizard.
type SyncWizardHandler struct {
	Drafts *drafts.Store[*syncwizard.Wizard]
	API    clickup.API
	Store  syncwizard.Store
	Logger *zap.SugaredLogger
}

// NewSyncWizardHandler returns a handler whose wizards are cancelled after
// ttl of inactivity.
func NewSyncWizardHandler(h SyncWizardHandler, ttl time.Duration) *SyncWizardHandler {
	h.Drafts = drafts.New(ttl, func(w *syncwizard.Wizard) { w.Cancel() })
	return &h
}

type wizardOut struct{ Body schema.SyncWizard }

type wizardIDParam struct {
	ID string `path:"id"`
}

type syncTypeInput struct {
	ID   string `path:"id"`
	Body schema.SyncTypeInput
}

type toggleInput struct {
	ID   string `path:"id"`
	Body schema.ToggleInput
}

type connectInput struct {
	ID   string `path:"id"`
	Body schema.ConnectInput
}

type selectInput struct {
	ID   string `path:"id"`
	Body schema.SelectInput
}

type itemToggleInput struct {
	ID   string `path:"id"`
	Key  string `path:"key"`
	Body schema.ToggleInput
}

type columnsParam struct {
	ID  string `path:"id"`
	Key string `path:"key"`
}

type columnsOut struct{ Body schema.Columns }

type fieldToggleInput struct {
	ID    string `path:"id"`
	Key   string `path:"key"`
	Field string `path:"field"`
	Body  schema.ToggleInput
}

type timeEntriesInput struct {
	ID   string `path:"id"`
	Body syncwizard.TimeEntrySettings
}

type scheduleInput struct {
	ID   string `path:"id"`
	Body schedule.Schedule
}

type modeInput struct {
	ID   string `path:"id"`
	Body schema.ModeInput
}

type savedSyncOut struct{ Body schema.SavedSync }

func wizardOp(id, method, path, summary string) humago.Operation {
	return humago.Operation{
		OperationID: id,
		Method:      method,
		Path:        "/v1/sync-wizards" + path,
		Summary:     summary,
		Tags:        []string{"Sync wizard"},
	}
}

// RegisterSyncWizard registers the sync wizard endpoints.
func RegisterSyncWizard(api humago.API, h *SyncWizardHandler) {
	open := wizardOp("openSyncWizard", http.MethodPost, "", "Start a sync wizard")
	open.DefaultStatus = http.StatusCreated
	humago.Register(api, open, h.open)
	humago.Register(api, wizardOp("getSyncWizard", http.MethodGet, "/{id}", "Get the state of a sync wizard"), h.get)
	humago.Register(api, wizardOp("setSyncType", http.MethodPut, "/{id}/type", "Choose what to synchronize"), h.setType)
	humago.Register(api, wizardOp("setFullSync", http.MethodPut, "/{id}/full-sync", "Synchronize every list with every field"), h.setFullSync)
	humago.Register(api, wizardOp("syncWizardNext", http.MethodPost, "/{id}/next", "Go to the next step"), h.next)
	humago.Register(api, wizardOp("syncWizardBack", http.MethodPost, "/{id}/back", "Go to the previous step"), h.back)
	humago.Register(api, wizardOp("connectClickUp", http.MethodPost, "/{id}/connect", "Validate a ClickUp token"), h.connect)
	humago.Register(api, wizardOp("selectWorkspace", http.MethodPut, "/{id}/workspace", "Select the ClickUp workspace"), h.selectWorkspace)
	humago.Register(api, wizardOp("selectSpace", http.MethodPut, "/{id}/space", "Select the ClickUp space"), h.selectSpace)
	humago.Register(api, wizardOp("setTemplateMode", http.MethodPut, "/{id}/template-mode", "Group lists into templates"), h.setTemplateMode)
	humago.Register(api, wizardOp("setItemActive", http.MethodPut, "/{id}/items/{key}/active", "Include a template or list"), h.setActive)
	humago.Register(api, wizardOp("excludeList", http.MethodPut, "/{id}/lists/{key}/excluded", "Exclude one list of a template"), h.excludeList)
	humago.Register(api, wizardOp("openColumns", http.MethodGet, "/{id}/columns/{key}", "Discover the fields of a template or list"), h.openColumns)
	humago.Register(api, wizardOp("toggleColumn", http.MethodPut, "/{id}/columns/{key}/fields/{field}", "Select or drop a field"), h.toggleField)
	humago.Register(api, wizardOp("setTimeEntries", http.MethodPut, "/{id}/time-entries", "Set the time entry window"), h.setTimeEntries)
	humago.Register(api, wizardOp("setSchedule", http.MethodPut, "/{id}/schedule", "Set the run schedule"), h.setSchedule)
	humago.Register(api, wizardOp("setSyncMode", http.MethodPut, "/{id}/mode", "Set incremental or full loads"), h.setMode)
	humago.Register(api, wizardOp("saveSyncWizard", http.MethodPost, "/{id}/save", "Save the sync and request its first run"), h.save)
	cancel := wizardOp("cancelSyncWizard", http.MethodDelete, "/{id}", "Close the wizard without saving")
	cancel.DefaultStatus = http.StatusNoContent
	humago.Register(api, cancel, h.cancel)
}

func (h *SyncWizardHandler) open(ctx context.Context, _ *struct{}) (*wizardOut, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, apiError("open sync wizard", err)
	}
	logger := h.Logger
	if logger != nil {
		logger = logger.With("tenant", tid)
	}
	w := syncwizard.New(syncwizard.Config{API: h.API, Store: h.Store, Logger: logger})
	id := h.Drafts.Put(tid, w)
	return &wizardOut{Body: schema.SyncWizard{ID: id, View: w.View()}}, nil
}

// with runs fn on the wizard and renders the resulting state.
func (h *SyncWizardHandler) with(ctx context.Context, op, id string, fn func(*syncwizard.Wizard) error) (*wizardOut, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, apiError(op, err)
	}
	w, err := h.Drafts.Get(tid, id)
	if err != nil {
		return nil, apiError(op, err)
	}
	if err := fn(w); err != nil {
		return nil, apiError(op, err)
	}
	return &wizardOut{Body: schema.SyncWizard{ID: id, View: w.View()}}, nil
}

func (h *SyncWizardHandler) get(ctx context.Context, p *wizardIDParam) (*wizardOut, error) {
	return h.with(ctx, "get sync wizard", p.ID, func(*syncwizard.Wizard) error { return nil })
}

func (h *SyncWizardHandler) setType(ctx context.Context, in *syncTypeInput) (*wizardOut, error) {
	return h.with(ctx, "set sync type", in.ID, func(w *syncwizard.Wizard) error {
		if err := w.SetSyncType(in.Body.SyncType); err != nil {
			return err
		}
		if in.Body.FullSync != nil {
			return w.SetFullSync(*in.Body.FullSync)
		}
		return nil
	})
}

func (h *SyncWizardHandler) setFullSync(ctx context.Context, in *toggleInput) (*wizardOut, error) {
	return h.with(ctx, "set full sync", in.ID, func(w *syncwizard.Wizard) error { return w.SetFullSync(in.Body.On) })
}

func (h *SyncWizardHandler) next(ctx context.Context, p *wizardIDParam) (*wizardOut, error) {
	return h.with(ctx, "sync wizard next", p.ID, func(w *syncwizard.Wizard) error {
		_, err := w.Next()
		return err
	})
}

func (h *SyncWizardHandler) back(ctx context.Context, p *wizardIDParam) (*wizardOut, error) {
	return h.with(ctx, "sync wizard back", p.ID, func(w *syncwizard.Wizard) error {
		_, err := w.Back()
		return err
	})
}

func (h *SyncWizardHandler) connect(ctx context.Context, in *connectInput) (*wizardOut, error) {
	return h.with(ctx, "connect clickup", in.ID, func(w *syncwizard.Wizard) error {
		_, err := w.Connect(ctx, in.Body.Token)
		return err
	})
}

func (h *SyncWizardHandler) selectWorkspace(ctx context.Context, in *selectInput) (*wizardOut, error) {
	return h.with(ctx, "select workspace", in.ID, func(w *syncwizard.Wizard) error {
		_, err := w.SelectWorkspace(ctx, in.Body.ID)
		return err
	})
}

func (h *SyncWizardHandler) selectSpace(ctx context.Context, in *selectInput) (*wizardOut, error) {
	return h.with(ctx, "select space", in.ID, func(w *syncwizard.Wizard) error {
		_, err := w.SelectSpace(ctx, in.Body.ID)
		return err
	})
}

func (h *SyncWizardHandler) setTemplateMode(ctx context.Context, in *toggleInput) (*wizardOut, error) {
	return h.with(ctx, "set template mode", in.ID, func(w *syncwizard.Wizard) error { return w.SetTemplateMode(in.Body.On) })
}

func (h *SyncWizardHandler) setActive(ctx context.Context, in *itemToggleInput) (*wizardOut, error) {
	return h.with(ctx, "set item active", in.ID, func(w *syncwizard.Wizard) error { return w.SetActive(in.Key, in.Body.On) })
}

func (h *SyncWizardHandler) excludeList(ctx context.Context, in *itemToggleInput) (*wizardOut, error) {
	return h.with(ctx, "exclude list", in.ID, func(w *syncwizard.Wizard) error { return w.ExcludeList(in.Key, in.Body.On) })
}

func (h *SyncWizardHandler) openColumns(ctx context.Context, p *columnsParam) (*columnsOut, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, apiError("open columns", err)
	}
	w, err := h.Drafts.Get(tid, p.ID)
	if err != nil {
		return nil, apiError("open columns", err)
	}
	fields, sel, err := w.OpenColumns(ctx, p.Key)
	if err != nil {
		return nil, apiError("open columns", err)
	}
	return &columnsOut{Body: schema.Columns{Key: p.Key, Fields: nonNil(fields), Selected: nonNil(sel)}}, nil
}

func (h *SyncWizardHandler) toggleField(ctx context.Context, in *fieldToggleInput) (*columnsOut, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, apiError("toggle field", err)
	}
	w, err := h.Drafts.Get(tid, in.ID)
	if err != nil {
		return nil, apiError("toggle field", err)
	}
	sel, err := w.ToggleField(in.Key, in.Field, in.Body.On)
	if err != nil {
		return nil, apiError("toggle field", err)
	}
	return &columnsOut{Body: schema.Columns{Key: in.Key, Selected: nonNil(sel)}}, nil
}

func (h *SyncWizardHandler) setTimeEntries(ctx context.Context, in *timeEntriesInput) (*wizardOut, error) {
	return h.with(ctx, "set time entries", in.ID, func(w *syncwizard.Wizard) error { return w.SetTimeEntries(in.Body) })
}

func (h *SyncWizardHandler) setSchedule(ctx context.Context, in *scheduleInput) (*wizardOut, error) {
	return h.with(ctx, "set schedule", in.ID, func(w *syncwizard.Wizard) error {
		_, err := w.SetSchedule(in.Body)
		return err
	})
}

func (h *SyncWizardHandler) setMode(ctx context.Context, in *modeInput) (*wizardOut, error) {
	return h.with(ctx, "set sync mode", in.ID, func(w *syncwizard.Wizard) error { return w.SetMode(in.Body.Mode) })
}

func (h *SyncWizardHandler) save(ctx context.Context, p *wizardIDParam) (*savedSyncOut, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, apiError("save sync", err)
	}
	w, err := h.Drafts.Get(tid, p.ID)
	if err != nil {
		return nil, apiError("save sync", err)
	}
	id, payload, err := w.Save(ctx)
	if err != nil {
		return nil, apiError("save sync", err)
	}
	h.Drafts.Delete(tid, p.ID)
	payload.SyncConfig.APIToken = ""
	return &savedSyncOut{Body: schema.SavedSync{ID: id, Payload: payload}}, nil
}

func (h *SyncWizardHandler) cancel(ctx context.Context, p *wizardIDParam) (*struct{}, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, apiError("cancel sync wizard", err)
	}
	w, ok := h.Drafts.Delete(tid, p.ID)
	if !ok {
		return nil, apiError("cancel sync wizard", drafts.ErrNotFound)
	}
	w.Cancel()
	return nil, nil
}

// SyncHandler serves stored sync configurations.
type SyncHandler struct {
	Repo *syncrepo.Repo
	Now  func() time.Time
}

type syncListOut struct {
	Body struct {
		Items []schema.Sync `json:"items"`
	}
}

type syncIDParam struct {
	ID string `path:"id"`
}

type syncEnabledInput struct {
	ID   string `path:"id"`
	Body schema.ToggleInput
}

type cronPreviewInput struct {
	Count int `query:"count" minimum:"1" maximum:"20" default:"5"`
	Body  schedule.Schedule
}

type cronPreviewOut struct{ Body schema.CronPreview }

// RegisterSyncs registers sync configuration endpoints.
func RegisterSyncs(api humago.API, h *SyncHandler) {
	humago.Register(api, humago.Operation{
		OperationID: "listSyncs",
		Method:      http.MethodGet,
		Path:        "/v1/syncs",
		Summary:     "List sync configurations",
		Tags:        []string{"Syncs"},
	}, h.list)
	humago.Register(api, humago.Operation{
		OperationID: "setSyncEnabled",
		Method:      http.MethodPut,
		Path:        "/v1/syncs/{id}/enabled",
		Summary:     "Pause or resume a sync",
		Tags:        []string{"Syncs"},
	}, h.setEnabled)
	humago.Register(api, humago.Operation{
		OperationID:   "runSync",
		Method:        http.MethodPost,
		Path:          "/v1/syncs/{id}/run",
		Summary:       "Request an immediate run",
		Tags:          []string{"Syncs"},
		DefaultStatus: http.StatusAccepted,
	}, h.run)
	humago.Register(api, humago.Operation{
		OperationID: "previewCron",
		Method:      http.MethodPost,
		Path:        "/v1/schedules/cron",
		Summary:     "Translate a schedule to cron",
		Tags:        []string{"Syncs"},
	}, h.previewCron)
}

func (h *SyncHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *SyncHandler) list(ctx context.Context, _ *struct{}) (*syncListOut, error) {
	cfgs, err := h.Repo.List(ctx)
	if err != nil {
		return nil, apiError("list syncs", err)
	}
	now := h.now()
	out := &syncListOut{}
	out.Body.Items = make([]schema.Sync, 0, len(cfgs))
	for _, c := range cfgs {
		s := schema.Sync{ID: c.ID, SyncType: c.SyncType, Cron: c.Cron, Enabled: c.Enabled, UpdatedAt: c.UpdatedAt}
		if c.Enabled {
			if next, err := schedule.Next(c.Cron, now); err == nil {
				s.NextRun = &next
			}
		}
		out.Body.Items = append(out.Body.Items, s)
	}
	return out, nil
}

func (h *SyncHandler) setEnabled(ctx context.Context, in *syncEnabledInput) (*struct{}, error) {
	if err := h.Repo.SetEnabled(ctx, in.ID, in.Body.On); err != nil {
		return nil, apiError("set sync enabled", err)
	}
	return nil, nil
}

func (h *SyncHandler) run(ctx context.Context, p *syncIDParam) (*struct{}, error) {
	if err := h.Repo.RequestRun(ctx, p.ID); err != nil {
		return nil, apiError("run sync", err)
	}
	return nil, nil
}

func (h *SyncHandler) previewCron(_ context.Context, in *cronPreviewInput) (*cronPreviewOut, error) {
	s := in.Body.Normalize()
	if s.Type == "" {
		s = schedule.Default()
	}
	if err := s.Validate(); err != nil {
		return nil, huma422(err)
	}
	expr := s.ToCron()
	count := in.Count
	if count <= 0 {
		count = 5
	}
	out := &cronPreviewOut{Body: schema.CronPreview{Schedule: s, Cron: expr, Next: make([]time.Time, 0, count)}}
	t := h.now()
	for i := 0; i < count; i++ {
		next, err := schedule.Next(expr, t)
		if err != nil {
			return nil, huma422(err)
		}
		out.Body.Next = append(out.Body.Next, next)
		t = next
	}
	return out, nil
}

func huma422(err error) error { return humago.Error422UnprocessableEntity(err.Error()) }
