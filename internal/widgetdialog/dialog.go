// Package widgetdialog drives the create/edit widget dialog: type
// selection, configuration and save.
package widgetdialog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/beexponential/insights/internal/catalog"
	"github.com/beexponential/insights/internal/logger"
	"github.com/beexponential/insights/internal/widget"
	"github.com/beexponential/insights/internal/widgetconfig"
)

// Step is the position of the dialog.
type Step int

const (
	StepTypeSelection Step = iota
	StepConfiguring
	StepSaved
	StepCancelled
)

func (s Step) String() string {
	switch s {
	case StepTypeSelection:
		return "type_selection"
	case StepConfiguring:
		return "configuring"
	case StepSaved:
		return "saved"
	case StepCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// MarshalText renders the step name.
func (s Step) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var (
	// ErrInvalidStep is returned for an action the current step does not allow.
	ErrInvalidStep = errors.New("action not allowed in current step")
	// ErrNotReady is returned by Save while no query can be built.
	ErrNotReady = errors.New("widget configuration is incomplete")
	// ErrTypeLocked is returned when changing the type of an existing widget.
	ErrTypeLocked = errors.New("widget type cannot change while editing")
	// ErrFieldsUnavailable is returned by Save on an edit dialog whose
	// calculated fields could not be loaded.
	ErrFieldsUnavailable = errors.New("calculated fields are not loaded")
)

// Store persists widgets.
type Store interface {
	Create(ctx context.Context, w widget.Widget) (string, error)
	UpdateConfig(ctx context.Context, id string, t widget.Type, cfg widget.Config) error
}

// FieldSource provides the calculated-field catalog.
type FieldSource interface {
	ListCalculatedFields(ctx context.Context) ([]catalog.CalculatedField, error)
}

// Deps are the collaborators of a dialog.
type Deps struct {
	Store    Store
	Fields   FieldSource
	Notifier Notifier
	// OnSaved runs after a successful save, before the dialog closes.
	OnSaved func(ctx context.Context, w widget.Widget)
}

// Dialog is one open widget dialog. It is safe for concurrent use.
type Dialog struct {
	deps Deps

	mu          sync.Mutex
	editing     bool
	widgetID    string
	dashboardID string
	layout      widget.Layout
	step        Step
	fields      []catalog.CalculatedField
	loaded      bool
	state       widgetconfig.State
	onClose     []func()
}

// NewCreate opens a dialog that creates a widget on dashboardID.
func NewCreate(dashboardID string, layout *widget.Layout, deps Deps) *Dialog {
	l := widget.DefaultLayout
	if layout != nil {
		l = *layout
	}
	return &Dialog{deps: deps, dashboardID: dashboardID, layout: l, step: StepTypeSelection}
}

// NewEdit opens a dialog on an existing widget. It starts configuring with
// the stored type and configuration.
func NewEdit(w widget.Widget, deps Deps) *Dialog {
	return &Dialog{
		deps:        deps,
		editing:     true,
		widgetID:    w.ID,
		dashboardID: w.DashboardID,
		layout:      w.Layout,
		step:        StepConfiguring,
		state:       widgetconfig.FromConfig(w.Config, nil),
	}
}

// Open fetches the calculated fields. A failed fetch is reported and the
// dialog stays usable with an empty catalog.
func (d *Dialog) Open(ctx context.Context) error {
	var fields []catalog.CalculatedField
	var err error
	if d.deps.Fields != nil {
		fields, err = d.deps.Fields.ListCalculatedFields(ctx)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		logger.L.Error("load calculated fields", "err", err)
		d.notify(ctx, Failure("Could not load calculated fields", err))
		return fmt.Errorf("load calculated fields: %w", err)
	}
	d.fields = fields
	d.loaded = true
	if d.step == StepConfiguring {
		d.state, _ = widgetconfig.Reduce(d.state, widgetconfig.SetFields{Fields: fields})
	}
	return nil
}

// OnClose registers fn to run once when the dialog is saved or cancelled.
func (d *Dialog) OnClose(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClose = append(d.onClose, fn)
}

// Step returns the current step.
func (d *Dialog) Step() Step {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.step
}

// Editing reports whether the dialog edits an existing widget.
func (d *Dialog) Editing() bool { return d.editing }

// State returns the configuration being built.
func (d *Dialog) State() widgetconfig.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ChooseType selects the widget type and moves to configuration with a
// fresh {name: ""} config.
func (d *Dialog) ChooseType(t widget.Type) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.editing {
		return ErrTypeLocked
	}
	if d.step != StepTypeSelection {
		return ErrInvalidStep
	}
	s, err := widgetconfig.New(t, d.fields)
	if err != nil {
		return err
	}
	d.state = s
	d.step = StepConfiguring
	return nil
}

// Back returns a create dialog to type selection, dropping the config.
func (d *Dialog) Back() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.editing || d.step != StepConfiguring {
		return ErrInvalidStep
	}
	d.state = widgetconfig.State{}
	d.step = StepTypeSelection
	return nil
}

// Apply changes the configuration.
func (d *Dialog) Apply(actions ...widgetconfig.Action) (widgetconfig.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.step != StepConfiguring {
		return d.state, ErrInvalidStep
	}
	s, err := widgetconfig.ReduceAll(d.state, actions...)
	if err != nil {
		return d.state, err
	}
	d.state = s
	return s, nil
}

// fieldsPendingLocked reports an edit dialog whose stored config may name
// calculated fields that are not loaded yet. Saving it would rebuild the
// query as if they were plain columns.
func (d *Dialog) fieldsPendingLocked() bool {
	return d.editing && !d.loaded && d.deps.Fields != nil
}

// CanSave reports whether the current configuration produced a query.
func (d *Dialog) CanSave() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.step == StepConfiguring && d.state.Ready() && !d.fieldsPendingLocked()
}

// Save creates or updates the widget. On failure the dialog keeps its state
// and stays open so the caller can retry. An edit dialog whose calculated
// fields failed to load retries the load first.
func (d *Dialog) Save(ctx context.Context) (widget.Widget, error) {
	d.mu.Lock()
	pending := d.fieldsPendingLocked()
	d.mu.Unlock()
	if pending {
		if err := d.Open(ctx); err != nil {
			return widget.Widget{}, fmt.Errorf("%w: %v", ErrFieldsUnavailable, err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.step != StepConfiguring {
		return widget.Widget{}, ErrInvalidStep
	}
	if !d.state.Ready() {
		return widget.Widget{}, ErrNotReady
	}
	w := widget.Widget{
		ID:          d.widgetID,
		DashboardID: d.dashboardID,
		Type:        d.state.Type(),
		Config:      d.state.Config(),
		Layout:      d.layout,
	}
	var err error
	if d.editing {
		err = d.deps.Store.UpdateConfig(ctx, w.ID, w.Type, w.Config)
	} else {
		w.ID, err = d.deps.Store.Create(ctx, w)
	}
	if err != nil {
		logger.L.Error("save widget", "dashboard", d.dashboardID, "widget", d.widgetID, "err", err)
		d.notify(ctx, Failure("Could not save widget", err))
		return widget.Widget{}, fmt.Errorf("save widget: %w", err)
	}
	if d.editing {
		d.notify(ctx, Success("Widget updated"))
	} else {
		d.notify(ctx, Success("Widget created"))
	}
	if d.deps.OnSaved != nil {
		d.deps.OnSaved(ctx, w)
	}
	d.step = StepSaved
	d.closeLocked()
	return w, nil
}

// Cancel closes the dialog without saving.
func (d *Dialog) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.step == StepSaved || d.step == StepCancelled {
		return
	}
	d.step = StepCancelled
	d.closeLocked()
}

func (d *Dialog) closeLocked() {
	fns := d.onClose
	d.onClose = nil
	for _, fn := range fns {
		fn()
	}
}

func (d *Dialog) notify(ctx context.Context, n Notification) {
	if d.deps.Notifier != nil {
		d.deps.Notifier.Notify(ctx, n)
	}
}
