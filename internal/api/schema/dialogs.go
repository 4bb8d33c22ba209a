package schema

import (
	"encoding/json"

	"github.com/beexponential/insights/internal/widget"
	"github.com/beexponential/insights/internal/widgetdialog"
)

// OpenDialog starts a widget dialog. WidgetID opens an edit dialog,
// otherwise a new widget is created on DashboardID.
type OpenDialog struct {
	DashboardID string         `json:"dashboardId,omitempty"`
	WidgetID    string         `json:"widgetId,omitempty"`
	Layout      *widget.Layout `json:"layout,omitempty"`
}

// Dialog is the rendering state of an open widget dialog.
type Dialog struct {
	ID            string                      `json:"id"`
	Step          widgetdialog.Step           `json:"step"`
	Editing       bool                        `json:"editing"`
	Type          widget.Type                 `json:"widgetType,omitempty"`
	Name          string                      `json:"name"`
	Options       widget.Options              `json:"options,omitempty"`
	Query         string                      `json:"query"`
	CanSave       bool                        `json:"canSave"`
	Aggregations  []widget.Aggregation        `json:"aggregations,omitempty"`
	Notifications []widgetdialog.Notification `json:"notifications,omitempty"`
}

// ChooseType selects the widget type of a create dialog.
type ChooseType struct {
	Type widget.Type `json:"widgetType" required:"true"`
}

// ConfigPatch changes the configuration of an open dialog. Options is
// merged into the current options; keys absent from it stay unchanged.
type ConfigPatch struct {
	Name    *string         `json:"name,omitempty"`
	Options json.RawMessage `json:"options,omitempty"`
}

// MeasurePatch changes one pivot measure.
type MeasurePatch struct {
	Column      *string             `json:"column,omitempty"`
	Aggregation *widget.Aggregation `json:"aggregation,omitempty"`
}

// Preview is the result of running the dialog query.
type Preview struct {
	Query     string           `json:"query"`
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
}
