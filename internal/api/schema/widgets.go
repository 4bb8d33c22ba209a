package schema

import (
	"time"

	"github.com/beexponential/insights/internal/widget"
)

// Widget is a dashboard widget together with how it is presented.
type Widget struct {
	ID          string            `json:"id"`
	DashboardID string            `json:"dashboardId"`
	Type        widget.Type       `json:"widgetType"`
	Descriptor  widget.Descriptor `json:"descriptor"`
	Config      widget.Config     `json:"config"`
	Layout      widget.Layout     `json:"layout"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// NewWidget attaches the type descriptor; unknown types get the
// "not supported" placeholder.
func NewWidget(w widget.Widget) Widget {
	return Widget{
		ID:          w.ID,
		DashboardID: w.DashboardID,
		Type:        w.Type,
		Descriptor:  widget.Describe(w.Type),
		Config:      w.Config,
		Layout:      w.Layout,
		UpdatedAt:   w.UpdatedAt,
	}
}

// LayoutInput moves or resizes a widget.
type LayoutInput struct {
	X int `json:"x" minimum:"0"`
	Y int `json:"y" minimum:"0"`
	W int `json:"w" minimum:"1"`
	H int `json:"h" minimum:"1"`
}
