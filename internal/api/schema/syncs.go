package schema

import (
	"time"

	"github.com/beexponential/insights/internal/schedule"
	"github.com/beexponential/insights/internal/syncwizard"
)

// SyncWizard is the rendering state of an open sync wizard.
type SyncWizard struct {
	ID string `json:"id"`
	syncwizard.View
}

// SyncTypeInput selects what a wizard synchronizes.
type SyncTypeInput struct {
	SyncType syncwizard.SyncType `json:"syncType" enum:"tasks,time_entries" required:"true"`
	FullSync *bool               `json:"fullSync,omitempty"`
}

// ConnectInput carries the ClickUp personal token.
type ConnectInput struct {
	Token string `json:"token" required:"true"`
}

// SelectInput picks a workspace or a space.
type SelectInput struct {
	ID string `json:"id" required:"true"`
}

// ToggleInput switches a template, list or field on or off.
type ToggleInput struct {
	On bool `json:"on"`
}

// ModeInput sets how later runs load data.
type ModeInput struct {
	Mode syncwizard.Mode `json:"mode" enum:"incremental,full" required:"true"`
}

// Columns lists the fields of a template or list and the selected ones.
type Columns struct {
	Key      string   `json:"key"`
	Fields   any      `json:"fields"`
	Selected []string `json:"selected"`
}

// SavedSync is returned once a wizard has been saved.
type SavedSync struct {
	ID      string             `json:"id"`
	Payload syncwizard.Payload `json:"payload"`
}

// Sync is a stored sync configuration.
type Sync struct {
	ID        string              `json:"id"`
	SyncType  syncwizard.SyncType `json:"syncType"`
	Cron      string              `json:"cron"`
	Enabled   bool                `json:"enabled"`
	NextRun   *time.Time          `json:"nextRun,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// CronPreview is a schedule translated to cron with its next fire times.
type CronPreview struct {
	Schedule schedule.Schedule `json:"schedule"`
	Cron     string            `json:"cron"`
	Next     []time.Time       `json:"next"`
}
