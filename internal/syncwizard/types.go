// Package syncwizard is the ClickUp sync setup wizard: sync type,
// connection, field or time-range configuration, and schedule.
package syncwizard

import (
	"errors"
	"fmt"

	"github.com/beexponential/insights/internal/listgroup"
	"github.com/beexponential/insights/internal/schedule"
)

// SyncType is what gets synchronized.
type SyncType string

const (
	SyncTasks       SyncType = "tasks"
	SyncTimeEntries SyncType = "time_entries"
)

// Step is the wizard position.
type Step int

const (
	StepType Step = iota
	StepConnection
	StepConfiguration
	StepSchedule
)

// Mode is how subsequent runs load data.
type Mode string

const (
	ModeIncremental Mode = "incremental"
	ModeFull        Mode = "full"
)

// Scope is the time window of a time-entry sync.
type Scope string

const (
	ScopeLastWeek    Scope = "last_week"
	ScopeLast30Days  Scope = "last_30_days"
	ScopeCustomRange Scope = "custom_range"
)

// MandatoryFields are always synchronized when the list has them.
var MandatoryFields = []string{"id", "name", "project", "folder", "space"}

// IsMandatory reports whether fieldID is a mandatory field.
func IsMandatory(fieldID string) bool {
	for _, f := range MandatoryFields {
		if f == fieldID {
			return true
		}
	}
	return false
}

var (
	ErrInvalidStep    = errors.New("action not allowed in current step")
	ErrMandatoryField = errors.New("mandatory field cannot be removed")
	ErrNotConnected   = errors.New("clickup token not validated")
	ErrUnknownItem    = errors.New("unknown template or list")
	ErrCancelled      = errors.New("wizard cancelled")
	ErrStale          = errors.New("connection changed while loading from ClickUp")
)

// ValidationError is a user-correctable problem that blocks the wizard.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// TimeEntrySettings configure a time-entry sync. Dates are YYYY-MM-DD.
type TimeEntrySettings struct {
	Scope     Scope  `json:"scope"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Backfill  bool   `json:"historical_backfill"`
}

// SyncConfig identifies what is synchronized.
type SyncConfig struct {
	SyncType      SyncType `json:"sync_type"`
	APIToken      string   `json:"api_token"`
	WorkspaceID   string   `json:"workspace_id"`
	WorkspaceName string   `json:"workspace_name,omitempty"`
	SpaceID       string   `json:"space_id,omitempty"`
	SpaceName     string   `json:"space_name,omitempty"`
	FullSync      bool     `json:"full_sync"`
	TemplateMode  bool     `json:"template_mode"`
}

// Column maps a ClickUp field to a destination column.
type Column struct {
	FieldID string `json:"field_id"`
	Name    string `json:"name"`
	Column  string `json:"column"`
}

// Template is a group of lists synchronized into one table.
type Template struct {
	TypeName     string           `json:"type_name"`
	Table        string           `json:"table"`
	SampleListID string           `json:"sample_list_id"`
	Lists        []listgroup.List `json:"lists"`
	Columns      []Column         `json:"columns"`
}

// Mappings are the field selections of a task sync. Fields is keyed by
// template type name in template mode and by list id otherwise.
type Mappings struct {
	Fields    map[string][]string `json:"fields"`
	Templates []Template          `json:"templates"`
}

// Payload is what Save persists.
type Payload struct {
	SyncConfig          SyncConfig         `json:"syncConfig"`
	Schedule            schedule.Schedule  `json:"schedule"`
	Cron                string             `json:"cron"`
	Mode                Mode               `json:"mode"`
	Mappings            *Mappings          `json:"mappings,omitempty"`
	TimeEntriesSettings *TimeEntrySettings `json:"time_entries_settings,omitempty"`
}
