package syncwizard

import (
	"github.com/beexponential/insights/internal/clickup"
	"github.com/beexponential/insights/internal/listgroup"
	"github.com/beexponential/insights/internal/schedule"
)

// View is a read-only snapshot of the wizard for rendering.
type View struct {
	Step         Step                  `json:"step"`
	SyncType     SyncType              `json:"sync_type,omitempty"`
	Connected    bool                  `json:"connected"`
	User         string                `json:"user,omitempty"`
	Workspaces   []clickup.Workspace   `json:"workspaces,omitempty"`
	WorkspaceID  string                `json:"workspace_id,omitempty"`
	Spaces       []clickup.Space       `json:"spaces,omitempty"`
	SpaceID      string                `json:"space_id,omitempty"`
	FullSync     bool                  `json:"full_sync"`
	TemplateMode bool                  `json:"template_mode"`
	Groups       []listgroup.ListGroup `json:"groups,omitempty"`
	Lists        []listgroup.List      `json:"lists,omitempty"`
	Active       []string              `json:"active"`
	Excluded     []string              `json:"excluded"`
	Selected     map[string][]string   `json:"selected"`
	TimeEntries  TimeEntrySettings     `json:"time_entries"`
	Schedule     schedule.Schedule     `json:"schedule"`
	Cron         string                `json:"cron"`
	Mode         Mode                  `json:"mode"`
}

// View returns the current snapshot.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := &w.st
	v := View{
		Step:         s.step,
		SyncType:     s.syncType,
		Connected:    s.token != "",
		User:         s.user.Username,
		Workspaces:   s.workspaces,
		WorkspaceID:  s.workspace.ID,
		Spaces:       s.spaces,
		SpaceID:      s.space.ID,
		FullSync:     s.fullSync,
		TemplateMode: s.templateMode,
		Groups:       s.groups,
		Lists:        s.lists,
		Active:       []string{},
		Excluded:     []string{},
		Selected:     map[string][]string{},
		TimeEntries:  s.timeEntries,
		Schedule:     s.schedule,
		Cron:         s.cron,
		Mode:         s.mode,
	}
	for _, g := range s.groups {
		if s.active[g.TypeName] {
			v.Active = append(v.Active, g.TypeName)
		}
	}
	for _, l := range s.lists {
		if s.active[l.ID] {
			v.Active = append(v.Active, l.ID)
		}
		if s.excluded[l.ID] {
			v.Excluded = append(v.Excluded, l.ID)
		}
	}
	for k, sel := range s.selected {
		v.Selected[k] = orderedSelection(s.schemas[k], sel)
	}
	return v
}
