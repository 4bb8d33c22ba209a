package syncwizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
	"golang.org/x/sync/errgroup"

	"github.com/beexponential/insights/internal/clickup"
	"github.com/beexponential/insights/internal/listgroup"
	"github.com/beexponential/insights/internal/schedule"
)

const dateLayout = "2006-01-02"

// discoveryLimit bounds concurrent field requests during full sync.
const discoveryLimit = 4

// Save validates the wizard and persists it. On error the wizard keeps its
// state so the user can correct it and retry.
func (w *Wizard) Save(ctx context.Context) (string, Payload, error) {
	if err := w.lock(); err != nil {
		return "", Payload{}, err
	}
	defer w.mu.Unlock()
	s := &w.st
	if s.step != StepSchedule {
		return "", Payload{}, ErrInvalidStep
	}
	if err := s.checkConnection(); err != nil {
		return "", Payload{}, err
	}
	if err := schedule.ValidateCron(s.cron); err != nil {
		return "", Payload{}, invalid("schedule", err.Error())
	}

	p := Payload{
		SyncConfig: SyncConfig{
			SyncType:      s.syncType,
			APIToken:      s.token,
			WorkspaceID:   s.workspace.ID,
			WorkspaceName: s.workspace.Name,
			SpaceID:       s.space.ID,
			SpaceName:     s.space.Name,
			FullSync:      s.syncType == SyncTasks && s.fullSync,
			TemplateMode:  s.templateMode,
		},
		Schedule: s.schedule,
		Cron:     s.cron,
		Mode:     s.mode,
	}

	switch s.syncType {
	case SyncTimeEntries:
		if err := validateTimeEntries(s.timeEntries); err != nil {
			return "", Payload{}, err
		}
		ts := s.timeEntries
		p.TimeEntriesSettings = &ts
	case SyncTasks:
		if s.fullSync {
			w.discoverAll(ctx)
		} else if !s.anySelected() {
			return "", Payload{}, invalid("fields", "select at least one field")
		}
		p.Mappings = s.mappings()
	}

	id, err := w.store.Save(ctx, p)
	if err != nil {
		w.logger.Errorf("save sync config: %v", err)
		return "", Payload{}, fmt.Errorf("save sync config: %w", err)
	}
	w.logger.Infow("sync config saved", "id", id, "type", s.syncType, "cron", s.cron)
	w.done = true
	return id, p, nil
}

func validateTimeEntries(ts TimeEntrySettings) error {
	switch ts.Scope {
	case ScopeLastWeek, ScopeLast30Days:
		return nil
	case ScopeCustomRange:
	case "":
		return invalid("scope", "choose a time range")
	default:
		return invalid("scope", fmt.Sprintf("unknown scope %q", ts.Scope))
	}
	if ts.StartDate == "" || ts.EndDate == "" {
		return invalid("range", "a custom range needs a start and an end date")
	}
	from, err := time.Parse(dateLayout, ts.StartDate)
	if err != nil {
		return invalid("start_date", "expected YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, ts.EndDate)
	if err != nil {
		return invalid("end_date", "expected YYYY-MM-DD")
	}
	if to.Before(from) {
		return invalid("range", "end date is before start date")
	}
	return nil
}

// keys returns the active mapping keys in display order.
func (s *state) keys() []string {
	var out []string
	if s.templateMode {
		for _, g := range s.groups {
			if s.active[g.TypeName] {
				out = append(out, g.TypeName)
			}
		}
		return out
	}
	for _, l := range s.lists {
		if s.active[l.ID] && !s.excluded[l.ID] {
			out = append(out, l.ID)
		}
	}
	return out
}

func (s *state) anySelected() bool {
	for _, k := range s.keys() {
		if len(s.selected[k]) > 0 {
			return true
		}
	}
	return false
}

// discoverAll fetches the schema of every active key and selects all of its
// fields. A failed request counts as an empty schema.
func (w *Wizard) discoverAll(ctx context.Context) {
	s := &w.st
	keys := s.keys()
	results := make(map[string][]clickup.Field, len(keys))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(discoveryLimit)
	for _, key := range keys {
		listID, _ := s.sampleList(key)
		g.Go(func() error {
			fields, err := w.api.ListFields(gctx, s.token, listID)
			if err != nil {
				w.logger.Debugf("full sync: fields of list %s: %v", listID, err)
				fields = nil
			}
			mu.Lock()
			results[key] = fields
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, key := range keys {
		fields := results[key]
		s.schemas[key] = fields
		sel := map[string]bool{}
		for _, f := range fields {
			sel[f.ID] = true
		}
		s.selected[key] = sel
	}
}

func (s *state) mappings() *Mappings {
	m := &Mappings{Fields: map[string][]string{}, Templates: []Template{}}
	for _, key := range s.keys() {
		fields := s.schemas[key]
		ids := orderedSelection(fields, s.selected[key])
		m.Fields[key] = ids
		if !s.templateMode {
			continue
		}
		g, _ := listgroup.Find(s.groups, key)
		t := Template{
			TypeName:     g.TypeName,
			Table:        TableName(g.TypeName),
			SampleListID: g.SampleListID,
			Lists:        []listgroup.List{},
			Columns:      []Column{},
		}
		for _, l := range g.Lists {
			if !s.excluded[l.ID] {
				t.Lists = append(t.Lists, l)
			}
		}
		for _, f := range fields {
			if s.selected[key][f.ID] {
				t.Columns = append(t.Columns, Column{FieldID: f.ID, Name: f.Name, Column: ColumnName(f.Name)})
			}
		}
		m.Templates = append(m.Templates, t)
	}
	return m
}

// TableName is the destination table of a template: "project alpha"
// becomes "clickup_project_alphas".
func TableName(typeName string) string {
	return "clickup_" + inflection.Plural(strcase.ToSnake(typeName))
}

// ColumnName is the destination column of a field.
func ColumnName(name string) string {
	return strcase.ToSnake(name)
}
