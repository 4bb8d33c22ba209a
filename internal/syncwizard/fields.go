package syncwizard

import (
	"context"
	"fmt"

	"github.com/beexponential/insights/internal/clickup"
	"github.com/beexponential/insights/internal/listgroup"
)

// sampleList returns the list whose schema represents key.
func (s *state) sampleList(key string) (string, bool) {
	if s.templateMode {
		g, ok := listgroup.Find(s.groups, key)
		return g.SampleListID, ok
	}
	return key, s.hasList(key)
}

// OpenColumns loads the field schema of a template or list and marks the
// mandatory fields it contains as selected. key is the template type name in
// template mode and the list id otherwise.
func (w *Wizard) OpenColumns(ctx context.Context, key string) ([]clickup.Field, []string, error) {
	if err := w.lock(); err != nil {
		return nil, nil, err
	}
	defer w.mu.Unlock()
	if w.st.step != StepConfiguration || w.st.syncType != SyncTasks {
		return nil, nil, ErrInvalidStep
	}
	listID, ok := w.st.sampleList(key)
	if !ok {
		return nil, nil, ErrUnknownItem
	}
	fields, cached := w.st.schemas[key]
	if !cached {
		var err error
		fields, err = w.api.ListFields(ctx, w.st.token, listID)
		if err != nil {
			w.logger.Warnf("list fields of %s: %v", listID, err)
			return nil, nil, fmt.Errorf("list fields: %w", err)
		}
		w.st.schemas[key] = fields
	}
	sel := w.st.selected[key]
	if sel == nil {
		sel = map[string]bool{}
		w.st.selected[key] = sel
	}
	for _, f := range fields {
		if IsMandatory(f.ID) {
			sel[f.ID] = true
		}
	}
	return fields, orderedSelection(fields, sel), nil
}

// ToggleField adds or removes fieldID from the selection of key. Mandatory
// fields cannot be removed.
func (w *Wizard) ToggleField(key, fieldID string, on bool) ([]string, error) {
	if err := w.lock(); err != nil {
		return nil, err
	}
	defer w.mu.Unlock()
	fields, ok := w.st.schemas[key]
	if !ok {
		return nil, ErrUnknownItem
	}
	if !hasField(fields, fieldID) {
		return nil, invalid("field", fmt.Sprintf("unknown field %q", fieldID))
	}
	sel := w.st.selected[key]
	if !on && IsMandatory(fieldID) {
		return orderedSelection(fields, sel), ErrMandatoryField
	}
	if on {
		sel[fieldID] = true
	} else {
		delete(sel, fieldID)
	}
	return orderedSelection(fields, sel), nil
}

// Selection returns the selected field ids of key in schema order.
func (w *Wizard) Selection(key string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return orderedSelection(w.st.schemas[key], w.st.selected[key])
}

func hasField(fields []clickup.Field, id string) bool {
	for _, f := range fields {
		if f.ID == id {
			return true
		}
	}
	return false
}

func orderedSelection(fields []clickup.Field, sel map[string]bool) []string {
	out := []string{}
	for _, f := range fields {
		if sel[f.ID] {
			out = append(out, f.ID)
		}
	}
	return out
}
