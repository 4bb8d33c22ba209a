// Package widgetconfig holds the configuration of a widget being edited.
//
// State is a value. Every change goes through Reduce, which merges the
// change and rebuilds the derived query before returning, so a State never
// carries a query computed from older options.
package widgetconfig

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/beexponential/insights/internal/catalog"
	"github.com/beexponential/insights/internal/querybuilder"
	"github.com/beexponential/insights/internal/widget"
)

// ErrWrongType is returned when an action targets another widget type.
var ErrWrongType = errors.New("action does not apply to this widget type")

// ErrNoMeasure is returned when a measure index is out of range.
var ErrNoMeasure = errors.New("measure not found")

// State is the in-progress configuration of one widget.
type State struct {
	Name    string
	Options widget.Options
	Query   string
	// Fields is the calculated-field catalog the query is built against.
	Fields []catalog.CalculatedField
}

// New returns an empty configuration of type t.
func New(t widget.Type, fields []catalog.CalculatedField) (State, error) {
	opts, err := widget.NewOptions(t)
	if err != nil {
		return State{}, err
	}
	return rebuild(State{Options: opts, Fields: fields}), nil
}

// FromConfig starts editing a stored configuration. The stored query is
// discarded and derived again from the options.
func FromConfig(cfg widget.Config, fields []catalog.CalculatedField) State {
	return rebuild(State{Name: cfg.Name, Options: widget.CloneOptions(cfg.Options), Fields: fields})
}

// Type returns the widget type being configured.
func (s State) Type() widget.Type {
	if s.Options == nil {
		return ""
	}
	return s.Options.WidgetType()
}

// Ready reports whether a query could be derived.
func (s State) Ready() bool { return s.Query != "" }

// Config returns the persistable configuration.
func (s State) Config() widget.Config {
	return widget.Config{Name: s.Name, Options: widget.CloneOptions(s.Options), Query: s.Query}
}

// Action is one change to a State.
type Action interface {
	apply(s State) (State, error)
}

// Reduce applies a to s and recomputes the query. On error s is returned
// unchanged.
func Reduce(s State, a Action) (State, error) {
	if a == nil {
		return s, nil
	}
	next := s
	next.Options = widget.CloneOptions(s.Options)
	next, err := a.apply(next)
	if err != nil {
		return s, err
	}
	return rebuild(next), nil
}

// ReduceAll applies actions in order and stops at the first error.
func ReduceAll(s State, actions ...Action) (State, error) {
	var err error
	for _, a := range actions {
		if s, err = Reduce(s, a); err != nil {
			return s, err
		}
	}
	return s, nil
}

func rebuild(s State) State {
	q, ok := querybuilder.Build(s.Options, s.Fields)
	if !ok {
		q = ""
	}
	s.Query = q
	return s
}

// SetName renames the widget.
type SetName struct{ Name string }

func (a SetName) apply(s State) (State, error) {
	s.Name = a.Name
	return s, nil
}

// SetFields replaces the calculated-field catalog, e.g. after a refetch.
type SetFields struct{ Fields []catalog.CalculatedField }

func (a SetFields) apply(s State) (State, error) {
	s.Fields = append([]catalog.CalculatedField(nil), a.Fields...)
	return s, nil
}

// Merge overlays a partial JSON configuration on the current one. Keys not
// present in Patch keep their value; "name" renames the widget.
type Merge struct{ Patch json.RawMessage }

func (a Merge) apply(s State) (State, error) {
	if s.Options == nil {
		return s, fmt.Errorf("merge: %w", ErrWrongType)
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(a.Patch, &patch); err != nil {
		return s, fmt.Errorf("merge: %w", err)
	}
	cur := s.Config()
	b, err := json.Marshal(cur)
	if err != nil {
		return s, err
	}
	var base map[string]json.RawMessage
	if err := json.Unmarshal(b, &base); err != nil {
		return s, err
	}
	for k, v := range patch {
		if k == "query" {
			continue
		}
		base[k] = v
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return s, err
	}
	cfg, err := widget.DecodeConfig(s.Type(), merged)
	if err != nil {
		return s, err
	}
	s.Name = cfg.Name
	s.Options = cfg.Options
	return s, nil
}
