package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/beexponential/insights/internal/catalog"
	widgetsrepo "github.com/beexponential/insights/internal/repository/widgets"
	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/internal/widget"
)

func tctx() context.Context { return tenant.WithTenant(context.Background(), "acme") }

// memWidgets is an in-memory widgetsrepo.Repo.
type memWidgets struct {
	mu  sync.Mutex
	ws  map[string]widget.Widget
	seq int
}

func newMemWidgets(ws ...widget.Widget) *memWidgets {
	m := &memWidgets{ws: map[string]widget.Widget{}}
	for _, w := range ws {
		m.ws[w.ID] = w
	}
	return m
}

func (m *memWidgets) Create(_ context.Context, w widget.Widget) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	w.ID = fmt.Sprintf("w-%d", m.seq)
	w.UpdatedAt = time.Date(2024, 1, 1, 0, 0, m.seq, 0, time.UTC)
	m.ws[w.ID] = w
	return w.ID, nil
}

func (m *memWidgets) UpdateConfig(_ context.Context, id string, _ widget.Type, cfg widget.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.ws[id]
	if !ok {
		return widgetsrepo.ErrNotFound
	}
	w.Config = cfg
	m.ws[id] = w
	return nil
}

func (m *memWidgets) UpdateLayout(_ context.Context, id string, l widget.Layout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.ws[id]
	if !ok {
		return widgetsrepo.ErrNotFound
	}
	w.Layout = l
	m.ws[id] = w
	return nil
}

func (m *memWidgets) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ws[id]; !ok {
		return widgetsrepo.ErrNotFound
	}
	delete(m.ws, id)
	return nil
}

func (m *memWidgets) GetByID(_ context.Context, id string) (widget.Widget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.ws[id]
	if !ok {
		return widget.Widget{}, widgetsrepo.ErrNotFound
	}
	return w, nil
}

func (m *memWidgets) ListByDashboard(_ context.Context, dashboardID string) ([]widget.Widget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []widget.Widget
	for _, w := range m.ws {
		if w.DashboardID == dashboardID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWidgets) GetETagAndLastMod(ctx context.Context, dashboardID string) (string, time.Time, error) {
	ws, _ := m.ListByDashboard(ctx, dashboardID)
	var last time.Time
	h := sha256.New()
	for _, w := range ws {
		if w.UpdatedAt.After(last) {
			last = w.UpdatedAt
		}
		fmt.Fprintf(h, "%s|%s;", w.ID, w.UpdatedAt)
	}
	return `W/"` + hex.EncodeToString(h.Sum(nil))[:16] + `"`, last, nil
}

type staticFields []catalog.CalculatedField

func (s staticFields) ListCalculatedFields(context.Context) ([]catalog.CalculatedField, error) {
	return s, nil
}
