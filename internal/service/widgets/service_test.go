package widgetsvc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/beexponential/insights/internal/events"
	notify "github.com/beexponential/insights/internal/notify/widgets"
	widgetsrepo "github.com/beexponential/insights/internal/repository/widgets"
	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/internal/widget"
)

type memRepo struct {
	mu sync.Mutex
	ws map[string]widget.Widget
	n  int
}

func newMemRepo() *memRepo { return &memRepo{ws: map[string]widget.Widget{}} }

func (m *memRepo) Create(_ context.Context, w widget.Widget) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	w.ID = "w" + string(rune('0'+m.n))
	m.ws[w.ID] = w
	return w.ID, nil
}

func (m *memRepo) UpdateConfig(_ context.Context, id string, _ widget.Type, cfg widget.Config) error {
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

func (m *memRepo) UpdateLayout(_ context.Context, id string, l widget.Layout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.ws[id]
	w.Layout = l
	m.ws[id] = w
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ws, id)
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (widget.Widget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.ws[id]
	if !ok {
		return widget.Widget{}, widgetsrepo.ErrNotFound
	}
	return w, nil
}

func (m *memRepo) ListByDashboard(context.Context, string) ([]widget.Widget, error) { return nil, nil }

func (m *memRepo) GetETagAndLastMod(context.Context, string) (string, time.Time, error) {
	return "", time.Time{}, nil
}

type auditLog struct{ actions []string }

func (a *auditLog) Write(_ context.Context, _ string, old, new *widget.Widget) error {
	switch {
	case old == nil:
		a.actions = append(a.actions, "create")
	case new == nil:
		a.actions = append(a.actions, "delete")
	default:
		if old.Config.Name == new.Config.Name {
			return errors.New("no change")
		}
		a.actions = append(a.actions, "update")
	}
	return nil
}

type notes struct{ got []notify.Event }

func (n *notes) Notify(_ context.Context, ev notify.Event) error {
	n.got = append(n.got, ev)
	return nil
}

type emitted struct{ names []string }

func (e *emitted) Dispatch(_ context.Context, ev events.Event) { e.names = append(e.names, ev.Name) }

func TestLifecycle(t *testing.T) {
	ctx := tenant.WithTenant(context.Background(), "acme")
	a, n, e := &auditLog{}, &notes{}, &emitted{}
	s := &Service{Repo: newMemRepo(), Audit: a, Notifier: n, Events: e}
	w := widget.Widget{DashboardID: "d1", Type: widget.TypeKPI, Config: widget.Config{Name: "A", Options: widget.KPIOptions{}}}
	id, err := s.Create(ctx, w)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.UpdateConfig(ctx, id, widget.TypeKPI, widget.Config{Name: "B", Options: widget.KPIOptions{}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.UpdateConfig(ctx, id, widget.TypeBarChart, widget.Config{Name: "C"}); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("type change must be rejected")
	}
	if err := s.UpdateLayout(ctx, id, widget.Layout{X: 2, Y: 0, W: 4, H: 3}); err != nil {
		t.Fatalf("layout: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, widgetsrepo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := a.actions; len(got) != 3 || got[0] != "create" || got[2] != "delete" {
		t.Fatalf("audit: %v", got)
	}
	if len(n.got) != 4 || n.got[3].Type != notify.TypeRemove || n.got[0].Tenant != "acme" || n.got[0].DashboardID != "d1" {
		t.Fatalf("notifications: %+v", n.got)
	}
	want := []string{events.WidgetCreated, events.WidgetUpdated, events.WidgetDeleted}
	for i, name := range want {
		if e.names[i] != name {
			t.Fatalf("events: %v", e.names)
		}
	}
}
