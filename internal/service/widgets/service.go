// Package widgetsvc wraps widget persistence with auditing, live
// notifications and domain events.
package widgetsvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/beexponential/insights/internal/events"
	"github.com/beexponential/insights/internal/logger"
	notify "github.com/beexponential/insights/internal/notify/widgets"
	widgetsrepo "github.com/beexponential/insights/internal/repository/widgets"
	"github.com/beexponential/insights/internal/server/middleware"
	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/internal/widget"
	"github.com/beexponential/insights/pkg/metrics"
)

// ErrTypeMismatch is returned when an update names a different widget type.
var ErrTypeMismatch = errors.New("widget type cannot change")

// Auditor records widget changes.
type Auditor interface {
	Write(ctx context.Context, actor string, old, new *widget.Widget) error
}

// Service implements widgetdialog.Store on top of a widgetsrepo.Repo.
// Side effects after a successful write are best effort: their failures
// are logged and never fail the write.
type Service struct {
	Repo     widgetsrepo.Repo
	Audit    Auditor
	Notifier notify.Notifier
	Events   events.Emitter
}

// Create stores a new widget.
func (s *Service) Create(ctx context.Context, w widget.Widget) (string, error) {
	id, err := s.Repo.Create(ctx, w)
	if err != nil {
		return "", err
	}
	w.ID = id
	w.TenantID = tenant.FromContext(ctx)
	s.after(ctx, "create", nil, &w)
	return id, nil
}

// UpdateConfig replaces the configuration of widget id.
func (s *Service) UpdateConfig(ctx context.Context, id string, t widget.Type, cfg widget.Config) error {
	old, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if old.Type != t {
		return fmt.Errorf("%w: widget %s is %s, not %s", ErrTypeMismatch, id, old.Type, t)
	}
	if err := s.Repo.UpdateConfig(ctx, id, t, cfg); err != nil {
		return err
	}
	updated := old
	updated.Config = cfg
	s.after(ctx, "update", &old, &updated)
	return nil
}

// UpdateLayout moves or resizes widget id. Layout changes are not audited.
func (s *Service) UpdateLayout(ctx context.Context, id string, l widget.Layout) error {
	old, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdateLayout(ctx, id, l); err != nil {
		return err
	}
	s.publish(ctx, notify.TypeUpsert, old.DashboardID, id)
	return nil
}

// Delete removes widget id.
func (s *Service) Delete(ctx context.Context, id string) error {
	old, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.after(ctx, "delete", &old, nil)
	return nil
}

func (s *Service) after(ctx context.Context, action string, old, new *widget.Widget) {
	metrics.WidgetEvents.WithLabelValues(action).Inc()
	w := new
	if w == nil {
		w = old
	}
	if s.Audit != nil {
		if err := s.Audit.Write(ctx, middleware.UserFromContext(ctx), old, new); err != nil {
			logger.L.Error("audit widget", "widget", w.ID, "action", action, "err", err)
		}
	}
	typ := notify.TypeUpsert
	name := events.WidgetUpdated
	switch action {
	case "create":
		name = events.WidgetCreated
	case "delete":
		typ = notify.TypeRemove
		name = events.WidgetDeleted
	}
	s.publish(ctx, typ, w.DashboardID, w.ID)
	if s.Events != nil {
		s.Events.Dispatch(ctx, events.New(name, tenant.FromContext(ctx), map[string]string{
			"widget_id":    w.ID,
			"dashboard_id": w.DashboardID,
			"widget_type":  string(w.Type),
		}))
	}
}

func (s *Service) publish(ctx context.Context, typ, dashboardID, id string) {
	if s.Notifier == nil {
		return
	}
	ev := notify.NewEvent(typ, tenant.FromContext(ctx), dashboardID, id)
	if err := s.Notifier.Notify(ctx, ev); err != nil {
		logger.L.Warn("notify widget change", "widget", id, "err", err)
	}
}
