package handler

import (
	"errors"

	"github.com/beexponential/insights/internal/audit"
	"github.com/beexponential/insights/internal/clickup"
	"github.com/beexponential/insights/internal/drafts"
	huma "github.com/beexponential/insights/internal/huma"
	"github.com/beexponential/insights/internal/logger"
	"github.com/beexponential/insights/internal/preview"
	dashboardsrepo "github.com/beexponential/insights/internal/repository/dashboards"
	syncrepo "github.com/beexponential/insights/internal/repository/syncs"
	widgetsrepo "github.com/beexponential/insights/internal/repository/widgets"
	widgetsvc "github.com/beexponential/insights/internal/service/widgets"
	"github.com/beexponential/insights/internal/syncwizard"
	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/internal/widgetconfig"
	"github.com/beexponential/insights/internal/widgetdialog"
)

// apiError maps domain errors to HTTP errors. Anything unknown is logged
// and reported as 500.
func apiError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *syncwizard.ValidationError
	switch {
	case errors.As(err, &ve):
		return huma.Error422(ve.Field, ve.Message)
	case errors.Is(err, widgetsrepo.ErrNotFound),
		errors.Is(err, dashboardsrepo.ErrNotFound),
		errors.Is(err, syncrepo.ErrNotFound),
		errors.Is(err, audit.ErrNotFound),
		errors.Is(err, drafts.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, widgetdialog.ErrInvalidStep),
		errors.Is(err, widgetdialog.ErrTypeLocked),
		errors.Is(err, syncwizard.ErrInvalidStep),
		errors.Is(err, syncwizard.ErrCancelled),
		errors.Is(err, syncwizard.ErrStale),
		errors.Is(err, preview.ErrStale),
		errors.Is(err, preview.ErrClosed):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, widgetdialog.ErrNotReady),
		errors.Is(err, widgetconfig.ErrWrongType),
		errors.Is(err, widgetconfig.ErrNoMeasure),
		errors.Is(err, widgetsvc.ErrTypeMismatch),
		errors.Is(err, dashboardsrepo.ErrInvalid),
		errors.Is(err, syncwizard.ErrMandatoryField),
		errors.Is(err, syncwizard.ErrUnknownItem),
		errors.Is(err, syncwizard.ErrNotConnected),
		errors.Is(err, clickup.ErrUnauthorized),
		errors.Is(err, preview.ErrNotReadOnly):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, widgetdialog.ErrFieldsUnavailable):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, tenant.ErrMissing):
		return huma.Error400BadRequest(err.Error())
	}
	logger.L.Error(op, "err", err)
	return huma.Error500InternalServerError("internal error")
}
