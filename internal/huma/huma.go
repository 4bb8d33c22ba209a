// Package huma re-exports the parts of huma used by the handlers together
// with small error helpers.
package huma

import (
	"context"
	"net/http"

	base "github.com/danielgtaylor/huma/v2"
)

type (
	API         = base.API
	Operation   = base.Operation
	StatusError = base.StatusError
	ErrorDetail = base.ErrorDetail
)

var (
	Error400BadRequest          = base.Error400BadRequest
	Error404NotFound            = base.Error404NotFound
	Error409Conflict            = base.Error409Conflict
	Error422UnprocessableEntity = base.Error422UnprocessableEntity
	Error500InternalServerError = base.Error500InternalServerError
	Error502BadGateway          = base.Error502BadGateway
	Error503ServiceUnavailable  = base.Error503ServiceUnavailable
	NewError                    = base.NewError
)

// Register wraps huma.Register to expose through this package.
func Register[I, O any](api API, op Operation, handler func(context.Context, *I) (*O, error)) {
	base.Register[I, O](api, op, handler)
}

// Error422 returns a 422 status error with field location information.
func Error422(field, msg string) StatusError {
	return base.NewError(http.StatusUnprocessableEntity, msg, &ErrorDetail{Location: field, Message: msg})
}
