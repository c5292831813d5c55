package api

import (
	"errors"
	"net/http"

	eventqueue "github.com/okian/fitscore/internal/adapters/mq/queue"
	"github.com/okian/fitscore/internal/adapters/repository"
	service "github.com/okian/fitscore/internal/app"
)

// ErrBadRequest marks malformed or invalid request input.
var ErrBadRequest = errors.New("bad request")

// classify maps an upstream error to a status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), service.IsValidationError(err):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, eventqueue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, eventqueue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
