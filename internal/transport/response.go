// Package transport contains the HTTP router, middleware chain, and all
// request handlers for the gateway API.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitabwire/netgate/internal/inventory"
	"github.com/pitabwire/netgate/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes. 503 stays
// reserved for the health endpoint when the gateway is degraded; upstream
// failures surface as the gateway's own 500s.
var statusForCode = map[string]int{
	model.ErrBadRequest:         http.StatusBadRequest,
	model.ErrValidationError:    http.StatusBadRequest,
	model.ErrUnauthorized:       http.StatusUnauthorized,
	model.ErrNotFound:           http.StatusNotFound,
	model.ErrConflict:           http.StatusConflict,
	model.ErrInvalidTransition:  http.StatusConflict,
	model.ErrBackendError:       http.StatusInternalServerError,
	model.ErrBackendUnavailable: http.StatusInternalServerError,
	model.ErrInternalError:      http.StatusInternalServerError,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes err as the gateway's JSON error envelope with the
// matching HTTP status, stamping the active trace id when the envelope does
// not already carry one. Inventory errors are translated to their
// user-visible envelope first; anything unrecognized becomes an opaque 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ee := toEnvelope(err)

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if ee.TraceID == "" {
		if rctx := model.RequestContextFrom(r.Context()); rctx != nil && rctx.TraceID != "" {
			clone := *ee
			clone.TraceID = rctx.TraceID
			ee = &clone
		}
	}

	WriteJSON(w, status, ee)
}

func toEnvelope(err error) *model.ErrorEnvelope {
	var ee *model.ErrorEnvelope
	if errors.As(err, &ee) {
		return ee
	}

	var invErr *inventory.Error
	if errors.As(err, &invErr) {
		switch invErr.Kind {
		case inventory.KindNotFound:
			return model.NewNotFoundError(invErr.Message)
		case inventory.KindValidation:
			return model.NewValidationError(invErr.Message)
		case inventory.KindUnavailable:
			return model.NewUnavailableError()
		case inventory.KindConfig:
			return model.NewInternalError("")
		default:
			// Auth, upstream, and decode failures are all the gateway's
			// problem; the caller only learns the backend misbehaved.
			return model.NewUpstreamError("The inventory service returned an error")
		}
	}

	return model.NewInternalError("")
}
