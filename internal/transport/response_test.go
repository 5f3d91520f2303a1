package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pitabwire/netgate/internal/inventory"
	"github.com/pitabwire/netgate/model"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]string{"hello": "world"})

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if xct := w.Header().Get("X-Content-Type-Options"); xct != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", xct)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["hello"] != "world" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteError_envelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/orders/abc/status", nil)
	WriteError(w, r, model.NewNotFoundError("Order abc not found"))

	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}

	var resp model.ErrorEnvelope
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", resp.Code)
	}
	if resp.Reason != "Not found" {
		t.Errorf("error = %q, want Not found", resp.Reason)
	}
	if resp.Message != "Order abc not found" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestWriteError_validationBody(t *testing.T) {
	// The validation body is part of the API: {"error": "Validation failed",
	// "message": "..."} at the top level.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/orders/site", nil)
	WriteError(w, r, model.NewValidationError("Site name cannot be empty"))

	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}

	var resp map[string]any
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["error"] != "Validation failed" {
		t.Errorf("error = %v, want Validation failed", resp["error"])
	}
	if resp["message"] != "Site name cannot be empty" {
		t.Errorf("message = %v", resp["message"])
	}
}

func TestWriteError_non_envelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(w, r, fmt.Errorf("something went wrong"))

	if w.Code != 500 {
		t.Errorf("status = %d, want 500 for non-envelope error", w.Code)
	}

	var resp model.ErrorEnvelope
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != model.ErrInternalError {
		t.Errorf("code = %q, want INTERNAL_ERROR", resp.Code)
	}
}

func TestWriteError_inventoryKinds(t *testing.T) {
	cases := []struct {
		kind     inventory.Kind
		status   int
		wantCode string
	}{
		{inventory.KindNotFound, 404, model.ErrNotFound},
		{inventory.KindValidation, 400, model.ErrValidationError},
		{inventory.KindUnavailable, 500, model.ErrBackendUnavailable},
		{inventory.KindUpstream, 500, model.ErrBackendError},
		{inventory.KindAuth, 500, model.ErrBackendError},
		{inventory.KindDecode, 500, model.ErrBackendError},
		{inventory.KindConfig, 500, model.ErrInternalError},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			WriteError(w, r, &inventory.Error{Kind: tc.kind, Message: "upstream said no"})

			if w.Code != tc.status {
				t.Errorf("status = %d, want %d", w.Code, tc.status)
			}
			var resp model.ErrorEnvelope
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestWriteError_wrappedEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(w, r, fmt.Errorf("pipeline: %w", model.NewUnauthorizedError("missing or invalid tenant ID")))

	if w.Code != 401 {
		t.Errorf("status = %d, want 401 for wrapped envelope", w.Code)
	}
}

func TestWriteError_stampsTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	rctx := &model.RequestContext{TenantID: "t1", TraceID: "abc123"}
	r = r.WithContext(model.WithRequestContext(r.Context(), rctx))

	WriteError(w, r, model.NewNotFoundError("gone"))

	var resp model.ErrorEnvelope
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.TraceID != "abc123" {
		t.Errorf("trace_id = %q, want abc123", resp.TraceID)
	}
}

func TestStatusForCode_coverage(t *testing.T) {
	codes := []struct {
		code   string
		status int
	}{
		{model.ErrBadRequest, 400},
		{model.ErrValidationError, 400},
		{model.ErrUnauthorized, 401},
		{model.ErrNotFound, 404},
		{model.ErrConflict, 409},
		{model.ErrInvalidTransition, 409},
		{model.ErrBackendError, 500},
		{model.ErrBackendUnavailable, 500},
		{model.ErrInternalError, 500},
	}
	for _, tc := range codes {
		t.Run(tc.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			WriteError(w, r, &model.ErrorEnvelope{Code: tc.code, Message: "test"})
			if w.Code != tc.status {
				t.Errorf("status for %s = %d, want %d", tc.code, w.Code, tc.status)
			}
		})
	}
}
