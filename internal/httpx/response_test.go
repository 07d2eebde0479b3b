package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("get order: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"invalid", domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"conflict", fmt.Errorf("accept: %w", domain.ErrConflict), http.StatusConflict, "conflict"},
		{"unavailable", domain.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
		{"validation", domain.NewValidationError("price", "must be positive"), http.StatusBadRequest, "validation_error"},
		{"echo", echo.NewHTTPError(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed, "method_not_allowed"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, apiErr := MapError(tt.err)
			if status != tt.status || apiErr.Code != tt.code {
				t.Fatalf("MapError(%v) = %d %q, want %d %q", tt.err, status, apiErr.Code, tt.status, tt.code)
			}
		})
	}
}

func TestHTTPErrorHandlerWritesEnvelope(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(domain.NewValidationError("title", "is required"), c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Error.Details) != 1 || body.Error.Details[0].Field != "title" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestAppValidatorUsesJSONNames(t *testing.T) {
	type input struct {
		Email string `json:"email" validate:"required,email"`
		Price int64  `json:"price" validate:"gt=0"`
	}

	v := NewAppValidator()
	err := v.Validate(&input{Email: "nope", Price: 1})
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Field != "email" {
		t.Fatalf("expected field email, got %q", vErr.Field)
	}

	if err := v.Validate(&input{Email: "a@b.co", Price: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
