package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	viewer domain.Viewer
	err    error
}

func (s stubValidator) ValidateToken(_ context.Context, token string) (domain.Viewer, error) {
	if s.err != nil {
		return domain.Viewer{}, s.err
	}
	if token != "good" {
		return domain.Viewer{}, errors.New("bad token")
	}
	return s.viewer, nil
}

func echoViewer(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok {
		Error(w, http.StatusInternalServerError, "no viewer")
		return
	}
	Success(w, http.StatusOK, map[string]string{"name": viewer.Name, "role": string(viewer.Role)})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Message
}

func TestAuthMiddleware(t *testing.T) {
	viewer := domain.Viewer{ID: "USR001", Name: "Alice Agent", Role: domain.RoleAgent}
	handler := AuthMiddleware(stubValidator{viewer: viewer})(http.HandlerFunc(echoViewer))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing authorization header"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "invalid authorization header format"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "invalid authorization header format"},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, "invalid or expired token"},
		{"valid token", "Bearer good", http.StatusOK, ""},
		{"lowercase scheme", "bearer good", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, decodeError(t, rec))
			} else {
				assert.Contains(t, rec.Body.String(), "Alice Agent")
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RequirePermission(domain.PermManageUsers)(ok)

	tests := []struct {
		name       string
		viewer     *domain.Viewer
		wantStatus int
	}{
		{"no viewer", nil, http.StatusUnauthorized},
		{"admin allowed", &domain.Viewer{Role: domain.RoleAdmin}, http.StatusOK},
		{"agent denied", &domain.Viewer{Role: domain.RoleAgent}, http.StatusForbidden},
		{"customer denied", &domain.Viewer{Role: domain.RoleCustomer}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.viewer != nil {
				req = req.WithContext(WithViewer(req.Context(), *tt.viewer))
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := CORSMiddleware([]string{"https://console.example.com"})(next)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://console.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://console.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://console.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	})
}

func TestValidationError_FieldDetails(t *testing.T) {
	type req struct {
		Name string `json:"name" validate:"required"`
	}
	err := validator.New().Struct(req{})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	ValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error struct {
			Message string       `json:"message"`
			Details []FieldError `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "validation error", body.Error.Message)
	require.Len(t, body.Error.Details, 1)
	assert.Equal(t, "Name", body.Error.Details[0].Field)
	assert.Equal(t, "required", body.Error.Details[0].Message)
}

func TestHandleError(t *testing.T) {
	errMissing := errors.New("thing not found")
	mappings := []ErrorMapping{{Error: errMissing, Status: http.StatusNotFound}}

	t.Run("mapped", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleError(context.Background(), rec, errors.Join(errors.New("get thing"), errMissing), mappings)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "thing not found", decodeError(t, rec))
	})

	t.Run("unmapped", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleError(context.Background(), rec, errors.New("db exploded"), mappings)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal error", decodeError(t, rec))
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x"}`, false},
		{"unknown field", `{"name":"x","colour":"red"}`, true},
		{"trailing data", `{"name":"x"}{"name":"y"}`, true},
		{"malformed", `{"name":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(req, &p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "x", p.Name)
		})
	}
}
