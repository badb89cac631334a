package slm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, role domain.Role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(newTestService(t)).RegisterRoutes(r)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(httputil.WithViewer(req.Context(), domain.Viewer{ID: "U", Name: "U", Role: role}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Summary(t *testing.T) {
	rec := serve(t, domain.RoleAgent, http.MethodGet, "/slas/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data Summary `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 97.5, resp.Data.OverallCompliance)
	assert.Equal(t, 2, resp.Data.BreachedCount)
}

func TestHandler_Permissions(t *testing.T) {
	tests := []struct {
		name       string
		role       domain.Role
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"agent reads", domain.RoleAgent, http.MethodGet, "/slas", "", http.StatusOK},
		{"customer cannot read", domain.RoleCustomer, http.MethodGet, "/slas", "", http.StatusForbidden},
		{"agent cannot define", domain.RoleAgent, http.MethodPost, "/slas", `{}`, http.StatusForbidden},
		{"admin defines", domain.RoleAdmin, http.MethodPost, "/slas", `{"name":"Printer fix","target":90}`, http.StatusCreated},
		{"admin bad target", domain.RoleAdmin, http.MethodPost, "/slas", `{"target":150}`, http.StatusBadRequest},
		{"admin records actual", domain.RoleAdmin, http.MethodPatch, "/slas/SLA004", `{"actual":97.1}`, http.StatusOK},
		{"admin deletes missing", domain.RoleAdmin, http.MethodDelete, "/slas/NOPE", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.role, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
