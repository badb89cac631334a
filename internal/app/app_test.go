package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/onestop-itsm/api/openapi"
	"github.com/bissquit/onestop-itsm/internal/config"
	"github.com/bissquit/onestop-itsm/internal/seed"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryApp(t *testing.T) *App {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Port = "0"
	cfg.Server.MetricsPort = "0"
	cfg.Log.Level = "error"
	cfg.JWT.SecretKey = "app-test-secret-key-at-least-32-chars"

	a, err := New(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Shutdown(context.Background())
	})
	return a
}

func login(t *testing.T, h http.Handler, username, portal string) string {
	t.Helper()

	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": seed.DemoPassword,
		"portal":   portal,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.AccessToken)
	return resp.Data.AccessToken
}

func TestApp_MemoryDriverServesSeededData(t *testing.T) {
	h := newMemoryApp(t).Router()
	token := login(t, h, "jane@example.com", "customer")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			ID     string `json:"id"`
			Caller string `json:"caller"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	ids := make([]string, 0, len(resp.Data))
	for _, inc := range resp.Data {
		assert.Equal(t, "Jane Smith", inc.Caller)
		ids = append(ids, inc.ID)
	}
	assert.Equal(t, []string{"INC001002", "INC001006"}, ids)
}

func TestApp_ProbesAndDocs(t *testing.T) {
	h := newMemoryApp(t).Router()

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/version", http.StatusOK},
		{"/api/openapi.yaml", http.StatusOK},
		{"/docs", http.StatusOK},
		{"/api/v1/me", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestApp_NotificationsDisabledByDefault(t *testing.T) {
	assert.Nil(t, newMemoryApp(t).NotificationQueue())
}

func TestOpenAPISpec_IsValid(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapi.Spec)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	assert.NotNil(t, doc.Paths.Find("/api/v1/incidents"))
	assert.NotNil(t, doc.Paths.Find("/api/v1/incidents/{id}/activity"))
}
