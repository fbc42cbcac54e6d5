package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullsense/pullsense/internal/config"
	"github.com/pullsense/pullsense/internal/hub"
	"github.com/pullsense/pullsense/internal/store"
)

type noopEnqueuer struct{}

func (noopEnqueuer) EnqueueAnalysis(context.Context, uint) (string, error) {
	return "task-test", nil
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, cleanup := store.SetupTestDB(t)
	t.Cleanup(cleanup)

	r := gin.New()
	Setup(r, config.Default(), Deps{
		Store:    s,
		Enqueuer: noopEnqueuer{},
		Hub:      hub.New(),
	})
	return r
}

func perform(r *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r := setupRouter(t)

	w := perform(r, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(t)

	w := perform(r, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRoutesRegistered(t *testing.T) {
	r := setupRouter(t)

	// Every read endpoint answers on an empty database.
	for _, path := range []string{"/", "/webhooks", "/pull-requests", "/stats", "/dashboard"} {
		w := perform(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRateLimitRouteAbsentWithoutService(t *testing.T) {
	r := setupRouter(t)

	w := perform(r, http.MethodGet, "/github/rate-limit", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookRoute(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/github",
		strings.NewReader(`{"zen":"Keep it logically awesome."}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "ping")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"received"`)
}
