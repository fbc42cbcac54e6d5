package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullsense/pullsense/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := perform(r, http.MethodGet, "/panic", nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(errors.ErrCodeInternal))
}

func TestRequestIDGenerated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		assert.NotEmpty(t, c.GetString("request_id"))
		c.Status(http.StatusOK)
	})

	w := perform(r, http.MethodGet, "/", nil)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := perform(r, http.MethodGet, "/", map[string]string{"X-Request-ID": "req-123"})

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestCORSAllowedOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := perform(r, http.MethodGet, "/", map[string]string{"Origin": "http://localhost:3000"})

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDisallowedOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := perform(r, http.MethodGet, "/", map[string]string{"Origin": "http://evil.example"})

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))

	allowed := perform(r, http.MethodOptions, "/", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, allowed.Code)

	denied := perform(r, http.MethodOptions, "/", map[string]string{"Origin": "http://evil.example"})
	assert.Equal(t, http.StatusForbidden, denied.Code)
}

func TestErrorHandlerAppError(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.GET("/", func(c *gin.Context) {
		c.Error(errors.ErrNotFound("pull request"))
	})

	w := perform(r, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "pull request not found")
}

func TestErrorHandlerHidesInternalDetails(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.GET("/", func(c *gin.Context) {
		c.Error(errors.ErrInternal("db exploded with secrets", assert.AnError))
	})

	w := perform(r, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secrets")
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestErrorHandlerDebugShowsMessage(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(true))
	r.GET("/", func(c *gin.Context) {
		c.Error(errors.ErrInternal("db exploded", assert.AnError))
	})

	w := perform(r, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "db exploded")
}
