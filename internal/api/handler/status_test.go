package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullsense/pullsense/consts"
	"github.com/pullsense/pullsense/internal/store"
)

func setupStatusRouter(t *testing.T) (*gin.Engine, store.Store) {
	t.Helper()
	s, cleanup := store.SetupTestDB(t)
	t.Cleanup(cleanup)

	h := NewStatusHandler(s)
	r := gin.New()
	r.GET("/", h.Root)
	r.GET("/webhooks", h.ListWebhooks)
	return r, s
}

func TestRootStatus(t *testing.T) {
	r, s := setupStatusRouter(t)
	store.CreateTestPullRequest(t, s)

	w := performJSON(t, r, http.MethodGet, "/", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, consts.ProjectName, body["app"])
	assert.Equal(t, "running", body["status"])
	assert.EqualValues(t, 1, body["webhooks_received"])
}

func TestListWebhooksEmpty(t *testing.T) {
	r, _ := setupStatusRouter(t)

	w := performJSON(t, r, http.MethodGet, "/webhooks", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 0, body["count"])
	assert.Empty(t, body["webhooks"])
}

func TestListWebhooksRecentFirst(t *testing.T) {
	r, s := setupStatusRouter(t)
	for i := 0; i < 12; i++ {
		store.CreateTestPullRequest(t, s)
	}

	w := performJSON(t, r, http.MethodGet, "/webhooks", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 12, body["count"])

	webhooks, ok := body["webhooks"].([]interface{})
	require.True(t, ok)
	require.Len(t, webhooks, 10)

	first, ok := webhooks[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pull_request", first["event_type"])
	assert.NotEmpty(t, first["timestamp"])
	assert.NotNil(t, first["payload"])
}
