package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullsense/pullsense/internal/store"
)

func setupWebhookRouter(t *testing.T) (*gin.Engine, store.Store, *stubEnqueuer) {
	t.Helper()
	s, cleanup := store.SetupTestDB(t)
	t.Cleanup(cleanup)

	enq := newStubEnqueuer()
	r := gin.New()
	r.POST("/webhook/github", NewWebhookHandler(s, enq).HandleGitHubWebhook)
	return r, s, enq
}

func TestHandleGitHubWebhookOpened(t *testing.T) {
	r, s, enq := setupWebhookRouter(t)

	payload := prWebhookPayload("opened", "acme/widgets", 42, "Add caching", "alice")
	w := performJSON(t, r, http.MethodPost, "/webhook/github", payload,
		map[string]string{"X-GitHub-Event": "pull_request"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "received", body["status"])
	assert.Equal(t, "pull_request", body["event"])

	prs, err := s.PullRequest().List(10)
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, "acme/widgets", prs[0].RepoName)
	assert.Equal(t, 42, prs[0].PRNumber)
	assert.Equal(t, "Add caching", prs[0].Title)
	assert.Equal(t, "alice", prs[0].Author)
	assert.Equal(t, "opened", prs[0].Action)
	assert.Equal(t, "Adds things", prs[0].Body())

	assert.Equal(t, []uint{prs[0].ID}, enq.enqueued())
}

func TestHandleGitHubWebhookSynchronizeEnqueues(t *testing.T) {
	r, _, enq := setupWebhookRouter(t)

	payload := prWebhookPayload("synchronize", "acme/widgets", 42, "Add caching", "alice")
	w := performJSON(t, r, http.MethodPost, "/webhook/github", payload,
		map[string]string{"X-GitHub-Event": "pull_request"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, enq.enqueued(), 1)
}

func TestHandleGitHubWebhookClosedPersistsWithoutEnqueue(t *testing.T) {
	r, s, enq := setupWebhookRouter(t)

	payload := prWebhookPayload("closed", "acme/widgets", 42, "Add caching", "alice")
	w := performJSON(t, r, http.MethodPost, "/webhook/github", payload,
		map[string]string{"X-GitHub-Event": "pull_request"})

	require.Equal(t, http.StatusOK, w.Code)

	count, err := s.PullRequest().CountAll()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Empty(t, enq.enqueued())
}

func TestHandleGitHubWebhookOtherEventAcknowledged(t *testing.T) {
	r, s, enq := setupWebhookRouter(t)

	w := performJSON(t, r, http.MethodPost, "/webhook/github",
		map[string]interface{}{"zen": "Design for failure."},
		map[string]string{"X-GitHub-Event": "ping"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "received", body["status"])
	assert.Equal(t, "ping", body["event"])

	count, err := s.PullRequest().CountAll()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, enq.enqueued())
}

func TestHandleGitHubWebhookInvalidJSON(t *testing.T) {
	r, _, _ := setupWebhookRouter(t)

	req := performJSON(t, r, http.MethodPost, "/webhook/github", nil,
		map[string]string{"X-GitHub-Event": "pull_request"})

	assert.Equal(t, http.StatusBadRequest, req.Code)
}

func TestHandleGitHubWebhookEnqueueFailureStillAccepts(t *testing.T) {
	r, s, enq := setupWebhookRouter(t)
	enq.err = assert.AnError

	payload := prWebhookPayload("opened", "acme/widgets", 42, "Add caching", "alice")
	w := performJSON(t, r, http.MethodPost, "/webhook/github", payload,
		map[string]string{"X-GitHub-Event": "pull_request"})

	// The delivery is persisted even when dispatch fails.
	require.Equal(t, http.StatusOK, w.Code)
	count, err := s.PullRequest().CountAll()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestHandleGitHubWebhookDuplicateDeliveries(t *testing.T) {
	r, s, _ := setupWebhookRouter(t)

	payload := prWebhookPayload("opened", "acme/widgets", 42, "Add caching", "alice")
	for i := 0; i < 2; i++ {
		w := performJSON(t, r, http.MethodPost, "/webhook/github", payload,
			map[string]string{"X-GitHub-Event": "pull_request"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	// The table is an event log: one row per delivery.
	count, err := s.PullRequest().CountAll()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
