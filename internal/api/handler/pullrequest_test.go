package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullsense/pullsense/internal/store"
)

func setupPRRouter(t *testing.T) (*gin.Engine, store.Store, *stubEnqueuer) {
	t.Helper()
	s, cleanup := store.SetupTestDB(t)
	t.Cleanup(cleanup)

	enq := newStubEnqueuer()
	h := NewPullRequestHandler(s, enq)

	r := gin.New()
	r.GET("/pull-requests", h.ListPullRequests)
	r.GET("/pull-requests/:id/analysis", h.GetAnalysis)
	r.POST("/analyze/:id", h.TriggerAnalysis)
	r.GET("/dashboard", h.Dashboard)
	return r, s, enq
}

func TestListPullRequests(t *testing.T) {
	r, s, _ := setupPRRouter(t)
	pr := store.CreateTestPullRequest(t, s)

	w := performJSON(t, r, http.MethodGet, "/pull-requests", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["count"])

	items := body["pull_requests"].([]interface{})
	require.Len(t, items, 1)
	first := items[0].(map[string]interface{})
	assert.EqualValues(t, pr.ID, first["id"])
	assert.Equal(t, pr.RepoName, first["repo"])
	assert.EqualValues(t, pr.PRNumber, first["number"])
	assert.Equal(t, pr.Title, first["title"])
	assert.Equal(t, pr.Author, first["author"])
	assert.NotEmpty(t, first["created"])
}

func TestListPullRequestsEmpty(t *testing.T) {
	r, _, _ := setupPRRouter(t)

	w := performJSON(t, r, http.MethodGet, "/pull-requests", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 0, body["count"])
}

func TestGetAnalysisUnknownPR(t *testing.T) {
	r, _, _ := setupPRRouter(t)

	w := performJSON(t, r, http.MethodGet, "/pull-requests/9999/analysis", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAnalysisInvalidID(t *testing.T) {
	r, _, _ := setupPRRouter(t)

	w := performJSON(t, r, http.MethodGet, "/pull-requests/abc/analysis", nil, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAnalysisPending(t *testing.T) {
	r, s, _ := setupPRRouter(t)
	pr := store.CreateTestPullRequest(t, s)

	w := performJSON(t, r, http.MethodGet,
		"/pull-requests/"+itoa(pr.ID)+"/analysis", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "pending", body["status"])
	assert.Contains(t, body["message"], "POST /analyze/")
}

func TestGetAnalysisWithReview(t *testing.T) {
	r, s, _ := setupPRRouter(t)
	pr := store.CreateTestPullRequest(t, s)
	review := store.CreateTestReview(t, s, pr.ID)

	w := performJSON(t, r, http.MethodGet,
		"/pull-requests/"+itoa(pr.ID)+"/analysis", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)

	prBody := body["pull_request"].(map[string]interface{})
	assert.EqualValues(t, pr.ID, prBody["id"])
	assert.EqualValues(t, pr.PRNumber, prBody["number"])

	analysis := body["analysis"].(map[string]interface{})
	assert.EqualValues(t, review.ID, analysis["id"])
	assert.Equal(t, string(review.AnalysisStatus), analysis["status"])
	assert.Equal(t, review.AnalysisText, analysis["text"])
	assert.Equal(t, review.ModelUsed, analysis["model"])
}

func TestTriggerAnalysis(t *testing.T) {
	r, s, enq := setupPRRouter(t)
	pr := store.CreateTestPullRequest(t, s)

	w := performJSON(t, r, http.MethodPost, "/analyze/"+itoa(pr.ID), nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Contains(t, body["message"], "Analysis queued for PR #")
	assert.Equal(t, pr.Title, body["pr_title"])
	assert.Equal(t, "task-test", body["task_id"])
	assert.Equal(t, []uint{pr.ID}, enq.enqueued())
}

func TestTriggerAnalysisUnknownPR(t *testing.T) {
	r, _, enq := setupPRRouter(t)

	w := performJSON(t, r, http.MethodPost, "/analyze/9999", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, enq.enqueued())
}

func TestDashboard(t *testing.T) {
	r, s, _ := setupPRRouter(t)
	analyzed := store.CreateTestPullRequest(t, s)
	store.CreateTestReview(t, s, analyzed.ID)
	fresh := store.CreateTestPullRequest(t, s)

	w := performJSON(t, r, http.MethodGet, "/dashboard", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 2, body["total_prs"])
	assert.EqualValues(t, 1, body["analyzed"])

	items := body["pull_requests"].([]interface{})
	require.Len(t, items, 2)

	statusByID := map[float64]string{}
	for _, it := range items {
		entry := it.(map[string]interface{})
		statusByID[entry["pr_id"].(float64)] = entry["analysis_status"].(string)
	}
	assert.Equal(t, "completed", statusByID[float64(analyzed.ID)])
	assert.Equal(t, "not_analyzed", statusByID[float64(fresh.ID)])
}
