package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubEnqueuer records enqueued PR ids instead of touching a broker.
type stubEnqueuer struct {
	mu     sync.Mutex
	prIDs  []uint
	err    error
	taskID string
}

func newStubEnqueuer() *stubEnqueuer {
	return &stubEnqueuer{taskID: "task-test"}
}

func (s *stubEnqueuer) EnqueueAnalysis(_ context.Context, prID uint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.prIDs = append(s.prIDs, prID)
	return s.taskID, nil
}

func (s *stubEnqueuer) enqueued() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint, len(s.prIDs))
	copy(out, s.prIDs)
	return out
}

// performJSON runs a request with a JSON body through the given engine.
func performJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decodeBody unmarshals a recorded JSON response body.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// itoa renders a record id for URL construction.
func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// prWebhookPayload builds a minimal pull_request webhook payload.
func prWebhookPayload(action, repo string, number int, title, author string) map[string]interface{} {
	return map[string]interface{}{
		"action": action,
		"repository": map[string]interface{}{
			"full_name": repo,
		},
		"pull_request": map[string]interface{}{
			"number": number,
			"title":  title,
			"body":   "Adds things",
			"user": map[string]interface{}{
				"login": author,
			},
		},
	}
}
