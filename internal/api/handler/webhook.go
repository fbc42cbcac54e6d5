// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pullsense/pullsense/internal/metrics"
	"github.com/pullsense/pullsense/internal/model"
	"github.com/pullsense/pullsense/internal/queue"
	"github.com/pullsense/pullsense/internal/store"
	pkgerrors "github.com/pullsense/pullsense/pkg/errors"
	"github.com/pullsense/pullsense/pkg/logger"
)

// qualifyingActions are the webhook actions that trigger analysis.
// Other actions are persisted but not enqueued.
var qualifyingActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
}

// WebhookHandler handles webhook-related HTTP requests
type WebhookHandler struct {
	store    store.Store
	enqueuer queue.Enqueuer
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(s store.Store, e queue.Enqueuer) *WebhookHandler {
	return &WebhookHandler{store: s, enqueuer: e}
}

// HandleGitHubWebhook handles POST /webhook/github
func (h *WebhookHandler) HandleGitHubWebhook(c *gin.Context) {
	eventType := c.GetHeader("X-GitHub-Event")
	if eventType == "" {
		eventType = "unknown"
	}
	metrics.WebhooksReceived.WithLabelValues(eventType).Inc()

	var payload model.JSONMap
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeValidation,
			"message": "Invalid JSON payload",
		})
		return
	}

	logger.Info("Webhook received", zap.String("event", eventType))

	// Every non-pull_request event is acknowledged without processing so
	// GitHub does not retry deliveries we do not care about.
	if eventType != "pull_request" {
		c.JSON(http.StatusOK, gin.H{"status": "received", "event": eventType})
		return
	}

	pr := h.recordFromPayload(payload)
	if err := h.store.PullRequest().Create(pr); err != nil {
		logger.Error("Failed to persist pull request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodePersistence,
			"message": "Failed to persist pull request",
		})
		return
	}

	logger.Info("Pull request saved",
		zap.Uint(logger.FieldPRID, pr.ID),
		zap.String("repo", pr.RepoName),
		zap.Int("pr_number", pr.PRNumber),
		zap.String("action", pr.Action),
	)

	if qualifyingActions[pr.Action] {
		if _, err := h.enqueuer.EnqueueAnalysis(c.Request.Context(), pr.ID); err != nil {
			// The delivery is already persisted; analysis can still be
			// triggered manually via POST /analyze/:id.
			logger.Error("Failed to enqueue analysis",
				zap.Uint(logger.FieldPRID, pr.ID),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "received", "event": eventType})
}

// recordFromPayload extracts the PullRequest row from a webhook payload.
// Missing fields become zero values; the full payload is kept verbatim.
func (h *WebhookHandler) recordFromPayload(payload model.JSONMap) *model.PullRequest {
	action, _ := payload["action"].(string)

	var repoName string
	if repo, ok := payload["repository"].(map[string]interface{}); ok {
		repoName, _ = repo["full_name"].(string)
	}

	var prNumber int
	var title, author string
	if pr, ok := payload["pull_request"].(map[string]interface{}); ok {
		if n, ok := pr["number"].(float64); ok {
			prNumber = int(n)
		}
		title, _ = pr["title"].(string)
		if user, ok := pr["user"].(map[string]interface{}); ok {
			author, _ = user["login"].(string)
		}
	}

	return &model.PullRequest{
		RepoName:   repoName,
		PRNumber:   prNumber,
		Title:      title,
		Author:     author,
		Action:     action,
		RawPayload: payload,
	}
}
