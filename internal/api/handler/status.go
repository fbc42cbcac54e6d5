package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pullsense/pullsense/consts"
	"github.com/pullsense/pullsense/internal/store"
	pkgerrors "github.com/pullsense/pullsense/pkg/errors"
)

// recentWebhookLimit caps the delivery listing on GET /webhooks.
const recentWebhookLimit = 10

// StatusHandler serves the app status page and the recent-deliveries
// listing, both backed by the persisted webhook event log.
type StatusHandler struct {
	store store.Store
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(s store.Store) *StatusHandler {
	return &StatusHandler{store: s}
}

// Root handles GET /
func (h *StatusHandler) Root(c *gin.Context) {
	count, err := h.store.PullRequest().CountAll()
	if err != nil {
		c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to count webhook deliveries", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"app":               consts.ProjectName,
		"status":            "running",
		"webhooks_received": count,
	})
}

// ListWebhooks handles GET /webhooks, newest delivery first
func (h *StatusHandler) ListWebhooks(c *gin.Context) {
	count, err := h.store.PullRequest().CountAll()
	if err != nil {
		c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to count webhook deliveries", err))
		return
	}

	prs, err := h.store.PullRequest().List(recentWebhookLimit)
	if err != nil {
		c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to list webhook deliveries", err))
		return
	}

	webhooks := make([]gin.H, 0, len(prs))
	for _, pr := range prs {
		webhooks = append(webhooks, gin.H{
			"timestamp":  pr.CreatedAt.Format(time.RFC3339),
			"event_type": "pull_request",
			"payload":    pr.RawPayload,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    count,
		"webhooks": webhooks,
	})
}
