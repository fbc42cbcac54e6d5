package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pullsense/pullsense/internal/store"
	pkgerrors "github.com/pullsense/pullsense/pkg/errors"
)

// StatsHandler reports aggregate counters for the system
type StatsHandler struct {
	store     store.Store
	aiEnabled bool
}

// NewStatsHandler creates a new stats handler. aiEnabled reflects whether
// a completion API credential is configured.
func NewStatsHandler(s store.Store, aiEnabled bool) *StatsHandler {
	return &StatsHandler{store: s, aiEnabled: aiEnabled}
}

// GetStats handles GET /stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	totalPRs, err := h.store.PullRequest().CountAll()
	if err != nil {
		c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to count pull requests", err))
		return
	}

	totalReviews, err := h.store.Review().CountAll()
	if err != nil {
		c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to count reviews", err))
		return
	}

	byStatus, err := h.store.Review().CountByStatus()
	if err != nil {
		c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to count reviews by status", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_prs":         totalPRs,
		"total_reviews":     totalReviews,
		"reviews_by_status": byStatus,
		"ai_enabled":        h.aiEnabled,
	})
}
