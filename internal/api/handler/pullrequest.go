package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pullsense/pullsense/internal/queue"
	"github.com/pullsense/pullsense/internal/store"
	pkgerrors "github.com/pullsense/pullsense/pkg/errors"
	"github.com/pullsense/pullsense/pkg/logger"
)

// listLimit is how many pull requests list endpoints return.
const listLimit = 20

// PullRequestHandler handles pull request query and analysis endpoints
type PullRequestHandler struct {
	store    store.Store
	enqueuer queue.Enqueuer
}

// NewPullRequestHandler creates a new pull request handler
func NewPullRequestHandler(s store.Store, e queue.Enqueuer) *PullRequestHandler {
	return &PullRequestHandler{store: s, enqueuer: e}
}

// ListPullRequests handles GET /pull-requests
func (h *PullRequestHandler) ListPullRequests(c *gin.Context) {
	prs, err := h.store.PullRequest().List(listLimit)
	if err != nil {
		c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to list pull requests", err))
		return
	}

	items := make([]gin.H, 0, len(prs))
	for _, pr := range prs {
		items = append(items, gin.H{
			"id":      pr.ID,
			"repo":    pr.RepoName,
			"number":  pr.PRNumber,
			"title":   pr.Title,
			"author":  pr.Author,
			"action":  pr.Action,
			"created": pr.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"count":         len(items),
		"pull_requests": items,
	})
}

// GetAnalysis handles GET /pull-requests/:id/analysis
func (h *PullRequestHandler) GetAnalysis(c *gin.Context) {
	prID, ok := parseIDParam(c)
	if !ok {
		return
	}

	pr, err := h.store.PullRequest().GetByID(prID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    pkgerrors.ErrCodeNotFound,
				"message": "Pull request not found",
			})
			return
		}
		c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to load pull request", err))
		return
	}

	review, err := h.store.Review().LatestByPullRequest(prID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Analysis may be queued or may have exhausted retries; both
			// look identical from here.
			c.JSON(http.StatusOK, gin.H{
				"status":  "pending",
				"message": fmt.Sprintf("No analysis found. Trigger analysis with POST /analyze/%d", prID),
			})
			return
		}
		c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to load review", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pull_request": gin.H{
			"id":     pr.ID,
			"number": pr.PRNumber,
			"title":  pr.Title,
			"author": pr.Author,
			"action": pr.Action,
		},
		"analysis": gin.H{
			"id":            review.ID,
			"status":        review.AnalysisStatus,
			"text":          review.AnalysisText,
			"model":         review.ModelUsed,
			"created_at":    review.CreatedAt.Format(time.RFC3339),
			"analysis_time": review.AnalysisTimeSeconds,
		},
	})
}

// TriggerAnalysis handles POST /analyze/:id
func (h *PullRequestHandler) TriggerAnalysis(c *gin.Context) {
	prID, ok := parseIDParam(c)
	if !ok {
		return
	}

	pr, err := h.store.PullRequest().GetByID(prID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    pkgerrors.ErrCodeNotFound,
				"message": "PR not found",
			})
			return
		}
		c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to load pull request", err))
		return
	}

	taskID, err := h.enqueuer.EnqueueAnalysis(c.Request.Context(), pr.ID)
	if err != nil {
		logger.Error("Failed to enqueue manual analysis",
			zap.Uint(logger.FieldPRID, pr.ID),
			zap.Error(err))
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  fmt.Sprintf("Analysis queued for PR #%d", pr.PRNumber),
		"pr_title": pr.Title,
		"task_id":  taskID,
	})
}

// Dashboard handles GET /dashboard
func (h *PullRequestHandler) Dashboard(c *gin.Context) {
	prs, err := h.store.PullRequest().List(listLimit)
	if err != nil {
		c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to list pull requests", err))
		return
	}

	analyzed := 0
	items := make([]gin.H, 0, len(prs))
	for _, pr := range prs {
		status := "not_analyzed"
		var analyzedAt interface{}

		review, err := h.store.Review().LatestByPullRequest(pr.ID)
		switch {
		case err == nil:
			status = string(review.AnalysisStatus)
			analyzedAt = review.CreatedAt.Format(time.RFC3339)
			analyzed++
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Not analyzed yet.
		default:
			c.Error(pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to load review", err))
			return
		}

		items = append(items, gin.H{
			"pr_id":           pr.ID,
			"pr_number":       pr.PRNumber,
			"title":           pr.Title,
			"author":          pr.Author,
			"repo":            pr.RepoName,
			"created_at":      pr.CreatedAt.Format(time.RFC3339),
			"analysis_status": status,
			"analyzed_at":     analyzedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total_prs":     len(items),
		"analyzed":      analyzed,
		"pull_requests": items,
	})
}

// parseIDParam extracts and validates the :id path parameter.
func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeValidation,
			"message": "Invalid pull request ID",
		})
		return 0, false
	}
	return uint(id), true
}
