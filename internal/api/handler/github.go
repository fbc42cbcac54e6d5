package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pullsense/pullsense/internal/github"
)

// GitHubHandler exposes GitHub API status endpoints
type GitHubHandler struct {
	svc *github.Service
}

// NewGitHubHandler creates a new GitHub status handler
func NewGitHubHandler(svc *github.Service) *GitHubHandler {
	return &GitHubHandler{svc: svc}
}

// GetRateLimit handles GET /github/rate-limit. A lookup failure is
// reported in the body rather than as an HTTP error, matching the
// diagnostic nature of the endpoint.
func (h *GitHubHandler) GetRateLimit(c *gin.Context) {
	info, err := h.svc.RateLimit(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset":     info.Reset,
	})
}
