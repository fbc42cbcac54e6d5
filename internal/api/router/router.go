// Package router sets up the API routes for the serving process.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pullsense/pullsense/consts"
	"github.com/pullsense/pullsense/internal/api/handler"
	"github.com/pullsense/pullsense/internal/api/middleware"
	"github.com/pullsense/pullsense/internal/config"
	"github.com/pullsense/pullsense/internal/github"
	"github.com/pullsense/pullsense/internal/hub"
	"github.com/pullsense/pullsense/internal/metrics"
	"github.com/pullsense/pullsense/internal/queue"
	"github.com/pullsense/pullsense/internal/store"
)

// Deps are the collaborators the route handlers need.
type Deps struct {
	Store    store.Store
	Enqueuer queue.Enqueuer
	Hub      *hub.Hub
	GitHub   *github.Service
}

// Setup configures all API routes
func Setup(r *gin.Engine, cfg *config.Config, d Deps) {
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger(&middleware.LoggerConfig{
		AccessLog: cfg.Logging.AccessLog,
	}))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler(cfg.Server.Debug))

	statusHandler := handler.NewStatusHandler(d.Store)
	r.GET("/", statusHandler.Root)
	r.GET("/webhooks", statusHandler.ListWebhooks)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"app":    consts.ProjectName,
			"status": "ok",
		})
	})

	r.GET("/metrics", metrics.Handler())

	webhookHandler := handler.NewWebhookHandler(d.Store, d.Enqueuer)
	r.POST("/webhook/github", webhookHandler.HandleGitHubWebhook)

	prHandler := handler.NewPullRequestHandler(d.Store, d.Enqueuer)
	r.GET("/pull-requests", prHandler.ListPullRequests)
	r.GET("/pull-requests/:id/analysis", prHandler.GetAnalysis)
	r.POST("/analyze/:id", prHandler.TriggerAnalysis)
	r.GET("/dashboard", prHandler.Dashboard)

	statsHandler := handler.NewStatsHandler(d.Store, cfg.Analysis.OpenAIAPIKey != "")
	r.GET("/stats", statsHandler.GetStats)

	if d.GitHub != nil {
		githubHandler := handler.NewGitHubHandler(d.GitHub)
		r.GET("/github/rate-limit", githubHandler.GetRateLimit)
	}

	if d.Hub != nil {
		wsHandler := handler.NewWSHandler(d.Hub)
		r.GET("/ws", wsHandler.HandleWS)
	}
}
