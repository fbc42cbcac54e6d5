package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pullsense/pullsense/consts"
	"github.com/pullsense/pullsense/internal/analyzer"
	"github.com/pullsense/pullsense/internal/bus"
	"github.com/pullsense/pullsense/internal/github"
	"github.com/pullsense/pullsense/internal/metrics"
	"github.com/pullsense/pullsense/internal/model"
	"github.com/pullsense/pullsense/internal/store"
	"github.com/pullsense/pullsense/pkg/errors"
	"github.com/pullsense/pullsense/pkg/logger"
)

// Processor executes analysis jobs: load the PR, fetch its diff, run the
// analyzer, persist the review, publish the completion event.
type Processor struct {
	store    store.Store
	fetcher  *github.Service
	analyzer *analyzer.Analyzer
	bus      bus.Bus
}

// NewProcessor wires the job pipeline.
func NewProcessor(s store.Store, fetcher *github.Service, a *analyzer.Analyzer, b bus.Bus) *Processor {
	return &Processor{store: s, fetcher: fetcher, analyzer: a, bus: b}
}

// ProcessTask handles one pr:analyze delivery. Returning an error causes
// broker redelivery, except when the error wraps asynq.SkipRetry.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := parsePayload(t.Payload())
	if err != nil {
		metrics.JobsProcessed.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	start := time.Now()
	log := logger.WithPRContext(payload.PRID)
	log.Info("starting analysis")

	pr, err := p.store.PullRequest().GetByID(payload.PRID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			// Terminal: a missing PR row cannot appear on retry.
			log.Warn("pull request not found, dropping task")
			metrics.JobsProcessed.WithLabelValues("not_found").Inc()
			return fmt.Errorf("pull request %d not found: %w", payload.PRID, asynq.SkipRetry)
		}
		metrics.JobsProcessed.WithLabelValues("retry").Inc()
		return errors.Wrap(errors.ErrCodeDBQuery, "failed to load pull request", err)
	}

	// A nil diff is fine: analysis proceeds on webhook metadata alone.
	var diff *github.DiffResult
	if p.fetcher != nil {
		diff = p.fetcher.GetPRDiff(ctx, pr.RepoName, pr.PRNumber)
	}

	result := p.analyzer.Analyze(ctx, analyzer.Input{
		Title:  pr.Title,
		Body:   pr.Body(),
		Author: pr.Author,
		Diff:   diff,
	})

	elapsed := math.Round(time.Since(start).Seconds()*100) / 100
	review := &model.CodeReview{
		PullRequestID:       pr.ID,
		AnalysisText:        result.AnalysisText,
		AnalysisStatus:      result.Status,
		ModelUsed:           result.ModelUsed,
		AnalysisTimeSeconds: elapsed,
	}
	if err := p.store.Review().Create(review); err != nil {
		// Redelivered by the broker; the job is acked only after commit.
		log.Error("failed to persist review", zap.Error(err))
		metrics.JobsProcessed.WithLabelValues("retry").Inc()
		return errors.Wrap(errors.ErrCodePersistence, "failed to persist review", err)
	}

	p.publishCompletion(ctx, pr.ID, result.Status, log)

	log.Info("analysis complete",
		zap.Uint("review_id", review.ID),
		zap.String("status", string(result.Status)),
		zap.Float64("elapsed_seconds", elapsed))
	metrics.JobsProcessed.WithLabelValues(string(result.Status)).Inc()
	return nil
}

// publishCompletion notifies subscribers. Failures are logged and
// swallowed: the review is already committed and must not be retried.
func (p *Processor) publishCompletion(ctx context.Context, prID uint, status model.AnalysisStatus, log *zap.Logger) {
	if p.bus == nil {
		return
	}

	eventStatus := "completed"
	if status == model.AnalysisStatusError {
		eventStatus = "error"
	}

	payload, err := bus.NewCompletionEvent(prID, eventStatus).Marshal()
	if err != nil {
		log.Warn("failed to encode completion event", zap.Error(err))
		return
	}
	if err := p.bus.Publish(ctx, consts.EventsChannel, payload); err != nil {
		log.Warn("failed to publish completion event", zap.Error(err))
	}
}
