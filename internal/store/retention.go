// Package store provides data access operations for all models.
package store

import (
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pullsense/pullsense/pkg/logger"
)

const (
	// DefaultRetentionDays is the default number of days to retain PR records and reviews
	DefaultRetentionDays = 90
	// RetentionCleanupSchedule is the cron schedule for retention cleanup (daily at 2 AM)
	RetentionCleanupSchedule = "0 2 * * *"
)

// RetentionService manages periodic cleanup of old PR records and reviews.
// Reviews are removed before PR records so the foreign key constraint
// never sees orphaned reviews mid-cleanup. Reviews referencing an expired
// record go with it regardless of their own age, so a manually re-triggered
// analysis on an old record cannot block the record's deletion.
type RetentionService struct {
	store         Store
	cron          *cron.Cron
	retentionDays int
	entryID       cron.EntryID
	mu            sync.RWMutex
}

// NewRetentionService creates a new retention cleanup service
func NewRetentionService(store Store, retentionDays int) *RetentionService {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	return &RetentionService{
		store:         store,
		cron:          cron.New(),
		retentionDays: retentionDays,
	}
}

// Start starts the cleanup service with scheduled cleanup tasks
func (s *RetentionService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(RetentionCleanupSchedule, s.cleanup)
	if err != nil {
		logger.Error("Failed to schedule retention cleanup", zap.Error(err))
		return err
	}

	s.entryID = entryID
	s.cron.Start()

	logger.Info("Retention cleanup service started",
		zap.String("schedule", RetentionCleanupSchedule),
		zap.Int("retention_days", s.retentionDays),
	)

	// Run initial cleanup immediately (non-blocking)
	go s.cleanup()

	return nil
}

// Stop stops the cleanup service gracefully
func (s *RetentionService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		logger.Info("Stopping retention cleanup service")
		ctx := s.cron.Stop()
		<-ctx.Done()
		logger.Info("Retention cleanup service stopped")
	}
}

// cleanup removes PR records and reviews older than the retention window
func (s *RetentionService) cleanup() {
	reviews, err := s.store.Review().DeleteOlderThan(s.retentionDays)
	if err != nil {
		logger.Error("Retention cleanup failed for reviews", zap.Error(err))
		return
	}

	referencing, err := s.store.Review().DeleteForExpiredPullRequests(s.retentionDays)
	if err != nil {
		logger.Error("Retention cleanup failed for reviews of expired pull requests", zap.Error(err))
		return
	}
	reviews += referencing

	prs, err := s.store.PullRequest().DeleteOlderThan(s.retentionDays)
	if err != nil {
		logger.Error("Retention cleanup failed for pull requests", zap.Error(err))
		return
	}

	if reviews > 0 || prs > 0 {
		logger.Info("Retention cleanup completed",
			zap.Int64("reviews_removed", reviews),
			zap.Int64("pull_requests_removed", prs),
			zap.Int("retention_days", s.retentionDays),
		)
	}
}

// RunCleanupNow triggers a cleanup pass immediately, outside the schedule.
// Primarily used by tests.
func (s *RetentionService) RunCleanupNow() {
	s.cleanup()
}
