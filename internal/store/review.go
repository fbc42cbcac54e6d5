package store

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pullsense/pullsense/internal/model"
)

// ReviewStore defines operations for CodeReview results.
// Reviews are insert-only; multiple rows per PR record form the history.
type ReviewStore interface {
	// Create inserts a review after verifying the referenced PullRequest
	// exists, inside one transaction. Either the full row becomes visible
	// or nothing does.
	Create(review *model.CodeReview) error

	// LatestByPullRequest returns the most recent review for a PR record,
	// ordered by created_at descending with id as tie break.
	// Returns gorm.ErrRecordNotFound when no review exists.
	LatestByPullRequest(prID uint) (*model.CodeReview, error)

	ListByPullRequest(prID uint) ([]model.CodeReview, error)

	CountAll() (int64, error)
	CountByStatus() (map[string]int64, error)

	// DeleteOlderThan removes reviews created more than the given number
	// of days ago. Returns the number of rows removed.
	DeleteOlderThan(days int) (int64, error)

	// DeleteForExpiredPullRequests removes reviews, whatever their own
	// age, whose PR record is older than the given number of days. A
	// review inserted recently can still reference an expired record,
	// and that record cannot be deleted while the review exists.
	DeleteForExpiredPullRequests(days int) (int64, error)
}

// reviewStore implements ReviewStore using GORM.
type reviewStore struct {
	db *gorm.DB
}

func newReviewStore(db *gorm.DB) ReviewStore {
	return &reviewStore{db: db}
}

func (s *reviewStore) Create(review *model.CodeReview) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		// Referential integrity: every review must point at an existing
		// PullRequest record. The FK pragma enforces this too, but checking
		// here yields a typed not-found error instead of a constraint error.
		var count int64
		if err := tx.Model(&model.PullRequest{}).Where("id = ?", review.PullRequestID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(review).Error
	})
}

func (s *reviewStore) LatestByPullRequest(prID uint) (*model.CodeReview, error) {
	var review model.CodeReview
	err := s.db.Where("pull_request_id = ?", prID).
		Order("created_at DESC, id DESC").
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *reviewStore) ListByPullRequest(prID uint) ([]model.CodeReview, error) {
	var reviews []model.CodeReview
	err := s.db.Where("pull_request_id = ?", prID).
		Order("created_at DESC, id DESC").
		Find(&reviews).Error
	return reviews, err
}

func (s *reviewStore) CountAll() (int64, error) {
	var count int64
	err := s.db.Model(&model.CodeReview{}).Count(&count).Error
	return count, err
}

func (s *reviewStore) CountByStatus() (map[string]int64, error) {
	type row struct {
		AnalysisStatus string
		Count          int64
	}
	var rows []row
	err := s.db.Model(&model.CodeReview{}).
		Select("analysis_status, COUNT(id) as count").
		Group("analysis_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.AnalysisStatus] = r.Count
	}
	return counts, nil
}

func (s *reviewStore) DeleteOlderThan(days int) (int64, error) {
	result := s.db.Where("created_at < datetime('now', ?)", fmt.Sprintf("-%d days", days)).
		Delete(&model.CodeReview{})
	return result.RowsAffected, result.Error
}

func (s *reviewStore) DeleteForExpiredPullRequests(days int) (int64, error) {
	expired := s.db.Model(&model.PullRequest{}).
		Select("id").
		Where("created_at < datetime('now', ?)", fmt.Sprintf("-%d days", days))
	result := s.db.Where("pull_request_id IN (?)", expired).
		Delete(&model.CodeReview{})
	return result.RowsAffected, result.Error
}
