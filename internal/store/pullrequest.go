package store

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pullsense/pullsense/internal/model"
)

// PullRequestStore defines operations for the PullRequest event log.
// Records are insert-only; each delivery is appended as a new row.
type PullRequestStore interface {
	Create(pr *model.PullRequest) error
	GetByID(id uint) (*model.PullRequest, error)

	// List returns the most recently received records, newest first.
	List(limit int) ([]model.PullRequest, error)

	CountAll() (int64, error)

	// DeleteOlderThan removes records received more than the given number
	// of days ago. Returns the number of rows removed.
	DeleteOlderThan(days int) (int64, error)
}

// pullRequestStore implements PullRequestStore using GORM.
type pullRequestStore struct {
	db *gorm.DB
}

func newPullRequestStore(db *gorm.DB) PullRequestStore {
	return &pullRequestStore{db: db}
}

func (s *pullRequestStore) Create(pr *model.PullRequest) error {
	return s.db.Create(pr).Error
}

func (s *pullRequestStore) GetByID(id uint) (*model.PullRequest, error) {
	var pr model.PullRequest
	err := s.db.First(&pr, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (s *pullRequestStore) List(limit int) ([]model.PullRequest, error) {
	var prs []model.PullRequest
	err := s.db.Order("created_at DESC, id DESC").Limit(limit).Find(&prs).Error
	return prs, err
}

func (s *pullRequestStore) CountAll() (int64, error) {
	var count int64
	err := s.db.Model(&model.PullRequest{}).Count(&count).Error
	return count, err
}

func (s *pullRequestStore) DeleteOlderThan(days int) (int64, error) {
	result := s.db.Where("created_at < datetime('now', ?)", fmt.Sprintf("-%d days", days)).
		Delete(&model.PullRequest{})
	return result.RowsAffected, result.Error
}
