// Package store provides data access layer interfaces and implementations.
// This package abstracts database operations to improve maintainability
// and decouple business logic from specific database implementations.
package store

import "gorm.io/gorm"

// Store aggregates all data store interfaces.
// It provides a single point of access for all database operations.
type Store interface {
	PullRequest() PullRequestStore
	Review() ReviewStore

	// DB returns the underlying database connection for advanced operations.
	// Use sparingly - prefer using specific store methods.
	DB() *gorm.DB

	// Transaction executes operations within a database transaction.
	Transaction(fn func(Store) error) error
}

// gormStore implements Store interface using GORM.
type gormStore struct {
	db               *gorm.DB
	pullRequestStore PullRequestStore
	reviewStore      ReviewStore
}

// NewStore creates a new Store instance with GORM backend.
func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:               db,
		pullRequestStore: newPullRequestStore(db),
		reviewStore:      newReviewStore(db),
	}
}

func (s *gormStore) PullRequest() PullRequestStore {
	return s.pullRequestStore
}

func (s *gormStore) Review() ReviewStore {
	return s.reviewStore
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		txStore := &gormStore{
			db:               tx,
			pullRequestStore: newPullRequestStore(tx),
			reviewStore:      newReviewStore(tx),
		}
		return fn(txStore)
	})
}
