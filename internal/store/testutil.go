// Package store provides test utilities for database testing.
package store

import (
	"os"
	"testing"

	"github.com/pullsense/pullsense/internal/database"
	"github.com/pullsense/pullsense/internal/model"
)

// SetupTestDB creates a temporary SQLite database for testing.
// It returns a Store instance and a cleanup function.
// The cleanup function should be called with defer in tests.
func SetupTestDB(t *testing.T) (Store, func()) {
	// Reset database state to allow re-initialization
	database.ResetForTesting()

	// Create temporary database file
	tmpFile, err := os.CreateTemp("", "test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	// Initialize database with temp path
	if err := database.InitWithPath(tmpPath); err != nil {
		os.Remove(tmpPath)
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	db := database.Get()
	store := NewStore(db)

	// Cleanup function
	cleanup := func() {
		database.Close()
		database.ResetForTesting()
		os.Remove(tmpPath)
	}

	return store, cleanup
}

// CreateTestPullRequest inserts a PullRequest record with sensible defaults.
func CreateTestPullRequest(t *testing.T, s Store) *model.PullRequest {
	pr := &model.PullRequest{
		RepoName: "org/repo",
		PRNumber: 1001,
		Title:    "Add caching",
		Author:   "alice",
		Action:   "opened",
		RawPayload: model.JSONMap{
			"action": "opened",
			"pull_request": map[string]interface{}{
				"number": float64(1001),
				"title":  "Add caching",
				"body":   "Adds a cache layer",
			},
		},
	}
	if err := s.PullRequest().Create(pr); err != nil {
		t.Fatalf("Failed to create test pull request: %v", err)
	}
	return pr
}

// CreateTestReview inserts a CodeReview row referencing the given PR record.
func CreateTestReview(t *testing.T, s Store, prID uint) *model.CodeReview {
	review := &model.CodeReview{
		PullRequestID:       prID,
		AnalysisText:        "Looks fine",
		AnalysisStatus:      model.AnalysisStatusCompleted,
		ModelUsed:           "gpt-3.5-turbo",
		AnalysisTimeSeconds: 1.25,
	}
	if err := s.Review().Create(review); err != nil {
		t.Fatalf("Failed to create test review: %v", err)
	}
	return review
}
