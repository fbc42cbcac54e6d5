// Package model defines the data models for the application.
// All models use GORM for ORM operations with SQLite database.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONMap is a custom type for storing JSON maps in SQLite
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, j)
}

// AnalysisStatus represents the outcome classification of an analysis run
type AnalysisStatus string

const (
	// AnalysisStatusCompleted means the completion API produced the review text
	AnalysisStatusCompleted AnalysisStatus = "completed"
	// AnalysisStatusError means the completion API failed and the mock fallback text was used
	AnalysisStatusError AnalysisStatus = "error"
	// AnalysisStatusMock means no completion API credential was configured
	AnalysisStatusMock AnalysisStatus = "mock"
)

// Valid reports whether the status is one of the enumerated kinds
func (s AnalysisStatus) Valid() bool {
	switch s {
	case AnalysisStatusCompleted, AnalysisStatusError, AnalysisStatusMock:
		return true
	}
	return false
}

// PullRequest is one received webhook delivery for a pull request.
// Rows are insert-only: each delivery inserts a new record, even for the
// same upstream PR number. The table is an event log, not current state.
type PullRequest struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	RepoName string `gorm:"size:512;index" json:"repo_name"` // e.g. "org/repo"
	PRNumber int    `gorm:"index" json:"pr_number"`          // upstream PR number
	Title    string `gorm:"size:1024" json:"title"`
	Author   string `gorm:"size:255" json:"author"` // upstream login of the PR author
	Action   string `gorm:"size:50" json:"action"`  // opened, synchronize, closed, reopened, ...

	// RawPayload stores the entire webhook payload for debugging and
	// to let the analyzer read fields not mirrored into columns (e.g. body)
	RawPayload JSONMap `gorm:"type:json" json:"raw_payload,omitempty"`

	// Relations
	Reviews []CodeReview `gorm:"foreignKey:PullRequestID" json:"reviews,omitempty"`
}

// Body returns the PR description from the raw webhook payload.
// Returns an empty string when the payload does not carry one.
func (p *PullRequest) Body() string {
	pr, ok := p.RawPayload["pull_request"].(map[string]interface{})
	if !ok {
		return ""
	}
	body, _ := pr["body"].(string)
	return body
}

// CodeReview is the persisted result of one analysis run.
// Rows are insert-only; multiple reviews per PR record form the history,
// and "latest" is determined by created_at descending (id breaks ties).
type CodeReview struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	PullRequestID uint `gorm:"not null;index" json:"pull_request_id"`

	AnalysisText        string         `gorm:"type:text" json:"analysis_text"`
	AnalysisStatus      AnalysisStatus `gorm:"size:50;not null;index" json:"analysis_status"`
	ModelUsed           string         `gorm:"size:255" json:"model_used"`
	AnalysisTimeSeconds float64        `json:"analysis_time_seconds"`

	// Relations
	PullRequest PullRequest `json:"-"`
}

// AllModels returns all models for auto-migration
func AllModels() []interface{} {
	return []interface{}{
		&PullRequest{},
		&CodeReview{},
	}
}
