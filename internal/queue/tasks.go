// Package queue dispatches and processes analysis jobs over Redis.
//
// Delivery is at-least-once: a crashed worker's job is redelivered, and
// a duplicate delivery writes an additional review row for the same PR.
package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/pullsense/pullsense/pkg/errors"
)

// TypePRAnalyze is the task type for pull request analysis jobs.
const TypePRAnalyze = "pr:analyze"

// AnalyzePayload is the JSON body of an analysis task.
type AnalyzePayload struct {
	PRID uint `json:"pr_id"`
}

// NewAnalysisTask builds a pr:analyze task for the given PR row id.
func NewAnalysisTask(prID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(AnalyzePayload{PRID: prID})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJobPayload, "failed to encode task payload", err)
	}
	return asynq.NewTask(TypePRAnalyze, payload), nil
}

// parsePayload decodes a task body back into its payload.
func parsePayload(data []byte) (AnalyzePayload, error) {
	var p AnalyzePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, errors.Wrap(errors.ErrCodeJobPayload, "failed to decode task payload", err)
	}
	return p, nil
}
