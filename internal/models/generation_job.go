package models

import "time"

// GenerationJobStatus tracks an asynchronous generation run.
type GenerationJobStatus string

const (
	GenerationJobQueued    GenerationJobStatus = "QUEUED"
	GenerationJobRunning   GenerationJobStatus = "RUNNING"
	GenerationJobSucceeded GenerationJobStatus = "SUCCEEDED"
	GenerationJobFailed    GenerationJobStatus = "FAILED"
	GenerationJobCancelled GenerationJobStatus = "CANCELLED"
)

// Terminal reports whether the status can no longer change.
func (s GenerationJobStatus) Terminal() bool {
	switch s {
	case GenerationJobSucceeded, GenerationJobFailed, GenerationJobCancelled:
		return true
	}
	return false
}

// GenerationJob is the in-memory record of a queued generation request.
type GenerationJob struct {
	ID          string              `json:"id"`
	Key         WeekKey             `json:"key"`
	Status      GenerationJobStatus `json:"status"`
	Error       string              `json:"error,omitempty"`
	Result      interface{}         `json:"result,omitempty"`
	RequestedBy string              `json:"requested_by,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
}
