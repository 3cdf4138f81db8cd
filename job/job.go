package job

import (
	"time"

	"github.com/google/uuid"
)

// Status is the background job state machine:
//
//	queued -> processing -> completed | failed | partial | cancelled
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status ends the job. Polling stops on a
// terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusCancelled:
		return true
	default:
		return false
	}
}

// Succeeded reports whether the job delivered results (possibly partial).
func (s Status) Succeeded() bool {
	return s == StatusCompleted || s == StatusPartial
}

// Update is one incremental field result reported by a poll. A given
// (job, field, timestamp) update is applied at most once even if a slow or
// retried poll re-delivers it.
type Update struct {
	FieldName  string    `json:"field_name"`
	Value      any       `json:"value"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Job is the externally executed long-running job that fills multiple
// fields' suggestions over time. The status provider returns the full shape
// on every poll, with only new updates since the previous poll in
// NewUpdates.
type Job struct {
	ID       string  `json:"id"`
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`

	AffectedFields  []string `json:"affected_fields"`
	CompletedFields []string `json:"completed_fields,omitempty"`
	PendingFields   []string `json:"pending_fields,omitempty"`

	PartialResults map[string]any    `json:"partial_results,omitempty"`
	NewUpdates     []Update          `json:"new_updates,omitempty"`
	FieldErrors    map[string]string `json:"field_errors,omitempty"`
	Error          string            `json:"error,omitempty"`

	// Blocking asks the UI to present the form as non-interactive while the
	// job is active. The engine itself keeps answering state queries.
	Blocking bool `json:"blocking,omitempty"`

	StartedAt   time.Time  `json:"started_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New creates a queued job descriptor for the given fields.
func New(affectedFields []string) *Job {
	return &Job{
		ID:             uuid.NewString(),
		Status:         StatusQueued,
		AffectedFields: affectedFields,
		StartedAt:      time.Now(),
	}
}
