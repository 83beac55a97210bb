package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/finance-agent/internal/state"
)

var (
	// ErrQueueClosed is returned when publishing to or starting a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrJobNotFound is returned by a JobStore for an unknown job id.
	ErrJobNotFound = errors.New("job not found")
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeQuery runs a user query through the workflow engine.
	JobTypeQuery JobType = "query"
	// JobTypeScheduledInsights runs one module for a user on a schedule.
	JobTypeScheduledInsights JobType = "scheduled_insights"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// DefaultMaxRetries applies when a job is published without MaxRetries.
const DefaultMaxRetries = 3

// QueryJob is an analysis run processed asynchronously.
type QueryJob struct {
	JobID string  `json:"job_id"`
	Type  JobType `json:"type"`

	// SessionID links the run to chat history. Optional.
	SessionID string `json:"session_id,omitempty"`

	// UserID identifies whose data the scheduled job is for.
	UserID string `json:"user_id,omitempty"`

	Query string `json:"query"`

	// Module, when set, runs that module directly instead of classifying.
	Module string `json:"module,omitempty"`

	Status      JobStatus       `json:"status"`
	Result      *state.Envelope `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
}

// GetType returns the job type, defaulting to JobTypeQuery.
func (j *QueryJob) GetType() JobType {
	if j.Type == "" {
		return JobTypeQuery
	}
	return j.Type
}

// Publisher enqueues jobs.
type Publisher interface {
	Publish(ctx context.Context, job *QueryJob) error
	Close() error
}

// Consumer processes queued jobs.
type Consumer interface {
	// Start begins consuming jobs. The handler is called for each job.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job for retry.
type JobHandler func(ctx context.Context, job *QueryJob) error

// JobStore records job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *QueryJob) error
	GetJob(ctx context.Context, jobID string) (*QueryJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*QueryJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	SessionID string
	Type      JobType
	Status    JobStatus
	Limit     int
	Offset    int
}
