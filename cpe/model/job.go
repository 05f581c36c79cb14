package model

import "time"

// JobKind is the unit of asynchronous work a SubmissionJob carries out.
type JobKind string

const (
	JobSendDocument JobKind = "SEND_DOCUMENT"
	JobSendSummary  JobKind = "SEND_SUMMARY"
	JobPollTicket   JobKind = "POLL_TICKET"
)

type JobStatus string

const (
	JobQueued     JobStatus = "QUEUED"
	JobProcessing JobStatus = "PROCESSING"
	JobDone       JobStatus = "DONE"
	JobFailed     JobStatus = "FAILED"
)

// Active reports whether the job still occupies the per-(document, kind)
// slot. At most one active job may exist for a given document and kind.
func (s JobStatus) Active() bool {
	return s == JobQueued || s == JobProcessing
}

// SubmissionJob is one durable unit of work against the remote service.
// Claimed and mutated exclusively by the worker; FAILED never reopens,
// a requeue creates a fresh job instead.
type SubmissionJob struct {
	ID         string
	TenantID   string
	DocumentID string
	Kind       JobKind

	Status    JobStatus
	Attempts  int
	LastError string

	// NextRunAt gates eligibility; it strictly increases on every
	// failed attempt.
	NextRunAt time.Time

	CreatedAt   time.Time
	CompletedAt time.Time
}
