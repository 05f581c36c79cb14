package queue

import (
	"context"
	"time"

	"github.com/facturalo/go-cpe/cpe/model"
)

// Store is the durable job list. Implementations must make Enqueue and
// Claim atomic: the job record's own state transition acts as the
// cross-process mutex, so no in-memory lock is ever relied on for
// claiming (a SQL implementation uses a conditional UPDATE ... WHERE
// status = 'QUEUED', plus a partial unique index for the active-job
// rule).
type Store interface {
	// Enqueue inserts job unless an active (QUEUED/PROCESSING) job for
	// the same (document, kind) exists, in which case the existing job
	// is returned with created == false.
	Enqueue(ctx context.Context, job model.SubmissionJob) (model.SubmissionJob, bool, error)

	// Due returns up to limit QUEUED jobs whose NextRunAt has elapsed.
	Due(ctx context.Context, now time.Time, limit int) ([]model.SubmissionJob, error)

	// Claim transitions the job to PROCESSING iff it is still QUEUED.
	// claimed == false means another worker won the race.
	Claim(ctx context.Context, id string) (model.SubmissionJob, bool, error)

	// Update persists execution-state changes made by the worker.
	Update(ctx context.Context, job model.SubmissionJob) error

	// FindActive returns the active job for (document, kind), or
	// cpe.ErrNotFound.
	FindActive(ctx context.Context, documentID string, kind model.JobKind) (model.SubmissionJob, error)

	// ByDocument returns the most recent jobs for a document, newest
	// first, capped at limit.
	ByDocument(ctx context.Context, documentID string, limit int) ([]model.SubmissionJob, error)
}
