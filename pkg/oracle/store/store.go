package store

import (
	"context"
	"errors"

	"github.com/verisage/oracle/pkg/oracle/types"
)

var (
	// ErrNotFound is returned when a job id is unknown.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a terminal transition is
	// attempted on a job that is not in processing. Status moves only
	// forward and each terminal write happens exactly once.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// RecentFilter narrows the recent completed feed.
type RecentFilter struct {
	// Limit bounds the number of returned jobs.
	Limit int
	// ExcludeUncertain drops jobs whose final decision is the
	// uncertain-equivalent value for their kind.
	ExcludeUncertain bool
	// Kind restricts results to one job kind when non-empty.
	Kind types.JobKind
}

// Outcomes summarizes recently finished jobs for health sampling.
type Outcomes struct {
	Total  int
	Failed int
}

// JobStore is the durable record of submitted jobs. All mutations are
// compare-and-set on the status field; readers may observe any state at
// any time.
type JobStore interface {
	// Create inserts a new job in pending state and returns it.
	Create(ctx context.Context, kind types.JobKind, input string, payment types.PaymentInfo) (*types.Job, error)
	// Claim atomically selects the oldest pending job, moves it to
	// processing and sets started_at. Returns nil when nothing is
	// pending. No two concurrent callers can claim the same job.
	Claim(ctx context.Context) (*types.Job, error)
	// Complete moves a processing job to completed with its result.
	Complete(ctx context.Context, jobID string, result *types.ConsensusResult) error
	// Fail moves a processing job to failed with an error message.
	Fail(ctx context.Context, jobID string, errMsg string) error
	// Get returns a job by id.
	Get(ctx context.Context, jobID string) (*types.Job, error)
	// RecentCompleted returns completed jobs, newest first by
	// completion time, ties broken by creation order.
	RecentCompleted(ctx context.Context, filter RecentFilter) ([]*types.Job, error)
	// CountActive returns the number of pending plus processing jobs.
	CountActive(ctx context.Context) (int, error)
	// RecentOutcomes summarizes the last n terminal jobs.
	RecentOutcomes(ctx context.Context, n int) (Outcomes, error)
	// TrimToLatest deletes all but the newest keep jobs and returns
	// the number removed. Retention policy, not part of the job
	// lifecycle.
	TrimToLatest(ctx context.Context, keep int) (int, error)
}
