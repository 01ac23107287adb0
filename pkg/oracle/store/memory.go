package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verisage/oracle/pkg/oracle/types"
)

// MemoryStore is an in-process JobStore. It backs standalone
// deployments without a database and the test suites. One mutex guards
// every mutation, which makes the compare-and-set discipline trivial at
// this scale.
type MemoryStore struct {
	mu    sync.Mutex
	jobs  map[string]*types.Job
	order []string // creation order, oldest first
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*types.Job),
	}
}

func (s *MemoryStore) Create(ctx context.Context, kind types.JobKind, input string, payment types.PaymentInfo) (*types.Job, error) {
	job := &types.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Input:     input,
		Status:    types.StatusPending,
		CreatedAt: time.Now().UTC(),
		Payment:   payment,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return copyJob(job), nil
}

func (s *MemoryStore) Claim(ctx context.Context) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		job := s.jobs[id]
		if job.Status != types.StatusPending {
			continue
		}
		now := time.Now().UTC()
		job.Status = types.StatusProcessing
		job.StartedAt = &now
		return copyJob(job), nil
	}
	return nil, nil
}

func (s *MemoryStore) Complete(ctx context.Context, jobID string, result *types.ConsensusResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != types.StatusProcessing {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	job.Status = types.StatusCompleted
	job.CompletedAt = &now
	job.Result = result
	return nil
}

func (s *MemoryStore) Fail(ctx context.Context, jobID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != types.StatusProcessing {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	job.Status = types.StatusFailed
	job.CompletedAt = &now
	job.Error = errMsg
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyJob(job), nil
}

func (s *MemoryStore) RecentCompleted(ctx context.Context, filter RecentFilter) ([]*types.Job, error) {
	s.mu.Lock()
	completed := make([]*types.Job, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		job := s.jobs[s.order[i]]
		if job.Status != types.StatusCompleted {
			continue
		}
		if filter.Kind != "" && job.Kind != filter.Kind {
			continue
		}
		if filter.ExcludeUncertain && job.Result != nil &&
			job.Result.FinalDecision == types.UncertainValue(job.Kind) {
			continue
		}
		completed = append(completed, copyJob(job))
	}
	s.mu.Unlock()

	// Newest completion first; creation order (already newest-first
	// from the reverse scan) breaks ties.
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].CompletedAt.After(*completed[j].CompletedAt)
	})
	if filter.Limit > 0 && len(completed) > filter.Limit {
		completed = completed[:filter.Limit]
	}
	return completed, nil
}

func (s *MemoryStore) CountActive(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, job := range s.jobs {
		if job.Status == types.StatusPending || job.Status == types.StatusProcessing {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) RecentOutcomes(ctx context.Context, n int) (Outcomes, error) {
	s.mu.Lock()
	terminal := make([]*types.Job, 0)
	for _, job := range s.jobs {
		if job.Terminal() {
			terminal = append(terminal, job)
		}
	}
	s.mu.Unlock()

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].CompletedAt.After(*terminal[j].CompletedAt)
	})
	if n > 0 && len(terminal) > n {
		terminal = terminal[:n]
	}

	out := Outcomes{Total: len(terminal)}
	for _, job := range terminal {
		if job.Status == types.StatusFailed {
			out.Failed++
		}
	}
	return out, nil
}

func (s *MemoryStore) TrimToLatest(ctx context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep < 0 || len(s.order) <= keep {
		return 0, nil
	}
	drop := s.order[:len(s.order)-keep]
	for _, id := range drop {
		delete(s.jobs, id)
	}
	s.order = append([]string(nil), s.order[len(s.order)-keep:]...)
	return len(drop), nil
}

// copyJob returns a shallow copy so callers cannot mutate stored state.
// Result and timestamps are written once and never modified afterwards,
// so sharing the pointers is safe.
func copyJob(job *types.Job) *types.Job {
	dup := *job
	return &dup
}
