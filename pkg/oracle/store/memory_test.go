package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/verisage/oracle/pkg/oracle/types"
)

type MemoryStoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreTestSuite))
}

func (s *MemoryStoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemoryStore()
}

func (s *MemoryStoreTestSuite) createJob(kind types.JobKind, input string) *types.Job {
	job, err := s.store.Create(s.ctx, kind, input, types.PaymentInfo{PayerAddress: "0xabc"})
	s.Require().NoError(err)
	return job
}

func (s *MemoryStoreTestSuite) completeNext(decision types.Decision) {
	claimed, err := s.store.Claim(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(claimed)
	err = s.store.Complete(s.ctx, claimed.ID, &types.ConsensusResult{
		Query:         claimed.Input,
		Kind:          claimed.Kind,
		FinalDecision: decision,
	})
	s.Require().NoError(err)
}

func (s *MemoryStoreTestSuite) TestCreateAssignsUniqueIDs() {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		job := s.createJob(types.KindFact, "Is the sky blue during the day?")
		s.Equal(types.StatusPending, job.Status)
		s.False(seen[job.ID])
		seen[job.ID] = true
	}
}

func (s *MemoryStoreTestSuite) TestClaimOldestFirst() {
	first := s.createJob(types.KindFact, "Did the Lakers win their last game?")
	s.createJob(types.KindFact, "Is the earth round by scientific consensus?")

	claimed, err := s.store.Claim(s.ctx)
	s.Require().NoError(err)
	s.Equal(first.ID, claimed.ID)
	s.Equal(types.StatusProcessing, claimed.Status)
	s.NotNil(claimed.StartedAt)
}

func (s *MemoryStoreTestSuite) TestClaimEmptyReturnsNil() {
	claimed, err := s.store.Claim(s.ctx)
	s.NoError(err)
	s.Nil(claimed)
}

func (s *MemoryStoreTestSuite) TestConcurrentClaimNoDoubleProcessing() {
	const jobs = 50
	for i := 0; i < jobs; i++ {
		s.createJob(types.KindFact, "Is concurrency hard to get right sometimes?")
	}

	var mu sync.Mutex
	claimed := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := s.store.Claim(s.ctx)
				s.NoError(err)
				if job == nil {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Len(claimed, jobs)
	for id, n := range claimed {
		s.Equalf(1, n, "job %s claimed %d times", id, n)
	}
}

func (s *MemoryStoreTestSuite) TestTerminalTransitionHappensOnce() {
	s.createJob(types.KindFact, "Was the moon landing broadcast live on TV?")
	claimed, err := s.store.Claim(s.ctx)
	s.Require().NoError(err)

	s.NoError(s.store.Complete(s.ctx, claimed.ID, &types.ConsensusResult{FinalDecision: types.DecisionYes}))
	s.ErrorIs(s.store.Complete(s.ctx, claimed.ID, &types.ConsensusResult{FinalDecision: types.DecisionNo}), ErrInvalidTransition)
	s.ErrorIs(s.store.Fail(s.ctx, claimed.ID, "late failure"), ErrInvalidTransition)

	job, err := s.store.Get(s.ctx, claimed.ID)
	s.Require().NoError(err)
	s.Equal(types.StatusCompleted, job.Status)
	s.Equal(types.DecisionYes, job.Result.FinalDecision)
}

func (s *MemoryStoreTestSuite) TestCompletePendingRejected() {
	job := s.createJob(types.KindFact, "Can a pending job complete without a claim?")
	s.ErrorIs(s.store.Complete(s.ctx, job.ID, &types.ConsensusResult{}), ErrInvalidTransition)
}

func (s *MemoryStoreTestSuite) TestFailRecordsError() {
	s.createJob(types.KindFact, "Does a failed job keep its error message?")
	claimed, err := s.store.Claim(s.ctx)
	s.Require().NoError(err)

	s.NoError(s.store.Fail(s.ctx, claimed.ID, "all providers failed to respond"))

	job, err := s.store.Get(s.ctx, claimed.ID)
	s.Require().NoError(err)
	s.Equal(types.StatusFailed, job.Status)
	s.Equal("all providers failed to respond", job.Error)
	s.NotNil(job.CompletedAt)
}

func (s *MemoryStoreTestSuite) TestGetUnknownID() {
	_, err := s.store.Get(s.ctx, "no-such-job")
	s.ErrorIs(err, ErrNotFound)
}

func (s *MemoryStoreTestSuite) TestRecentCompletedNewestFirst() {
	inputs := []string{
		"Is water composed of hydrogen and oxygen?",
		"Did the Lakers win their last game?",
		"Is the Great Wall visible from space with the naked eye?",
	}
	for _, in := range inputs {
		s.createJob(types.KindFact, in)
		s.completeNext(types.DecisionYes)
	}

	recent, err := s.store.RecentCompleted(s.ctx, RecentFilter{Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal(inputs[2], recent[0].Input)
	s.Equal(inputs[1], recent[1].Input)
}

func (s *MemoryStoreTestSuite) TestRecentCompletedFilters() {
	s.createJob(types.KindFact, "Is this first fact question certain enough?")
	s.completeNext(types.DecisionYes)
	s.createJob(types.KindFact, "Is this second fact question too vague?")
	s.completeNext(types.DecisionUncertain)
	s.createJob(types.KindSocialPost, "https://x.com/someone/status/42424242")
	s.completeNext(types.VerdictQuestionable)

	all, err := s.store.RecentCompleted(s.ctx, RecentFilter{Limit: 10})
	s.Require().NoError(err)
	s.Len(all, 3)

	certain, err := s.store.RecentCompleted(s.ctx, RecentFilter{Limit: 10, ExcludeUncertain: true})
	s.Require().NoError(err)
	s.Require().Len(certain, 1)
	s.Equal(types.DecisionYes, certain[0].Result.FinalDecision)

	social, err := s.store.RecentCompleted(s.ctx, RecentFilter{Limit: 10, Kind: types.KindSocialPost})
	s.Require().NoError(err)
	s.Require().Len(social, 1)
	s.Equal(types.KindSocialPost, social[0].Kind)
}

func (s *MemoryStoreTestSuite) TestCountActive() {
	s.createJob(types.KindFact, "How many jobs are active right now here?")
	s.createJob(types.KindFact, "Does claiming a job keep it counted active?")
	_, err := s.store.Claim(s.ctx)
	s.Require().NoError(err)

	count, err := s.store.CountActive(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *MemoryStoreTestSuite) TestRecentOutcomes() {
	for i := 0; i < 3; i++ {
		s.createJob(types.KindFact, "Will this job complete without any issue?")
		s.completeNext(types.DecisionYes)
	}
	s.createJob(types.KindFact, "Will this job fail with a provider error?")
	claimed, err := s.store.Claim(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Fail(s.ctx, claimed.ID, "boom"))

	out, err := s.store.RecentOutcomes(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(4, out.Total)
	s.Equal(1, out.Failed)
}

func (s *MemoryStoreTestSuite) TestTrimToLatest() {
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		job := s.createJob(types.KindFact, "Does the retention sweep keep newest jobs?")
		ids = append(ids, job.ID)
	}

	removed, err := s.store.TrimToLatest(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal(3, removed)

	_, err = s.store.Get(s.ctx, ids[0])
	s.ErrorIs(err, ErrNotFound)
	_, err = s.store.Get(s.ctx, ids[4])
	s.NoError(err)

	removed, err = s.store.TrimToLatest(s.ctx, 10)
	s.Require().NoError(err)
	s.Zero(removed)
}
