package worker

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/suite"

	"github.com/verisage/oracle/pkg/common/crypto/signer"
	"github.com/verisage/oracle/pkg/oracle/consensus"
	"github.com/verisage/oracle/pkg/oracle/provider"
	"github.com/verisage/oracle/pkg/oracle/store"
	"github.com/verisage/oracle/pkg/oracle/types"
)

// failingSigner rejects every signing request.
type failingSigner struct{}

func (failingSigner) Sign(message []byte) ([]byte, error) {
	return nil, errors.New("key unavailable")
}

func (failingSigner) SignResult(result *types.ConsensusResult) (string, string, error) {
	return "", "", errors.New("key unavailable")
}

func (failingSigner) SigningAddress() ethcommon.Address { return ethcommon.Address{} }

func (failingSigner) PublicKeyHex() string { return "" }

type WorkerTestSuite struct {
	suite.Suite
	ctx    context.Context
	store  *store.MemoryStore
	signer signer.Signer
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerTestSuite))
}

func (s *WorkerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemoryStore()

	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	localSigner, err := signer.NewLocalSignerFromHex(hex.EncodeToString(crypto.FromECDSA(key)))
	s.Require().NoError(err)
	s.signer = localSigner
}

func (s *WorkerTestSuite) newPool(providers ...provider.Provider) *Pool {
	engine, err := consensus.NewEngine(&consensus.Config{
		Providers:       providers,
		ProviderTimeout: time.Second,
	})
	s.Require().NoError(err)

	pool, err := NewPool(Config{
		Store:        s.store,
		Engine:       engine,
		Signer:       s.signer,
		Workers:      2,
		PollInterval: 10 * time.Millisecond,
		JobTimeout:   5 * time.Second,
	})
	s.Require().NoError(err)
	return pool
}

// waitTerminal polls until the job reaches a terminal state.
func (s *WorkerTestSuite) waitTerminal(jobID string) *types.Job {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.store.Get(s.ctx, jobID)
		s.Require().NoError(err)
		if job.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.FailNow("job did not reach a terminal state")
	return nil
}

func (s *WorkerTestSuite) TestProcessesJobToCompletion() {
	agree := provider.NewMockProvider("a", 0)
	second := provider.NewMockProvider("b", 0)
	pool := s.newPool(agree, second)

	pool.Start(s.ctx)
	defer pool.Stop()

	job, err := s.store.Create(s.ctx, types.KindFact, "Did the Lakers win their last game?", types.PaymentInfo{})
	s.Require().NoError(err)

	done := s.waitTerminal(job.ID)
	s.Equal(types.StatusCompleted, done.Status)
	s.Require().NotNil(done.Result)
	s.Equal(types.DecisionYes, done.Result.FinalDecision)
	s.NotEmpty(done.Result.Signature)
	s.Equal(s.signer.PublicKeyHex(), done.Result.PublicKey)

	// The stored result must verify against the embedded signature.
	s.NoError(signer.VerifyResult(done.Result))
}

func (s *WorkerTestSuite) TestAllProvidersFailingFailsJob() {
	broken := provider.NewMockProvider("a", 0)
	broken.Err = errors.New("api down")
	alsoBroken := provider.NewMockProvider("b", 0)
	alsoBroken.Err = errors.New("api down")

	pool := s.newPool(broken, alsoBroken)
	pool.Start(s.ctx)
	defer pool.Stop()

	job, err := s.store.Create(s.ctx, types.KindFact, "Will this job fail when nobody answers?", types.PaymentInfo{})
	s.Require().NoError(err)

	done := s.waitTerminal(job.ID)
	s.Equal(types.StatusFailed, done.Status)
	s.Contains(done.Error, "all providers failed")
	s.Nil(done.Result)
}

func (s *WorkerTestSuite) TestDrainsBacklog() {
	pool := s.newPool(provider.NewMockProvider("a", 0), provider.NewMockProvider("b", 0))

	ids := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		job, err := s.store.Create(s.ctx, types.KindFact, "Does the pool drain a queued backlog?", types.PaymentInfo{})
		s.Require().NoError(err)
		ids = append(ids, job.ID)
	}

	pool.Start(s.ctx)
	defer pool.Stop()

	for _, id := range ids {
		done := s.waitTerminal(id)
		s.Equal(types.StatusCompleted, done.Status)
	}
}

func (s *WorkerTestSuite) TestStopWaitsForInFlightJob() {
	slow := provider.NewMockProvider("a", 100*time.Millisecond)
	second := provider.NewMockProvider("b", 100*time.Millisecond)
	pool := s.newPool(slow, second)

	pool.Start(s.ctx)

	job, err := s.store.Create(s.ctx, types.KindFact, "Does shutdown wait for running workers?", types.PaymentInfo{})
	s.Require().NoError(err)

	// Give a worker time to claim before stopping.
	time.Sleep(50 * time.Millisecond)
	pool.Stop()

	done, err := s.store.Get(s.ctx, job.ID)
	s.Require().NoError(err)
	s.True(done.Terminal(), "claimed job left in %s", done.Status)
}

func (s *WorkerTestSuite) TestSigningFailureFailsJob() {
	engine, err := consensus.NewEngine(&consensus.Config{
		Providers:       []provider.Provider{provider.NewMockProvider("a", 0), provider.NewMockProvider("b", 0)},
		ProviderTimeout: time.Second,
	})
	s.Require().NoError(err)

	pool, err := NewPool(Config{
		Store:        s.store,
		Engine:       engine,
		Signer:       failingSigner{},
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
		JobTimeout:   5 * time.Second,
	})
	s.Require().NoError(err)
	pool.Start(s.ctx)
	defer pool.Stop()

	job, err := s.store.Create(s.ctx, types.KindFact, "Does a signing error fail the job?", types.PaymentInfo{})
	s.Require().NoError(err)

	done := s.waitTerminal(job.ID)
	s.Equal(types.StatusFailed, done.Status)
	s.Contains(done.Error, "key unavailable")
	s.Nil(done.Result)
}

func (s *WorkerTestSuite) TestPoolConfigValidation() {
	_, err := NewPool(Config{})
	s.Error(err)

	pool := s.newPool(provider.NewMockProvider("a", 0), provider.NewMockProvider("b", 0))
	s.NotNil(pool)
}
