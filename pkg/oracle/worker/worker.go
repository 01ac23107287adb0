package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verisage/oracle/internal/metric"
	"github.com/verisage/oracle/pkg/common/crypto/signer"
	"github.com/verisage/oracle/pkg/oracle/consensus"
	"github.com/verisage/oracle/pkg/oracle/store"
	"github.com/verisage/oracle/pkg/oracle/types"
)

const (
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultJobTimeout    = 2 * time.Minute
	DefaultRetainJobs    = 1000
	defaultSweepInterval = 5 * time.Minute
	defaultWorkerCount   = 4
)

// Config configures the job processing pool.
type Config struct {
	Store  store.JobStore
	Engine *consensus.Engine
	Signer signer.Signer

	// Workers is the number of concurrent claim loops.
	Workers int
	// PollInterval is the idle wait between claim attempts.
	PollInterval time.Duration
	// JobTimeout bounds one job end to end.
	JobTimeout time.Duration
	// RetainJobs is how many jobs the retention sweep keeps. Zero
	// disables the sweep.
	RetainJobs int
}

// Pool claims pending jobs and drives them to a terminal state. Each
// worker loops independently; the store's claim semantics guarantee a
// job is processed at most once.
type Pool struct {
	cfg    Config
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(cfg Config) (*Pool, error) {
	if cfg.Store == nil {
		return nil, errors.New("[Worker] store is nil")
	}
	if cfg.Engine == nil {
		return nil, errors.New("[Worker] consensus engine is nil")
	}
	if cfg.Signer == nil {
		return nil, errors.New("[Worker] signer is nil")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	return &Pool{cfg: cfg}, nil
}

// Start launches the worker goroutines and the retention sweeper.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	if p.cfg.RetainJobs > 0 {
		p.wg.Add(1)
		go p.sweep(ctx)
	}
	log.Info().Int("workers", p.cfg.Workers).Msg("worker pool started")
}

// Stop cancels all workers and waits for in-flight jobs to reach a
// terminal state or time out.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	log.Info().Msg("worker pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		job, err := p.cfg.Store.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Int("worker", id).Msg("failed to claim job")
		} else if job != nil {
			p.process(ctx, job)
			// Drain the backlog before going back to sleep.
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// process resolves one claimed job. The terminal write is attempted
// even when the parent context is already cancelled so a shutdown does
// not strand jobs in processing.
func (p *Pool) process(ctx context.Context, job *types.Job) {
	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	result, err := p.cfg.Engine.Resolve(jobCtx, job.Input, job.Kind)
	if err == nil {
		err = p.signResult(result)
	}

	writeCtx, writeCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer writeCancel()

	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("job failed")
		metric.JobsProcessed.WithLabelValues(string(job.Kind), "failed").Inc()
		if failErr := p.cfg.Store.Fail(writeCtx, job.ID, err.Error()); failErr != nil {
			log.Error().Err(failErr).Str("job_id", job.ID).Msg("failed to record job failure")
		}
		return
	}

	if completeErr := p.cfg.Store.Complete(writeCtx, job.ID, result); completeErr != nil {
		log.Error().Err(completeErr).Str("job_id", job.ID).Msg("failed to record job result")
		return
	}
	metric.JobsProcessed.WithLabelValues(string(job.Kind), "completed").Inc()
	metric.JobDuration.WithLabelValues(string(job.Kind)).Observe(time.Since(start).Seconds())
	log.Info().
		Str("job_id", job.ID).
		Str("decision", string(result.FinalDecision)).
		Dur("elapsed", time.Since(start)).
		Msg("job completed")
}

func (p *Pool) signResult(result *types.ConsensusResult) error {
	sig, pub, err := p.cfg.Signer.SignResult(result)
	if err != nil {
		return err
	}
	result.Signature = sig
	result.PublicKey = pub
	return nil
}

func (p *Pool) sweep(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := p.cfg.Store.TrimToLatest(ctx, p.cfg.RetainJobs)
			if err != nil {
				log.Error().Err(err).Msg("retention sweep failed")
				continue
			}
			if removed > 0 {
				log.Info().Int("removed", removed).Msg("trimmed old jobs")
			}
		}
	}
}
