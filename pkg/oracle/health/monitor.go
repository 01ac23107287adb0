package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verisage/oracle/pkg/oracle/store"
)

// Status is the tri-state health signal used for backpressure.
type Status string

const (
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
)

// Snapshot is a point-in-time health reading.
type Snapshot struct {
	Status     Status    `json:"status"`
	QueuedJobs int       `json:"queued_jobs"`
	LastCheck  time.Time `json:"last_check"`
}

// Source provides the load figures health is computed from. Satisfied
// by the job store; the monitor never mutates it.
type Source interface {
	CountActive(ctx context.Context) (int, error)
	RecentOutcomes(ctx context.Context, n int) (store.Outcomes, error)
}

// Config holds health thresholds. Thresholds are deployment
// configuration, monotonic in queue depth.
type Config struct {
	// UnhealthyQueueDepth marks the service unhealthy when active jobs
	// exceed it.
	UnhealthyQueueDepth int `yaml:"unhealthy_queue_depth"`
	// DegradedQueueDepth marks the service degraded when active jobs
	// exceed it.
	DegradedQueueDepth int `yaml:"degraded_queue_depth"`
	// FailureRateThreshold marks the service degraded when the recent
	// failure rate exceeds it.
	FailureRateThreshold float64 `yaml:"failure_rate_threshold"`
	// SampleSize is how many recent terminal jobs the failure rate is
	// computed over.
	SampleSize int `yaml:"sample_size"`
	// Interval is how often the snapshot refreshes.
	Interval time.Duration `yaml:"interval"`
}

func DefaultConfig() Config {
	return Config{
		UnhealthyQueueDepth:  100,
		DegradedQueueDepth:   50,
		FailureRateThreshold: 0.5,
		SampleSize:           10,
		Interval:             time.Minute,
	}
}

// Monitor samples the store on a ticker and caches a snapshot so
// admission checks and the /health endpoint read it without touching
// the store.
type Monitor struct {
	cfg    Config
	source Source

	mu   sync.RWMutex
	snap Snapshot
}

func NewMonitor(cfg Config, source Source) (*Monitor, error) {
	if source == nil {
		return nil, errors.New("[Health] source is nil")
	}
	if cfg.UnhealthyQueueDepth <= 0 {
		cfg.UnhealthyQueueDepth = DefaultConfig().UnhealthyQueueDepth
	}
	if cfg.DegradedQueueDepth <= 0 {
		cfg.DegradedQueueDepth = DefaultConfig().DegradedQueueDepth
	}
	if cfg.FailureRateThreshold <= 0 {
		cfg.FailureRateThreshold = DefaultConfig().FailureRateThreshold
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultConfig().SampleSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Monitor{
		cfg:    cfg,
		source: source,
		snap:   Snapshot{Status: Healthy},
	}, nil
}

// Start refreshes the snapshot immediately, then on every interval
// until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Refresh(ctx)
			}
		}
	}()
}

// Refresh recomputes the snapshot from the source. A failing source
// reads as unhealthy: admission must not proceed on unknown load.
func (m *Monitor) Refresh(ctx context.Context) {
	queued, err := m.source.CountActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("health check failed to count active jobs")
		m.set(Snapshot{Status: Unhealthy, LastCheck: time.Now().UTC()})
		return
	}
	outcomes, err := m.source.RecentOutcomes(ctx, m.cfg.SampleSize)
	if err != nil {
		log.Error().Err(err).Msg("health check failed to sample outcomes")
		m.set(Snapshot{Status: Unhealthy, QueuedJobs: queued, LastCheck: time.Now().UTC()})
		return
	}

	status := Healthy
	switch {
	case queued > m.cfg.UnhealthyQueueDepth:
		status = Unhealthy
	case queued > m.cfg.DegradedQueueDepth:
		status = Degraded
	case outcomes.Total > 0 && float64(outcomes.Failed)/float64(outcomes.Total) > m.cfg.FailureRateThreshold:
		status = Degraded
	}

	m.set(Snapshot{Status: status, QueuedJobs: queued, LastCheck: time.Now().UTC()})
}

func (m *Monitor) set(snap Snapshot) {
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()
}

// Status returns the cached snapshot.
func (m *Monitor) Status() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}
