package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/verisage/oracle/internal/metric"
	initzerolog "github.com/verisage/oracle/internal/zerolog"
	"github.com/verisage/oracle/pkg/common/crypto/signer"
	"github.com/verisage/oracle/pkg/config"
	"github.com/verisage/oracle/pkg/oracle/api"
	"github.com/verisage/oracle/pkg/oracle/consensus"
	"github.com/verisage/oracle/pkg/oracle/health"
	"github.com/verisage/oracle/pkg/oracle/payment"
	"github.com/verisage/oracle/pkg/oracle/provider"
	"github.com/verisage/oracle/pkg/oracle/store"
	"github.com/verisage/oracle/pkg/oracle/worker"
	"github.com/verisage/oracle/pkg/version"
)

// App holds all the dependencies
type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config

	signer       signer.Signer
	jobStore     store.JobStore
	pgStore      *store.PostgresStore
	redisConn    redis.UniversalClient
	metricServer *metric.Server
	engine       *consensus.Engine
	monitor      *health.Monitor
	gate         *payment.Gate
	pool         *worker.Pool
	apiServer    *api.Server
}

// New creates a new application instance
func New(ctx context.Context, cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(ctx)
	return &App{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
	}
}

// Run starts the application with the provided configuration
func (a *App) Run() error {
	a.initLogger()

	if err := a.initMetrics(); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := a.initSigner(); err != nil {
		return fmt.Errorf("failed to initialize signer: %w", err)
	}

	if err := a.initStore(); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := a.initEngine(); err != nil {
		return fmt.Errorf("failed to initialize consensus engine: %w", err)
	}

	if err := a.initHealthMonitor(); err != nil {
		return fmt.Errorf("failed to initialize health monitor: %w", err)
	}

	if err := a.initGate(); err != nil {
		return fmt.Errorf("failed to initialize payment gate: %w", err)
	}

	if err := a.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}

	if err := a.initAPI(); err != nil {
		return fmt.Errorf("failed to initialize API: %w", err)
	}

	zlog.Info().
		Str("version", version.Version).
		Str("address", a.signer.SigningAddress().Hex()).
		Msg("oracle node started")

	return a.apiServer.Start()
}

// Shutdown gracefully stops the application
func (a *App) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.apiServer != nil {
		if err := a.apiServer.Stop(shutdownCtx); err != nil {
			zlog.Error().Err(err).Msg("failed to stop API server")
		}
	}
	if a.pool != nil {
		a.pool.Stop()
	}
	a.cancel()
	if a.redisConn != nil {
		if err := a.redisConn.Close(); err != nil {
			zlog.Error().Err(err).Msg("failed to close redis connection")
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	return nil
}

func (a *App) initLogger() {
	if a.cfg.Logging.Console {
		initzerolog.InitConsoleLogger(a.cfg.Logging.Debug)
		return
	}
	initzerolog.InitLogger(a.cfg.Logging.Debug)
}

// initMetrics starts the metrics server
func (a *App) initMetrics() error {
	if !a.cfg.Metrics.Enabled {
		return nil
	}
	a.metricServer = metric.New(&metric.Config{
		Port: a.cfg.Metrics.Port,
	})
	go func() {
		if err := a.metricServer.Start(); err != nil {
			metric.RecordError("metric_server_start_failed")
			zlog.Error().Err(err).Msg("failed to start metric server")
		}
	}()
	return nil
}

// initSigner initializes the signing service
func (a *App) initSigner() error {
	s, err := signer.New(&a.cfg.Signer)
	if err != nil {
		metric.RecordError("signer_init_failed")
		return err
	}
	a.signer = s
	return nil
}

// initStore connects postgres when configured, otherwise keeps jobs in
// memory. Redis backs replay prevention when available.
func (a *App) initStore() error {
	if a.cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(a.ctx, a.cfg.Database.URL)
		if err != nil {
			metric.RecordError("database_connection_failed")
			return err
		}
		a.pgStore = pg
		a.jobStore = pg
	} else {
		zlog.Warn().Msg("no database configured, using in-memory job store")
		a.jobStore = store.NewMemoryStore()
	}

	if a.cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(a.cfg.Redis.URL)
		if err != nil {
			metric.RecordError("redis_config_invalid")
			return fmt.Errorf("invalid redis url: %w", err)
		}
		a.redisConn = redis.NewClient(opts)
	}
	return nil
}

// initEngine builds the provider set and the consensus engine
func (a *App) initEngine() error {
	p := a.cfg.Providers
	var providers []provider.Provider
	weights := make(map[string]float64)

	add := func(pr provider.Provider, cfg provider.Config) {
		providers = append(providers, pr)
		weights[pr.Name()] = cfg.Weight
	}
	if p.Mock {
		// canned responses, no API keys needed
		zlog.Warn().Msg("mock providers enabled, responses are canned")
		providers = []provider.Provider{
			provider.NewMockProvider("mock-claude", 100*time.Millisecond),
			provider.NewMockProvider("mock-openai", 100*time.Millisecond),
			provider.NewMockProvider("mock-perplexity", 100*time.Millisecond),
		}
	} else {
		if p.Anthropic.Enabled() {
			add(provider.NewAnthropicProvider(p.Anthropic), p.Anthropic)
		}
		if p.OpenAI.Enabled() {
			add(provider.NewOpenAIProvider(p.OpenAI), p.OpenAI)
		}
		if p.Perplexity.Enabled() {
			add(provider.NewPerplexityProvider(p.Perplexity), p.Perplexity)
		}
		if p.Gemini.Enabled() {
			add(provider.NewGeminiProvider(p.Gemini), p.Gemini)
		}
	}

	engine, err := consensus.NewEngine(&consensus.Config{
		Providers:       providers,
		Weights:         weights,
		ProviderTimeout: p.Timeout,
	})
	if err != nil {
		metric.RecordError("engine_init_failed")
		return err
	}
	a.engine = engine
	return nil
}

func (a *App) initHealthMonitor() error {
	monitor, err := health.NewMonitor(a.cfg.Health, a.jobStore)
	if err != nil {
		metric.RecordError("health_monitor_init_failed")
		return err
	}
	monitor.Start(a.ctx)
	a.monitor = monitor
	return nil
}

func (a *App) initGate() error {
	gateCfg := payment.Config{
		Store:           a.jobStore,
		Health:          a.monitor,
		PayTo:           a.cfg.Payment.PayTo,
		Network:         a.cfg.Payment.Network,
		Price:           a.cfg.Payment.Price,
		Asset:           a.cfg.Payment.Asset,
		SettleTimeout:   a.cfg.Payment.SettleTimeout,
		DisablePayments: a.cfg.Payment.Disabled,
	}
	if !a.cfg.Payment.Disabled {
		gateCfg.Facilitator = payment.NewHTTPFacilitator(a.cfg.Payment.FacilitatorURL, a.cfg.Payment.SettleTimeout)
		if a.redisConn != nil {
			gateCfg.Replay = payment.NewRedisReplaySet(a.redisConn, a.cfg.Redis.NonceTTL)
		} else {
			zlog.Warn().Msg("no redis configured, replay prevention is process-local")
			gateCfg.Replay = payment.NewMemoryReplaySet()
		}
	}

	gate, err := payment.NewGate(gateCfg)
	if err != nil {
		metric.RecordError("gate_init_failed")
		return err
	}
	a.gate = gate
	return nil
}

func (a *App) initWorkers() error {
	pool, err := worker.NewPool(worker.Config{
		Store:        a.jobStore,
		Engine:       a.engine,
		Signer:       a.signer,
		Workers:      a.cfg.Worker.Count,
		PollInterval: a.cfg.Worker.PollInterval,
		JobTimeout:   a.cfg.Worker.JobTimeout,
		RetainJobs:   a.cfg.Worker.RetainJobs,
	})
	if err != nil {
		metric.RecordError("worker_init_failed")
		return err
	}
	pool.Start(a.ctx)
	a.pool = pool
	return nil
}

func (a *App) initAPI() error {
	handler, err := api.NewHandler(api.Config{
		Admitter: a.gate,
		Jobs:     a.jobStore,
		Health:   a.monitor,
		Version:  version.Version,
	})
	if err != nil {
		metric.RecordError("api_init_failed")
		return err
	}
	a.apiServer = api.NewServer(handler, a.cfg.HTTP.Host, a.cfg.HTTP.Port)
	return nil
}
