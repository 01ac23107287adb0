package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verisage/oracle/pkg/common/crypto/signer"
	"github.com/verisage/oracle/pkg/oracle/health"
	"github.com/verisage/oracle/pkg/oracle/provider"
)

type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
	// NonceTTL bounds how long settled nonces stay reserved. Zero keeps
	// them forever.
	NonceTTL time.Duration `yaml:"nonce_ttl"`
}

type HTTPConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type PaymentConfig struct {
	// PayTo is the address queries must be paid to.
	PayTo string `yaml:"pay_to"`
	// Network names the payment network, e.g. base-sepolia.
	Network string `yaml:"network"`
	// Price in the asset's atomic units, e.g. "10000" for 0.01 USDC.
	Price string `yaml:"price"`
	// Asset is the payment asset contract address.
	Asset string `yaml:"asset"`
	// FacilitatorURL is the settlement service endpoint.
	FacilitatorURL string        `yaml:"facilitator_url"`
	SettleTimeout  time.Duration `yaml:"settle_timeout"`
	// Disabled skips payment verification entirely. Development only.
	Disabled bool `yaml:"disabled"`
}

type ProvidersConfig struct {
	Anthropic  provider.Config `yaml:"anthropic"`
	OpenAI     provider.Config `yaml:"openai"`
	Perplexity provider.Config `yaml:"perplexity"`
	Gemini     provider.Config `yaml:"gemini"`
	// Timeout is the per-provider call budget.
	Timeout time.Duration `yaml:"timeout"`
	// Mock replaces the real providers with canned ones so the full
	// pipeline runs without API keys. Development only.
	Mock bool `yaml:"mock"`
}

type WorkerConfig struct {
	Count        int           `yaml:"count"`
	PollInterval time.Duration `yaml:"poll_interval"`
	JobTimeout   time.Duration `yaml:"job_timeout"`
	// RetainJobs keeps the newest N jobs; zero disables the sweep.
	RetainJobs int `yaml:"retain_jobs"`
}

type LogConfig struct {
	Debug   bool `yaml:"debug"`
	Console bool `yaml:"console"`
}

type Config struct {
	// Environment is development or production.
	Environment string `yaml:"environment"`

	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Payment   PaymentConfig   `yaml:"payment"`
	Providers ProvidersConfig `yaml:"providers"`
	Worker    WorkerConfig    `yaml:"worker"`
	Health    health.Config   `yaml:"health"`
	Signer    signer.Config   `yaml:"signer"`
	Logging   LogConfig       `yaml:"logging"`
}

// LoadConfig loads the configuration from the given file path.
// ${VAR} references in the file are expanded from the environment.
func LoadConfig(path string) (*Config, error) {
	cfg, err := LoadConfigWithoutValidation(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigWithoutValidation loads and expands the config file but
// skips validation, so callers can apply flag overrides first.
func LoadConfigWithoutValidation(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		HTTP: HTTPConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			ConnMaxLifetime: "1h",
		},
		Redis: RedisConfig{
			NonceTTL: 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    4014,
		},
		Payment: PaymentConfig{
			Network:       "base-sepolia",
			Price:         "10000",
			SettleTimeout: 30 * time.Second,
		},
		Providers: ProvidersConfig{
			Timeout: 60 * time.Second,
		},
		Worker: WorkerConfig{
			Count:        4,
			PollInterval: 500 * time.Millisecond,
			JobTimeout:   2 * time.Minute,
			RetainJobs:   1000,
		},
		Health: health.DefaultConfig(),
		Logging: LogConfig{
			Debug: false,
		},
	}
}

// Validate rejects configurations that cannot run. Production refuses
// the development escape hatches.
func (c *Config) Validate() error {
	if c.Environment != "development" && c.Environment != "production" {
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if !c.Signer.IsValid() {
		return fmt.Errorf("signer requires a keystore path or private key")
	}
	if !c.Providers.Mock && c.Providers.Enabled() < 2 {
		return fmt.Errorf("at least 2 providers must be configured, got %d", c.Providers.Enabled())
	}
	if c.Environment == "production" {
		if c.Payment.Disabled {
			return fmt.Errorf("payments cannot be disabled in production")
		}
		if c.Providers.Mock {
			return fmt.Errorf("mock providers cannot be enabled in production")
		}
		if c.Logging.Debug {
			return fmt.Errorf("debug logging cannot be enabled in production")
		}
		if c.Database.URL == "" {
			return fmt.Errorf("production requires a database")
		}
	}
	if !c.Payment.Disabled {
		if c.Payment.PayTo == "" {
			return fmt.Errorf("payment.pay_to is required")
		}
		if c.Payment.FacilitatorURL == "" {
			return fmt.Errorf("payment.facilitator_url is required")
		}
	}
	return nil
}

// Enabled counts the providers with an API key configured.
func (p *ProvidersConfig) Enabled() int {
	n := 0
	for _, c := range []provider.Config{p.Anthropic, p.OpenAI, p.Perplexity, p.Gemini} {
		if c.Enabled() {
			n++
		}
	}
	return n
}
