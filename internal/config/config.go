package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the arbitrage engine
type Config struct {
	RPC       RPCConfig
	Multicall MulticallConfig
	Solver    SolverConfig
	Scan      ScanConfig
	Storage   StorageConfig
	Catalog   CatalogConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
}

// RPCConfig holds Ethereum RPC configuration
type RPCConfig struct {
	URL            string
	RetryAttempts  int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// MulticallConfig controls batched reads
type MulticallConfig struct {
	Address     string
	ChunkSize   int
	Concurrency int
}

// SolverConfig holds sizing parameters. Fee and Slippage are fractions in [0, 1).
type SolverConfig struct {
	Fee         float64
	Slippage    float64
	SlippageBps uint64 // applied to the payload's minimum output
}

type ScanConfig struct {
	PollInterval time.Duration
}

type StorageConfig struct {
	Path        string
	JournalPath string
}

type CatalogConfig struct {
	Path string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "console"
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// Load reads .env, then environment (ARB_ prefix) and an optional config.yaml
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("rpc.url", "")
	v.SetDefault("rpc.retry_attempts", 3)
	v.SetDefault("rpc.retry_delay", "1s")
	v.SetDefault("rpc.request_timeout", "30s")

	v.SetDefault("multicall.address", "0xcA11bde05977b3631167028862bE2a173976CA11")
	v.SetDefault("multicall.chunk_size", 1000)
	v.SetDefault("multicall.concurrency", 4)

	v.SetDefault("solver.fee", 0.003)
	v.SetDefault("solver.slippage", 0.0)
	v.SetDefault("solver.slippage_bps", 50)

	v.SetDefault("scan.poll_interval", "12s")

	v.SetDefault("storage.path", "data/paths.db")
	v.SetDefault("storage.journal_path", "data/opportunities.parquet")

	v.SetDefault("catalog.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9100")

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the searcher's .env names the endpoint ALCHEMY_URL
	if err := v.BindEnv("rpc.url", "ARB_RPC_URL", "ALCHEMY_URL"); err != nil {
		return nil, fmt.Errorf("bind rpc url: %w", err)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.flashswap-arb")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	retryDelay, err := time.ParseDuration(v.GetString("rpc.retry_delay"))
	if err != nil {
		return nil, fmt.Errorf("rpc.retry_delay: %w", err)
	}
	requestTimeout, err := time.ParseDuration(v.GetString("rpc.request_timeout"))
	if err != nil {
		return nil, fmt.Errorf("rpc.request_timeout: %w", err)
	}
	pollInterval, err := time.ParseDuration(v.GetString("scan.poll_interval"))
	if err != nil {
		return nil, fmt.Errorf("scan.poll_interval: %w", err)
	}

	cfg := &Config{
		RPC: RPCConfig{
			URL:            v.GetString("rpc.url"),
			RetryAttempts:  v.GetInt("rpc.retry_attempts"),
			RetryDelay:     retryDelay,
			RequestTimeout: requestTimeout,
		},
		Multicall: MulticallConfig{
			Address:     v.GetString("multicall.address"),
			ChunkSize:   v.GetInt("multicall.chunk_size"),
			Concurrency: v.GetInt("multicall.concurrency"),
		},
		Solver: SolverConfig{
			Fee:         v.GetFloat64("solver.fee"),
			Slippage:    v.GetFloat64("solver.slippage"),
			SlippageBps: v.GetUint64("solver.slippage_bps"),
		},
		Scan: ScanConfig{
			PollInterval: pollInterval,
		},
		Storage: StorageConfig{
			Path:        v.GetString("storage.path"),
			JournalPath: v.GetString("storage.journal_path"),
		},
		Catalog: CatalogConfig{
			Path: v.GetString("catalog.path"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Addr:    v.GetString("metrics.addr"),
		},
	}

	return cfg, nil
}

// Validate rejects values the solver and the oracle cannot work with
func (c *Config) Validate() error {
	if c.Solver.Fee < 0 || c.Solver.Fee >= 1 {
		return fmt.Errorf("config: solver.fee must be in [0, 1), got %v", c.Solver.Fee)
	}
	if c.Solver.Slippage < 0 || c.Solver.Slippage >= 1 {
		return fmt.Errorf("config: solver.slippage must be in [0, 1), got %v", c.Solver.Slippage)
	}
	if c.Solver.SlippageBps > 10000 {
		return fmt.Errorf("config: solver.slippage_bps must be at most 10000, got %d", c.Solver.SlippageBps)
	}
	if c.Multicall.ChunkSize <= 0 {
		return errors.New("config: multicall.chunk_size must be positive")
	}
	if c.Multicall.Concurrency <= 0 {
		return errors.New("config: multicall.concurrency must be positive")
	}
	if c.RPC.RetryAttempts <= 0 {
		return errors.New("config: rpc.retry_attempts must be positive")
	}
	if c.Scan.PollInterval <= 0 {
		return errors.New("config: scan.poll_interval must be positive")
	}
	return nil
}
