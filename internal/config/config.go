// Package config loads scanner configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
)

// Config holds all scanner settings.
type Config struct {
	Explorer ExplorerConfig
	Node     NodeConfig
	Scan     ScanConfig
	Tasks    TasksConfig
	Storage  StorageConfig
	Metrics  MetricsConfig
}

// ExplorerConfig configures the explorer API client.
type ExplorerConfig struct {
	BaseURL  string
	APIKey   string
	PageSize int
	// RateLimit caps explorer requests per second. 0 disables limiting.
	RateLimit float64
}

// NodeConfig configures the JSON-RPC node client.
type NodeConfig struct {
	RPCURL string
	// SweepAccount is the hot-wallet address sweeps are sent to.
	SweepAccount string
	// Network is an operator-facing chain label, e.g. "mainnet".
	Network string
}

// ScanConfig tunes the scan engine.
type ScanConfig struct {
	CandidateCap            int
	Concurrency             int
	StartBlockFromTimestamp bool
	StrictVerification      bool
}

// TasksConfig configures the order-id task source.
type TasksConfig struct {
	RedisURL string
	QueueKey string
}

// StorageConfig holds data-store connection strings. Empty values select the
// in-memory store for that concern.
type StorageConfig struct {
	PostgresDSN   string
	ClickHouseDSN string
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string
}

// Load reads configuration from the environment. The explorer API key and the
// sweep account have no usable defaults, so their absence is an error.
func Load() (*Config, error) {
	cfg := &Config{
		Explorer: ExplorerConfig{
			BaseURL:   getEnv("EXPLORER_BASE_URL", "https://api.etherscan.io/api"),
			APIKey:    getEnv("EXPLORER_API_KEY", ""),
			PageSize:  getEnvAsInt("EXPLORER_PAGE_SIZE", 100),
			RateLimit: getEnvAsFloat("EXPLORER_RATE_LIMIT", 0),
		},
		Node: NodeConfig{
			RPCURL:       getEnv("NODE_RPC_URL", "http://localhost:8545"),
			SweepAccount: getEnv("SWEEP_ACCOUNT", ""),
			Network:      getEnv("NETWORK", "mainnet"),
		},
		Scan: ScanConfig{
			CandidateCap:            getEnvAsInt("SCAN_CANDIDATE_CAP", 10),
			Concurrency:             getEnvAsInt("SCAN_CONCURRENCY", 4),
			StartBlockFromTimestamp: getEnvAsBool("SCAN_START_FROM_TIMESTAMP", false),
			StrictVerification:      getEnvAsBool("SCAN_STRICT_VERIFICATION", false),
		},
		Tasks: TasksConfig{
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
			QueueKey: getEnv("TASK_QUEUE_KEY", "deposit:scan:orders"),
		},
		Storage: StorageConfig{
			PostgresDSN:   getEnv("POSTGRES_DSN", ""),
			ClickHouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
	}

	if cfg.Explorer.APIKey == "" {
		return nil, errors.New("EXPLORER_API_KEY is required")
	}
	if cfg.Node.SweepAccount == "" {
		return nil, errors.New("SWEEP_ACCOUNT is required")
	}
	if cfg.Scan.CandidateCap < 1 {
		return nil, errors.New("SCAN_CANDIDATE_CAP must be at least 1")
	}
	if cfg.Scan.Concurrency < 1 {
		return nil, errors.New("SCAN_CONCURRENCY must be at least 1")
	}

	return cfg, nil
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultVal
}
