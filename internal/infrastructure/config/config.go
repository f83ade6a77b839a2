package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Provider ProviderConfig `mapstructure:"provider"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Neo4J    Neo4JConfig    `mapstructure:"neo4j"`
}

// AppConfig represents application-specific configuration
type AppConfig struct {
	Env            string `mapstructure:"env"`
	LogLevel       string `mapstructure:"log_level"`
	HTTPPort       int    `mapstructure:"http_port"`
	WorkerPoolSize int    `mapstructure:"worker_pool_size"`
}

// ProviderConfig represents the fast indexed-provider configuration.
// When Enabled is false or the API key is empty, auto mode resolves to
// the deep on-chain path.
type ProviderConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PageSize int           `mapstructure:"page_size"`
}

// ChainConfig represents the RPC provider and deep-scan configuration
type ChainConfig struct {
	RPCURL               string        `mapstructure:"rpc_url"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	LogBatchSize         uint64        `mapstructure:"log_batch_size"`
	ActivityFallbackSpan uint64        `mapstructure:"activity_fallback_span"`
	HolderFallbackSpan   uint64        `mapstructure:"holder_fallback_span"`
}

// CacheConfig represents the persistent cache store configuration
type CacheConfig struct {
	Path          string        `mapstructure:"path"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RetryConfig represents the bounded-retry policy
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

// ScoringConfig represents per-request scoring defaults
type ScoringConfig struct {
	TimeWindowHours  int           `mapstructure:"time_window_hours"`
	ActivityLimit    int           `mapstructure:"activity_limit"`
	DimensionTimeout time.Duration `mapstructure:"dimension_timeout"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL                string        `mapstructure:"url"`
	StreamName         string        `mapstructure:"stream_name"`
	SubjectPrefix      string        `mapstructure:"subject_prefix"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	ReconnectAttempts  int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect_delay"`
	MaxPendingRequests int           `mapstructure:"max_pending_requests"`
	Enabled            bool          `mapstructure:"enabled"`
}

// Neo4JConfig represents Neo4J configuration
type Neo4JConfig struct {
	URI                          string        `mapstructure:"uri"`
	Username                     string        `mapstructure:"username"`
	Password                     string        `mapstructure:"password"`
	Database                     string        `mapstructure:"database"`
	ConnectTimeout               time.Duration `mapstructure:"connect_timeout"`
	MaxConnectionPoolSize        int           `mapstructure:"max_connection_pool_size"`
	ConnectionAcquisitionTimeout time.Duration `mapstructure:"connection_acquisition_timeout"`
	Enabled                      bool          `mapstructure:"enabled"`
}

// Load loads configuration from environment variables and files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/token-score-engine")

	// Environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	// Map environment variables to nested config keys
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Default values
	setDefaults()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.http_port", 8080)
	viper.SetDefault("app.worker_pool_size", 4)

	// Provider defaults
	viper.SetDefault("provider.enabled", true)
	viper.SetDefault("provider.base_url", "https://api.blockvision.org/v2/monad")
	viper.SetDefault("provider.api_key", "")
	viper.SetDefault("provider.timeout", "30s")
	viper.SetDefault("provider.page_size", 100)

	// Chain defaults
	viper.SetDefault("chain.rpc_url", "")
	viper.SetDefault("chain.request_timeout", "15s")
	viper.SetDefault("chain.log_batch_size", 1000)
	viper.SetDefault("chain.activity_fallback_span", 10000)
	viper.SetDefault("chain.holder_fallback_span", 50000)

	// Cache defaults
	viper.SetDefault("cache.path", "data/cache.db")
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("cache.sweep_interval", "10m")

	// Retry defaults
	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.base_delay", "1s")

	// Scoring defaults
	viper.SetDefault("scoring.time_window_hours", 1)
	viper.SetDefault("scoring.activity_limit", 1000)
	viper.SetDefault("scoring.dimension_timeout", "2m")

	// NATS defaults
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.stream_name", "SCORES")
	viper.SetDefault("nats.subject_prefix", "scores")
	viper.SetDefault("nats.consumer_group", "token-score-engine")
	viper.SetDefault("nats.connect_timeout", "10s")
	viper.SetDefault("nats.reconnect_attempts", 5)
	viper.SetDefault("nats.reconnect_delay", "2s")
	viper.SetDefault("nats.max_pending_requests", 1000)
	viper.SetDefault("nats.enabled", true)

	// Neo4J defaults
	viper.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")
	viper.SetDefault("neo4j.connect_timeout", "10s")
	viper.SetDefault("neo4j.max_connection_pool_size", 50)
	viper.SetDefault("neo4j.connection_acquisition_timeout", "60s")
	viper.SetDefault("neo4j.enabled", true)

	// Bind env for external endpoints
	viper.BindEnv("provider.api_key", "PROVIDER_API_KEY")
	viper.BindEnv("chain.rpc_url", "CHAIN_RPC_URL")
	viper.BindEnv("nats.url", "NATS_URL")
}
