package domain

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete Kestrel configuration.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Gateway GatewayConfig `json:"gateway"`

	// Profile selects the deployment shape.
	Profile Profile `json:"profile"`

	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// Profile represents the deployment profile.
type Profile string

const (
	// ProfileStandalone runs on SQLite + local LRU + channel bus.
	ProfileStandalone Profile = "standalone"

	// ProfileCluster runs on PostgreSQL + Redis + NATS.
	ProfileCluster Profile = "cluster"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// GatewayConfig holds request-gateway limits.
type GatewayConfig struct {
	// BatchCap bounds batch endpoints; exceeding it is a 400.
	BatchCap int `json:"batchCap"`

	// CORSAllowOrigins lists allowed origins; empty means any.
	CORSAllowOrigins []string `json:"corsAllowOrigins"`

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `json:"rateLimit"`
	RateBurst int     `json:"rateBurst"`

	// ExplainTTL is the cache lifetime for explanation traces, seconds.
	ExplainTTL int `json:"explainTtl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // DEBUG, INFO, WARN, ERROR
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// DefaultConfig returns the standalone profile defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Gateway: GatewayConfig{
			BatchCap:   100,
			RateLimit:  0,
			RateBurst:  20,
			ExplainTTL: 900,
		},
		Profile: ProfileStandalone,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ClusterConfig returns the cluster profile defaults.
func ClusterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Profile = ProfileCluster
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}

// LoadConfig builds the configuration from defaults overridden by
// KESTREL_* environment variables (KESTREL_PORT, KESTREL_LOG_LEVEL,
// KESTREL_CORS_ALLOW_ORIGINS, KESTREL_BATCH_CAP, ...).
func LoadConfig() *Config {
	v := viper.New()
	v.SetEnvPrefix("KESTREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	if Profile(v.GetString("profile")) == ProfileCluster {
		cfg = ClusterConfig()
	}

	if v.IsSet("port") {
		cfg.Server.Port = v.GetInt("port")
	}
	if v.IsSet("host") {
		cfg.Server.Host = v.GetString("host")
	}
	if v.IsSet("log_level") {
		cfg.Logging.Level = strings.ToUpper(v.GetString("log_level"))
	}
	if v.IsSet("log_format") {
		cfg.Logging.Format = v.GetString("log_format")
	}
	if v.IsSet("cors_allow_origins") {
		cfg.Gateway.CORSAllowOrigins = splitList(v.GetString("cors_allow_origins"))
	}
	if v.IsSet("batch_cap") {
		cfg.Gateway.BatchCap = v.GetInt("batch_cap")
	}
	if v.IsSet("rate_limit") {
		cfg.Gateway.RateLimit = v.GetFloat64("rate_limit")
	}
	if v.IsSet("sqlite_path") {
		cfg.Repository.SQLitePath = v.GetString("sqlite_path")
	}
	if v.IsSet("postgres_host") {
		cfg.Repository.PostgresHost = v.GetString("postgres_host")
	}
	if v.IsSet("postgres_port") {
		cfg.Repository.PostgresPort = v.GetInt("postgres_port")
	}
	if v.IsSet("postgres_user") {
		cfg.Repository.PostgresUser = v.GetString("postgres_user")
	}
	if v.IsSet("postgres_password") {
		cfg.Repository.PostgresPassword = v.GetString("postgres_password")
	}
	if v.IsSet("postgres_db") {
		cfg.Repository.PostgresDB = v.GetString("postgres_db")
	}
	if v.IsSet("redis_addr") {
		cfg.Cache.RedisAddr = v.GetString("redis_addr")
	}
	if v.IsSet("redis_password") {
		cfg.Cache.RedisPassword = v.GetString("redis_password")
	}
	if v.IsSet("nats_url") {
		cfg.EventBus.NATSUrl = v.GetString("nats_url")
	}
	if v.IsSet("tracing_enabled") {
		cfg.Tracing.Enabled = v.GetBool("tracing_enabled")
	}

	return cfg
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
