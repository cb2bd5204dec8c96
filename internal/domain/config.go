package domain

import "time"

// Config holds the complete engine configuration.
type Config struct {
	Server ServerConfig `json:"server"`

	// Tier determines feature availability.
	Tier Tier `json:"tier"`

	// Pipeline holds the ego-graph/scoring/hybrid knobs of §6's
	// Configuration table.
	Pipeline PipelineConfig `json:"pipeline"`

	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// PipelineConfig holds the recognised options of §6's Configuration
// table plus the rule-scorer category caps/multipliers of §4.2.
type PipelineConfig struct {
	MaxDepth       int `json:"maxDepth"`       // BFS depth cap (default 3)
	TimeWindowDays int `json:"timeWindowDays"` // edge cutoff (default 180)
	EdgeCap        int `json:"edgeCap"`        // hard edge count limit (default 100000)
	MaxTxPerNode   int `json:"maxTxPerNode"`   // per-node fetch cap passed to the Transaction Source

	RuleWeight    float64 `json:"ruleWeight"`    // alpha, default 0.4
	PatternWeight float64 `json:"patternWeight"` // beta, default 0.3
	MLWeight      float64 `json:"mlWeight"`      // gamma, default 0.3

	RuleCaps RuleCapsConfig `json:"ruleCaps"`
}

// RuleCapsConfig overrides the per-category caps/multipliers of the
// §4.2 table. Zero values fall back to the spec's defaults.
type RuleCapsConfig struct {
	MixerMultiplier       float64 `json:"mixerMultiplier"`
	MixerCap              float64 `json:"mixerCap"`
	StolenMultiplier      float64 `json:"stolenMultiplier"`
	StolenCap             float64 `json:"stolenCap"`
	DarknetMultiplier     float64 `json:"darknetMultiplier"`
	DarknetCap            float64 `json:"darknetCap"`
	ScamMultiplier        float64 `json:"scamMultiplier"`
	ScamCap               float64 `json:"scamCap"`
	RansomwareMultiplier  float64 `json:"ransomwareMultiplier"`
	RansomwareCap         float64 `json:"ransomwareCap"`
	TerroristMultiplier   float64 `json:"terroristMultiplier"`
	TerroristCap          float64 `json:"terroristCap"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds

	// RateLimitPerMinute caps /analyze requests per tenant per minute
	// using the configured Cache's IncrementCounter. Zero disables
	// rate limiting.
	RateLimitPerMinute int64 `json:"rateLimitPerMinute"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier: SQLite + channels + in-memory LRU.
	TierCommunity Tier = "community"

	// TierPro is the paid tier: PostgreSQL + NATS + Redis two-phase cache.
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeout:        30,
			WriteTimeout:       30,
			RateLimitPerMinute: 600,
		},
		Tier: TierCommunity,
		Pipeline: PipelineConfig{
			MaxDepth:       3,
			TimeWindowDays: 180,
			EdgeCap:        100000,
			MaxTxPerNode:   500,
			RuleWeight:     0.4,
			PatternWeight:  0.3,
			MLWeight:       0.3,
			RuleCaps: RuleCapsConfig{
				MixerMultiplier:      0.6,
				MixerCap:             20,
				StolenMultiplier:     0.8,
				StolenCap:            25,
				DarknetMultiplier:    0.7,
				DarknetCap:           20,
				ScamMultiplier:       0.7,
				ScamCap:              20,
				RansomwareMultiplier: 0.9,
				RansomwareCap:        30,
				TerroristMultiplier:  1.0,
				TerroristCap:         70,
			},
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./addrrisk.db",
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
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "addrrisk",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "addrrisk",
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
