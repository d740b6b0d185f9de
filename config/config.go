package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Access     AccessConfig     `yaml:"access"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Cache      CacheConfig      `yaml:"cache"`
	Lock       LockConfig       `yaml:"lock"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Events     EventsConfig     `yaml:"events"`
	Rewards    RewardsConfig    `yaml:"rewards"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// LogConfig selects the minimum log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// AccessConfig holds the occupation and claim windows.
type AccessConfig struct {
	MaxSessionMinutes  int                `yaml:"max_session_minutes"`
	ClaimWindowMinutes int                `yaml:"claim_window_minutes"`
	CalorieRates       map[string]float64 `yaml:"calorie_rates"`

	MaxSession  time.Duration `yaml:"-"`
	ClaimWindow time.Duration `yaml:"-"`
}

// SweeperConfig controls the expiry sweeper loop.
type SweeperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// CacheConfig controls the ephemeral queue cache.
type CacheConfig struct {
	QueueTTLSeconds int           `yaml:"queue_ttl_seconds"`
	QueueTTL        time.Duration `yaml:"-"`
}

// LockConfig selects the per-equipment lock strategy.
type LockConfig struct {
	Strategy   string `yaml:"strategy"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	WaitMillis int    `yaml:"wait_millis"`
}

// AnalyticsConfig tunes the wait estimator.
type AnalyticsConfig struct {
	HistorySize           int `yaml:"history_size"`
	DefaultSessionMinutes int `yaml:"default_session_minutes"`
	WaitLookbackDays      int `yaml:"wait_lookback_days"`
}

// EventsConfig holds the optional event-stream sinks.
type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

// KafkaConfig configures the kafka sink. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MQTTConfig configures the mqtt sink. An empty broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// RewardsConfig points at the points collaborator. An empty base URL disables it.
type RewardsConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset or invalid value with its default.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		slog.Warn("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 256
	}

	if cfg.Access.MaxSessionMinutes <= 0 {
		cfg.Access.MaxSessionMinutes = 180
	}
	if cfg.Access.ClaimWindowMinutes <= 0 {
		cfg.Access.ClaimWindowMinutes = 5
	}
	cfg.Access.MaxSession = time.Duration(cfg.Access.MaxSessionMinutes) * time.Minute
	cfg.Access.ClaimWindow = time.Duration(cfg.Access.ClaimWindowMinutes) * time.Minute

	if cfg.Sweeper.IntervalSeconds <= 0 {
		cfg.Sweeper.IntervalSeconds = 30
	}
	cfg.Sweeper.Interval = time.Duration(cfg.Sweeper.IntervalSeconds) * time.Second

	if cfg.Cache.QueueTTLSeconds <= 0 {
		cfg.Cache.QueueTTLSeconds = 120
	}
	cfg.Cache.QueueTTL = time.Duration(cfg.Cache.QueueTTLSeconds) * time.Second

	cfg.Lock.Strategy = strings.ToLower(cfg.Lock.Strategy)
	if cfg.Lock.Strategy == "" {
		cfg.Lock.Strategy = "none"
	}
	if cfg.Lock.TTLSeconds <= 0 {
		cfg.Lock.TTLSeconds = 10
	}
	if cfg.Lock.WaitMillis <= 0 {
		cfg.Lock.WaitMillis = 500
	}

	if cfg.Analytics.HistorySize <= 0 {
		cfg.Analytics.HistorySize = 100
	}
	if cfg.Analytics.DefaultSessionMinutes <= 0 {
		cfg.Analytics.DefaultSessionMinutes = 30
	}
	if cfg.Analytics.WaitLookbackDays <= 0 {
		cfg.Analytics.WaitLookbackDays = 7
	}

	if cfg.Events.Kafka.Topic == "" {
		cfg.Events.Kafka.Topic = "equipment-events"
	}
	if cfg.Events.MQTT.TopicPrefix == "" {
		cfg.Events.MQTT.TopicPrefix = "gym"
	}
	if cfg.Events.MQTT.ClientID == "" {
		cfg.Events.MQTT.ClientID = "gymd"
	}

	if cfg.Rewards.TimeoutSeconds <= 0 {
		cfg.Rewards.TimeoutSeconds = 5
	}
}

// SlogLevel maps the configured level name onto a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
