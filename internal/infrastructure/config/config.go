package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,       default=8080"`
	Env       string `env:"ENV,        default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	Mongo     MongoConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Session   SessionConfig
	Sync      SyncConfig
	Retention RetentionConfig
}

type MongoConfig struct {
	URI         string        `env:"MONGO_URI,        default=mongodb://localhost:27017"`
	Database    string        `env:"MONGO_DB,         default=counting_sync"`
	MaxPoolSize uint64        `env:"MONGO_POOL_SIZE,  default=50"`
	OpTimeout   time.Duration `env:"MONGO_OP_TIMEOUT, default=10s"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,      default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,        default=0"`
	PoolSize int    `env:"REDIS_POOL_SIZE, default=20"`
}

// KafkaConfig leaves Brokers empty to publish lifecycle events to the log only.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS"`
	Topic   string   `env:"KAFKA_TOPIC, default=counting.sessions"`
}

type SessionConfig struct {
	MaxOpen          int           `env:"SESSION_MAX_OPEN,         default=5"`
	MaxDaily         int           `env:"SESSION_MAX_DAILY,        default=20"`
	MaxParticipants  int           `env:"SESSION_MAX_PARTICIPANTS, default=25"`
	CodeAttempts     int           `env:"ACCESS_CODE_ATTEMPTS,     default=10"`
	InvalidCodeDelay time.Duration `env:"JOIN_INVALID_DELAY,       default=750ms"`
	JoinRateLimit    int           `env:"JOIN_RATE_LIMIT,          default=10"`
}

type SyncConfig struct {
	MaxBatch          int           `env:"SYNC_MAX_BATCH,         default=500"`
	PendingSyncWindow time.Duration `env:"PENDING_SYNC_WINDOW,    default=30s"`
	DrainTimeout      time.Duration `env:"FINALIZE_DRAIN_TIMEOUT, default=15s"`
	AggregateCacheTTL time.Duration `env:"AGGREGATE_CACHE_TTL,    default=3s"`
	EventWorkers      int           `env:"EVENT_WORKERS,          default=4"`
}

type RetentionConfig struct {
	Window   time.Duration `env:"RETENTION_WINDOW,   default=2160h"`
	Interval time.Duration `env:"RETENTION_INTERVAL, default=1h"`
}

// Load reads configuration from environment variables using go-envconfig.
// A .env file in the working directory is loaded first when present; real
// environment variables take precedence over it.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if cfg.JWTSecret == "" && cfg.Env == "production" {
		return nil, errors.New("config: JWT_SECRET is required in production")
	}
	// A movement insert holds its lease for up to one Mongo operation.
	if cfg.Sync.DrainTimeout <= cfg.Mongo.OpTimeout {
		return nil, fmt.Errorf("config: FINALIZE_DRAIN_TIMEOUT (%s) must exceed MONGO_OP_TIMEOUT (%s)",
			cfg.Sync.DrainTimeout, cfg.Mongo.OpTimeout)
	}
	return &cfg, nil
}

// IsDevelopment reports whether the service runs outside production.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}
