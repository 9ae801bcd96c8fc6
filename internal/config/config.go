package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppEnv        string        `envconfig:"APP_ENV" default:"development" validate:"oneof=development test production"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	ServerAddress string        `envconfig:"SERVER_ADDRESS" default:":9090" validate:"required"`
	Timeout       time.Duration `envconfig:"CONTEXT_TIMEOUT" default:"30s" validate:"gt=0"`

	DatabaseURL     string        `envconfig:"DATABASE_URL" default:"sqlite://popularity.db" validate:"required"`
	DBMaxRetry      int           `envconfig:"DB_MAX_RETRY" default:"10" validate:"min=1"`
	DBRetryInterval time.Duration `envconfig:"DB_RETRY_INTERVAL" default:"2s" validate:"gt=0"`

	CacheHost string `envconfig:"CACHE_HOST" default:"localhost"`
	CachePort string `envconfig:"CACHE_PORT" default:"6379"`
	CachePass string `envconfig:"CACHE_PASS"`
	CacheDB   int    `envconfig:"CACHE_DB" default:"0" validate:"min=0,max=15"`

	// ProjectionBackend selects the projection store: redis, or memory for a single process.
	ProjectionBackend string `envconfig:"PROJECTION_BACKEND" default:"redis" validate:"oneof=redis memory"`

	SyncTimeout   time.Duration `envconfig:"SYNC_TIMEOUT" default:"2s" validate:"gt=0"`
	SyncShards    int           `envconfig:"SYNC_SHARDS" default:"16" validate:"min=1"`
	SyncQueueSize int           `envconfig:"SYNC_QUEUE_SIZE" default:"256" validate:"min=1"`

	RepairQueueSize   int           `envconfig:"REPAIR_QUEUE_SIZE" default:"1024" validate:"min=1"`
	RepairMaxAttempts int           `envconfig:"REPAIR_MAX_ATTEMPTS" default:"5" validate:"min=1"`
	RepairBaseDelay   time.Duration `envconfig:"REPAIR_BASE_DELAY" default:"200ms" validate:"gt=0"`
	RepairMaxDelay    time.Duration `envconfig:"REPAIR_MAX_DELAY" default:"10s" validate:"gtefield=RepairBaseDelay"`

	DecayInterval    time.Duration `envconfig:"DECAY_INTERVAL" default:"1m" validate:"gt=0"`
	DecayMaxCatchup  int           `envconfig:"DECAY_MAX_CATCHUP" default:"24" validate:"min=1"`
	DecayParallelism int           `envconfig:"DECAY_PARALLELISM" default:"8" validate:"min=1"`
	DecayWriteRPS    float64       `envconfig:"DECAY_WRITE_RPS" default:"0" validate:"min=0"`

	// NATSURL enables like/unlike notifications when set.
	NATSURL             string `envconfig:"NATS_URL"`
	EventsSubjectPrefix string `envconfig:"EVENTS_SUBJECT_PREFIX" default:"popularity" validate:"required"`

	// AdminToken guards /admin; an empty token disables those routes.
	AdminToken  string   `envconfig:"ADMIN_TOKEN"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`

	LikeRateRPS   float64 `envconfig:"LIKE_RATE_RPS" default:"5" validate:"min=0"`
	LikeRateBurst int     `envconfig:"LIKE_RATE_BURST" default:"10" validate:"min=1"`
}

// CacheAddr is the redis address in host:port form.
func (c Config) CacheAddr() string {
	return c.CacheHost + ":" + c.CachePort
}

// Load reads the environment, after loading the given dotenv files (".env" when none).
// Missing dotenv files are ignored; variables already set are never overridden.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
