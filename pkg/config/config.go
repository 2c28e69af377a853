package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Redis   RedisConfig
	DB      DBConfig
	JWT     JWTConfig
	Cart    CartConfig
	Rewards RewardsConfig
	Seed    SeedConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated allow-list for browser callers.
	CORSOrigins     []string      `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"STOREFRONT_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"3s"`
	Namespace    string        `envconfig:"STOREFRONT_REDIS_NAMESPACE" default:"sf"`
}

type DBConfig struct {
	DSN             string        `envconfig:"STOREFRONT_DB_DSN"`
	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"STOREFRONT_DB_AUTO_MIGRATE" default:"false"`
	SlowQuery       time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"200ms"`
}

// JWTConfig verifies access tokens minted by the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type CartConfig struct {
	Namespace      string        `envconfig:"STOREFRONT_CART_NAMESPACE" default:"storefront-cart"`
	StorageBackend string        `envconfig:"STOREFRONT_CART_STORAGE" default:"redis"`
	SnapshotTTL    time.Duration `envconfig:"STOREFRONT_CART_SNAPSHOT_TTL" default:"720h"`
	DeviceCookie   string        `envconfig:"STOREFRONT_CART_DEVICE_COOKIE" default:"sf_device"`
	SessionIdleTTL time.Duration `envconfig:"STOREFRONT_CART_SESSION_IDLE_TTL" default:"30m"`
	StorageTimeout time.Duration `envconfig:"STOREFRONT_CART_STORAGE_TIMEOUT" default:"2s"`
	SweepInterval  time.Duration `envconfig:"STOREFRONT_CART_SWEEP_INTERVAL" default:"1m"`
	PurgeInterval  time.Duration `envconfig:"STOREFRONT_CART_PURGE_INTERVAL" default:"1h"`
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_CART_IDEMPOTENCY_TTL" default:"24h"`
	// RateLimit caps mutations per device per RateWindow; zero disables throttling.
	RateLimit  int           `envconfig:"STOREFRONT_CART_RATE_LIMIT" default:"120"`
	RateWindow time.Duration `envconfig:"STOREFRONT_CART_RATE_WINDOW" default:"1m"`
}

// Backend returns the normalized storage backend name.
func (c CartConfig) Backend() string {
	backend := strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if backend == "" {
		return StorageRedis
	}
	return backend
}

type RewardsConfig struct {
	EndpointURL string        `envconfig:"STOREFRONT_REWARDS_URL"`
	Timeout     time.Duration `envconfig:"STOREFRONT_REWARDS_TIMEOUT" default:"5s"`
	Debounce    time.Duration `envconfig:"STOREFRONT_REWARDS_DEBOUNCE" default:"300ms"`
}

// Enabled reports whether reward sync has an endpoint to call.
func (r RewardsConfig) Enabled() bool {
	return strings.TrimSpace(r.EndpointURL) != ""
}

type SeedConfig struct {
	CookieName      string        `envconfig:"STOREFRONT_SEED_COOKIE" default:"cart_seed"`
	NoticeTTL       time.Duration `envconfig:"STOREFRONT_SEED_NOTICE_TTL" default:"10m"`
	DefaultSource   string        `envconfig:"STOREFRONT_SEED_DEFAULT_SOURCE" default:"content"`
	DefaultMedium   string        `envconfig:"STOREFRONT_SEED_DEFAULT_MEDIUM" default:"cart_seed"`
	DefaultCampaign string        `envconfig:"STOREFRONT_SEED_DEFAULT_CAMPAIGN" default:"direct"`
}

func (c *Config) validate() error {
	switch c.Cart.Backend() {
	case StorageRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for redis storage", EnvRedisURL, EnvRedisAddr)
		}
	case StoragePostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("%s is required for postgres storage", EnvDBDSN)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unsupported %s %q", EnvCartStorage, c.Cart.StorageBackend)
	}
	if strings.TrimSpace(c.Cart.Namespace) == "" {
		return fmt.Errorf("%s must not be empty", EnvCartNamespace)
	}
	return nil
}
