package config

// EnvPrefix is passed to envconfig; every field carries an explicit name so the prefix is informational.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const (
	EnvAppEnv        = "STOREFRONT_APP_ENV"
	EnvPort          = "STOREFRONT_APP_PORT"
	EnvRedisURL      = "STOREFRONT_REDIS_URL"
	EnvRedisAddr     = "STOREFRONT_REDIS_ADDR"
	EnvDBDSN         = "STOREFRONT_DB_DSN"
	EnvJWTSecret     = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer     = "STOREFRONT_JWT_ISSUER"
	EnvCartStorage   = "STOREFRONT_CART_STORAGE"
	EnvCartNamespace = "STOREFRONT_CART_NAMESPACE"
	EnvRewardsURL    = "STOREFRONT_REWARDS_URL"
	EnvRewardsDelay  = "STOREFRONT_REWARDS_DEBOUNCE"
)
