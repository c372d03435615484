package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	CartStoreDB     = "db"
	CartStoreRedis  = "redis"
	CartStoreMemory = "memory"

	CartLockLocal = "local"
	CartLockRedis = "redis"
)

const (
	EnvAppEnv               = "STOREFRONT_APP_ENV"
	EnvPort                 = "STOREFRONT_APP_PORT"
	EnvLogLevel             = "STOREFRONT_LOG_LEVEL"
	EnvDBDSN                = "STOREFRONT_DB_DSN"
	EnvDBDriver             = "STOREFRONT_DB_DRIVER"
	EnvDBHost               = "STOREFRONT_DB_HOST"
	EnvDBUser               = "STOREFRONT_DB_USER"
	EnvDBName               = "STOREFRONT_DB_NAME"
	EnvRedisURL             = "STOREFRONT_REDIS_URL"
	EnvJWTSecret            = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer            = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins           = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvCartStore            = "STOREFRONT_CART_STORE"
	EnvCartLock             = "STOREFRONT_CART_LOCK"
	EnvCartMergeMaxAttempts = "STOREFRONT_CART_MERGE_MAX_ATTEMPTS"
	EnvCORSAllowedOrigins   = "STOREFRONT_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
