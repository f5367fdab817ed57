package config

const (
	EnvPrefix = "LIMINARA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv                 = "LIMINARA_APP_ENV"
	EnvPort                   = "LIMINARA_APP_PORT"
	EnvDBDSN                  = "LIMINARA_DB_DSN"
	EnvDBHost                 = "LIMINARA_DB_HOST"
	EnvDBUser                 = "LIMINARA_DB_USER"
	EnvDBName                 = "LIMINARA_DB_NAME"
	EnvRedisURL               = "LIMINARA_REDIS_URL"
	EnvJWTSecret              = "LIMINARA_JWT_SECRET"
	EnvJWTIssuer              = "LIMINARA_JWT_ISSUER"
	EnvJWTExpMins             = "LIMINARA_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "LIMINARA_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite              = "LIMINARA_USE_SQLITE"
	EnvClientAPIBaseURL       = "LIMINARA_API_BASE_URL"
	EnvClientStorageDir       = "LIMINARA_STORAGE_DIR"
	EnvClientHTTPTimeout      = "LIMINARA_HTTP_TIMEOUT"
	EnvClientWatchStorage     = "LIMINARA_WATCH_STORAGE"
	EnvClientLogLevel         = "LIMINARA_CLIENT_LOG_LEVEL"
	EnvClientItemTimeout      = "LIMINARA_MIGRATION_ITEM_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
