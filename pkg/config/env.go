package config

const (
	EnvPrefix = "SHAREDLISTS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv         = "SHAREDLISTS_APP_ENV"
	EnvPort           = "SHAREDLISTS_APP_PORT"
	EnvLogLevel       = "SHAREDLISTS_LOG_LEVEL"
	EnvStorageTimeout = "SHAREDLISTS_STORAGE_TIMEOUT"

	EnvDBDSN  = "SHAREDLISTS_DB_DSN"
	EnvDBHost = "SHAREDLISTS_DB_HOST"
	EnvDBPort = "SHAREDLISTS_DB_PORT"
	EnvDBUser = "SHAREDLISTS_DB_USER"
	EnvDBPass = "SHAREDLISTS_DB_PASSWORD"
	EnvDBName = "SHAREDLISTS_DB_NAME"

	EnvRedisURL = "SHAREDLISTS_REDIS_URL"

	EnvJWTSecret               = "SHAREDLISTS_JWT_SECRET"
	EnvJWTIssuer               = "SHAREDLISTS_JWT_ISSUER"
	EnvJWTExpMins              = "SHAREDLISTS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "SHAREDLISTS_REFRESH_TOKEN_TTL_MINUTES"
	EnvAllowedOrigins          = "SHAREDLISTS_ALLOWED_ORIGINS"
	EnvRealtimeResyncInterval  = "SHAREDLISTS_REALTIME_RESYNC_INTERVAL"
	EnvAPIRateLimit            = "SHAREDLISTS_API_RATE_LIMIT"
	EnvCronCommonItemRetention = "SHAREDLISTS_CRON_COMMON_ITEM_RETENTION_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
