package config

const (
	EnvPrefix = "SWEETSHOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:sweetshop.db?_busy_timeout=5000"
)

const (
	EnvAppEnv  = "SWEETSHOP_APP_ENV"
	EnvPort    = "SWEETSHOP_APP_PORT"
	EnvDBDSN   = "SWEETSHOP_DB_DSN"
	EnvDBHost  = "SWEETSHOP_DB_HOST"
	EnvDBUser  = "SWEETSHOP_DB_USER"
	EnvDBName  = "SWEETSHOP_DB_NAME"
	EnvDBDrive = "SWEETSHOP_DB_DRIVER"

	EnvRedisURL = "SWEETSHOP_REDIS_URL"

	EnvJWTSecret              = "SWEETSHOP_JWT_SECRET"
	EnvJWTIssuer              = "SWEETSHOP_JWT_ISSUER"
	EnvJWTExpMins             = "SWEETSHOP_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "SWEETSHOP_REFRESH_TOKEN_TTL_MINUTES"

	EnvAdminEmail       = "SWEETSHOP_ADMIN_EMAIL"
	EnvAllowAdminSignup = "SWEETSHOP_AUTH_ALLOW_ADMIN_SIGNUP"

	EnvPaginationDefaultLimit = "SWEETSHOP_PAGINATION_DEFAULT_LIMIT"
	EnvPaginationMaxLimit     = "SWEETSHOP_PAGINATION_MAX_LIMIT"
)
