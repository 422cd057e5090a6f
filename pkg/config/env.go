package config

const (
	EnvPrefix = "MULTILAB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv             = "MULTILAB_APP_ENV"
	EnvPort               = "MULTILAB_APP_PORT"
	EnvDBDSN              = "MULTILAB_DB_DSN"
	EnvDBHost             = "MULTILAB_DB_HOST"
	EnvDBUser             = "MULTILAB_DB_USER"
	EnvDBName             = "MULTILAB_DB_NAME"
	EnvRedisURL           = "MULTILAB_REDIS_URL"
	EnvJWTSecret          = "MULTILAB_JWT_SECRET"
	EnvJWTIssuer          = "MULTILAB_JWT_ISSUER"
	EnvJWTExpMins         = "MULTILAB_JWT_EXPIRATION_MINUTES"
	EnvUseSQLite          = "MULTILAB_USE_SQLITE"
	EnvRaisedHoldTTL      = "MULTILAB_RAISED_HOLD_TTL"
	EnvMaxExtensionMonths = "MULTILAB_MAX_EXTENSION_MONTHS"
	EnvS3Bucket           = "MULTILAB_S3_BUCKET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
