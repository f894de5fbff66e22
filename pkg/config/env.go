package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ImageStorageLocal = "local"
	ImageStorageGCS   = "gcs"

	EnvAppEnv        = "STOREFRONT_APP_ENV"
	EnvPort          = "STOREFRONT_APP_PORT"
	EnvDBDSN         = "STOREFRONT_DB_DSN"
	EnvDBHost        = "STOREFRONT_DB_HOST"
	EnvDBUser        = "STOREFRONT_DB_USER"
	EnvDBName        = "STOREFRONT_DB_NAME"
	EnvUseSQLite     = "STOREFRONT_USE_SQLITE"
	EnvRedisURL      = "STOREFRONT_REDIS_URL"
	EnvJWTSecret     = "STOREFRONT_JWT_SECRET"
	EnvSessionTTL    = "STOREFRONT_SESSION_TTL"
	EnvOwnerEmail    = "STOREFRONT_OWNER_EMAIL"
	EnvIdentityIss   = "STOREFRONT_IDENTITY_ISSUER"
	EnvIdentityAud   = "STOREFRONT_IDENTITY_AUDIENCE"
	EnvIdentitySec   = "STOREFRONT_IDENTITY_SECRET"
	EnvImageStorage  = "STOREFRONT_IMAGE_STORAGE"
	EnvGCSBucket     = "STOREFRONT_GCS_BUCKET_NAME"
	EnvCORSOrigins   = "STOREFRONT_CORS_ALLOWED_ORIGINS"
	EnvPendingSaleTT = "STOREFRONT_CRON_PENDING_SALE_TTL"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
