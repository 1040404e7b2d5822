package config

const (
	EnvPrefix = "FARMX"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:farmx.db?_foreign_keys=on"

	EnvAppEnv        = "FARMX_APP_ENV"
	EnvPort          = "FARMX_APP_PORT"
	EnvDBDSN         = "FARMX_DB_DSN"
	EnvDBHost        = "FARMX_DB_HOST"
	EnvDBUser        = "FARMX_DB_USER"
	EnvDBName        = "FARMX_DB_NAME"
	EnvDBPassword    = "FARMX_DB_PASSWORD"
	EnvUseSQLite     = "FARMX_USE_SQLITE"
	EnvRedisURL      = "FARMX_REDIS_URL"
	EnvJWTSecret     = "FARMX_JWT_SECRET"
	EnvJWTIssuer     = "FARMX_JWT_ISSUER"
	EnvJWTExpMins    = "FARMX_JWT_EXPIRATION_MINUTES"
	EnvCORSOrigins   = "FARMX_CORS_ALLOWED_ORIGINS"
	EnvPubSubTopic   = "FARMX_PUBSUB_MARKETPLACE_TOPIC"
	EnvOutboxBatch   = "FARMX_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxPollMS  = "FARMX_OUTBOX_PUBLISH_POLL_MS"
	EnvGCPProjectID  = "FARMX_GCP_PROJECT_ID"
	EnvPurchaseLimit = "FARMX_RATE_LIMIT_PURCHASE_LIMIT"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
