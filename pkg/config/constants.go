package config

// EnvPrefix is empty because every field carries its full STOREFRONT_ name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:storefront.db?cache=shared&_foreign_keys=on"
)

const (
	EnvAppEnv    = "STOREFRONT_APP_ENV"
	EnvPort      = "STOREFRONT_APP_PORT"
	EnvLogLevel  = "STOREFRONT_LOG_LEVEL"
	EnvDBDSN     = "STOREFRONT_DB_DSN"
	EnvDBDriver  = "STOREFRONT_DB_DRIVER"
	EnvDBHost    = "STOREFRONT_DB_HOST"
	EnvDBUser    = "STOREFRONT_DB_USER"
	EnvDBName    = "STOREFRONT_DB_NAME"
	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"
	EnvJWTExp    = "STOREFRONT_JWT_EXPIRATION_MINUTES"

	EnvSessionTTL        = "STOREFRONT_SESSION_TTL"
	EnvSessionCookieName = "STOREFRONT_SESSION_COOKIE_NAME"

	EnvGCPProjectID      = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubOrderEvents = "STOREFRONT_PUBSUB_ORDER_EVENTS_TOPIC"
)
