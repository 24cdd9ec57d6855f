package config

// EnvPrefix namespaces every environment variable consumed by the service.
const EnvPrefix = "servicedesk"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SERVICEDESK_APP_ENV"
	EnvPort     = "SERVICEDESK_APP_PORT"
	EnvLogLevel = "SERVICEDESK_LOG_LEVEL"

	EnvDBDSN    = "SERVICEDESK_DB_DSN"
	EnvDBDriver = "SERVICEDESK_DB_DRIVER"
	EnvDBHost   = "SERVICEDESK_DB_HOST"
	EnvDBPort   = "SERVICEDESK_DB_PORT"
	EnvDBUser   = "SERVICEDESK_DB_USER"
	EnvDBName   = "SERVICEDESK_DB_NAME"

	EnvRedisURL = "SERVICEDESK_REDIS_URL"

	EnvGCPProjectID      = "SERVICEDESK_GCP_PROJECT_ID"
	EnvPubSubCasesTopic  = "SERVICEDESK_PUBSUB_CASE_EVENTS_TOPIC"
	EnvShopifyWebhookKey = "SERVICEDESK_SHOPIFY_WEBHOOK_SECRET"
)

// legacyDBEnvVars are the discrete connection vars accepted when
// SERVICEDESK_DB_DSN is not set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
