package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "ZIPDROP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "ZIPDROP_APP_ENV"
	EnvPort   = "ZIPDROP_APP_PORT"

	EnvDBDSN  = "ZIPDROP_DB_DSN"
	EnvDBHost = "ZIPDROP_DB_HOST"
	EnvDBUser = "ZIPDROP_DB_USER"
	EnvDBName = "ZIPDROP_DB_NAME"

	EnvRedisURL = "ZIPDROP_REDIS_URL"

	EnvPaymentsWebhookSecret = "ZIPDROP_PAYMENTS_WEBHOOK_SECRET"

	EnvPubSubProjectID = "ZIPDROP_PUBSUB_PROJECT_ID"
	EnvPubSubTopic     = "ZIPDROP_PUBSUB_ORDERS_TOPIC"
	EnvPubSubSub       = "ZIPDROP_PUBSUB_ORDERS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
