package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/zipdrop/zipdrop-backend/pkg/enums"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Orders   OrdersConfig
	Payments PaymentsConfig
	PubSub   PubSubConfig
	Push     PushConfig
	Outbox   OutboxConfig
	Cron     CronConfig

	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ZIPDROP_APP_ENV" required:"true"`
	Port         string `envconfig:"ZIPDROP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ZIPDROP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ZIPDROP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ZIPDROP_DB_DSN"`
	Driver string `envconfig:"ZIPDROP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ZIPDROP_DB_HOST"`
	LegacyPort     int    `envconfig:"ZIPDROP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ZIPDROP_DB_USER"`
	LegacyPassword string `envconfig:"ZIPDROP_DB_PASSWORD"`
	LegacyName     string `envconfig:"ZIPDROP_DB_NAME"`
	LegacySSLMode  string `envconfig:"ZIPDROP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ZIPDROP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ZIPDROP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ZIPDROP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ZIPDROP_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// Every transaction is bounded so a stalled lock holder cannot wedge
	// the service; statement timeout applies per statement, lock timeout to
	// row-lock acquisition.
	StatementTimeout time.Duration `envconfig:"ZIPDROP_DB_STATEMENT_TIMEOUT" default:"10s"`
	LockTimeout      time.Duration `envconfig:"ZIPDROP_DB_LOCK_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ZIPDROP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ZIPDROP_REDIS_ADDR"`
	Password     string        `envconfig:"ZIPDROP_REDIS_PASSWORD"`
	DB           int           `envconfig:"ZIPDROP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ZIPDROP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ZIPDROP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ZIPDROP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ZIPDROP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ZIPDROP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type OrdersConfig struct {
	OversellMode string        `envconfig:"ZIPDROP_ORDERS_OVERSELL_MODE" default:"clamp"`
	PendingTTL   time.Duration `envconfig:"ZIPDROP_ORDERS_PENDING_TTL" default:"24h"`

	PlaceWindow time.Duration `envconfig:"ZIPDROP_ORDERS_PLACE_RATE_WINDOW" default:"1m"`
	PlaceLimit  int           `envconfig:"ZIPDROP_ORDERS_PLACE_RATE_LIMIT" default:"10"`
}

func (o OrdersConfig) validate() error {
	if _, err := enums.ParseOversellMode(o.OversellMode); err != nil {
		return err
	}
	return nil
}

// Mode returns the parsed oversell mode; Load guarantees it is valid.
func (o OrdersConfig) Mode() enums.OversellMode {
	mode, err := enums.ParseOversellMode(o.OversellMode)
	if err != nil {
		return enums.OversellModeClamp
	}
	return mode
}

type PaymentsConfig struct {
	WebhookSecret  string        `envconfig:"ZIPDROP_PAYMENTS_WEBHOOK_SECRET" required:"true"`
	IdempotencyTTL time.Duration `envconfig:"ZIPDROP_PAYMENTS_IDEMPOTENCY_TTL" default:"720h"`
}

type PubSubConfig struct {
	ProjectID          string `envconfig:"ZIPDROP_PUBSUB_PROJECT_ID" required:"true"`
	OrdersTopic        string `envconfig:"ZIPDROP_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription string `envconfig:"ZIPDROP_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
}

// PushConfig carries the push-dispatch credentials explicitly; the dispatcher
// is the only component that reads them.
type PushConfig struct {
	Endpoint  string        `envconfig:"ZIPDROP_PUSH_ENDPOINT"`
	ServerKey string        `envconfig:"ZIPDROP_PUSH_SERVER_KEY"`
	Timeout   time.Duration `envconfig:"ZIPDROP_PUSH_TIMEOUT" default:"5s"`
}

func (p PushConfig) Enabled() bool {
	return p.Endpoint != "" && p.ServerKey != ""
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ZIPDROP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ZIPDROP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ZIPDROP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ZIPDROP_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	Interval    time.Duration `envconfig:"ZIPDROP_CRON_INTERVAL" default:"1h"`
	LockTTL     time.Duration `envconfig:"ZIPDROP_CRON_LOCK_TTL" default:"55m"`
	StatsWindow time.Duration `envconfig:"ZIPDROP_CRON_STATS_WINDOW" default:"48h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
