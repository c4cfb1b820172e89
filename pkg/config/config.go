package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Funding      FundingConfig
	Org          OrgConfig
	Sweep        SweepConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Eventing     EventingConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MANA_APP_ENV" required:"true"`
	Port         string `envconfig:"MANA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MANA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MANA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MANA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MANA_DB_DSN"`
	Driver string `envconfig:"MANA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MANA_DB_HOST"`
	Port     int    `envconfig:"MANA_DB_PORT" default:"5432"`
	User     string `envconfig:"MANA_DB_USER"`
	Password string `envconfig:"MANA_DB_PASSWORD"`
	Name     string `envconfig:"MANA_DB_NAME"`
	SSLMode  string `envconfig:"MANA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MANA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MANA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MANA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MANA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either MANA_DB_DSN or MANA_DB_HOST/USER/NAME must be set")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"MANA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MANA_REDIS_ADDR"`
	Password     string        `envconfig:"MANA_REDIS_PASSWORD"`
	DB           int           `envconfig:"MANA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MANA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MANA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MANA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MANA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MANA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey         string        `envconfig:"MANA_STRIPE_API_KEY"`
	Secret         string        `envconfig:"MANA_STRIPE_WEBHOOK_SECRET"`
	Env            string        `envconfig:"MANA_STRIPE_ENV" default:"test"`
	RequestTimeout time.Duration `envconfig:"MANA_STRIPE_REQUEST_TIMEOUT" default:"10s"`
}

func (s StripeConfig) Environment() string {
	return s.Env
}

// FundingConfig carries the business thresholds of the donation pipeline.
type FundingConfig struct {
	GeneralMinimumCents int64         `envconfig:"MANA_FUNDING_GENERAL_MINIMUM_CENTS" default:"100"`
	PoolMinimumCents    int64         `envconfig:"MANA_FUNDING_POOL_MINIMUM_CENTS" default:"2500"`
	MaxTxAttempts       int           `envconfig:"MANA_FUNDING_MAX_TX_ATTEMPTS" default:"4"`
	RetryBaseBackoff    time.Duration `envconfig:"MANA_FUNDING_RETRY_BASE_BACKOFF" default:"50ms"`
}

// OrgConfig is the fallback shipping destination when a vendor has no
// configured address, plus operator contact points.
type OrgConfig struct {
	ShipName       string `envconfig:"MANA_ORG_SHIP_NAME" default:"Mana Foundation Warehouse"`
	ShipLine1      string `envconfig:"MANA_ORG_SHIP_LINE1" default:"245 Citrus Avenue"`
	ShipCity       string `envconfig:"MANA_ORG_SHIP_CITY" default:"Orlando"`
	ShipState      string `envconfig:"MANA_ORG_SHIP_STATE" default:"FL"`
	ShipPostalCode string `envconfig:"MANA_ORG_SHIP_POSTAL_CODE" default:"32801"`
	ShipCountry    string `envconfig:"MANA_ORG_SHIP_COUNTRY" default:"US"`
	OperatorEmail  string `envconfig:"MANA_ORG_OPERATOR_EMAIL" default:"hello@manafoundation.org"`
	FromEmail      string `envconfig:"MANA_ORG_FROM_EMAIL" default:"orders@manafoundation.org"`
}

type SweepConfig struct {
	Interval time.Duration `envconfig:"MANA_SWEEP_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"MANA_SWEEP_LOCK_TTL" default:"25h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"MANA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON string `envconfig:"MANA_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"MANA_PUBSUB_NOTIFICATION_TOPIC" default:"mana-notification-events"`
	NotificationSubscription string `envconfig:"MANA_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MANA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MANA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MANA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"MANA_OUTBOX_RETENTION_DAYS" default:"30"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"MANA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MANA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MANA_AUTO_MIGRATE" default:"false"`
}
