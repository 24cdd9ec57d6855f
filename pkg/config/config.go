package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Idempotency  IdempotencyConfig
	Sla          SlaConfig
	Shopify      ShopifyConfig
	Ticketing    TicketingConfig
	Campaigns    CampaignsConfig
	AI           AIConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"SERVICEDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"SERVICEDESK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SERVICEDESK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SERVICEDESK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SERVICEDESK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SERVICEDESK_DB_DSN"`
	Driver string `envconfig:"SERVICEDESK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SERVICEDESK_DB_HOST"`
	LegacyPort     int    `envconfig:"SERVICEDESK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SERVICEDESK_DB_USER"`
	LegacyPassword string `envconfig:"SERVICEDESK_DB_PASSWORD"`
	LegacyName     string `envconfig:"SERVICEDESK_DB_NAME"`
	LegacySSLMode  string `envconfig:"SERVICEDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SERVICEDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SERVICEDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SERVICEDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SERVICEDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SERVICEDESK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SERVICEDESK_REDIS_ADDR"`
	Password     string        `envconfig:"SERVICEDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SERVICEDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SERVICEDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SERVICEDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SERVICEDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SERVICEDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SERVICEDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type RateLimitConfig struct {
	Window         time.Duration `envconfig:"SERVICEDESK_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit        int           `envconfig:"SERVICEDESK_RATE_LIMIT_IP_LIMIT" default:"120"`
	WebhookIPLimit int           `envconfig:"SERVICEDESK_RATE_LIMIT_WEBHOOK_IP_LIMIT" default:"600"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SERVICEDESK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SERVICEDESK_AUTO_MIGRATE" default:"false"`
}

type IdempotencyConfig struct {
	// InProgressTTL bounds how long an in_progress record blocks retries
	// before a new attempt may take it over.
	InProgressTTL time.Duration `envconfig:"SERVICEDESK_IDEMPOTENCY_IN_PROGRESS_TTL" default:"15m"`
	Retention     time.Duration `envconfig:"SERVICEDESK_IDEMPOTENCY_RETENTION" default:"720h"`
}

type SlaConfig struct {
	Due time.Duration `envconfig:"SERVICEDESK_SLA_DUE" default:"72h"`
}

type ShopifyConfig struct {
	WebhookSecret string `envconfig:"SERVICEDESK_SHOPIFY_WEBHOOK_SECRET"`
}

type TicketingConfig struct {
	BaseURL string        `envconfig:"SERVICEDESK_TICKETING_BASE_URL"`
	APIKey  string        `envconfig:"SERVICEDESK_TICKETING_API_KEY"`
	Timeout time.Duration `envconfig:"SERVICEDESK_TICKETING_TIMEOUT" default:"10s"`
}

type CampaignsConfig struct {
	BaseURL string        `envconfig:"SERVICEDESK_CAMPAIGNS_BASE_URL"`
	APIKey  string        `envconfig:"SERVICEDESK_CAMPAIGNS_API_KEY"`
	Timeout time.Duration `envconfig:"SERVICEDESK_CAMPAIGNS_TIMEOUT" default:"10s"`
}

type AIConfig struct {
	BaseURL string        `envconfig:"SERVICEDESK_AI_BASE_URL" default:"https://api.openai.com/v1"`
	APIKey  string        `envconfig:"SERVICEDESK_AI_API_KEY"`
	Model   string        `envconfig:"SERVICEDESK_AI_MODEL" default:"gpt-4o-mini"`
	Timeout time.Duration `envconfig:"SERVICEDESK_AI_TIMEOUT" default:"30s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SERVICEDESK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SERVICEDESK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SERVICEDESK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	CaseEventsTopic string `envconfig:"SERVICEDESK_PUBSUB_CASE_EVENTS_TOPIC" default:"sd-case-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SERVICEDESK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SERVICEDESK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SERVICEDESK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"SERVICEDESK_OUTBOX_RETENTION_DAYS" default:"30"`
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
