package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SUNUMARKET_DB_DSN"
	EnvDBHost = "SUNUMARKET_DB_HOST"
	EnvDBUser = "SUNUMARKET_DB_USER"
	EnvDBName = "SUNUMARKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Payments     PaymentsConfig
	GatewayA     GatewayAConfig
	GatewayB     GatewayBConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the startup invariants that envconfig tags cannot express:
// an enabled gateway must carry credentials, and the commission rate must be a
// sane fraction.
func (c *Config) Validate() error {
	if c.GatewayA.Enabled && strings.TrimSpace(c.GatewayA.WebhookSecret) == "" {
		return fmt.Errorf("gateway A is enabled but SUNUMARKET_GATEWAY_A_WEBHOOK_SECRET is empty")
	}
	if c.GatewayB.Enabled {
		if strings.TrimSpace(c.GatewayB.APIKey) == "" {
			return fmt.Errorf("gateway B is enabled but SUNUMARKET_GATEWAY_B_API_KEY is empty")
		}
		if strings.TrimSpace(c.GatewayB.BaseURL) == "" {
			return fmt.Errorf("gateway B is enabled but SUNUMARKET_GATEWAY_B_BASE_URL is empty")
		}
	}
	if c.Payments.CommissionRate < 0 || c.Payments.CommissionRate >= 1 {
		return fmt.Errorf("commission rate %v out of range [0,1)", c.Payments.CommissionRate)
	}
	if c.Payments.PollLookback <= 0 {
		return fmt.Errorf("poll lookback window must be positive")
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"SUNUMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"SUNUMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SUNUMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUNUMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SUNUMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SUNUMARKET_DB_DSN"`
	Driver string `envconfig:"SUNUMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SUNUMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"SUNUMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SUNUMARKET_DB_USER"`
	LegacyPassword string `envconfig:"SUNUMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUNUMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUNUMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUNUMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUNUMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUNUMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUNUMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SUNUMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SUNUMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"SUNUMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUNUMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUNUMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUNUMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUNUMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUNUMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUNUMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SUNUMARKET_AUTO_MIGRATE" default:"false"`
}

// PaymentsConfig drives the reconciler and the poll sweeper.
type PaymentsConfig struct {
	CommissionRate  float64       `envconfig:"SUNUMARKET_PAYMENTS_COMMISSION_RATE" default:"0.05"`
	PollLookback    time.Duration `envconfig:"SUNUMARKET_PAYMENTS_POLL_LOOKBACK" default:"24h"`
	SweepInterval   time.Duration `envconfig:"SUNUMARKET_PAYMENTS_SWEEP_INTERVAL" default:"5m"`
	PollItemTimeout time.Duration `envconfig:"SUNUMARKET_PAYMENTS_POLL_ITEM_TIMEOUT" default:"10s"`
}

// CommissionRateDecimal returns the configured rate as an exact decimal.
func (p PaymentsConfig) CommissionRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(p.CommissionRate)
}

type GatewayAConfig struct {
	Enabled       bool   `envconfig:"SUNUMARKET_GATEWAY_A_ENABLED" default:"true"`
	WebhookSecret string `envconfig:"SUNUMARKET_GATEWAY_A_WEBHOOK_SECRET"`
}

type GatewayBConfig struct {
	Enabled bool          `envconfig:"SUNUMARKET_GATEWAY_B_ENABLED" default:"true"`
	APIKey  string        `envconfig:"SUNUMARKET_GATEWAY_B_API_KEY"`
	BaseURL string        `envconfig:"SUNUMARKET_GATEWAY_B_BASE_URL"`
	Timeout time.Duration `envconfig:"SUNUMARKET_GATEWAY_B_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SUNUMARKET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SUNUMARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SUNUMARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"SUNUMARKET_PUBSUB_NOTIFICATION_TOPIC" default:"sm-notification-events"`
	PublishTimeout    time.Duration `envconfig:"SUNUMARKET_PUBSUB_PUBLISH_TIMEOUT" default:"5s"`
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
