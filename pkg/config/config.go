package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/assetdeck/assetdeck-backend/pkg/enums"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	PaymentProviderStripe = "stripe"
	PaymentProviderMock   = "mock"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Licensing    LicensingConfig
	Downloads    DownloadsConfig
	Cart         CartConfig
	Payment      PaymentConfig
	Stripe       StripeConfig
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
	if err := cfg.Payment.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ASSETDECK_APP_ENV" required:"true"`
	Port         string `envconfig:"ASSETDECK_APP_PORT" default:"8080"`
	BaseURL      string `envconfig:"ASSETDECK_APP_BASE_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"ASSETDECK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ASSETDECK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ASSETDECK_DB_DSN"`
	Driver string `envconfig:"ASSETDECK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ASSETDECK_DB_HOST"`
	Port     int    `envconfig:"ASSETDECK_DB_PORT" default:"5432"`
	User     string `envconfig:"ASSETDECK_DB_USER"`
	Password string `envconfig:"ASSETDECK_DB_PASSWORD"`
	Name     string `envconfig:"ASSETDECK_DB_NAME"`
	SSLMode  string `envconfig:"ASSETDECK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ASSETDECK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ASSETDECK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ASSETDECK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ASSETDECK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ASSETDECK_REDIS_URL"`
	Address      string        `envconfig:"ASSETDECK_REDIS_ADDR"`
	Password     string        `envconfig:"ASSETDECK_REDIS_PASSWORD"`
	DB           int           `envconfig:"ASSETDECK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ASSETDECK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ASSETDECK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ASSETDECK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ASSETDECK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ASSETDECK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ASSETDECK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ASSETDECK_JWT_ISSUER" default:"assetdeck"`
	ExpirationMinutes int    `envconfig:"ASSETDECK_JWT_EXPIRATION_MINUTES" default:"60"`
}

// LicensingConfig is the single source of truth for per-tier download quotas
// and price multipliers. Nothing else hard-codes these values.
type LicensingConfig struct {
	BasicDownloadLimit    int    `envconfig:"ASSETDECK_LICENSE_BASIC_DOWNLOAD_LIMIT" default:"10"`
	ExtendedDownloadLimit int    `envconfig:"ASSETDECK_LICENSE_EXTENDED_DOWNLOAD_LIMIT" default:"100"`
	BasicMultiplier       string `envconfig:"ASSETDECK_LICENSE_BASIC_MULTIPLIER" default:"1"`
	ExtendedMultiplier    string `envconfig:"ASSETDECK_LICENSE_EXTENDED_MULTIPLIER" default:"3"`
}

// DownloadLimitFor resolves the quota for a license tier.
func (l LicensingConfig) DownloadLimitFor(tier enums.LicenseType) int {
	if tier == enums.LicenseTypeExtended {
		return l.ExtendedDownloadLimit
	}
	return l.BasicDownloadLimit
}

type DownloadsConfig struct {
	TokenSecret string        `envconfig:"ASSETDECK_DOWNLOAD_TOKEN_SECRET" required:"true"`
	TokenTTL    time.Duration `envconfig:"ASSETDECK_DOWNLOAD_TOKEN_TTL" default:"5m"`
}

type CartConfig struct {
	ExpiryDays int `envconfig:"ASSETDECK_CART_EXPIRY_DAYS" default:"30"`
}

// Expiry returns the sliding cart expiry window.
func (c CartConfig) Expiry() time.Duration {
	days := c.ExpiryDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

type PaymentConfig struct {
	Provider       string        `envconfig:"ASSETDECK_PAYMENT_PROVIDER" default:"mock"`
	RequestTimeout time.Duration `envconfig:"ASSETDECK_PAYMENT_REQUEST_TIMEOUT" default:"10s"`
	Currency       string        `envconfig:"ASSETDECK_PAYMENT_CURRENCY" default:"USD"`
}

func (p PaymentConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(p.Provider)) {
	case PaymentProviderStripe, PaymentProviderMock:
		return nil
	}
	return fmt.Errorf("payment provider must be %q or %q", PaymentProviderStripe, PaymentProviderMock)
}

// NormalizedProvider returns the lowercase provider selector.
func (p PaymentConfig) NormalizedProvider() string {
	return strings.ToLower(strings.TrimSpace(p.Provider))
}

type StripeConfig struct {
	APIKey              string `envconfig:"ASSETDECK_STRIPE_API_KEY"`
	WebhookSecret       string `envconfig:"ASSETDECK_STRIPE_WEBHOOK_SECRET"`
	AccessPassPriceID   string `envconfig:"ASSETDECK_STRIPE_ACCESS_PASS_PRICE_ID"`
	AccessPassYearlyID  string `envconfig:"ASSETDECK_STRIPE_ACCESS_PASS_YEARLY_PRICE_ID"`
	LifetimePriceCents  int64  `envconfig:"ASSETDECK_ACCESS_PASS_LIFETIME_PRICE_CENTS" default:"29900"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ASSETDECK_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for envName, value := range map[string]string{
		"ASSETDECK_DB_HOST": db.Host,
		"ASSETDECK_DB_USER": db.User,
		"ASSETDECK_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, envName)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either ASSETDECK_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
