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
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Inventory    InventoryConfig
	Cron         CronConfig
	Mail         MailConfig
	S3           S3Config
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Inventory.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string   `envconfig:"MULTILAB_APP_ENV" required:"true"`
	Port          string   `envconfig:"MULTILAB_APP_PORT" required:"true"`
	LogLevel      string   `envconfig:"MULTILAB_LOG_LEVEL" default:"info"`
	LogWarnStack  bool     `envconfig:"MULTILAB_LOG_WARN_STACK" default:"false"`
	PublicBaseURL string   `envconfig:"MULTILAB_PUBLIC_BASE_URL" default:"http://localhost:3000"`
	CORSOrigins   []string `envconfig:"MULTILAB_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"MULTILAB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MULTILAB_DB_DSN"`
	Driver string `envconfig:"MULTILAB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MULTILAB_DB_HOST"`
	LegacyPort     int    `envconfig:"MULTILAB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MULTILAB_DB_USER"`
	LegacyPassword string `envconfig:"MULTILAB_DB_PASSWORD"`
	LegacyName     string `envconfig:"MULTILAB_DB_NAME"`
	LegacySSLMode  string `envconfig:"MULTILAB_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"MULTILAB_SQLITE_PATH" default:"file:multilab.db?cache=shared"`

	MaxOpenConns    int           `envconfig:"MULTILAB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MULTILAB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MULTILAB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MULTILAB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MULTILAB_REDIS_URL"`
	Address      string        `envconfig:"MULTILAB_REDIS_ADDR"`
	Password     string        `envconfig:"MULTILAB_REDIS_PASSWORD"`
	DB           int           `envconfig:"MULTILAB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MULTILAB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MULTILAB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MULTILAB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MULTILAB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MULTILAB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MULTILAB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MULTILAB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MULTILAB_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// RateLimitConfig throttles the unauthenticated approval-token endpoints.
type RateLimitConfig struct {
	ApprovalWindow     time.Duration `envconfig:"MULTILAB_RATE_LIMIT_APPROVAL_WINDOW" default:"1m"`
	ApprovalIPLimit    int           `envconfig:"MULTILAB_RATE_LIMIT_APPROVAL_IP_LIMIT" default:"30"`
	ApprovalTokenLimit int           `envconfig:"MULTILAB_RATE_LIMIT_APPROVAL_TOKEN_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MULTILAB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MULTILAB_AUTO_MIGRATE" default:"false"`
}

// InventoryConfig holds the hold expiry windows and extension ceiling.
type InventoryConfig struct {
	RaisedHoldTTL      time.Duration `envconfig:"MULTILAB_RAISED_HOLD_TTL" default:"24h"`
	ApprovedHoldTTL    time.Duration `envconfig:"MULTILAB_APPROVED_HOLD_TTL" default:"48h"`
	MaxExtensionMonths int           `envconfig:"MULTILAB_MAX_EXTENSION_MONTHS" default:"2"`
}

func (i InventoryConfig) validate() error {
	if i.RaisedHoldTTL <= 0 || i.ApprovedHoldTTL <= 0 {
		return fmt.Errorf("hold ttls must be positive")
	}
	if i.MaxExtensionMonths <= 0 {
		return fmt.Errorf("%s must be positive", EnvMaxExtensionMonths)
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MULTILAB_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"MULTILAB_CRON_LOCK_TTL" default:"25h"`
}

type MailConfig struct {
	Enabled  bool   `envconfig:"MULTILAB_MAIL_ENABLED" default:"false"`
	Host     string `envconfig:"MULTILAB_SMTP_HOST" default:"smtp.gmail.com"`
	Port     int    `envconfig:"MULTILAB_SMTP_PORT" default:"587"`
	Username string `envconfig:"MULTILAB_SMTP_USERNAME"`
	Password string `envconfig:"MULTILAB_SMTP_PASSWORD"`
	From     string `envconfig:"MULTILAB_MAIL_FROM" default:"no-reply@multilab.local"`
}

type S3Config struct {
	Bucket          string `envconfig:"MULTILAB_S3_BUCKET"`
	Region          string `envconfig:"MULTILAB_S3_REGION" default:"ap-south-1"`
	Endpoint        string `envconfig:"MULTILAB_S3_ENDPOINT"`
	PathStyle       bool   `envconfig:"MULTILAB_S3_PATH_STYLE" default:"false"`
	AccessKeyID     string `envconfig:"MULTILAB_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"MULTILAB_S3_SECRET_ACCESS_KEY"`
}

// Enabled reports whether a bucket was configured for bill storage.
func (s S3Config) Enabled() bool {
	return strings.TrimSpace(s.Bucket) != ""
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
		return nil
	}
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
