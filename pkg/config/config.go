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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FARMX_APP_ENV" required:"true"`
	Port         string `envconfig:"FARMX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FARMX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FARMX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FARMX_DB_DSN"`
	Driver string `envconfig:"FARMX_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FARMX_DB_HOST"`
	Port     int    `envconfig:"FARMX_DB_PORT" default:"5432"`
	User     string `envconfig:"FARMX_DB_USER"`
	Password string `envconfig:"FARMX_DB_PASSWORD"`
	Name     string `envconfig:"FARMX_DB_NAME"`
	SSLMode  string `envconfig:"FARMX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver targets the embedded engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMX_REDIS_URL"`
	Address      string        `envconfig:"FARMX_REDIS_ADDR"`
	Password     string        `envconfig:"FARMX_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"FARMX_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FARMX_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FARMX_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type RateLimitConfig struct {
	PurchaseWindow time.Duration `envconfig:"FARMX_RATE_LIMIT_PURCHASE_WINDOW" default:"1m"`
	PurchaseLimit  int           `envconfig:"FARMX_RATE_LIMIT_PURCHASE_LIMIT" default:"20"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FARMX_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FARMX_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FARMX_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"FARMX_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FARMX_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FARMX_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FARMX_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	MarketplaceTopic string `envconfig:"FARMX_PUBSUB_MARKETPLACE_TOPIC" default:"farmx-marketplace-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FARMX_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FARMX_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FARMX_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// PollInterval converts the configured milliseconds into a duration.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"FARMX_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"FARMX_METRICS_PATH" default:"/metrics"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	missing := []string{}
	discreteValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if discreteValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
