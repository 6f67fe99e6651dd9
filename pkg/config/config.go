package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the envconfig namespace shared by every binary.
const EnvPrefix = "MERCADITO"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv     = "MERCADITO_APP_ENV"
	EnvPort       = "MERCADITO_APP_PORT"
	EnvDBDSN      = "MERCADITO_DB_DSN"
	EnvDBHost     = "MERCADITO_DB_HOST"
	EnvDBUser     = "MERCADITO_DB_USER"
	EnvDBName     = "MERCADITO_DB_NAME"
	EnvRedisURL   = "MERCADITO_REDIS_URL"
	EnvJWTSecret  = "MERCADITO_JWT_SECRET"
	EnvJWTIssuer  = "MERCADITO_JWT_ISSUER"
	EnvJWTExpMins = "MERCADITO_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
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
	Env          string `envconfig:"MERCADITO_APP_ENV" required:"true"`
	Port         string `envconfig:"MERCADITO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MERCADITO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MERCADITO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MERCADITO_DB_DSN"`
	Driver string `envconfig:"MERCADITO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MERCADITO_DB_HOST"`
	LegacyPort     int    `envconfig:"MERCADITO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MERCADITO_DB_USER"`
	LegacyPassword string `envconfig:"MERCADITO_DB_PASSWORD"`
	LegacyName     string `envconfig:"MERCADITO_DB_NAME"`
	LegacySSLMode  string `envconfig:"MERCADITO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERCADITO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERCADITO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERCADITO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERCADITO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MERCADITO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MERCADITO_REDIS_ADDR"`
	Password     string        `envconfig:"MERCADITO_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERCADITO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERCADITO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MERCADITO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MERCADITO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERCADITO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MERCADITO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MERCADITO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MERCADITO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MERCADITO_JWT_EXPIRATION_MINUTES" required:"true"`
	SessionTTLMinutes int    `envconfig:"MERCADITO_SESSION_TTL_MINUTES" default:"43200"`
}

// SessionTTL returns the redis session lifetime configured in minutes.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MERCADITO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MERCADITO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MERCADITO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MERCADITO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MERCADITO_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MERCADITO_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MERCADITO_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MERCADITO_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MERCADITO_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MERCADITO_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MERCADITO_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MERCADITO_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MERCADITO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MERCADITO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MERCADITO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	VendorsTopic  string `envconfig:"MERCADITO_PUBSUB_VENDORS_TOPIC" default:"mercadito-vendor-events"`
	ProductsTopic string `envconfig:"MERCADITO_PUBSUB_PRODUCTS_TOPIC" default:"mercadito-product-events"`
	OrdersTopic   string `envconfig:"MERCADITO_PUBSUB_ORDERS_TOPIC" default:"mercadito-order-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"MERCADITO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"MERCADITO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"MERCADITO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	CoalesceWindow time.Duration `envconfig:"MERCADITO_OUTBOX_COALESCE_WINDOW" default:"2s"`
	PublishedTTL   time.Duration `envconfig:"MERCADITO_OUTBOX_PUBLISHED_TTL" default:"168h"`
	PublishTimeout time.Duration `envconfig:"MERCADITO_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

type CronConfig struct {
	TickInterval       time.Duration `envconfig:"MERCADITO_CRON_TICK_INTERVAL" default:"1m"`
	LocationStaleAfter time.Duration `envconfig:"MERCADITO_CRON_LOCATION_STALE_AFTER" default:"30m"`
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
