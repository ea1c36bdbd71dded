package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	APIRateLimit  APIRateLimitConfig
	Realtime      RealtimeConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env            string        `envconfig:"SHAREDLISTS_APP_ENV" required:"true"`
	Port           string        `envconfig:"SHAREDLISTS_APP_PORT" required:"true"`
	LogLevel       string        `envconfig:"SHAREDLISTS_LOG_LEVEL" default:"info"`
	LogWarnStack   bool          `envconfig:"SHAREDLISTS_LOG_WARN_STACK" default:"false"`
	StorageTimeout time.Duration `envconfig:"SHAREDLISTS_STORAGE_TIMEOUT" default:"5s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHAREDLISTS_DB_DSN"`
	Driver string `envconfig:"SHAREDLISTS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHAREDLISTS_DB_HOST"`
	LegacyPort     int    `envconfig:"SHAREDLISTS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHAREDLISTS_DB_USER"`
	LegacyPassword string `envconfig:"SHAREDLISTS_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHAREDLISTS_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHAREDLISTS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHAREDLISTS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHAREDLISTS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHAREDLISTS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHAREDLISTS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SHAREDLISTS_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHAREDLISTS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHAREDLISTS_REDIS_ADDR"`
	Password     string        `envconfig:"SHAREDLISTS_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHAREDLISTS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHAREDLISTS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHAREDLISTS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHAREDLISTS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHAREDLISTS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHAREDLISTS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SHAREDLISTS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SHAREDLISTS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SHAREDLISTS_JWT_EXPIRATION_MINUTES" default:"15"`
	RefreshTokenTTLMinutes int    `envconfig:"SHAREDLISTS_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHAREDLISTS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHAREDLISTS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHAREDLISTS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHAREDLISTS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHAREDLISTS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SHAREDLISTS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"15m"`
	LoginEmailLimit    int           `envconfig:"SHAREDLISTS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SHAREDLISTS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SHAREDLISTS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"15m"`
	RegisterEmailLimit int           `envconfig:"SHAREDLISTS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"5"`
	RegisterIPLimit    int           `envconfig:"SHAREDLISTS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// APIRateLimitConfig throttles authenticated API traffic per user.
type APIRateLimitConfig struct {
	Window time.Duration `envconfig:"SHAREDLISTS_API_RATE_LIMIT_WINDOW" default:"15m"`
	Limit  int           `envconfig:"SHAREDLISTS_API_RATE_LIMIT" default:"100"`
}

// RealtimeConfig tunes the live channel transport.
type RealtimeConfig struct {
	SendBuffer      int           `envconfig:"SHAREDLISTS_REALTIME_SEND_BUFFER" default:"64"`
	WriteWait       time.Duration `envconfig:"SHAREDLISTS_REALTIME_WRITE_WAIT" default:"10s"`
	PongWait        time.Duration `envconfig:"SHAREDLISTS_REALTIME_PONG_WAIT" default:"60s"`
	PingPeriod      time.Duration `envconfig:"SHAREDLISTS_REALTIME_PING_PERIOD" default:"50s"`
	MaxMessageBytes int64         `envconfig:"SHAREDLISTS_REALTIME_MAX_MESSAGE_BYTES" default:"4096"`
	ResyncInterval  time.Duration `envconfig:"SHAREDLISTS_REALTIME_RESYNC_INTERVAL" default:"60s"`
}

type CORSConfig struct {
	AllowedOrigins []string      `envconfig:"SHAREDLISTS_ALLOWED_ORIGINS" default:"http://localhost:19000"`
	MaxAge         time.Duration `envconfig:"SHAREDLISTS_CORS_MAX_AGE" default:"5m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHAREDLISTS_AUTO_MIGRATE" default:"false"`
}

// CronConfig drives the maintenance worker.
type CronConfig struct {
	Interval                time.Duration `envconfig:"SHAREDLISTS_CRON_INTERVAL" default:"24h"`
	LockTTL                 time.Duration `envconfig:"SHAREDLISTS_CRON_LOCK_TTL" default:"1h"`
	JobTimeout              time.Duration `envconfig:"SHAREDLISTS_CRON_JOB_TIMEOUT" default:"10m"`
	CommonItemRetentionDays int           `envconfig:"SHAREDLISTS_CRON_COMMON_ITEM_RETENTION_DAYS" default:"365"`
	// MetricsAddr serves /metrics for the worker; empty disables it.
	MetricsAddr string `envconfig:"SHAREDLISTS_CRON_METRICS_ADDR" default:":9102"`
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
