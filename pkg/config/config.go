package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the API server configuration.
type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	OTP           OTPConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Cart          CartConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = cfg.DB.SQLitePath
		}
		cfg.DB.Driver = DriverSQLite
		return &cfg, nil
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"LIMINARA_APP_ENV" required:"true"`
	Port         string   `envconfig:"LIMINARA_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"LIMINARA_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"LIMINARA_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"LIMINARA_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"LIMINARA_DB_DSN"`
	Driver     string `envconfig:"LIMINARA_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"LIMINARA_DB_SQLITE_PATH" default:"liminara.db"`

	LegacyHost     string `envconfig:"LIMINARA_DB_HOST"`
	LegacyPort     int    `envconfig:"LIMINARA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIMINARA_DB_USER"`
	LegacyPassword string `envconfig:"LIMINARA_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIMINARA_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIMINARA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIMINARA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIMINARA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIMINARA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIMINARA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LIMINARA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LIMINARA_REDIS_ADDR"`
	Password     string        `envconfig:"LIMINARA_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIMINARA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIMINARA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIMINARA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIMINARA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIMINARA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIMINARA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"LIMINARA_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"LIMINARA_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"LIMINARA_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"LIMINARA_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LIMINARA_ARGON_MEMORY_KB" default:"19456"`
	ArgonTime        int `envconfig:"LIMINARA_ARGON_TIME" default:"2"`
	ArgonParallelism int `envconfig:"LIMINARA_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen     int `envconfig:"LIMINARA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LIMINARA_ARGON_KEY_LEN" default:"32"`
}

// OTPConfig controls one-time passcode issuance.
type OTPConfig struct {
	Length      int           `envconfig:"LIMINARA_OTP_LENGTH" default:"6"`
	TTL         time.Duration `envconfig:"LIMINARA_OTP_TTL" default:"5m"`
	MaxAttempts int           `envconfig:"LIMINARA_OTP_MAX_ATTEMPTS" default:"5"`
	Resend      time.Duration `envconfig:"LIMINARA_OTP_RESEND_INTERVAL" default:"30s"`
}

type AuthRateLimitConfig struct {
	RequestOTPWindow     time.Duration `envconfig:"LIMINARA_AUTH_RATE_LIMIT_REQUEST_OTP_WINDOW" default:"10m"`
	RequestOTPIdentLimit int           `envconfig:"LIMINARA_AUTH_RATE_LIMIT_REQUEST_OTP_IDENTIFIER_LIMIT" default:"5"`
	RequestOTPIPLimit    int           `envconfig:"LIMINARA_AUTH_RATE_LIMIT_REQUEST_OTP_IP_LIMIT" default:"20"`
	VerifyOTPWindow      time.Duration `envconfig:"LIMINARA_AUTH_RATE_LIMIT_VERIFY_OTP_WINDOW" default:"1m"`
	VerifyOTPIdentLimit  int           `envconfig:"LIMINARA_AUTH_RATE_LIMIT_VERIFY_OTP_IDENTIFIER_LIMIT" default:"5"`
	VerifyOTPIPLimit     int           `envconfig:"LIMINARA_AUTH_RATE_LIMIT_VERIFY_OTP_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LIMINARA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LIMINARA_AUTO_MIGRATE" default:"false"`
}

// CartConfig tunes the server-side cart read cache.
type CartConfig struct {
	CacheTTL time.Duration `envconfig:"LIMINARA_CART_CACHE_TTL" default:"15m"`
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
