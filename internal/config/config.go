package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	//App
	Env          string // dev / staging / prod
	SeedRegistry bool
	//HTTP
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Database / persistence gateway
	DBAddr               string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnectTimeout     time.Duration
	DBQueryTimeout       time.Duration
	DBMaxRetries         int
	DBRetryBackoff       time.Duration
	DBSlowQueryThreshold time.Duration

	// Optional infrastructure (empty disables)
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RabbitURL      string
	RabbitExchange string

	//Auth / Security
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	BcryptCost     int

	// Signup flow
	Step1TokenTTL      time.Duration
	Step2TokenTTL      time.Duration
	TokenSweepInterval time.Duration
	PasswordMinLength  int
	PasswordMaxRepeat  int

	// Per-IP limits; 0 disables a route's limit
	RateLimitSignup int
	RateLimitLogin  int
	RateLimitWindow time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		RedisAddr:      strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RabbitURL:      strings.TrimSpace(os.Getenv("RABBIT_URL")),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "pension.events"),
		JWTIssuer:      getEnv("JWT_ISSUER", "pension-service"),
	}

	// required values
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}

	// The service cannot do anything useful without its database, so fail fast.
	cfg.DBAddr = strings.TrimSpace(os.Getenv("DB_ADDR"))
	if cfg.DBAddr == "" {
		return nil, fmt.Errorf("missing required env var: DB_ADDR")
	}
	if !strings.HasPrefix(cfg.DBAddr, "postgres://") && !strings.HasPrefix(cfg.DBAddr, "postgresql://") {
		return nil, fmt.Errorf("DB_ADDR must be a postgres:// URL")
	}

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"HTTP_READ_TIMEOUT", 10 * time.Second, &cfg.HTTPReadTimeout},
		{"HTTP_WRITE_TIMEOUT", 30 * time.Second, &cfg.HTTPWriteTimeout},
		{"HTTP_IDLE_TIMEOUT", time.Minute, &cfg.HTTPIdleTimeout},
		{"DB_CONNECT_TIMEOUT", 5 * time.Second, &cfg.DBConnectTimeout},
		{"DB_QUERY_TIMEOUT", 10 * time.Second, &cfg.DBQueryTimeout},
		{"DB_RETRY_BACKOFF", 200 * time.Millisecond, &cfg.DBRetryBackoff},
		{"DB_SLOW_QUERY_THRESHOLD", time.Second, &cfg.DBSlowQueryThreshold},
		{"ACCESS_TOKEN_TTL", time.Hour, &cfg.AccessTokenTTL},
		{"SIGNUP_STEP1_TTL", time.Hour, &cfg.Step1TokenTTL},
		{"SIGNUP_STEP2_TTL", 2 * time.Hour, &cfg.Step2TokenTTL},
		{"TOKEN_SWEEP_INTERVAL", time.Hour, &cfg.TokenSweepInterval},
		{"RATE_LIMIT_WINDOW", time.Minute, &cfg.RateLimitWindow},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key string
		def int
		min int
		dst *int
	}{
		{"DB_MAX_OPEN_CONNS", 10, 1, &cfg.DBMaxOpenConns},
		{"DB_MAX_IDLE_CONNS", 5, 0, &cfg.DBMaxIdleConns},
		{"DB_MAX_RETRIES", 3, 0, &cfg.DBMaxRetries},
		{"REDIS_DB", 0, 0, &cfg.RedisDB},
		{"BCRYPT_COST", 12, 4, &cfg.BcryptCost},
		{"PASSWORD_MIN_LENGTH", 8, 8, &cfg.PasswordMinLength},
		{"PASSWORD_MAX_REPEAT", 2, 1, &cfg.PasswordMaxRepeat},
		{"RATE_LIMIT_SIGNUP", 20, 0, &cfg.RateLimitSignup},
		{"RATE_LIMIT_LOGIN", 10, 0, &cfg.RateLimitLogin},
	}
	for _, i := range ints {
		if *i.dst, err = getInt(i.key, i.def, i.min); err != nil {
			return nil, err
		}
	}

	cfg.SeedRegistry, err = getBool("SEED_REGISTRY", cfg.Env == "dev")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid duration for %s: %q: must be positive", key, v)
	}
	return d, nil
}

func getInt(key string, def, min int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q: %w", key, v, err)
	}
	if n < min {
		return 0, fmt.Errorf("invalid int for %s: %d is below minimum %d", key, n, min)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}
