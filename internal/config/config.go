package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Captcha   CaptchaConfig
	Cleanup   CleanupConfig
}

type ServerConfig struct {
	Port          string
	Environment   string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	TrustProxy    bool
	CORSOrigins   string
	ThrottleRPS   float64
	ThrottleBurst int
}

type DatabaseConfig struct {
	Backend  string // "postgres" or "memory"
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type SessionConfig struct {
	TTL               time.Duration
	FrictionThreshold int
	BlockDuration     time.Duration

	// TokenPepper keys the session token hash. Changing it invalidates every session.
	TokenPepper string
}

type PolicyConfig struct {
	Points int
	Window time.Duration
}

type RateLimitConfig struct {
	Backend       string // "redis" or "memory"
	SessionCreate PolicyConfig
	SchoolCreate  PolicyConfig
	ScoreIP       PolicyConfig
	ScoreSession  PolicyConfig
}

type CaptchaConfig struct {
	Provider  string
	VerifyURL string
	Secret    string
	SiteKey   string
	Timeout   time.Duration

	// AllowUnconfigured lets every challenge pass when Secret is empty.
	AllowUnconfigured bool
}

type CleanupConfig struct {
	Interval time.Duration
}

func Load() (*Config, error) {
	// .env is optional outside development
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnv("SERVER_PORT", "8080"),
			Environment:   getEnv("ENVIRONMENT", "development"),
			ReadTimeout:   getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			TrustProxy:    getBoolEnv("SERVER_TRUST_PROXY", false),
			CORSOrigins:   getEnv("SERVER_CORS_ORIGINS", "*"),
			ThrottleRPS:   getFloatEnv("SERVER_THROTTLE_RPS", 200),
			ThrottleBurst: getIntEnv("SERVER_THROTTLE_BURST", 400),
		},
		Database: DatabaseConfig{
			Backend:  strings.ToLower(getEnv("STORAGE_BACKEND", "postgres")),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "clicker"),
			Password: getEnv("DB_PASSWORD", "clicker"),
			DBName:   getEnv("DB_NAME", "clickerdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Session: SessionConfig{
			TTL:               getDurationEnv("SESSION_TTL", 6*time.Hour),
			FrictionThreshold: getIntEnv("SESSION_FRICTION_THRESHOLD", 3),
			BlockDuration:     getDurationEnv("SESSION_BLOCK_DURATION", 15*time.Minute),
			TokenPepper:       getEnv("SESSION_TOKEN_PEPPER", ""),
		},
		RateLimit: RateLimitConfig{
			Backend: strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "redis")),
			SessionCreate: PolicyConfig{
				Points: getIntEnv("RATE_LIMIT_SESSION_CREATE_POINTS", 5),
				Window: getDurationEnv("RATE_LIMIT_SESSION_CREATE_WINDOW", time.Minute),
			},
			SchoolCreate: PolicyConfig{
				Points: getIntEnv("RATE_LIMIT_SCHOOL_CREATE_POINTS", 3),
				Window: getDurationEnv("RATE_LIMIT_SCHOOL_CREATE_WINDOW", time.Hour),
			},
			ScoreIP: PolicyConfig{
				Points: getIntEnv("RATE_LIMIT_SCORE_IP_POINTS", 5),
				Window: getDurationEnv("RATE_LIMIT_SCORE_IP_WINDOW", time.Minute),
			},
			ScoreSession: PolicyConfig{
				Points: getIntEnv("RATE_LIMIT_SCORE_SESSION_POINTS", 20),
				Window: getDurationEnv("RATE_LIMIT_SCORE_SESSION_WINDOW", time.Minute),
			},
		},
		Captcha: CaptchaConfig{
			Provider:          getEnv("CAPTCHA_PROVIDER", "turnstile"),
			VerifyURL:         getEnv("CAPTCHA_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
			Secret:            getEnv("CAPTCHA_SECRET", ""),
			SiteKey:           getEnv("CAPTCHA_SITE_KEY", ""),
			Timeout:           getDurationEnv("CAPTCHA_TIMEOUT", 5*time.Second),
			AllowUnconfigured: getBoolEnv("CAPTCHA_ALLOW_UNCONFIGURED", true),
		},
		Cleanup: CleanupConfig{
			Interval: getDurationEnv("CLEANUP_INTERVAL", 10*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Backend != "postgres" && c.Database.Backend != "memory" {
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Database.Backend)
	}
	if c.RateLimit.Backend != "redis" && c.RateLimit.Backend != "memory" {
		return fmt.Errorf("unsupported RATE_LIMIT_BACKEND %q", c.RateLimit.Backend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Session.FrictionThreshold < 1 {
		return fmt.Errorf("SESSION_FRICTION_THRESHOLD must be at least 1")
	}
	if c.Environment() == "production" && c.Session.TokenPepper == "" {
		return fmt.Errorf("SESSION_TOKEN_PEPPER is required in production")
	}
	return nil
}

func (c *Config) Environment() string {
	return c.Server.Environment
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
