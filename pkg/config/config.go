package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	AppName   string
	BaseURL   string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Sessions AdminSessionConfig
	Payments PaymentsConfig
	Mail     MailConfig
	CORS     CORSConfig
	Log      LogConfig
	Catalog  CatalogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig covers both the regular access token and the shorter-lived
// admin token variant.
type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	AdminExpiration   time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

// AdminSessionConfig tunes the in-memory admin session registry.
type AdminSessionConfig struct {
	Timeout       time.Duration
	SweepInterval time.Duration
}

// PaymentsConfig configures the external payment gateway.
type PaymentsConfig struct {
	ServerKey     string
	Production    bool
	FinishURL     string
	WebhookSecret string
}

// MailConfig configures outbound email delivery.
type MailConfig struct {
	Enabled   bool
	APIKey    string
	FromEmail string
	Workers   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CatalogConfig governs caching of the public course catalog.
type CatalogConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.AppName = v.GetString("APP_NAME")
	cfg.BaseURL = v.GetString("BASE_URL")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		AdminExpiration:   parseDuration(v.GetString("JWT_ADMIN_EXPIRATION"), 4*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.Sessions = AdminSessionConfig{
		Timeout:       parseDuration(v.GetString("ADMIN_SESSION_TIMEOUT"), 4*time.Hour),
		SweepInterval: parseDuration(v.GetString("ADMIN_SESSION_SWEEP_INTERVAL"), time.Minute),
	}

	cfg.Payments = PaymentsConfig{
		ServerKey:     v.GetString("PAYMENT_SERVER_KEY"),
		Production:    v.GetBool("PAYMENT_PRODUCTION"),
		FinishURL:     v.GetString("PAYMENT_FINISH_URL"),
		WebhookSecret: v.GetString("PAYMENT_WEBHOOK_SECRET"),
	}

	cfg.Mail = MailConfig{
		Enabled:   v.GetBool("MAIL_ENABLED"),
		APIKey:    v.GetString("SENDGRID_API_KEY"),
		FromEmail: v.GetString("MAIL_FROM"),
		Workers:   v.GetInt("MAIL_WORKERS"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Catalog = CatalogConfig{
		CacheTTL: parseDuration(v.GetString("CATALOG_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("APP_NAME", "CourseBay")
	v.SetDefault("BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "coursebay")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ADMIN_EXPIRATION", "4h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "coursebay-api")

	v.SetDefault("ADMIN_SESSION_TIMEOUT", "4h")
	v.SetDefault("ADMIN_SESSION_SWEEP_INTERVAL", "60s")

	v.SetDefault("PAYMENT_SERVER_KEY", "")
	v.SetDefault("PAYMENT_PRODUCTION", false)
	v.SetDefault("PAYMENT_FINISH_URL", "http://localhost:3000/checkout/finish")
	v.SetDefault("PAYMENT_WEBHOOK_SECRET", "")

	v.SetDefault("MAIL_ENABLED", false)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM", "no-reply@coursebay.dev")
	v.SetDefault("MAIL_WORKERS", 2)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CATALOG_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
