// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	Env            string `mapstructure:"APP_ENV"`

	// Backing store
	BatchMaxOps int `mapstructure:"BATCH_MAX_OPS"`

	// Fan-out
	FanOutChunkSize   int `mapstructure:"FANOUT_CHUNK_SIZE"`
	FanOutConcurrency int `mapstructure:"FANOUT_CONCURRENCY"`

	// Feed
	FeedPageSize     int    `mapstructure:"FEED_PAGE_SIZE"`
	FeedSectionCap   int    `mapstructure:"FEED_SECTION_CAP"`
	FeedCategories   string `mapstructure:"FEED_CATEGORIES"`
	FeedCacheSeconds int    `mapstructure:"FEED_CACHE_SECONDS"`

	// Moderation
	ModerationURL       string        `mapstructure:"MODERATION_URL"`
	ModerationAPIKey    string        `mapstructure:"MODERATION_API_KEY"`
	ModerationTimeout   time.Duration `mapstructure:"MODERATION_TIMEOUT"`
	ModerationExcerptLn int           `mapstructure:"MODERATION_EXCERPT_LEN"`

	// Object storage
	StorageDriver   string `mapstructure:"STORAGE_DRIVER"`
	UploadDir       string `mapstructure:"UPLOAD_DIR"`
	MediaBaseURL    string `mapstructure:"MEDIA_BASE_URL"`
	CloudinaryURL   string `mapstructure:"CLOUDINARY_URL"`
	CloudinaryDir   string `mapstructure:"CLOUDINARY_FOLDER"`
	MaxUploadSizeMB int    `mapstructure:"MAX_UPLOAD_SIZE_MB"`

	// Tracing
	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

const defaultJWTSecret = "your-secret-key-change-in-production"

var defaults = map[string]any{
	"PORT":            "8375",
	"DB_HOST":         "localhost",
	"DB_PORT":         "5432",
	"DB_USER":         "user",
	"DB_PASSWORD":     "password",
	"DB_NAME":         "localpulse",
	"DB_SSLMODE":      "disable",
	"REDIS_URL":       "localhost:6379",
	"JWT_SECRET":      defaultJWTSecret,
	"ALLOWED_ORIGINS": "http://localhost:5173,http://localhost:3000",
	"APP_ENV":         "development",

	"BATCH_MAX_OPS":      500,
	"FANOUT_CHUNK_SIZE":  400,
	"FANOUT_CONCURRENCY": 4,

	"FEED_PAGE_SIZE":     50,
	"FEED_SECTION_CAP":   8,
	"FEED_CATEGORIES":    "Politics,Sports,Entertainment,Business,Education,Health,Agriculture,Crime",
	"FEED_CACHE_SECONDS": 30,

	"MODERATION_URL":         "",
	"MODERATION_API_KEY":     "",
	"MODERATION_TIMEOUT":     "4s",
	"MODERATION_EXCERPT_LEN": 500,

	"STORAGE_DRIVER":     "local",
	"UPLOAD_DIR":         "/tmp/localpulse/uploads",
	"MEDIA_BASE_URL":     "/media",
	"CLOUDINARY_URL":     "",
	"CLOUDINARY_FOLDER":  "localpulse",
	"MAX_UPLOAD_SIZE_MB": 50,

	"TRACING_ENABLED":       false,
	"TRACING_EXPORTER":      "stdout",
	"OTLP_ENDPOINT":         "",
	"TRACING_SAMPLER_RATIO": 1.0,
}

// LoadConfig reads config.yml, merges config.<APP_ENV>.yml for deployed
// environments, and lets environment variables override both.
func LoadConfig() (*Config, error) {
	v := viper.New()
	for _, dir := range []string{".", "..", "../.."} {
		v.AddConfigPath(dir)
	}
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// The base file is optional.
	_ = v.ReadInConfig()

	env := v.GetString("APP_ENV")
	if env != "development" && env != "test" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("profile config config.%s.yml: %w", env, err)
		}
		slog.Info("loaded profile configuration", slog.String("file", "config."+env+".yml"))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	if c.FanOutChunkSize > c.BatchMaxOps && c.BatchMaxOps > 0 {
		c.FanOutChunkSize = c.BatchMaxOps
	}
}

// Categories returns the configured feed categories in display order.
func (c *Config) Categories() []string {
	var out []string
	for _, raw := range strings.Split(c.FeedCategories, ",") {
		if name := strings.TrimSpace(raw); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// IsProduction reports whether the config targets production.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate reports every missing or unsafe setting at once. Production
// additionally requires a real secret, a DB password and TLS to the DB.
func (c *Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Port == "", "PORT is required")
	check(c.JWTSecret == "", "JWT_SECRET is required")
	check(c.BatchMaxOps <= 0, "BATCH_MAX_OPS must be positive")
	check(c.FanOutChunkSize <= 0, "FANOUT_CHUNK_SIZE must be positive")
	check(c.FanOutChunkSize > c.BatchMaxOps, "FANOUT_CHUNK_SIZE cannot exceed BATCH_MAX_OPS")
	check(c.FeedSectionCap <= 0, "FEED_SECTION_CAP must be positive")

	switch c.StorageDriver {
	case "", "local":
	case "cloudinary":
		check(c.CloudinaryURL == "", "CLOUDINARY_URL is required when STORAGE_DRIVER=cloudinary")
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	if c.IsProduction() {
		check(c.JWTSecret == defaultJWTSecret, "JWT_SECRET must be changed from the default in production")
		check(len(c.JWTSecret) < 32, "JWT_SECRET must be at least 32 characters in production")
		check(c.DBPassword == "" || c.DBPassword == "password", "a strong DB_PASSWORD is required in production")
		check(c.DBSSLMode == "" || c.DBSSLMode == "disable", "DB_SSLMODE must enable TLS in production")
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is '*' in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters")
	}

	return errors.Join(errs...)
}
