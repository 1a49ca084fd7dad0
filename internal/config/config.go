package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendDatabase = "database"
	BackendRedis    = "redis"
)

// Upload providers.
const (
	ProviderHosted = "hosted"
	ProviderMinIO  = "minio"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Upload   UploadConfig   `mapstructure:"upload"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Runtime  RuntimeConfig  `mapstructure:"runtime"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `mapstructure:"format"`
}

// StorageConfig selects where template snapshots live.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。Enabled 控制通知推送是否走 Redis Pub/Sub。
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Prefix  string `mapstructure:"prefix"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// UploadConfig describes the upload gateway.
type UploadConfig struct {
	Provider  string `mapstructure:"provider"`
	Endpoint  string `mapstructure:"endpoint"`
	Preset    string `mapstructure:"preset"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
	ClamdAddr string `mapstructure:"clamd_addr"`
	// RateLimit caps uploads per client IP per minute when redis is enabled. 0 disables it.
	RateLimit int `mapstructure:"rate_limit"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// LimitsConfig holds the capacity policies.
type LimitsConfig struct {
	MaxTemplates int `mapstructure:"max_templates"`
	MaxSections  int `mapstructure:"max_sections"`
}

// RuntimeConfig controls fill-in sessions. SessionTTL 0 keeps sessions until they are closed.
type RuntimeConfig struct {
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration from environment variables, after loading an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Upload.Provider = strings.ToLower(strings.TrimSpace(cfg.Upload.Provider))

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.allowed_origins", []string{})
	v.SetDefault("log.format", "text")
	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.dir", "./data")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "formbuilder")
	v.SetDefault("database.user", "formbuilder")
	v.SetDefault("database.password", "formbuilder")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.prefix", "formbuilder:")
	v.SetDefault("upload.provider", ProviderHosted)
	v.SetDefault("upload.endpoint", "https://api.cloudinary.com/v1_1/dt30lmgpb/image/upload")
	v.SetDefault("upload.preset", "form_builder")
	v.SetDefault("upload.max_bytes", 10*1024*1024)
	v.SetDefault("upload.rate_limit", 30)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "form-uploads")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("limits.max_templates", 5)
	v.SetDefault("limits.max_sections", 10)
	v.SetDefault("runtime.session_ttl", 30*time.Minute)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                 "API_PORT",
		"api.allowed_origins":      "API_ALLOWED_ORIGINS",
		"log.format":               "LOG_FORMAT",
		"storage.backend":          "STORAGE_BACKEND",
		"storage.dir":              "STORAGE_DIR",
		"database.host":            "DATABASE_HOST",
		"database.port":            "DATABASE_PORT",
		"database.name":            "POSTGRES_DB",
		"database.user":            "POSTGRES_USER",
		"database.password":        "POSTGRES_PASSWORD",
		"database.sslmode":         "DATABASE_SSLMODE",
		"redis.enabled":            "REDIS_ENABLED",
		"redis.host":               "REDIS_HOST",
		"redis.port":               "REDIS_PORT",
		"redis.prefix":             "REDIS_PREFIX",
		"upload.provider":          "UPLOAD_PROVIDER",
		"upload.endpoint":          "UPLOAD_ENDPOINT",
		"upload.preset":            "UPLOAD_PRESET",
		"upload.max_bytes":         "UPLOAD_MAX_BYTES",
		"upload.clamd_addr":        "CLAMD_ADDR",
		"upload.rate_limit":        "UPLOAD_RATE_LIMIT",
		"minio.endpoint":           "MINIO_ENDPOINT",
		"minio.public_endpoint":    "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":      "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":  "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":            "MINIO_USE_SSL",
		"minio.bucket":             "MINIO_BUCKET",
		"minio.region":             "MINIO_REGION",
		"minio.bucket_lookup":      "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket": "MINIO_AUTO_CREATE_BUCKET",
		"limits.max_templates":     "MAX_TEMPLATES",
		"limits.max_sections":      "MAX_SECTIONS",
		"runtime.session_ttl":      "SESSION_TTL",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

// RedisRequired reports whether any configured component talks to redis.
func (c Config) RedisRequired() bool {
	return c.Redis.Enabled || c.Storage.Backend == BackendRedis
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", cfg.Log.Format)
	}

	switch cfg.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile:
		if cfg.Storage.Dir == "" {
			return errors.New("storage dir is required for the file backend")
		}
	case BackendDatabase:
		if err := validateDatabase(cfg.Database); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}

	if cfg.RedisRequired() {
		if cfg.Redis.Host == "" {
			return errors.New("redis host is required")
		}
		if cfg.Redis.Port <= 0 {
			return errors.New("redis port must be positive")
		}
	}

	switch cfg.Upload.Provider {
	case ProviderHosted:
		if cfg.Upload.Endpoint == "" {
			return errors.New("upload endpoint is required")
		}
		if cfg.Upload.Preset == "" {
			return errors.New("upload preset is required")
		}
	case ProviderMinIO:
		if err := validateMinIO(cfg.MinIO); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported upload provider %q", cfg.Upload.Provider)
	}
	if cfg.Upload.MaxBytes <= 0 {
		return errors.New("upload max bytes must be positive")
	}
	if cfg.Upload.RateLimit < 0 {
		return errors.New("upload rate limit must not be negative")
	}

	if cfg.Limits.MaxTemplates <= 0 {
		return errors.New("max templates must be positive")
	}
	if cfg.Limits.MaxSections <= 0 {
		return errors.New("max sections must be positive")
	}
	if cfg.Runtime.SessionTTL < 0 {
		return errors.New("session ttl must not be negative")
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	if d.Host == "" {
		return errors.New("database host is required")
	}
	if d.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if d.Name == "" {
		return errors.New("database name is required")
	}
	if d.User == "" {
		return errors.New("database user is required")
	}
	if d.Password == "" {
		return errors.New("database password is required")
	}
	if d.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	return nil
}

func validateMinIO(m MinIOConfig) error {
	if m.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if m.PublicEndpoint == "" {
		return errors.New("minio public endpoint is required")
	}
	if m.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if m.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if m.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	return nil
}
