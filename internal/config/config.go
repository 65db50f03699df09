package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Export   ExportConfig   `mapstructure:"export"`
	Editor   EditorConfig   `mapstructure:"editor"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int    `mapstructure:"port"`
	AllowedOrigins string `mapstructure:"allowed_origins"`
	ClamdAddr      string `mapstructure:"clamd_addr"`
	MaxDocuments   int    `mapstructure:"max_documents"`
}

// Origins splits the comma separated allow list used by the websocket upgrader.
func (a APIConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(a.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	Bucket           string `mapstructure:"bucket"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// AuthConfig holds JWT key material and login throttling.
type AuthConfig struct {
	PrivateKeyPath      string        `mapstructure:"private_key_path"`
	PublicKeyPath       string        `mapstructure:"public_key_path"`
	AccessTokenTTL      time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL     time.Duration `mapstructure:"refresh_token_ttl"`
	LoginRatePerHour    int           `mapstructure:"login_rate_per_hour"`
	CookieDomain        string        `mapstructure:"cookie_domain"`
	DisableRegistration bool          `mapstructure:"disable_registration"`
}

// WorkerConfig controls the asynq export worker.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MaxRetry    int `mapstructure:"max_retry"`
}

// ExportConfig selects the PDF renderer.
type ExportConfig struct {
	// Renderer is "native" (maroto) or "chromium" (go-rod).
	Renderer   string        `mapstructure:"renderer"`
	LinkTTL    time.Duration `mapstructure:"link_ttl"`
	RenderWait time.Duration `mapstructure:"render_wait"`
}

// EditorConfig tunes the editor service.
type EditorConfig struct {
	HistoryDepth int `mapstructure:"history_depth"`
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

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
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
	v.SetDefault("api.max_documents", 20)
	v.SetDefault("api.clamd_addr", "tcp://clamav:3310")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "cvcanvas")
	v.SetDefault("database.user", "cvcanvas")
	v.SetDefault("database.password", "cvcanvas")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.bucket", "cv-documents")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("auth.private_key_path", "keys/jwt_private.pem")
	v.SetDefault("auth.public_key_path", "keys/jwt_public.pem")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.login_rate_per_hour", 10)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.max_retry", 3)
	v.SetDefault("export.renderer", "native")
	v.SetDefault("export.link_ttl", 5*time.Minute)
	v.SetDefault("export.render_wait", 30*time.Second)
	v.SetDefault("editor.history_depth", 50)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                   "API_PORT",
		"api.allowed_origins":        "API_ALLOWED_ORIGINS",
		"api.clamd_addr":             "CLAMD_ADDR",
		"api.max_documents":          "API_MAX_DOCUMENTS",
		"database.host":              "DATABASE_HOST",
		"database.port":              "DATABASE_PORT",
		"database.name":              "POSTGRES_DB",
		"database.user":              "POSTGRES_USER",
		"database.password":          "POSTGRES_PASSWORD",
		"database.sslmode":           "DATABASE_SSLMODE",
		"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
		"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
		"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",
		"redis.host":                 "REDIS_HOST",
		"redis.port":                 "REDIS_PORT",
		"minio.endpoint":             "MINIO_ENDPOINT",
		"minio.public_endpoint":      "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":        "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":    "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":              "MINIO_USE_SSL",
		"minio.region":               "MINIO_REGION",
		"minio.bucket_lookup":        "MINIO_BUCKET_LOOKUP",
		"minio.bucket":               "MINIO_BUCKET",
		"minio.auto_create_bucket":   "MINIO_AUTO_CREATE_BUCKET",
		"auth.private_key_path":      "JWT_PRIVATE_KEY_PATH",
		"auth.public_key_path":       "JWT_PUBLIC_KEY_PATH",
		"auth.access_token_ttl":      "JWT_ACCESS_TOKEN_TTL",
		"auth.refresh_token_ttl":     "JWT_REFRESH_TOKEN_TTL",
		"auth.login_rate_per_hour":   "LOGIN_RATE_LIMIT_PER_HOUR",
		"auth.cookie_domain":         "AUTH_COOKIE_DOMAIN",
		"auth.disable_registration":  "AUTH_DISABLE_REGISTRATION",
		"worker.concurrency":         "WORKER_CONCURRENCY",
		"worker.max_retry":           "WORKER_MAX_RETRY",
		"export.renderer":            "EXPORT_RENDERER",
		"export.link_ttl":            "EXPORT_LINK_TTL",
		"export.render_wait":         "EXPORT_RENDER_WAIT",
		"editor.history_depth":       "EDITOR_HISTORY_DEPTH",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Database.MaxOpenConns <= 0 || cfg.Database.MaxIdleConns < 0 {
		return errors.New("database pool sizes must be positive")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Auth.AccessTokenTTL <= 0 || cfg.Auth.RefreshTokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	switch cfg.Export.Renderer {
	case "native", "chromium":
	default:
		return fmt.Errorf("unsupported export renderer %q", cfg.Export.Renderer)
	}
	if cfg.Editor.HistoryDepth < 0 {
		return errors.New("editor history depth must not be negative")
	}
	return nil
}
