package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/modernplatform/modern-platform/pkg/logger"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	MongoDB   MongoDBConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Blobs     BlobConfig
	JWT       JWTConfig
	Session   SessionConfig
	Upload    UploadConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BackendConfig selects the Backend Client. Mode "hosted" talks to URL with
// AnonKey; "local" runs the backend in process on RowStore and the blob store.
type BackendConfig struct {
	Mode     string
	URL      string
	AnonKey  string
	Timeout  time.Duration
	RowStore string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type PostgresConfig struct {
	DSN     string
	Timeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr is empty when no Redis host is configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type BlobConfig struct {
	Store         string
	PublicBaseURL string
	MinIO         MinIOConfig
	S3            S3Config
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type SessionConfig struct {
	Cookie string
	TTL    time.Duration
	Secure bool
}

type UploadConfig struct {
	MaxBytes int64
}

type RateLimitConfig struct {
	Enabled bool
	Rate    float64
	Burst   int
	Window  time.Duration
	Redis   bool
}

// LoadConfig loads configuration from environment variables and a .env file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BACKEND_MODE", "local")
	v.SetDefault("BACKEND_TIMEOUT", 10)
	v.SetDefault("ROW_STORE", "memory")
	v.SetDefault("MONGODB_DATABASE", "modern_platform")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("POSTGRES_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("BLOB_STORE", "memory")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	v.SetDefault("SESSION_COOKIE", "mp_session")
	v.SetDefault("SESSION_TTL", 10080)
	v.SetDefault("UPLOAD_MAX_BYTES", 5<<20)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RATE", 5)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW", 60)

	env := v.GetString("SERVER_ENVIRONMENT")
	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  env,
			LogLevel:     v.GetString("LOG_LEVEL"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Backend: BackendConfig{
			Mode:     strings.ToLower(v.GetString("BACKEND_MODE")),
			URL:      v.GetString("BACKEND_URL"),
			AnonKey:  v.GetString("BACKEND_ANON_KEY"),
			Timeout:  time.Duration(v.GetInt("BACKEND_TIMEOUT")) * time.Second,
			RowStore: strings.ToLower(v.GetString("ROW_STORE")),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Postgres: PostgresConfig{
			DSN:     v.GetString("POSTGRES_DSN"),
			Timeout: time.Duration(v.GetInt("POSTGRES_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Blobs: BlobConfig{
			Store:         strings.ToLower(v.GetString("BLOB_STORE")),
			PublicBaseURL: v.GetString("PUBLIC_BLOB_URL"),
			MinIO: MinIOConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: v.GetString("MINIO_SECRET_KEY"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
			},
			S3: S3Config{
				Region:    v.GetString("S3_REGION"),
				Endpoint:  v.GetString("S3_ENDPOINT"),
				AccessKey: v.GetString("S3_ACCESS_KEY"),
				SecretKey: v.GetString("S3_SECRET_KEY"),
				PathStyle: v.GetBool("S3_PATH_STYLE"),
			},
		},
		JWT: JWTConfig{
			Secret:          v.GetString("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(v.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		Session: SessionConfig{
			Cookie: v.GetString("SESSION_COOKIE"),
			TTL:    time.Duration(v.GetInt("SESSION_TTL")) * time.Minute,
			Secure: env == "production",
		},
		Upload: UploadConfig{
			MaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
		RateLimit: RateLimitConfig{
			Enabled: v.GetBool("RATE_LIMIT_ENABLED"),
			Rate:    v.GetFloat64("RATE_LIMIT_RATE"),
			Burst:   v.GetInt("RATE_LIMIT_BURST"),
			Window:  time.Duration(v.GetInt("RATE_LIMIT_WINDOW")) * time.Second,
			Redis:   v.GetBool("RATE_LIMIT_REDIS"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Backend.Mode == "local" && cfg.JWT.Secret == "" {
		logger.Warnf("JWT_SECRET is not set; set a secure value in production")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend.Mode {
	case "hosted":
		if c.Backend.URL == "" || c.Backend.AnonKey == "" {
			return fmt.Errorf("BACKEND_URL and BACKEND_ANON_KEY are required in hosted mode")
		}
	case "local":
	default:
		return fmt.Errorf("unknown BACKEND_MODE %q", c.Backend.Mode)
	}
	switch c.Backend.RowStore {
	case "memory":
	case "mongo":
		if c.MongoDB.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for ROW_STORE=mongo")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for ROW_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown ROW_STORE %q", c.Backend.RowStore)
	}
	switch c.Blobs.Store {
	case "memory", "minio", "s3":
	default:
		return fmt.Errorf("unknown BLOB_STORE %q", c.Blobs.Store)
	}
	return nil
}
