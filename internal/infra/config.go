package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"designbridge/internal/storage"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	JWTSecret      string
	SessionTTL     time.Duration
	StorageBaseURL string
	StoragePath    string
	GeoIPDBPath    string

	DesignAPIBaseURL     string
	DesignAuthorizeURL   string
	DesignClientID       string
	DesignClientSecret   string
	DesignRedirectURI    string
	DesignScopes         []string
	DesignRequestTimeout time.Duration
	DesignMaxArtifactMB  int

	PollInitialDelay  time.Duration
	PollMaxDelay      time.Duration
	PollBackoffFactor float64
	PollDeadline      time.Duration

	SinkBackend   string
	SinkNamespace string

	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3Region        string
	S3UseSSL        bool
	S3PublicBaseURL string
	S3PresignExpiry time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int

	WorkerPollInterval time.Duration
	WorkerConcurrency  int
	WorkerRunTimeout   time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. It is used by the long running services and
// therefore insists on the database and OAuth client settings.
func LoadConfig() (*Config, error) {
	cfg := LoadToolConfig()

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DesignClientID == "" || cfg.DesignClientSecret == "" {
		return nil, fmt.Errorf("DESIGN_CLIENT_ID and DESIGN_CLIENT_SECRET are required")
	}
	if err := cfg.validateSink(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadToolConfig reads the same environment as LoadConfig without enforcing
// required settings. Command line tools validate what they actually use.
func LoadToolConfig() *Config {
	port := getEnv("PORT", "8080")
	return &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           port,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),

		DesignAPIBaseURL:     getEnv("DESIGN_API_BASE_URL", "https://api.canva.com/rest"),
		DesignAuthorizeURL:   getEnv("DESIGN_AUTHORIZE_URL", "https://www.canva.com/api/oauth/authorize"),
		DesignClientID:       os.Getenv("DESIGN_CLIENT_ID"),
		DesignClientSecret:   os.Getenv("DESIGN_CLIENT_SECRET"),
		DesignRedirectURI:    getEnv("DESIGN_REDIRECT_URI", "http://localhost:"+port+"/v1/auth/callback"),
		DesignScopes:         getEnvList("DESIGN_SCOPES", []string{"design:content:read", "design:content:write", "design:meta:read"}),
		DesignRequestTimeout: time.Second * time.Duration(getEnvInt("DESIGN_REQUEST_TIMEOUT_SECONDS", 30)),
		DesignMaxArtifactMB:  getEnvInt("DESIGN_MAX_ARTIFACT_MB", 256),

		PollInitialDelay:  time.Millisecond * time.Duration(getEnvInt("POLL_INITIAL_DELAY_MS", 1500)),
		PollMaxDelay:      time.Millisecond * time.Duration(getEnvInt("POLL_MAX_DELAY_MS", 4000)),
		PollBackoffFactor: getEnvFloat("POLL_BACKOFF_FACTOR", 1.3),
		PollDeadline:      time.Second * time.Duration(getEnvInt("POLL_DEADLINE_SECONDS", 120)),

		SinkBackend:   strings.ToLower(getEnv("SINK_BACKEND", storage.BackendNone)),
		SinkNamespace: getEnv("SINK_NAMESPACE", "exports"),

		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        os.Getenv("S3_REGION"),
		S3UseSSL:        getEnvBool("S3_USE_SSL", true),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		S3PresignExpiry: getEnvDuration("S3_PRESIGN_EXPIRY", 24*time.Hour),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerRunTimeout:   getEnvDuration("WORKER_RUN_TIMEOUT", 10*time.Minute),
	}
}

// SinkConfig translates the sink related settings for storage.NewSink.
func (c *Config) SinkConfig() storage.Config {
	return storage.Config{
		Backend:        c.SinkBackend,
		FilesystemPath: c.StoragePath,
		PublicBaseURL:  c.StorageBaseURL,
		S3: storage.S3Config{
			Endpoint:      c.S3Endpoint,
			AccessKey:     c.S3AccessKey,
			SecretKey:     c.S3SecretKey,
			Bucket:        c.S3Bucket,
			Region:        c.S3Region,
			UseSSL:        c.S3UseSSL,
			PublicBaseURL: c.S3PublicBaseURL,
			PresignExpiry: c.S3PresignExpiry,
		},
	}
}

func (c *Config) validateSink() error {
	switch c.SinkBackend {
	case storage.BackendNone, storage.BackendFilesystem:
		return nil
	case storage.BackendS3:
		if c.S3Endpoint == "" || c.S3Bucket == "" {
			return fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required when SINK_BACKEND=s3")
		}
		return nil
	default:
		return fmt.Errorf("SINK_BACKEND must be none, filesystem or s3, got %q", c.SinkBackend)
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings such as "90s" or "24h".
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
