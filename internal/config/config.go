// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all client engine configuration.
type Config struct {
	// Backend API
	APIBaseURL     string
	RequestTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Blob store
	BlobBackend  string // httpform, s3, minio
	BlobEndpoint string
	UploadPreset string

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string

	MinioEndpoint  string
	MinioBucket    string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	// Notifications
	NATSURL string

	// Upload scanning
	ClamAVURL   string
	ScanUploads bool

	// Local content cache
	CacheDir     string
	MaxCacheSize int64

	// Upload concurrency (1 = strictly sequential, the default).
	// Compression is always sequential so successes survive a failure
	// mid-batch.
	UploadWorkers int

	// Legacy behavior: swallow batches where every compression failed.
	SilentBatchFailure bool

	// Metrics
	MetricsAddr string

	// OIDC client-credentials grant for headless use. Interactive logins
	// install a token directly; these are only read when set.
	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCScopes       []string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cacheDir := envOr("CACHE_DIR", "")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = home + "/.cache/cloudnest"
	}

	cfg := &Config{
		APIBaseURL:     envOr("API_BASE_URL", ""),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", 30*time.Second),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		LogFormat:      envOr("LOG_FORMAT", "console"),
		BlobBackend:    envOr("BLOB_BACKEND", "httpform"),
		BlobEndpoint:   envOr("BLOB_ENDPOINT", ""),
		UploadPreset:   envOr("UPLOAD_PRESET", "mobile-unsigned"),
		S3Endpoint:     envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:       envOr("S3_BUCKET", "cloudnest"),
		S3AccessKey:    envOr("S3_ACCESS_KEY", ""),
		S3SecretKey:    envOr("S3_SECRET_KEY", ""),
		S3Region:       envOr("S3_REGION", "us-east-1"),
		MinioEndpoint:  envOr("MINIO_ENDPOINT", "localhost:9000"),
		MinioBucket:    envOr("MINIO_BUCKET", "cloudnest"),
		MinioAccessKey: envOr("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: envOr("MINIO_SECRET_KEY", ""),
		MinioUseSSL:    envBool("MINIO_USE_SSL", false),
		NATSURL:        envOr("NATS_URL", ""),
		ClamAVURL:      envOr("CLAMAV_URL", "tcp://localhost:3310"),
		ScanUploads:    envBool("SCAN_UPLOADS", false),
		CacheDir:       cacheDir,
		MaxCacheSize:   envInt64("MAX_CACHE_SIZE", 1<<30), // 1GB default

		UploadWorkers:      envInt("UPLOAD_WORKERS", 1),
		SilentBatchFailure: envBool("SILENT_BATCH_FAILURE", false),

		MetricsAddr: envOr("METRICS_ADDR", ""),

		OIDCIssuerURL:    envOr("OIDC_ISSUER_URL", ""),
		OIDCClientID:     envOr("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: envOr("OIDC_CLIENT_SECRET", ""),
	}
	if scopes := envOr("OIDC_SCOPES", ""); scopes != "" {
		cfg.OIDCScopes = strings.Split(scopes, ",")
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	if cfg.BlobBackend == "httpform" && cfg.BlobEndpoint == "" {
		return nil, fmt.Errorf("BLOB_ENDPOINT is required for the httpform blob backend")
	}
	if cfg.UploadWorkers < 1 {
		cfg.UploadWorkers = 1
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
