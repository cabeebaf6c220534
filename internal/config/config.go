package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Cache     CacheConfig
	Pipeline  PipelineConfig
	Prewarm   PrewarmConfig
	Webhook   WebhookConfig
	Ledger    LedgerConfig
	RateLimit RateLimitConfig
	Trace     TraceConfig
}

type ServerConfig struct {
	Addr            string
	UploadLimitKB   int
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	Backend   string
	UploadDir string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PoolSize      int
	OpTimeout     time.Duration
}

type PipelineConfig struct {
	Workers       int
	QueueDepth    int
	WatermarkPath string
}

type PrewarmConfig struct {
	Variants    []string
	QueueName   string
	Concurrency int
}

type WebhookConfig struct {
	URL    string
	Secret string
}

type LedgerConfig struct {
	PostgresDSN string
}

type RateLimitConfig struct {
	UploadsPerWindow int
	Window           time.Duration
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

const (
	StoreBackendFS = "fs"
	StoreBackendS3 = "s3"
)

func Load() Config {
	cpus := runtime.NumCPU()

	return Config{
		Server: ServerConfig{
			Addr:            env("CANVAS_ADDR", ":3000"),
			UploadLimitKB:   envInt("CANVAS_FILE_SIZE_LIMIT_KB", 4096),
			AllowedOrigins:  envList("CANVAS_ALLOWED_ORIGINS"),
			ShutdownTimeout: envDuration("CANVAS_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Store: StoreConfig{
			Backend:   env("CANVAS_STORE_BACKEND", StoreBackendFS),
			UploadDir: env("CANVAS_UPLOAD_DIR", "uploads"),
			Endpoint:  env("CANVAS_S3_ENDPOINT", "localhost:9000"),
			AccessKey: env("CANVAS_S3_ACCESS_KEY", "minioadmin"),
			SecretKey: env("CANVAS_S3_SECRET_KEY", "minioadmin"),
			Bucket:    env("CANVAS_S3_BUCKET", "canvas-originals"),
			UseSSL:    envBool("CANVAS_S3_USE_SSL", false),
		},
		Cache: CacheConfig{
			RedisAddr:     env("CANVAS_REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("CANVAS_REDIS_PASSWORD", ""),
			RedisDB:       envInt("CANVAS_REDIS_DB", 0),
			PoolSize:      envInt("CANVAS_CACHE_POOL_SIZE", cpus),
			OpTimeout:     envDuration("CANVAS_CACHE_OP_TIMEOUT", 2*time.Second),
		},
		Pipeline: PipelineConfig{
			Workers:       envInt("CANVAS_WORKERS", cpus),
			QueueDepth:    envInt("CANVAS_WORK_QUEUE_DEPTH", 4*cpus),
			WatermarkPath: env("CANVAS_WATERMARK_FILE_PATH", ""),
		},
		Prewarm: PrewarmConfig{
			Variants:    envList("CANVAS_PREWARM_VARIANTS"),
			QueueName:   env("CANVAS_PREWARM_QUEUE", "canvas:prewarm"),
			Concurrency: envInt("CANVAS_PREWARM_CONCURRENCY", max(1, cpus/2)),
		},
		Webhook: WebhookConfig{
			URL:    env("CANVAS_WEBHOOK_URL", ""),
			Secret: env("CANVAS_WEBHOOK_SECRET", ""),
		},
		Ledger: LedgerConfig{
			PostgresDSN: env("CANVAS_POSTGRES_DSN", ""),
		},
		RateLimit: RateLimitConfig{
			UploadsPerWindow: envInt("CANVAS_UPLOAD_RATE_LIMIT", 0),
			Window:           envDuration("CANVAS_UPLOAD_RATE_WINDOW", time.Minute),
		},
		Trace: TraceConfig{
			Exporter:     env("CANVAS_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("CANVAS_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("CANVAS_OTLP_INSECURE", false),
			SampleRatio:  envFloat("CANVAS_TRACE_SAMPLE_RATIO", 1),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// envList splits a space-separated value, matching the original
// CANVAS_ALLOWED_ORIGINS convention. Commas are accepted as well.
func envList(key string) []string {
	value := env(key, "")
	if value == "" {
		return nil
	}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
