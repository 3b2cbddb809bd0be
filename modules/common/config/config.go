package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port   string
	AppEnv string

	// Logging
	LogLevel string
	LogFile  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Object storage (supabase | s3 | oss | filesystem)
	StorageDriver    string
	S3Bucket         string
	AWSRegion        string
	S3PublicBaseURL  string
	OSSEndpoint      string
	OSSBucket        string
	OSSAccessKeyID   string
	OSSAccessSecret  string
	OSSPublicBaseURL string
	FSRoot           string
	FSPublicBaseURL  string

	// CDN / transform
	CDNCloudName string
	CDNBaseURL   string
	CDNAPISecret string
	CDNSignURLs  bool

	// Providers
	BgRemovalURL            string
	BgRemovalAPIKey         string
	VisionAPIKey            string
	GeminiAPIKey            string
	GeminiModel             string
	ReconstructURL          string
	ReconstructAPIKey       string
	ReconstructPollInterval time.Duration
	ReconstructMaxAttempts  int
	PDFExtractURL           string
	PDFExtractSecret        string

	// Pipeline
	UploadConcurrency   int
	ProcessConcurrency  int
	UploadMaxRetries    int
	UploadRetryDelay    time.Duration
	ProcessMaxRetries   int
	ProcessRetryDelay   time.Duration
	QualityScope        string
	ComplianceThreshold float64
	MaxUploadBytes      int64
	WorkerMaxJobs       int

	// Tracing
	OTLPEndpoint string
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("⚠️  .env file not found, using environment variables")
	}

	cfg := FromEnv()

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg

	log.Info().
		Str("redis", cfg.GetRedisAddr()).
		Bool("redis_tls", cfg.RedisUseTLS).
		Str("supabase", cfg.SupabaseURL).
		Str("storage", cfg.StorageDriver).
		Int("upload_concurrency", cfg.UploadConcurrency).
		Int("process_concurrency", cfg.ProcessConcurrency).
		Msg("✅ Configuration loaded successfully")

	return globalConfig, nil
}

// FromEnv - 환경변수에서 Config 생성 (검증 없음)
func FromEnv() *Config {
	return &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getEnvBool("REDIS_USE_TLS", false),

		SupabaseURL:           strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "product-assets"),

		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", "supabase")),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		S3PublicBaseURL:  getEnv("S3_PUBLIC_BASE_URL", ""),
		OSSEndpoint:      getEnv("OSS_ENDPOINT", ""),
		OSSBucket:        getEnv("OSS_BUCKET", ""),
		OSSAccessKeyID:   getEnv("OSS_ACCESS_KEY_ID", ""),
		OSSAccessSecret:  getEnv("OSS_ACCESS_KEY_SECRET", ""),
		OSSPublicBaseURL: getEnv("OSS_PUBLIC_BASE_URL", ""),
		FSRoot:           getEnv("FS_ROOT", "./data/assets"),
		FSPublicBaseURL:  getEnv("FS_PUBLIC_BASE_URL", "http://localhost:8080/files"),

		CDNCloudName: getEnv("CDN_CLOUD_NAME", ""),
		CDNBaseURL:   getEnv("CDN_BASE_URL", "https://res.cloudinary.com"),
		CDNAPISecret: getEnv("CDN_API_SECRET", ""),
		CDNSignURLs:  getEnvBool("CDN_SIGN_URLS", false),

		BgRemovalURL:            getEnv("BG_REMOVAL_URL", "https://api.remove.bg/v1.0/removebg"),
		BgRemovalAPIKey:         getEnv("BG_REMOVAL_API_KEY", ""),
		VisionAPIKey:            getEnv("VISION_API_KEY", ""),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		ReconstructURL:          getEnv("RECONSTRUCT_URL", ""),
		ReconstructAPIKey:       getEnv("RECONSTRUCT_API_KEY", ""),
		ReconstructPollInterval: getEnvDuration("RECONSTRUCT_POLL_INTERVAL", 5*time.Second),
		ReconstructMaxAttempts:  getEnvInt("RECONSTRUCT_MAX_ATTEMPTS", 60),
		PDFExtractURL:           getEnv("PDF_EXTRACT_URL", "https://v2.convertapi.com/convert/pdf/to/extract-images"),
		PDFExtractSecret:        getEnv("PDF_EXTRACT_SECRET", ""),

		UploadConcurrency:   getEnvInt("UPLOAD_CONCURRENCY", 3),
		ProcessConcurrency:  getEnvInt("PROCESS_CONCURRENCY", 1),
		UploadMaxRetries:    getEnvInt("UPLOAD_MAX_RETRIES", 2),
		UploadRetryDelay:    getEnvDuration("UPLOAD_RETRY_DELAY", 1000*time.Millisecond),
		ProcessMaxRetries:   getEnvInt("PROCESS_MAX_RETRIES", 2),
		ProcessRetryDelay:   getEnvDuration("PROCESS_RETRY_DELAY", 3000*time.Millisecond),
		QualityScope:        strings.ToLower(getEnv("QUALITY_SCOPE", "first")),
		ComplianceThreshold: getEnvFloat("COMPLIANCE_THRESHOLD", 0.3),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_BYTES", 25<<20)),
		WorkerMaxJobs:       getEnvInt("WORKER_MAX_JOBS", 2),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal().Msg("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if c.UploadConcurrency < 1 || c.ProcessConcurrency < 1 {
		return fmt.Errorf("UPLOAD_CONCURRENCY and PROCESS_CONCURRENCY must be >= 1")
	}
	if c.WorkerMaxJobs < 1 {
		return fmt.Errorf("WORKER_MAX_JOBS must be >= 1")
	}
	if c.UploadMaxRetries < 0 || c.ProcessMaxRetries < 0 {
		return fmt.Errorf("retry counts must be >= 0")
	}
	if c.QualityScope != "first" && c.QualityScope != "batch" {
		return fmt.Errorf("QUALITY_SCOPE must be first or batch, got %q", c.QualityScope)
	}

	switch c.StorageDriver {
	case "supabase":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for STORAGE_DRIVER=s3")
		}
	case "oss":
		if c.OSSEndpoint == "" || c.OSSBucket == "" {
			return fmt.Errorf("OSS_ENDPOINT and OSS_BUCKET are required for STORAGE_DRIVER=oss")
		}
	case "filesystem":
		if c.FSRoot == "" {
			return fmt.Errorf("FS_ROOT is required for STORAGE_DRIVER=filesystem")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER: %s", c.StorageDriver)
	}
	return nil
}

// GetRedisAddr - Redis 주소 반환
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// IsDevelopment - 개발 환경 여부
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Int("default", defaultValue).Msg("⚠️  Invalid integer env, using default")
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration - "1500ms", "3s" 형식 또는 밀리초 정수
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
