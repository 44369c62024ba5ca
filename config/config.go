package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	FBPageID      string
	IGUserID      string
	MetaPageToken string
	MetaGraphBase string

	AnthropicAPIKey string
	CopyModel       string
	CopyMaxTokens   int

	ChromeBin   string
	PageTimeout time.Duration

	MaxConcurrency int
	RateLimitMs    int
	ImageTimeout   time.Duration
	MaxImages      int

	PollInterval time.Duration
	PollTimeout  time.Duration

	ImageHost       string
	ImageLocalDir   string
	ImagePublicBase string

	S3Bucket     string
	AWSRegion    string
	AWSEndpoint  string
	AWSAccessKey string
	AWSSecretKey string
	S3UseSSL     string
	S3PublicBase string

	MaxRetries int

	ReceiptsCSVPath  string
	ReceiptsDB       bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	HTTPAddr   string
	CORSOrigin string

	LogLevel  string
	LogFormat string
}

// CarouselCeiling is the most images the container platform accepts in one post.
const CarouselCeiling = 10

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		FBPageID:      getEnv("FB_PAGE_ID", ""),
		IGUserID:      getEnv("IG_USER_ID", ""),
		MetaPageToken: getEnv("META_PAGE_TOKEN", ""),
		MetaGraphBase: strings.TrimRight(getEnv("META_GRAPH_BASE", "https://graph.facebook.com/v22.0"), "/"),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		CopyModel:       getEnv("COPY_MODEL", "claude-sonnet-4-20250514"),
		CopyMaxTokens:   getEnvInt("COPY_MAX_TOKENS", 1000),

		ChromeBin:   getEnv("CHROME_BIN", ""),
		PageTimeout: time.Duration(getEnvInt("PAGE_TIMEOUT_SEC", 60)) * time.Second,

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 5),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 0),
		ImageTimeout:   time.Duration(getEnvInt("IMAGE_TIMEOUT_SEC", 30)) * time.Second,
		MaxImages:      getEnvInt("MAX_IMAGES", CarouselCeiling),

		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		PollTimeout:  time.Duration(getEnvInt("POLL_TIMEOUT_SEC", 30)) * time.Second,

		ImageHost:       strings.ToLower(getEnv("IMAGE_HOST", "local")),
		ImageLocalDir:   getEnv("IMAGE_LOCAL_DIR", "./output/images"),
		ImagePublicBase: strings.TrimRight(getEnv("IMAGE_PUBLIC_BASE", "http://localhost:8000/listings"), "/"),

		S3Bucket:     getEnv("S3_BUCKET", ""),
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint:  getEnv("AWS_ENDPOINT", ""),
		AWSAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3UseSSL:     getEnv("S3_USE_SSL", "true"),
		S3PublicBase: strings.TrimRight(getEnv("S3_PUBLIC_BASE", ""), "/"),

		MaxRetries: getEnvInt("MAX_RETRIES", 3),

		ReceiptsCSVPath:  getEnv("RECEIPTS_CSV_PATH", "./output/receipts.csv"),
		ReceiptsDB:       getEnvBool("RECEIPTS_DB", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "publisher"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "publisher"),
		PostgresDB:       getEnv("POSTGRES_DB", "listing_publisher"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		HTTPAddr:   getEnv("HTTP_ADDR", ":8000"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if cfg.MaxImages < 1 || cfg.MaxImages > CarouselCeiling {
		cfg.MaxImages = CarouselCeiling
	}
	return cfg
}

// Validate fails when credentials needed for a full run are missing.
func (c *Config) Validate() error {
	required := []struct{ key, val string }{
		{"ANTHROPIC_API_KEY", c.AnthropicAPIKey},
		{"FB_PAGE_ID", c.FBPageID},
		{"IG_USER_ID", c.IGUserID},
		{"META_PAGE_TOKEN", c.MetaPageToken},
	}
	if c.ImageHost == "s3" {
		required = append(required, struct{ key, val string }{"S3_BUCKET", c.S3Bucket})
	}

	var missing []string
	for _, r := range required {
		if r.val == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return errors.New("missing environment variables: " + strings.Join(missing, ", "))
	}
	return nil
}

// DSN returns the PostgreSQL connection string for the receipts ledger.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
