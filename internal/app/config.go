package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"moviescout/internal/domain"
)

const (
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBImageBaseURL string
	CatalogTimeout   time.Duration
	SearchDebounce   time.Duration

	TrendingBackend   string
	TrendingLimit     int
	TrendingQueueSize int
	TrendingWorkers   int
	TrendingWatch     bool

	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	RedisURL        string

	RateLimitRPS   float64
	RateLimitBurst int

	OTLPEndpoint     string
	TraceSampleRatio float64
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		TMDBAPIKey:       getEnv("TMDB_API_KEY", getEnv("VITE_TMDB_API_KEY", "")),
		TMDBBaseURL:      getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBImageBaseURL: getEnv("TMDB_IMAGE_BASE_URL", domain.DefaultImageBaseURL),
		CatalogTimeout:   time.Duration(getEnvInt("CATALOG_TIMEOUT_SECONDS", 10)) * time.Second,
		SearchDebounce:   getEnvDuration("SEARCH_DEBOUNCE_MS", 500*time.Millisecond),

		TrendingBackend:   strings.ToLower(getEnv("TRENDING_BACKEND", BackendMongo)),
		TrendingLimit:     getEnvInt("TRENDING_LIMIT", 5),
		TrendingQueueSize: getEnvInt("TRENDING_QUEUE_SIZE", 64),
		TrendingWorkers:   getEnvInt("TRENDING_WORKERS", 2),
		TrendingWatch:     getEnvBool("TRENDING_WATCH", false),

		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DB", "moviescout"),
		MongoCollection: getEnv("MONGO_COLLECTION", "metrics"),
		RedisURL:        getEnv("REDIS_URL", ""),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceSampleRatio: getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
	}
}

// Validate reports every problem at once. Each error wraps
// domain.ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if c.TMDBAPIKey == "" {
		add("TMDB_API_KEY is required")
	}
	if !isHTTPURL(c.TMDBBaseURL) {
		add("TMDB_BASE_URL %q is not an http(s) URL", c.TMDBBaseURL)
	}
	if !isHTTPURL(c.TMDBImageBaseURL) {
		add("TMDB_IMAGE_BASE_URL %q is not an http(s) URL", c.TMDBImageBaseURL)
	}
	if c.SearchDebounce <= 0 {
		add("SEARCH_DEBOUNCE_MS must be positive")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		add("LOG_FORMAT %q must be text or json", c.LogFormat)
	}

	switch c.TrendingBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			add("MONGO_URI is required for the mongo backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			add("REDIS_URL is required for the redis backend")
		}
	case BackendMemory:
	default:
		add("TRENDING_BACKEND %q must be mongo, redis or memory", c.TrendingBackend)
	}
	if c.TrendingWatch && c.TrendingBackend != BackendMongo {
		add("TRENDING_WATCH requires the mongo backend")
	}
	if c.TraceSampleRatio > 1 {
		add("OTEL_TRACES_SAMPLER_ARG must be within 0..1")
	}

	return errors.Join(errs...)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// getEnvFloat accepts zero, which disables rate limiting.
func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

// getEnvDuration reads a millisecond count. Zero and negative values are
// kept so Validate can reject them.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
