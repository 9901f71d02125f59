package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ImageMode selects what the Images column carries: local file paths
// (download-first) or remote URLs left for the importer to fetch. The two
// must never mix within one record.
type ImageMode string

const (
	ImageModeDownload ImageMode = "download"
	ImageModeRemote   ImageMode = "remote"
)

type Config struct {
	Server    ServerConfig
	Scraper   ScraperConfig
	Browser   BrowserConfig
	Translate TranslateConfig
	Dedup     DedupConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	URLsFile     string
	OutputFile   string
	ImagesDir    string
	ImageMode    ImageMode
	Placeholder  string
	Workers      int
	RateLimitMin time.Duration
	RateLimitMax time.Duration
	FetchTimeout time.Duration
	UserAgent    string
	Referer      string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	Locale         string
}

type TranslateConfig struct {
	Endpoint string
	From     string
	To       string
	Timeout  time.Duration
}

type DedupConfig struct {
	RedisAddr string
	RedisKey  string
}

type DatabaseConfig struct {
	// DSN enables the optional Postgres record store when non-empty.
	DSN string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			URLsFile:     getEnvOrDefault("SCRAPER_URLS_FILE", "urls.txt"),
			OutputFile:   getEnvOrDefault("SCRAPER_OUTPUT_FILE", "woocommerce_products.csv"),
			ImagesDir:    getEnvOrDefault("SCRAPER_IMAGES_DIR", "product_images"),
			ImageMode:    ImageMode(getEnvOrDefault("SCRAPER_IMAGE_MODE", string(ImageModeDownload))),
			Placeholder:  getEnvOrDefault("SCRAPER_PLACEHOLDER_IMAGE", "placeholder.jpg"),
			Workers:      getIntOrDefault("SCRAPER_WORKERS", 3),
			RateLimitMin: getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 2*time.Second),
			RateLimitMax: getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 8*time.Second),
			FetchTimeout: getDurationOrDefault("SCRAPER_FETCH_TIMEOUT", 15*time.Second),
			UserAgent:    getEnvOrDefault("SCRAPER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"),
			Referer:      getEnvOrDefault("SCRAPER_REFERER", "https://www.1688.com/"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "zh-CN,zh;q=0.9,en;q=0.8"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "zh-CN"),
		},
		Translate: TranslateConfig{
			Endpoint: getEnvOrDefault("TRANSLATE_ENDPOINT", ""),
			From:     getEnvOrDefault("TRANSLATE_FROM", "zh"),
			To:       getEnvOrDefault("TRANSLATE_TO", "en"),
			Timeout:  getDurationOrDefault("TRANSLATE_TIMEOUT", 10*time.Second),
		},
		Dedup: DedupConfig{
			RedisAddr: getEnvOrDefault("DEDUP_REDIS_ADDR", ""),
			RedisKey:  getEnvOrDefault("DEDUP_REDIS_KEY", "scraper:image_hashes"),
		},
		Database: DatabaseConfig{
			DSN: getEnvOrDefault("DATABASE_DSN", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.Workers < 1 {
		return fmt.Errorf("SCRAPER_WORKERS must be at least 1")
	}

	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	switch c.Scraper.ImageMode {
	case ImageModeDownload, ImageModeRemote:
	default:
		return fmt.Errorf("SCRAPER_IMAGE_MODE must be %q or %q", ImageModeDownload, ImageModeRemote)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
