package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/importlab/marketplace-scraper/internal/browser"
	"github.com/importlab/marketplace-scraper/internal/config"
	"github.com/importlab/marketplace-scraper/internal/dedup"
	"github.com/importlab/marketplace-scraper/internal/export"
	"github.com/importlab/marketplace-scraper/internal/fetch"
	"github.com/importlab/marketplace-scraper/internal/pipeline"
	"github.com/importlab/marketplace-scraper/internal/ratelimit"
	"github.com/importlab/marketplace-scraper/internal/translate"
	"github.com/importlab/marketplace-scraper/pkg/logger"
)

func main() {
	var (
		urlsFile  = flag.String("file", "", "File containing product URLs (one per line)")
		output    = flag.String("output", "", "Output CSV path")
		imagesDir = flag.String("images-dir", "", "Directory for downloaded images")
		mode      = flag.String("mode", "", "Image handling: download or remote")
		workers   = flag.Int("workers", 0, "Number of parallel workers")
		headless  = flag.Bool("headless", true, "Run browser in headless mode")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags win over environment.
	if *urlsFile != "" {
		cfg.Scraper.URLsFile = *urlsFile
	}
	if *output != "" {
		cfg.Scraper.OutputFile = *output
	}
	if *imagesDir != "" {
		cfg.Scraper.ImagesDir = *imagesDir
	}
	if *mode != "" {
		cfg.Scraper.ImageMode = config.ImageMode(*mode)
	}
	if *workers > 0 {
		cfg.Scraper.Workers = *workers
	}
	cfg.Browser.Headless = *headless && cfg.Browser.Headless

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting marketplace scraper", "mode", cfg.Scraper.ImageMode, "workers", cfg.Scraper.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	urls, err := pipeline.ReadURLFile(cfg.Scraper.URLsFile)
	if err != nil {
		logger.Error("No URLs to scrape", "file", cfg.Scraper.URLsFile, "error", err)
		os.Exit(1)
	}

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Scraper.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		Locale:         cfg.Browser.Locale,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	fetchClient := fetch.NewClient(&fetch.Options{
		Timeout:   cfg.Scraper.FetchTimeout,
		UserAgent: cfg.Scraper.UserAgent,
		Referer:   cfg.Scraper.Referer,
	}, logger)

	var hashes dedup.HashSet = dedup.NewMemorySet()
	if cfg.Dedup.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Dedup.RedisAddr})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, using in-memory dedup", "error", err)
		} else {
			hashes = dedup.NewRedisSet(redisClient, cfg.Dedup.RedisKey)
		}
	}
	tracker := dedup.NewTracker(fetchClient, hashes, logger)

	var translator translate.Translator = translate.Noop{}
	if cfg.Translate.Endpoint != "" {
		translator = translate.NewClient(cfg.Translate.Endpoint, cfg.Translate.Timeout, logger)
	}

	downloader := fetch.NewDownloader(fetchClient, cfg.Scraper.ImagesDir, logger)
	limiter := ratelimit.NewJitteredRateLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)

	p := pipeline.New(b, translator, tracker, downloader, pipeline.Options{
		Workers:     cfg.Scraper.Workers,
		ImageMode:   cfg.Scraper.ImageMode,
		Placeholder: cfg.Scraper.Placeholder,
		Limiter:     limiter,
		From:        cfg.Translate.From,
		To:          cfg.Translate.To,
	}, logger)

	result, err := p.Run(ctx, urls)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoRecords) {
			logger.Error("Batch produced no records", "failed", result.Failed)
		} else {
			logger.Error("Batch run failed", "error", err)
		}
		os.Exit(1)
	}

	if err := export.WriteCSVFile(cfg.Scraper.OutputFile, result.Records); err != nil {
		logger.Error("Failed to write CSV", "path", cfg.Scraper.OutputFile, "error", err)
		os.Exit(1)
	}

	logger.Info("Batch finished",
		"processed", result.Processed,
		"failed", result.Failed,
		"output", cfg.Scraper.OutputFile,
	)
}
