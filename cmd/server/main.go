package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/importlab/marketplace-scraper/internal/api"
	"github.com/importlab/marketplace-scraper/internal/browser"
	"github.com/importlab/marketplace-scraper/internal/config"
	"github.com/importlab/marketplace-scraper/internal/dedup"
	"github.com/importlab/marketplace-scraper/internal/fetch"
	"github.com/importlab/marketplace-scraper/internal/models"
	"github.com/importlab/marketplace-scraper/internal/pipeline"
	"github.com/importlab/marketplace-scraper/internal/ratelimit"
	"github.com/importlab/marketplace-scraper/internal/store"
	"github.com/importlab/marketplace-scraper/internal/translate"
	"github.com/importlab/marketplace-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting scrape API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// The in-memory hash set is scoped to a single batch run. Only the Redis
	// set is deliberately shared across runs, so newHashSet returns a fresh
	// set per request unless Redis is configured.
	var sharedHashes dedup.HashSet
	if cfg.Dedup.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Dedup.RedisAddr})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, using in-memory dedup", "error", err)
		} else {
			sharedHashes = dedup.NewRedisSet(redisClient, cfg.Dedup.RedisKey)
		}
	}
	newHashSet := func() dedup.HashSet {
		if sharedHashes != nil {
			return sharedHashes
		}
		return dedup.NewMemorySet()
	}

	var translator translate.Translator = translate.Noop{}
	if cfg.Translate.Endpoint != "" {
		translator = translate.NewClient(cfg.Translate.Endpoint, cfg.Translate.Timeout, logger)
	}

	downloader := fetch.NewDownloader(fetchClient, cfg.Scraper.ImagesDir, logger)
	limiter := ratelimit.NewJitteredRateLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)

	newRunner := func(mode config.ImageMode) api.Runner {
		return api.RunnerFunc(func(ctx context.Context, urls []string) (*models.BatchResult, error) {
			tracker := dedup.NewTracker(fetchClient, newHashSet(), logger)
			p := pipeline.New(b, translator, tracker, downloader, pipeline.Options{
				Workers:     cfg.Scraper.Workers,
				ImageMode:   mode,
				Placeholder: cfg.Scraper.Placeholder,
				Limiter:     limiter,
				From:        cfg.Translate.From,
				To:          cfg.Translate.To,
			}, logger)
			return p.Run(ctx, urls)
		})
	}
	runners := map[config.ImageMode]api.Runner{
		config.ImageModeDownload: newRunner(config.ImageModeDownload),
		config.ImageModeRemote:   newRunner(config.ImageModeRemote),
	}

	var recordStore api.RecordStore
	if cfg.Database.DSN != "" {
		s, err := store.New(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer s.Close()
		recordStore = s
	}

	handlers := api.NewHandlers(runners, cfg.Scraper.ImageMode, recordStore, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scrape", handlers.Scrape)
		r.Get("/records", handlers.Records)
	})

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.Info("Server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
