// Package main is the entry point for the nutricompare API server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutricompare/internal/aggregate"
	"nutricompare/internal/cache"
	"nutricompare/internal/config"
	"nutricompare/internal/database"
	"nutricompare/internal/handlers"
	"nutricompare/internal/kassal"
	"nutricompare/internal/models"
	"nutricompare/internal/pricehistory"
	"nutricompare/internal/quota"
	"nutricompare/internal/ratelimit"
	"nutricompare/internal/router"
	"nutricompare/internal/session"
	"nutricompare/internal/storage"
	"nutricompare/internal/store"
	"nutricompare/internal/taxonomy"
)

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: text in development, JSON everywhere else.
	var logHandler slog.Handler
	if cfg.IsDev() {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(logHandler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"category_source", cfg.CategorySource,
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize data stores.
	userStore := store.NewUserStore(db)
	searchStore := store.NewSavedSearchStore(db)
	shareStore := store.NewShareStore(db)
	categoryStore := store.NewCategoryStore(db)
	adminLogStore := store.NewAdminLogStore(db)

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		seed := readSeedCategories(cfg.CategoryCSVPath)
		if err := database.Seed(context.Background(), db, categoryStore, seed); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (sessions + comparison scratch space).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// Sessions are issued by the account service; this server only reads
	// them. In non-development environments cookies are Secure.
	sessionStore := session.NewStore(valkeyClient, !cfg.IsDev())

	// Connect to S3-compatible object storage (optional unless categories
	// are kept there).
	var storageClient *storage.Client
	if cfg.S3Configured() {
		storageClient, err = storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
		if err != nil {
			slog.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	}

	// Pick the category table source.
	var categories taxonomy.Store
	switch cfg.CategorySource {
	case config.CategorySourceS3:
		categories = taxonomy.NewObjectStore(storageClient, cfg.S3Bucket, cfg.S3CategoryKey)
	case config.CategorySourcePostgres:
		categories = categoryStore
	default:
		categories = taxonomy.NewFileStore(cfg.CategoryCSVPath)
	}

	// Product API client, throttled to the upstream quota.
	var upstreamLimiter *ratelimit.Window
	if cfg.KassalRateLimit > 0 {
		upstreamLimiter = ratelimit.NewWindow(cfg.KassalRateLimit, cfg.KassalRateWindow)
	}
	productAPI := kassal.New(kassal.Options{
		BaseURL: cfg.KassalBaseURL,
		Token:   cfg.KassalToken,
		Timeout: cfg.KassalTimeout,
		Limiter: upstreamLimiter,
	})
	if !productAPI.Configured() {
		slog.Warn("KASSAL_API_TOKEN not set, product search disabled")
	}

	aggregator := aggregate.New(productAPI, aggregate.Options{
		PageSize: cfg.KassalPageSize,
		Workers:  cfg.KassalFetchWorkers,
	})
	priceMerger := pricehistory.New(productAPI, cfg.KassalFetchWorkers)
	quotaService := quota.NewService(userStore, quota.Limits{
		Explore: cfg.ExploreLimit,
		Compare: cfg.CompareLimit,
	})
	scratch := cache.NewComparisonCache(valkeyClient, cache.DefaultComparisonTTL)

	// Create handler groups with their dependencies.
	categoryHandlers := handlers.NewCategories(categories)
	productHandlers := handlers.NewProducts(categories, aggregator, priceMerger, quotaService)
	libraryHandlers := handlers.NewLibrary(searchStore, shareStore, scratch)
	adminHandlers := handlers.NewAdmin(categories, userStore, searchStore, shareStore, adminLogStore)
	if cfg.CategorySource == config.CategorySourceS3 {
		adminHandlers.WithCategoryObject(storageClient, cfg.S3Bucket, cfg.S3CategoryKey)
	}

	// Per-client limiter for inbound API traffic.
	var apiLimiter *ratelimit.Keyed
	if cfg.APIRateLimit > 0 {
		apiLimiter = ratelimit.NewKeyed(cfg.APIRateLimit, cfg.APIRateWindow)
		defer apiLimiter.Stop()
	}

	// Set up the Chi router with all middleware and routes.
	r := router.New(router.Deps{
		Sessions:    sessionStore,
		Users:       userStore,
		Ping:        func(ctx context.Context) error { return database.Ping(ctx, db) },
		Limiter:     apiLimiter,
		LimitWindow: cfg.APIRateWindow,
		Categories:  categoryHandlers,
		Products:    productHandlers,
		Library:     libraryHandlers,
		Admin:       adminHandlers,
	})

	// WriteTimeout must cover a full aggregation: many leaves, each paged
	// through the throttled upstream API.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

// readSeedCategories loads the bundled CSV used to seed the categories
// table in development. A missing file only skips category seeding.
func readSeedCategories(path string) []models.Category {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("category seed file not readable, skipping", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	cats, err := taxonomy.ReadCSV(f)
	if err != nil {
		slog.Warn("category seed file invalid, skipping", "path", path, "error", err)
		return nil
	}
	return cats
}
