package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/malwarebo/playgate/api"
	"github.com/malwarebo/playgate/cache"
	"github.com/malwarebo/playgate/config"
	"github.com/malwarebo/playgate/db"
	"github.com/malwarebo/playgate/middleware"
	"github.com/malwarebo/playgate/monitoring"
	"github.com/malwarebo/playgate/security"
	"github.com/malwarebo/playgate/services"
	"github.com/malwarebo/playgate/stores"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func printBanner() {
	fmt.Printf("%s%s", colorCyan, colorBold)
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                                                              ║")
	fmt.Println("║  🕹  Playgate Game Authorization & Billing Engine            ║")
	fmt.Println("║                                                              ║")
	fmt.Println("║  Real-time session authorization for arcade venues           ║")
	fmt.Println("║                                                              ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("%s", colorReset)
}

func printStep(step, message string) {
	fmt.Printf("%s[%s]%s %s%s%s\n", colorBlue, step, colorReset, colorBold, message, colorReset)
}

func printSuccess(message string) {
	fmt.Printf("%s✓%s %s\n", colorGreen, colorReset, message)
}

func printWarning(message string) {
	fmt.Printf("%s⚠%s %s\n", colorYellow, colorReset, message)
}

func printError(message string) {
	fmt.Printf("%s✗%s %s\n", colorRed, colorReset, message)
}

func printInfo(message string) {
	fmt.Printf("%sℹ%s %s\n", colorCyan, colorReset, message)
}

func main() {
	printBanner()
	fmt.Println()

	printStep("1/8", "Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		printError(fmt.Sprintf("Configuration validation failed: %v", err))
		os.Exit(1)
	}
	printSuccess("Configuration loaded and validated")

	printStep("2/8", "Connecting to database...")
	database, err := db.Connect(cfg)
	if err != nil {
		printError(fmt.Sprintf("Failed to connect to database: %v", err))
		os.Exit(1)
	}
	sqlDB, err := database.DB()
	if err != nil {
		printError(fmt.Sprintf("Failed to get database instance: %v", err))
		os.Exit(1)
	}
	defer sqlDB.Close()
	printSuccess(fmt.Sprintf("Connected to PostgreSQL at %s:%d", cfg.Database.Host, cfg.Database.Port))

	printStep("3/8", "Running migrations...")
	if err := db.Migrate(database); err != nil {
		printError(fmt.Sprintf("Migration failed: %v", err))
		os.Exit(1)
	}
	printSuccess("Schema up to date")

	printStep("4/8", "Connecting to Redis...")
	var redisCache *cache.RedisCache
	var limiter services.RateLimiter
	redisCache, err = cache.NewRedisCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		// In-process counters are only correct for a single instance.
		printWarning(fmt.Sprintf("Failed to connect to Redis: %v (falling back to in-process rate limiting)", err))
		localLimiter := security.NewRateLimiter()
		defer localLimiter.Close()
		limiter = localLimiter
		redisCache = nil
	} else {
		defer redisCache.Close()
		limiter = cache.NewRedisRateLimiter(redisCache)
		printSuccess(fmt.Sprintf("Connected to Redis at %s:%d (shared rate-limit counters)", cfg.Redis.Host, cfg.Redis.Port))
	}

	printStep("5/8", "Initializing security components...")
	encryption, err := security.NewEncryptionManagerFromHex(cfg.Security.EncryptionKey)
	if err != nil {
		printError(fmt.Sprintf("Failed to initialize encryption: %v", err))
		os.Exit(1)
	}
	printSuccess("Security components initialized")

	printStep("6/8", "Initializing stores...")
	operatorStore := stores.NewOperatorStore(database)
	catalogStore := stores.NewCatalogStore(database)
	idempotencyStore := stores.NewIdempotencyStore(database)
	ledgerStore := stores.NewLedgerStore(database)
	printSuccess("Stores initialized")

	printStep("7/8", "Initializing services...")
	metrics := monitoring.NewMetricsCollector()
	authService := services.NewAuthorizationService(
		limiter,
		operatorStore,
		catalogStore,
		idempotencyStore,
		ledgerStore,
		operatorStore,
		encryption,
	)
	janitor := services.NewIdempotencyJanitor(idempotencyStore, services.DefaultCleanupInterval)
	janitor.Start()
	defer janitor.Close()
	printSuccess("Services initialized (idempotency cleanup every 1h)")

	printStep("8/8", "Setting up HTTP server...")
	authorizeHandler := api.NewAuthorizeHandler(authService, metrics)

	healthChecks := map[string]api.Pinger{
		"database": db.NewPinger(database),
	}
	if redisCache != nil {
		healthChecks["redis"] = redisCache
	}
	healthHandler := api.NewHealthHandler(metrics, healthChecks)

	router := mux.NewRouter()
	router.Use(middleware.CorrelationMiddleware)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.HeadersMiddleware)
	router.Use(middleware.RecoveryMiddleware)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	v1.HandleFunc("/metrics", healthHandler.HandleMetrics).Methods("GET")
	v1.HandleFunc("/auth/game/authorize", authorizeHandler.HandleAuthorize).Methods("POST")

	server := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}
	printSuccess("HTTP server configured")

	fmt.Println()
	fmt.Printf("%s%s🎉 Playgate is ready!%s\n", colorGreen, colorBold, colorReset)
	fmt.Println()
	fmt.Printf("%s%sAPI Endpoints:%s\n", colorPurple, colorBold, colorReset)
	fmt.Printf("  %s•%s Health:    %shttp://localhost:%s/v1/health%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Printf("  %s•%s Metrics:   %shttp://localhost:%s/v1/metrics%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Printf("  %s•%s Authorize: %shttp://localhost:%s/v1/auth/game/authorize%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Println()
	fmt.Printf("%s%sEnvironment:%s %s%s%s\n", colorPurple, colorBold, colorReset, colorYellow, cfg.Environment, colorReset)
	fmt.Printf("%s%sDatabase:%s %s%s:%d%s\n", colorPurple, colorBold, colorReset, colorYellow, cfg.Database.Host, cfg.Database.Port, colorReset)
	fmt.Println()
	fmt.Printf("%s%sPress Ctrl+C to stop the server%s\n", colorYellow, colorBold, colorReset)
	fmt.Println()

	go func() {
		printInfo(fmt.Sprintf("Starting HTTP server on port %s...", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			printError(fmt.Sprintf("Server failed to start: %v", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println()
	printWarning("Shutting down Playgate server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		printError(fmt.Sprintf("Server forced to shutdown: %v", err))
		os.Exit(1)
	}

	printSuccess("Server exited cleanly")
}
