package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/JioJio777/red-packet-fullstack/internal/cache"
	"github.com/JioJio777/red-packet-fullstack/internal/config"
	"github.com/JioJio777/red-packet-fullstack/internal/handler"
	"github.com/JioJio777/red-packet-fullstack/internal/ledger"
	"github.com/JioJio777/red-packet-fullstack/internal/repository"
	"github.com/JioJio777/red-packet-fullstack/internal/service"
	"github.com/JioJio777/red-packet-fullstack/internal/sweeper"
	"github.com/JioJio777/red-packet-fullstack/internal/validator"
	"github.com/JioJio777/red-packet-fullstack/pkg/database"
	"github.com/JioJio777/red-packet-fullstack/pkg/redis"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to apply database schema")
		}
	}

	// Redis is optional; without it the sweeper lock is process-local.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	}

	svc := newService(cfg, pool)

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Red Packet Service",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator with the custom user id rule
	validate := validator.New()

	packetHandler := handler.NewRedPacketHandler(svc, validate)
	claimHandler := handler.NewClaimHandler(svc)
	userHandler := handler.NewUserHandler(svc, validate)

	// Health handler
	healthHandler := handler.NewHealthHandler(pool)
	if rdb != nil {
		healthHandler.WithDependency("redis", rdb)
	}
	app.Get("/health", healthHandler.Check)

	known := cache.NewKnownUsers(cfg.Account.KnownTTL, cfg.Account.KnownTTL)

	// Red packet routes
	packets := app.Group("/api/red-packets", handler.RequireUser(validate), handler.ProvisionAccount(svc, known))
	packets.Post("", packetHandler.Send)
	packets.Post("/:id/claim", claimHandler.Claim)
	packets.Get("/:id", packetHandler.Detail)
	packets.Get("/:id/records", packetHandler.Records)

	// Per-user routes
	user := app.Group("/api/user", handler.RequireUser(validate), handler.ProvisionAccount(svc, known))
	user.Get("/profile", userHandler.Profile)
	user.Get("/red-packets/sent", userHandler.Sent)
	user.Get("/red-packets/received", userHandler.Received)

	// Expiry sweeper
	var sw *sweeper.Sweeper
	if cfg.Sweeper.Enabled {
		var locker sweeper.Locker = sweeper.NewLocalLocker()
		if rdb != nil {
			locker = sweeper.NewRedisLocker(rdb)
		}
		sw = sweeper.New(svc, locker, sweeper.Config{
			Interval:    cfg.Sweeper.Interval,
			BatchSize:   cfg.Sweeper.BatchSize,
			SettleGrace: cfg.Sweeper.SettleGrace,
			LockTTL:     cfg.Redis.LockTTL,
		})
		if err := sw.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start sweeper")
		}
	}

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	if sw != nil {
		sw.Stop()
		log.Info().Msg("sweeper stopped")
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// newService wires the engine to its repositories and the configured ledger.
func newService(cfg *config.Config, pool *pgxpool.Pool) *service.RedPacketService {
	opts := []service.Option{
		service.WithTTL(cfg.Packet.TTL),
		service.WithTxRetries(cfg.DB.TxRetries),
		service.WithPacketCache(cache.NewPacketCache(cfg.Packet.CacheTTL, cfg.Packet.CacheCleanup)),
	}

	var credits ledger.Service
	switch cfg.Ledger.Mode {
	case config.LedgerModeHTTP:
		client := ledger.NewHTTPClient(cfg.Ledger.BaseURL, cfg.Ledger.Timeout)
		credits = client
		opts = append(opts,
			service.WithExternalDebiter(client),
			service.WithAccounts(client, cfg.Account.InitialBalance),
		)
	default:
		pg := ledger.NewPostgres(pool)
		credits = pg
		opts = append(opts,
			service.WithDebiter(pg),
			service.WithAccounts(pg, cfg.Account.InitialBalance),
		)
	}
	log.Info().Str("mode", cfg.Ledger.Mode).Msg("ledger configured")

	settler := ledger.NewSettler(credits, cfg.Ledger.RetryInterval, cfg.Ledger.RetryMaxElapsed)

	return service.NewRedPacketService(
		pool,
		repository.NewPacketRepository(pool),
		repository.NewClaimRepository(pool),
		settler,
		opts...,
	)
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
