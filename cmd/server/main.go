package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	reconciliationapp "github.com/stayledger/backend/internal/application/reconciliation"
	revenueapp "github.com/stayledger/backend/internal/application/revenue"
	statementapp "github.com/stayledger/backend/internal/application/statement"
	"github.com/stayledger/backend/internal/domain/revenue"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
	"github.com/stayledger/backend/internal/infrastructure/cache"
	"github.com/stayledger/backend/internal/infrastructure/config"
	"github.com/stayledger/backend/internal/infrastructure/errreport"
	"github.com/stayledger/backend/internal/infrastructure/event"
	"github.com/stayledger/backend/internal/infrastructure/export"
	"github.com/stayledger/backend/internal/infrastructure/logger"
	"github.com/stayledger/backend/internal/infrastructure/metrics"
	"github.com/stayledger/backend/internal/infrastructure/persistence"
	"github.com/stayledger/backend/internal/infrastructure/storage"
	"github.com/stayledger/backend/internal/interfaces/http/handler"
	"github.com/stayledger/backend/internal/interfaces/http/middleware"
	"github.com/stayledger/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting StayLedger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("currency", cfg.Engine.Currency),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log, cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Metrics.Enabled {
		sqlDB, err := db.DB.DB()
		if err != nil {
			log.Fatal("Failed to get sql.DB for metrics", zap.Error(err))
		}
		metrics.Init(nil, sqlDB)
	}

	// Single-writer guard for statement locks
	guard, err := cache.NewLockGuardFactory(cfg.Redis, cache.WithLogger(log)).CreateGuard()
	if err != nil {
		log.Fatal("Failed to create lock guard", zap.Error(err))
	}
	defer func() {
		if c, ok := guard.(io.Closer); ok {
			_ = c.Close()
		}
	}()

	eventBus := event.NewInMemoryEventBus(log)
	if cfg.Engine.ArchiveLockedStatements {
		archive, err := storage.NewS3Archive(context.Background(), &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create statement archive", zap.Error(err))
		}
		ensureCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := archive.EnsureBucket(ensureCtx); err != nil {
			cancel()
			log.Fatal("Failed to prepare archive bucket", zap.Error(err), zap.String("bucket", archive.Bucket()))
		}
		cancel()

		archiveHandler := statementapp.NewArchiveHandler(archive, log)
		eventBus.Subscribe(archiveHandler)
		log.Info("Locked statements are archived",
			zap.String("bucket", archive.Bucket()),
			zap.Strings("events", archiveHandler.EventTypes()),
		)
	}
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	reporter := errreport.NewZapReporter(log)
	currency := valueobject.Currency(cfg.Engine.Currency)

	// Initialize application services
	revenueService := revenueapp.NewService(
		persistence.NewGormReservationSource(db.DB),
		persistence.NewGormBusinessModelSource(db.DB),
		revenueapp.WithDecomposer(revenue.NewDecomposer(
			revenue.WithCurrency(currency),
			revenue.WithDiscountBeforeTax(cfg.Engine.DiscountBeforeTax),
		)),
		revenueapp.WithMaxParallel(cfg.Engine.MaxParallel),
		revenueapp.WithReporter(reporter),
		revenueapp.WithLogger(log.Named("revenue")),
	)
	statementService := statementapp.NewService(
		revenueService,
		persistence.NewGormExpenseSource(db.DB),
		persistence.NewGormStatementLockRepository(db.DB),
		statementapp.WithCurrency(currency),
		statementapp.WithLockGuard(guard),
		statementapp.WithLockTTL(cfg.Engine.LockGuardTTL),
		statementapp.WithPublisher(eventBus),
		statementapp.WithBankTransactions(persistence.NewGormBankTransactionSource(db.DB)),
		statementapp.WithExporters(export.NewXLSX(), export.NewPDF()),
		statementapp.WithReporter(reporter),
		statementapp.WithLogger(log.Named("statement")),
	)
	reconciliationService := reconciliationapp.NewService(statementService, currency, log.Named("reconciliation"))

	revenueHandler := handler.NewRevenueHandler(revenueService)
	statementHandler := handler.NewStatementHandler(statementService)
	reconciliationHandler := handler.NewReconciliationHandler(reconciliationService, currency)

	checkers := []handler.HealthChecker{db}
	if rg, ok := guard.(*cache.RedisLockGuard); ok {
		checkers = append(checkers, redisChecker{client: rg.GetClient()})
	}
	healthHandler := handler.NewHealthHandler(checkers...)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order: request ID, panic recovery, access log, metrics,
	// CORS, body limit
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Metrics.Enabled {
		engine.Use(middleware.Metrics())
	}
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  cfg.HTTP.CORSAllowOrigins,
		AllowMethods:  cfg.HTTP.CORSAllowMethods,
		AllowHeaders:  cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders: []string{middleware.RequestIDHeader, "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health and metrics stay outside API versioning
	engine.GET("/health", healthHandler.Health)
	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	revenueRoutes := handler.RevenueRoutes(revenueHandler)
	statementRoutes := handler.StatementRoutes(statementHandler, reconciliationHandler)
	reconciliationRoutes := handler.ReconciliationRoutes(reconciliationHandler)
	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(revenueRoutes, statementRoutes, reconciliationRoutes).
		Setup()

	for _, g := range []*router.DomainGroup{revenueRoutes, statementRoutes, reconciliationRoutes} {
		for _, r := range g.Routes() {
			log.Debug("Route registered",
				zap.String("group", r.Group),
				zap.String("method", r.Method),
				zap.String("path", "/api/v1"+r.Path),
			)
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// In-flight archive uploads finish before the process exits
	if err := eventBus.Stop(ctx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// redisChecker reports whether the lock guard's Redis answers
type redisChecker struct {
	client *redis.Client
}

func (r redisChecker) Name() string { return "redis" }

func (r redisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
