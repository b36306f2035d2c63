package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-payments/config"
	httpHandler "storefront-payments/internal/adapter/http/handler"
	"storefront-payments/internal/adapter/storage/memory"
	pgStorage "storefront-payments/internal/adapter/storage/postgres"
	redisStorage "storefront-payments/internal/adapter/storage/redis"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/internal/service"
	"storefront-payments/pkg/logger"

	"github.com/rs/zerolog"
)

// storage is the set of repositories selected by database.driver.
type storage struct {
	orders     ports.OrderRepository
	products   ports.ProductRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
	health     []ports.HealthChecker
	close      func()
}

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("SFP_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("db_driver", cfg.Database.Driver).
		Str("momo_partner", cfg.MoMo.PartnerCode).
		Str("momo_secret", logger.MaskSecret(cfg.MoMo.SecretKey)).
		Msg("Starting storefront payments")

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize Redis stores
	orderLock := redisStorage.NewOrderLock(rdb)
	callbackCache := redisStorage.NewCallbackCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(store.audit, log)

	gateway := service.NewMoMoGatewayClient(cfg.MoMo, sigSvc, &http.Client{}, log)
	verifier := service.NewMoMoCallbackVerifier(cfg.MoMo, sigSvc, log)
	reconciler := service.NewOrderReconciler(
		store.orders,
		store.products,
		store.transactor,
		orderLock,
		callbackCache,
		cfg.Lock,
		log,
	)

	// Initialize business services
	orderSvc := service.NewOrderService(
		store.orders,
		store.products,
		store.transactor,
		reconciler,
		auditSvc,
		cfg.Checkout,
		log,
	)
	paymentSvc := service.NewPaymentService(
		store.orders,
		gateway,
		verifier,
		reconciler,
		auditSvc,
		cfg.MoMo,
		cfg.Checkout,
		log,
	)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PaymentSvc:     paymentSvc,
		OrderSvc:       orderSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: append(store.health, redisStorage.NewHealthCheck(rdb)),
		AuditSvc:       auditSvc,
		PublicURL:      cfg.Server.PublicURL,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := auditSvc.Flush(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Audit entries still pending at shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	switch cfg.Database.Driver {
	case "memory":
		mem := memory.New()
		mem.SeedProducts(demoProducts()...)
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		return &storage{
			orders:     mem.Orders(),
			products:   mem.Products(),
			audit:      mem.Audit(),
			transactor: mem.Transactor(),
			close:      func() {},
		}, nil
	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("PostgreSQL connected")
		return &storage{
			orders:     pgStorage.NewOrderRepo(pool),
			products:   pgStorage.NewProductRepo(pool),
			audit:      pgStorage.NewAuditRepository(pool),
			transactor: pgStorage.NewTransactor(pool, cfg.Lock.WaitTimeout),
			health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			close:      pool.Close,
		}, nil
	}
}

func demoProducts() []domain.Product {
	now := time.Now().UTC()
	return []domain.Product{
		{ProductID: "SKU-MUG-01", Title: "Ceramic mug", Price: 120000, Stock: 50, Status: domain.ProductStatusActive, CreatedAt: now, UpdatedAt: now},
		{ProductID: "SKU-TOTE-01", Title: "Canvas tote bag", Price: 185000, Stock: 30, Status: domain.ProductStatusActive, CreatedAt: now, UpdatedAt: now},
		{ProductID: "SKU-TEE-01", Title: "Cotton t-shirt", Price: 250000, Stock: 20, Status: domain.ProductStatusActive, CreatedAt: now, UpdatedAt: now},
	}
}
