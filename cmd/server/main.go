package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	billingapp "github.com/rentledger/backend/internal/application/billing"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/rentledger/backend/internal/infrastructure/auth"
	"github.com/rentledger/backend/internal/infrastructure/cache"
	"github.com/rentledger/backend/internal/infrastructure/config"
	"github.com/rentledger/backend/internal/infrastructure/event"
	"github.com/rentledger/backend/internal/infrastructure/gateway"
	"github.com/rentledger/backend/internal/infrastructure/logger"
	"github.com/rentledger/backend/internal/infrastructure/persistence"
	"github.com/rentledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/rentledger/backend/internal/interfaces/http/handler"
	"github.com/rentledger/backend/internal/interfaces/http/middleware"
	"github.com/rentledger/backend/internal/interfaces/http/router"
)

//	@title			RentLedger Backend API
//	@version		1.0
//	@description	Rent billing ledger and payment reconciliation backend

//	@contact.name	API Support
//	@contact.url	https://github.com/rentledger/backend

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

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
		_ = logger.Sync(log)
	}()

	log.Info("Starting RentLedger Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Automatic tenant filtering: queries carrying a tenant in their context
	// get a tenant_id condition unless one is already present
	tenant.EnableAutoTenantFilter(db.DB, false)

	// Initialize repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	periodRepo := persistence.NewGormRentPeriodRepository(db.DB)
	attemptRepo := persistence.NewGormPaymentAttemptRepository(db.DB)

	// Initialize event bus
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Webhook event deduplication store (Redis, in-memory fallback)
	idempotencyFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := idempotencyFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Payment gateway adapter. When no credentials are configured the
	// gateway stays nil and online payment endpoints report a server error.
	var paymentGateway billing.PaymentGateway
	if cfg.Gateway.Enabled() {
		gatewayConfig, err := gateway.NewRazorpayConfigBuilder().
			SetKeyID(cfg.Gateway.KeyID).
			SetKeySecret(cfg.Gateway.KeySecret).
			SetWebhookSecret(cfg.Gateway.WebhookSecret).
			SetBaseURL(cfg.Gateway.BaseURL).
			Build()
		if err != nil {
			log.Fatal("Invalid gateway configuration", zap.Error(err))
		}
		adapter, err := gateway.NewRazorpayAdapter(gatewayConfig)
		if err != nil {
			log.Fatal("Failed to create gateway adapter", zap.Error(err))
		}
		paymentGateway = adapter
		log.Info("Payment gateway configured", zap.String("key_id", cfg.Gateway.KeyID))
	} else {
		log.Warn("Payment gateway not configured, online payments disabled")
	}

	// Charge policy from billing config
	chargePolicy := billing.DefaultChargePolicy()
	if cfg.Billing.DueDay > 0 {
		chargePolicy.DueDay = cfg.Billing.DueDay
	}
	if cfg.Billing.GraceLastDay > 0 {
		chargePolicy.GraceLastDay = cfg.Billing.GraceLastDay
	}
	if cfg.Billing.PerDiemLateFee != "" {
		perDiem, err := decimal.NewFromString(cfg.Billing.PerDiemLateFee)
		if err != nil {
			log.Fatal("Invalid per-diem late fee", zap.String("value", cfg.Billing.PerDiemLateFee), zap.Error(err))
		}
		chargePolicy.PerDiemLateFee = valueobject.NewMoneyINR(perDiem)
	}

	// Initialize application services
	ledgerService := billingapp.NewLedgerService(billingapp.LedgerServiceConfig{
		InvoiceRepo:    invoiceRepo,
		PeriodRepo:     periodRepo,
		AttemptRepo:    attemptRepo,
		EventPublisher: eventBus,
		Logger:         log,
	})
	invoiceService := billingapp.NewInvoiceService(billingapp.InvoiceServiceConfig{
		InvoiceRepo: invoiceRepo,
		Ledger:      ledgerService,
		Logger:      log,
	})
	periodService := billingapp.NewPeriodService(billingapp.PeriodServiceConfig{
		PeriodRepo: periodRepo,
		Ledger:     ledgerService,
		Policy:     chargePolicy,
		Logger:     log,
	})
	orderService := billingapp.NewOrderService(billingapp.OrderServiceConfig{
		InvoiceRepo: invoiceRepo,
		PeriodRepo:  periodRepo,
		AttemptRepo: attemptRepo,
		Ledger:      ledgerService,
		Gateway:     paymentGateway,
		Policy:      chargePolicy,
		Logger:      log,
	})
	reconciliationService := billingapp.NewReconciliationService(billingapp.ReconciliationServiceConfig{
		AttemptRepo:    attemptRepo,
		PeriodRepo:     periodRepo,
		Ledger:         ledgerService,
		EventPublisher: eventBus,
		Logger:         log,
	})
	verificationService := billingapp.NewVerificationService(billingapp.VerificationServiceConfig{
		Gateway:        paymentGateway,
		Reconciliation: reconciliationService,
		AttemptRepo:    attemptRepo,
		Logger:         log,
	})
	webhookService := billingapp.NewWebhookService(billingapp.WebhookServiceConfig{
		Gateway:          paymentGateway,
		Reconciliation:   reconciliationService,
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.Gateway.WebhookDedupTTL,
		Logger:           log,
	})

	// Settlement side effects run off the event bus, decoupled from the
	// reconciliation path. Receipt rendering and payer notification are
	// collaborator ports; deployments plug in concrete implementations.
	settlementEffects := billingapp.NewSettlementEffectsHandler(billingapp.SettlementEffectsConfig{
		AttemptRepo: attemptRepo,
		Receipts:    nil,
		Notifier:    nil,
		Logger:      log,
	})
	eventBus.Subscribe(settlementEffects)
	log.Info("Event handlers registered",
		zap.Strings("settlement_effect_events", settlementEffects.EventTypes()),
	)

	// JWT service for authenticating API routes
	jwtService := auth.NewJWTService(cfg.JWT)

	// Token revocation store shares the Redis settings with the
	// idempotency store; a Redis outage at boot degrades to an
	// in-process blacklist.
	var tokenBlacklist auth.TokenBlacklist
	redisBlacklist, err := auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable for token blacklist, falling back to in-memory store", zap.Error(err))
		tokenBlacklist = auth.NewInMemoryTokenBlacklist()
	} else {
		defer func() {
			if err := redisBlacklist.Close(); err != nil {
				log.Error("Error closing token blacklist", zap.Error(err))
			}
		}()
		tokenBlacklist = redisBlacklist
	}

	// Initialize HTTP handlers
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	rentPeriodHandler := handler.NewRentPeriodHandler(periodService)
	paymentHandler := handler.NewPaymentHandler(orderService, verificationService, reconciliationService)
	webhookHandler := handler.NewWebhookHandler(webhookService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Gateway webhook endpoint (no authentication; signature-verified)
	engine.POST("/api/v1/payments/webhooks/gateway", webhookHandler.HandleGatewayWebhook)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		SkipPathPrefixes: []string{
			"/api/v1/payments/webhooks",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Tenant context rides on JWT claims, with an X-Tenant-ID header
	// fallback for development setups
	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.SkipPaths = []string{
		"/api/v1/ping",
		"/api/v1/system",
		"/api/v1/payments/webhooks",
	}
	tenantConfig.Logger = log
	r.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))

	// Billing domain (invoices, rent periods)
	billingRoutes := router.NewDomainGroup("billing", "/billing")
	billingRoutes.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "billing service ready"})
	})

	// Invoice routes
	billingRoutes.POST("/invoices", invoiceHandler.CreateInvoice)
	billingRoutes.GET("/invoices", invoiceHandler.ListInvoices)
	billingRoutes.GET("/invoices/:id", invoiceHandler.GetInvoice)

	// Rent period routes
	billingRoutes.POST("/rent-periods", rentPeriodHandler.OpenPeriod)
	billingRoutes.POST("/rent-periods/first", rentPeriodHandler.OpenFirstPeriod)
	billingRoutes.GET("/rent-periods", rentPeriodHandler.ListPeriods)
	billingRoutes.GET("/rent-periods/:id", rentPeriodHandler.GetPeriod)
	billingRoutes.GET("/rent-periods/:id/late-fee", rentPeriodHandler.QuoteLateFee)

	// Payment domain (orders, verification, manual entries)
	paymentRoutes := router.NewDomainGroup("payments", "/payments")
	paymentRoutes.POST("/orders", paymentHandler.CreateOrder)
	paymentRoutes.POST("/orders/verify", paymentHandler.VerifyCheckout)
	paymentRoutes.GET("/orders/:orderId/poll", paymentHandler.PollOrder)
	paymentRoutes.POST("/manual", paymentHandler.RecordManualPayment)

	// Register all domain groups
	r.Register(billingRoutes).
		Register(paymentRoutes)

	// Register system routes with swagger-documented handlers
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
