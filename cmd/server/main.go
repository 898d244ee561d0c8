package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rutaviva/booking-backend/internal/config"
	"github.com/rutaviva/booking-backend/internal/database"
	"github.com/rutaviva/booking-backend/internal/handlers"
	"github.com/rutaviva/booking-backend/internal/middleware"
	"github.com/rutaviva/booking-backend/internal/services"
	"github.com/rutaviva/booking-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting RutaViva Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories need the underlying sqlx handle
	pgDB, ok := db.(*database.PostgresDB)
	if !ok {
		logger.Fatal("Failed to cast database connection to PostgresDB")
	}
	sqlxDB := pgDB.DB

	// Optional Redis cart-hold cache
	redisClient := config.NewRedisClient(cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize repositories
	tripDateRepo := database.NewTripDateRepository(sqlxDB)
	purchaseRepo := database.NewPurchaseRepository(sqlxDB)
	reservationRepo := database.NewReservationRepository(sqlxDB)
	paymentRepo := database.NewPaymentRepository(sqlxDB)
	auditRepo := database.NewBookingAuditRepository(sqlxDB)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Hour)
	holdCache := services.NewHoldCacheService(redisClient, cfg.Redis.HoldTTL, logger)
	notifier := services.NewNotifierService(cfg.Queue.URL, cfg.Queue.QueueName, logger)
	auditService := services.NewAuditService(auditRepo, logger)
	inventoryService := services.NewInventoryService(tripDateRepo, reservationRepo, holdCache, logger)
	bookingService := services.NewBookingService(
		sqlxDB, tripDateRepo, purchaseRepo, reservationRepo,
		inventoryService, holdCache, notifier, logger,
	)
	gatewayService := services.NewGatewayService(cfg.Payment, logger)
	settlementService := services.NewSettlementService(
		sqlxDB, purchaseRepo, reservationRepo, paymentRepo,
		inventoryService, gatewayService, notifier, logger,
	)
	reconciliationService := services.NewReconciliationService(sqlxDB, tripDateRepo, reservationRepo, logger)
	voucherService := services.NewVoucherService()

	// Scheduled reconciliation
	var cronService *services.CronService
	if cfg.Reconciliation.Enabled {
		cronService = services.NewCronService(reconciliationService, cfg.Reconciliation.Schedule, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	} else {
		logger.Info("Scheduled reconciliation disabled")
	}

	logger.Info("Services initialized")

	// Initialize handlers
	reservationHandler := handlers.NewReservationHandler(bookingService, voucherService, auditService, logger)
	tripDateHandler := handlers.NewTripDateHandler(inventoryService, holdCache, logger)
	paymentHandler := handlers.NewPaymentHandler(settlementService, gatewayService, auditService, logger)
	adminHandler := handlers.NewAdminHandler(bookingService, reconciliationService, auditService, auditRepo, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public availability reads
		v1.GET("/trip-dates/:id/availability", tripDateHandler.Availability)
		v1.GET("/trips/:id/dates", tripDateHandler.ListForTrip)

		// Payment gateway webhook (authenticated by signature, not JWT)
		v1.POST("/webhooks/payments", paymentHandler.Webhook)

		// Reservation routes (protected)
		reservations := v1.Group("/reservations")
		reservations.Use(middleware.AuthMiddleware(jwtService))
		{
			reservations.POST("", reservationHandler.Create)
			reservations.GET("", reservationHandler.List)
			reservations.GET("/:id", reservationHandler.Get)
			reservations.POST("/:id/cancel", reservationHandler.Cancel)
			reservations.GET("/:id/voucher", reservationHandler.Voucher)
		}

		// Cart hold routes (protected)
		holds := v1.Group("/trip-dates/:id/holds")
		holds.Use(middleware.AuthMiddleware(jwtService))
		{
			holds.POST("", tripDateHandler.PlaceHold)
			holds.DELETE("", tripDateHandler.ReleaseHold)
		}

		// Payment routes (protected)
		purchases := v1.Group("/purchases")
		purchases.Use(middleware.AuthMiddleware(jwtService))
		{
			purchases.POST("/:id/payments", paymentHandler.Process)
			purchases.GET("/:id/payments", paymentHandler.ListForPurchase)
		}

		// Admin routes (admin role required)
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService))
		admin.Use(middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.PUT("/reservations/:id/status", adminHandler.SetReservationStatus)
			admin.GET("/trip-dates/:id/diagnose", adminHandler.DiagnoseTripDate)
			admin.POST("/reconcile", adminHandler.Reconcile)
			admin.GET("/audits/:entityType/:id", adminHandler.AuditTrail)
		}

		// Machine-to-machine reconciliation trigger for ops tooling
		ops := v1.Group("/ops")
		ops.Use(middleware.APIKeyMiddleware(cfg.Admin.APIKeyHash))
		{
			ops.POST("/reconcile", adminHandler.Reconcile)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cronService != nil {
		cronService.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if user := middleware.GetUserContext(c); user != nil {
			fields["user_id"] = user.UserID
		}

		entry := logger.WithFields(fields)
		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).Error("Request failed with errors")
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
