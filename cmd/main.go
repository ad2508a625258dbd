package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"

	"chainvoice/internal/caching"
	"chainvoice/internal/common"
	"chainvoice/internal/handlers"
	"chainvoice/internal/jobs/background"
	"chainvoice/internal/middleware"
	"chainvoice/internal/repositories"
	"chainvoice/internal/services"
	"chainvoice/pkg/database"
)

const version = "1.0.0"

func main() {
	// Database connection
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := database.NewPool(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.ClosePool(pool)

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = random.String(32) // Generate random secret for development
		log.Printf("WARNING: Using generated JWT secret")
	}

	// Redis configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if redisDBStr := os.Getenv("REDIS_DB"); redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	// MinIO configuration
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	if minioAccessKey == "" {
		minioAccessKey = "minioadmin"
	}
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	if minioSecretKey == "" {
		minioSecretKey = "minioadmin"
	}
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	minioSvc, err := services.NewMinioService(minioEndpoint, minioAccessKey, minioSecretKey, useSSL)
	if err != nil {
		log.Fatalf("Failed to initialize MinIO service: %v", err)
	}
	for _, bucket := range []string{"invoices", "payment-proofs"} {
		if err := minioSvc.EnsureBucketExists(context.Background(), bucket); err != nil {
			log.Printf("WARNING: Failed to ensure bucket %q exists: %v", bucket, err)
		}
	}

	// Create repositories
	invoiceRepo := repositories.NewInvoiceRepository(pool)
	workerRepo := repositories.NewWorkerRepository(pool)
	auditLogRepo := repositories.NewAuditLogsRepository(pool)

	// Create cache service
	cacheSvc := caching.NewRedisCacheService(redisAddr, redisPassword, redisDB)

	// Create services
	notificationSvc := services.NewNotificationService(redisAddr, redisPassword, redisDB)
	recurringSvc := services.NewRecurringService(invoiceRepo, auditLogRepo, cacheSvc, notificationSvc)
	ledgerSvc := services.NewLedgerService(invoiceRepo, auditLogRepo, cacheSvc, notificationSvc, recurringSvc)
	invoiceSvc := services.NewInvoiceService(invoiceRepo, auditLogRepo, cacheSvc, ledgerSvc)
	workerSvc := services.NewWorkerService(workerRepo)
	auditLogsSvc := services.NewAuditLogsService(auditLogRepo)

	// Create handlers
	invoiceHandlers := handlers.NewInvoiceHandlers(invoiceSvc, minioSvc)
	paymentHandlers := handlers.NewPaymentHandlers(ledgerSvc, minioSvc)
	recurringHandlers := handlers.NewRecurringHandlers(recurringSvc)
	workerHandlers := handlers.NewWorkerHandlers(workerSvc)
	auditLogsHandlers := handlers.NewAuditLogsHandlers(auditLogsSvc)
	notificationHandlers := handlers.NewNotificationHandlers(notificationSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc)

	// Background jobs
	scheduler := background.NewJobScheduler(recurringSvc, ledgerSvc, invoiceRepo)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start job scheduler: %v", err)
	}
	defer scheduler.Stop()

	// JWT middleware configuration
	jwtConfig := echojwt.Config{
		SigningKey: []byte(jwtSecret),
		SuccessHandler: func(c echo.Context) {
			// Copy the wallet address from the verified token into the
			// request context for the handlers
			wallet, err := middleware.WalletFromToken(c)
			if err != nil {
				return
			}
			ctx := context.WithValue(c.Request().Context(), common.CreatorWalletKey, wallet)
			c.SetRequest(c.Request().WithContext(ctx))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(401, "Invalid token")
		},
	}

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())
	e.Use(middleware.RateLimitMiddleware(cacheSvc, 300, time.Minute))

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/metrics", healthHandlers.GetMetrics)

	// API routes
	v1 := e.Group("/v1")

	// Payer-facing routes: recording a payment or uploading a proof does not
	// require a creator token
	v1.POST("/invoices/:id/payments", paymentHandlers.RecordPayment)
	v1.POST("/invoices/:id/payment-proof", paymentHandlers.UploadPaymentProof)

	// Protected routes (require JWT)
	protected := v1.Group("")
	protected.Use(echojwt.WithConfig(jwtConfig))

	// Invoice routes
	protected.GET("/invoices", invoiceHandlers.GetInvoices)
	protected.POST("/invoices", invoiceHandlers.CreateInvoice)
	protected.GET("/invoices/:id", invoiceHandlers.GetInvoiceByID)
	protected.PUT("/invoices/:id", invoiceHandlers.UpdateInvoice)
	protected.POST("/invoices/:id/reject", invoiceHandlers.RejectInvoice)
	protected.DELETE("/invoices/:id", invoiceHandlers.DeleteInvoice)
	protected.POST("/invoices/:id/generate-pdf", invoiceHandlers.GenerateInvoicePDF)

	// Payment ledger routes
	protected.POST("/invoices/:id/payments/:recordId/verify", paymentHandlers.VerifyBankPayment)
	protected.GET("/invoices/:id/payment-proof", paymentHandlers.GetPaymentProofURL)

	// Recurring series routes
	protected.POST("/recurring/generate", recurringHandlers.GenerateDueRecurring)
	protected.POST("/invoices/:id/stop-recurring", recurringHandlers.StopRecurring)
	protected.GET("/invoices/:id/chain", recurringHandlers.GetInvoiceChain)

	// Worker contact routes
	protected.GET("/workers", workerHandlers.GetWorkers)
	protected.POST("/workers", workerHandlers.CreateWorker)
	protected.GET("/workers/:id", workerHandlers.GetWorkerByID)
	protected.PUT("/workers/:id", workerHandlers.UpdateWorker)
	protected.POST("/workers/:id/deactivate", workerHandlers.DeactivateWorker)
	protected.DELETE("/workers/:id", workerHandlers.DeleteWorker)

	// Audit trail routes
	protected.GET("/audit-logs", auditLogsHandlers.ListAuditLogs)
	protected.GET("/invoices/:id/audit-logs", auditLogsHandlers.ListInvoiceAuditLogs)

	// Notification configuration routes use the hand-rolled JWT middleware
	notifications := v1.Group("/notifications")
	notifications.Use(middleware.JWTMiddleware(jwtSecret))
	notifications.POST("/templates", notificationHandlers.CreateTemplate)
	notifications.GET("/templates/:eventType", notificationHandlers.GetTemplate)
	notifications.DELETE("/templates/:eventType", notificationHandlers.DeleteTemplate)
	notifications.POST("/webhooks", notificationHandlers.CreateWebhookSubscription)
	notifications.GET("/webhooks", notificationHandlers.ListWebhookSubscriptions)
	notifications.DELETE("/webhooks/:id", notificationHandlers.DeleteWebhookSubscription)

	// Start server
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("Invalid port %s: %v", portStr, err)
	}

	log.Printf("Chainvoice server v%s starting on port %d", version, port)

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", port)))
}
