package server

import (
	"net/http"
	"strings"
	"time"

	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "civicaid/config"
	appcrypto "civicaid/crypto"
	"civicaid/handlers"
	"civicaid/metrics"
	"civicaid/middleware"
	"civicaid/services"
	websocketpkg "civicaid/websocket"
)

// SetupRoutes configures all API routes and middleware for the application
func SetupRoutes(app *fiber.App, db *pgxpool.Pool, rdb *redis.Client, crypto *appcrypto.CryptoService, config *appconfig.Config, hub *websocketpkg.Hub) {
	// Security middleware
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge: func() int {
			if config.Environment == "production" {
				return 31536000
			}
			return 0
		}(),
		HSTSPreloadEnabled: config.Environment == "production",
		ContentSecurityPolicy: "default-src 'self'; " +
			"script-src 'self' https://unpkg.com; " +
			"style-src 'self' 'unsafe-inline' https://unpkg.com; " +
			"img-src 'self' data:; " +
			"connect-src 'self' ws: wss:; " +
			"object-src 'none'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'",
		ReferrerPolicy: "strict-origin-when-cross-origin",
	}))

	// CORS configuration
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowedOrigins, ","),
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
	}))

	// Optional Prometheus metrics
	if appconfig.GetEnvAsBool("ENABLE_METRICS", false) {
		app.Use(metrics.PrometheusMiddleware())
		app.Get("/metrics", func(c *fiber.Ctx) error {
			req, err := http.NewRequestWithContext(c.Context(), http.MethodGet, "/metrics", nil)
			if err != nil {
				return c.Status(500).SendString("metrics unavailable")
			}
			promhttp.Handler().ServeHTTP(NewFiberResponseWriter(c), req)
			return nil
		})
	}

	// Initialize rate limiters
	rateLimits := middleware.NewRateLimitConfig(rdb)

	// Intake services shared by the handlers
	otpService := services.NewOTPService(rdb, crypto, services.LogOTPSender{}, services.OTPConfig{
		TTL:            config.OTPTTL,
		ResendCooldown: config.OTPResendCooldown,
		MaxAttempts:    config.MaxOTPAttempts,
		TokenTTL:       config.VerificationTokenTTL,
	})
	stationService := services.NewStationService(db)
	documentService := services.NewDocumentService(config.StorageDir)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, rdb, crypto, config)
	otpHandler := handlers.NewOTPHandler(otpService)
	uploadHandler := handlers.NewUploadHandler(config)
	submissionHandler := handlers.NewSubmissionHandler(db, crypto, otpService, stationService, documentService, uploadHandler, hub)
	stationHandler := handlers.NewStationHandler(stationService)
	reviewerHandler := handlers.NewReviewerHandler(db, crypto, hub)

	// API group
	api := app.Group("/api/v1")

	// Swagger documentation endpoints
	api.Get("/docs", swaggerUIHandler)
	api.Get("/docs/openapi.json", swaggerJSONHandler)

	// Phone verification (public) - Tier 1: strictest rate limiting
	api.Post("/otp/request", rateLimits.OTPRequestLimiter, otpHandler.RequestOTP)
	api.Post("/otp/verify", rateLimits.OTPVerifyLimiter, otpHandler.VerifyOTP)

	// Citizen submissions (public, gated by verification tokens)
	api.Post("/complaints", rateLimits.SubmissionLimiter, submissionHandler.SubmitComplaint)
	api.Post("/rti", rateLimits.SubmissionLimiter, submissionHandler.SubmitRTI)
	api.Post("/traffic-violations", rateLimits.SubmissionLimiter, submissionHandler.SubmitTrafficViolation)
	api.Post("/uploads", rateLimits.UploadLimiter, uploadHandler.UploadPhoto)

	// Status and documents by reference (public; the reference is the capability)
	api.Get("/status/:reference", rateLimits.StatusLimiter, submissionHandler.GetStatus)
	api.Get("/documents/:reference", rateLimits.StatusLimiter, submissionHandler.DownloadDocument)

	// Police station lookup
	api.Get("/stations/nearest", rateLimits.LightweightLimiter, stationHandler.NearestStations)

	// Reviewer authentication (public)
	api.Post("/reviewer/login", rateLimits.AuthLimiter, authHandler.Login)
	api.Post("/reviewer/login/mfa", rateLimits.MFAVerifyLimiter, authHandler.VerifyMFALogin)

	// Reviewer routes (require JWT + live Redis session); every request is audited
	reviewer := api.Group("/reviewer",
		middleware.JWTMiddleware(config.JWTSecret, rdb),
		middleware.AuditMiddleware(db, crypto),
	)

	reviewer.Post("/logout", rateLimits.LightweightLimiter, authHandler.Logout)

	reviewer.Get("/mfa/status", rateLimits.LightweightLimiter, authHandler.GetMFAStatus)
	reviewer.Post("/mfa/begin", rateLimits.AuthLimiter, authHandler.BeginMFASetup)
	reviewer.Post("/mfa/enable", rateLimits.AuthLimiter, authHandler.EnableMFA)
	reviewer.Post("/mfa/disable", rateLimits.AuthLimiter, authHandler.DisableMFA)

	// Review queue is restricted to reviewer accounts flagged is_admin
	requireReviewer := middleware.RequireAdmin(db)
	reviewer.Get("/submissions", rateLimits.LightweightLimiter, requireReviewer, reviewerHandler.ListSubmissions)
	reviewer.Get("/submissions/:reference", rateLimits.LightweightLimiter, requireReviewer, reviewerHandler.GetSubmission)
	reviewer.Patch("/submissions/:reference/status", rateLimits.SubmissionLimiter, requireReviewer, reviewerHandler.UpdateStatus)

	// Built frontend assets, when a bundle is deployed alongside the API
	if config.StaticDir != "" {
		app.Static("/", config.StaticDir, fiber.Static{
			Compress: true,
			MaxAge:   3600,
		})
	}

	// WebSocket feed of incoming submissions for the review console
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	jwtSecret := config.JWTSecret
	app.Get("/ws", fiberws.New(func(conn *fiberws.Conn) {
		websocketpkg.HandleWebSocket(conn, hub, db, jwtSecret)
	}))

	// Periodically export pool gauges while the app serves
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stat := db.Stat()
			metrics.UpdateDatabaseMetrics(int(stat.AcquiredConns()), int(stat.IdleConns()))
			metrics.UpdateRedisConnections(int(rdb.PoolStats().TotalConns))
		}
	}()
}
