package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"civicaid/utils"
)

// RateLimitConfig holds all rate limiter instances
type RateLimitConfig struct {
	OTPRequestLimiter  fiber.Handler
	OTPVerifyLimiter   fiber.Handler
	SubmissionLimiter  fiber.Handler
	UploadLimiter      fiber.Handler
	AuthLimiter        fiber.Handler
	MFAVerifyLimiter   fiber.Handler
	StatusLimiter      fiber.Handler
	LightweightLimiter fiber.Handler
}

// NewRateLimitConfig creates all rate limiters using Redis storage
func NewRateLimitConfig(rdb *redis.Client) *RateLimitConfig {
	// Redis-backed storage keeps the limits shared across replicas
	storage := redisstorage.NewFromConnection(rdb)

	// Tier 1: OTP endpoints (strictest, SMS costs money and codes are guessable)
	otpRequestLimiter := limiter.New(limiter.Config{
		Max:        5,
		Expiration: 15 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many OTP requests. Please try again later.",
			})
		},
	})

	otpVerifyLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 5 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many OTP verification attempts. Please try again later.",
			})
		},
	})

	// Tier 2: Submissions (each one writes PII and renders a document)
	submissionLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 15 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many submissions. Please try again later.",
			})
		},
	})

	uploadLimiter := limiter.New(limiter.Config{
		Max:        20,
		Expiration: 5 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many upload requests. Please try again later.",
			})
		},
	})

	// Tier 3: Reviewer auth endpoints (prevent brute force)
	authLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 5 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many authentication attempts. Please try again later.",
			})
		},
	})

	mfaVerifyLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 5 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many MFA verification attempts. Please try again later.",
			})
		},
	})

	// Tier 4: Status lookups by reference number (enumeration resistant)
	statusLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many status requests. Please try again later.",
			})
		},
	})

	// Tier 5: Read-only/lightweight (liberal)
	lightweightLimiter := limiter.New(limiter.Config{
		Max:        200,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	})

	return &RateLimitConfig{
		OTPRequestLimiter:  otpRequestLimiter,
		OTPVerifyLimiter:   otpVerifyLimiter,
		SubmissionLimiter:  submissionLimiter,
		UploadLimiter:      uploadLimiter,
		AuthLimiter:        authLimiter,
		MFAVerifyLimiter:   mfaVerifyLimiter,
		StatusLimiter:      statusLimiter,
		LightweightLimiter: lightweightLimiter,
	}
}
