package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	"civicaid/config"
	"civicaid/crypto"
	"civicaid/database"
	"civicaid/middleware"
	"civicaid/services"
	"civicaid/utils"
)

// Lockout escalation after repeated failed logins.
const (
	maxLoginAttempts    = 5
	mfaPendingKeyPrefix = "mfa:pending:"
	mfaPendingTTL       = 5 * time.Minute
	backupCodeCount     = 10
)

// AuthHandler handles reviewer authentication requests
type AuthHandler struct {
	db     database.Database
	redis  *redis.Client
	crypto *crypto.CryptoService
	mfa    *services.MFAService
	config *config.Config
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(db database.Database, redis *redis.Client, cryptoService *crypto.CryptoService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		db:     db,
		redis:  redis,
		crypto: cryptoService,
		mfa:    services.NewMFAService(),
		config: cfg,
	}
}

// LoginRequest represents a reviewer login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfa_code,omitempty"`
}

type mfaLoginRequest struct {
	MFASessionToken string `json:"mfa_session_token"`
	Code            string `json:"code"`
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

// Login godoc
// @Summary Reviewer login
// @Description Authenticate a reviewer with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{} "Login successful"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 401 {object} map[string]interface{} "Invalid credentials"
// @Failure 423 {object} map[string]interface{} "Account locked"
// @Router /reviewer/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	if !utils.IsValidEmail(req.Email) || req.Password == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Email and password are required"})
	}

	ctx := c.Context()
	emailHash := h.crypto.HashEmail(req.Email)

	var userID uuid.UUID
	var passwordHash string
	var failedAttempts int
	var lockedUntil *time.Time
	var mfaEnabled bool
	var mfaSecret []byte

	err := h.db.QueryRow(ctx, `
        SELECT id, password_hash, failed_attempts, locked_until, mfa_enabled, mfa_secret_encrypted
        FROM users WHERE email_hash = $1`,
		emailHash,
	).Scan(&userID, &passwordHash, &failedAttempts, &lockedUntil, &mfaEnabled, &mfaSecret)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	if lockedUntil != nil && lockedUntil.After(time.Now()) {
		return h.lockedResponse(c, *lockedUntil)
	}

	if !crypto.VerifyPassword(req.Password, passwordHash) {
		failedAttempts++

		var lockDuration time.Duration
		if failedAttempts >= maxLoginAttempts+2 {
			lockDuration = 15 * time.Minute
		} else if failedAttempts >= maxLoginAttempts+1 {
			lockDuration = 5 * time.Minute
		} else if failedAttempts >= maxLoginAttempts {
			lockDuration = 1 * time.Minute
		}

		if lockDuration > 0 {
			lockUntil := time.Now().Add(lockDuration)
			h.db.Exec(ctx, `
                UPDATE users SET failed_attempts = $1, locked_until = $2
                WHERE id = $3`,
				failedAttempts, lockUntil, userID,
			)
			h.logAudit(ctx, userID, "login.locked", "user", c)
			return h.lockedResponse(c, lockUntil)
		}

		h.db.Exec(ctx, `UPDATE users SET failed_attempts = $1 WHERE id = $2`, failedAttempts, userID)
		h.logAudit(ctx, userID, "login.failed", "user", c)

		return c.Status(401).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	// Password checked out. With MFA enabled and no code supplied, hand back
	// a short-lived session token so the client can complete the second step
	// without resending the password.
	if mfaEnabled {
		code := strings.TrimSpace(req.MFACode)
		if code == "" {
			mfaToken, err := h.mfa.GenerateMFASessionToken(userID.String())
			if err != nil {
				return c.Status(500).JSON(fiber.Map{"error": "MFA validation failed"})
			}
			if err := h.redis.Set(ctx, mfaPendingKeyPrefix+mfaToken, userID.String(), mfaPendingTTL).Err(); err != nil {
				return c.Status(500).JSON(fiber.Map{"error": "MFA validation failed"})
			}
			return c.Status(200).JSON(fiber.Map{
				"mfa_required":      true,
				"mfa_session_token": mfaToken,
			})
		}
		if ok := h.verifyMFACode(ctx, userID, mfaSecret, code); !ok {
			h.logAudit(ctx, userID, "login.mfa_failed", "user", c)
			return c.Status(401).JSON(fiber.Map{"error": "Invalid MFA code"})
		}
	}

	return h.completeLogin(c, userID)
}

// VerifyMFALogin finishes a login that returned mfa_required.
func (h *AuthHandler) VerifyMFALogin(c *fiber.Ctx) error {
	var req mfaLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	token := strings.TrimSpace(req.MFASessionToken)
	code := strings.TrimSpace(req.Code)
	if token == "" || code == "" {
		return c.Status(400).JSON(fiber.Map{"error": "MFA session token and code are required"})
	}

	ctx := c.Context()
	userIDStr, err := h.redis.Get(ctx, mfaPendingKeyPrefix+token).Result()
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "MFA session expired"})
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "MFA session expired"})
	}

	var mfaSecret []byte
	if err := h.db.QueryRow(ctx, `SELECT mfa_secret_encrypted FROM users WHERE id = $1`, userID).Scan(&mfaSecret); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "MFA validation failed"})
	}

	if ok := h.verifyMFACode(ctx, userID, mfaSecret, code); !ok {
		h.logAudit(ctx, userID, "login.mfa_failed", "user", c)
		return c.Status(401).JSON(fiber.Map{"error": "Invalid MFA code"})
	}

	h.redis.Del(ctx, mfaPendingKeyPrefix+token)
	return h.completeLogin(c, userID)
}

// verifyMFACode accepts either a current TOTP code or an unused backup code.
// A matched backup code is removed from the stored set.
func (h *AuthHandler) verifyMFACode(ctx context.Context, userID uuid.UUID, encryptedSecret []byte, code string) bool {
	if len(encryptedSecret) > 0 {
		secretBytes, err := h.crypto.Decrypt(encryptedSecret)
		if err == nil {
			secret := strings.TrimSpace(string(secretBytes))
			if secret != "" && totp.Validate(code, secret) {
				return true
			}
		} else {
			log.Printf("failed to decrypt mfa secret for user %s: %v", userID, err)
		}
	}

	var backupCodes [][]byte
	if err := h.db.QueryRow(ctx, `SELECT COALESCE(mfa_backup_codes, '{}') FROM users WHERE id = $1`, userID).Scan(&backupCodes); err != nil {
		return false
	}
	ok, idx := h.mfa.VerifyBackupCode(code, backupCodes)
	if !ok {
		return false
	}

	remaining := append(backupCodes[:idx:idx], backupCodes[idx+1:]...)
	if _, err := h.db.Exec(ctx, `UPDATE users SET mfa_backup_codes = $1 WHERE id = $2`, remaining, userID); err != nil {
		log.Printf("failed to burn used backup code for user %s: %v", userID, err)
	}
	h.logAudit(ctx, userID, "login.backup_code_used", "user", nil)
	return true
}

func (h *AuthHandler) completeLogin(c *fiber.Ctx, userID uuid.UUID) error {
	ctx := c.Context()

	h.db.Exec(ctx, `
        UPDATE users SET failed_attempts = 0, locked_until = NULL, last_login = NOW()
        WHERE id = $1`,
		userID,
	)

	token, err := h.generateToken(userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Token generation failed"})
	}

	// The JWT middleware checks this key on every request, so a token can be
	// revoked server-side by deleting it.
	if err := h.redis.Set(ctx, middleware.SessionKey(token), userID.String(), h.config.SessionDuration).Err(); err != nil {
		log.Printf("failed to store session in Redis: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "Session creation failed"})
	}

	h.logAudit(ctx, userID, "login.success", "user", c)

	return c.JSON(fiber.Map{
		"token":   token,
		"user_id": userID,
	})
}

// Logout revokes the presented session token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	auth := c.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return c.Status(400).JSON(fiber.Map{"error": "Missing token"})
	}
	token := strings.TrimPrefix(auth, "Bearer ")

	if err := h.redis.Del(c.Context(), middleware.SessionKey(token)).Err(); err != nil {
		log.Printf("failed to delete session: %v", err)
	}
	if uid, err := middleware.GetUserIDFromToken(c); err == nil {
		h.logAudit(c.Context(), uid, "logout", "user", c)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

func (h *AuthHandler) GetMFAStatus(c *fiber.Ctx) error {
	uid, err := middleware.GetUserIDFromToken(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	var enabled bool
	var hasSecret bool
	var backupCodes [][]byte
	if err := h.db.QueryRow(c.Context(), `
        SELECT mfa_enabled, mfa_secret_encrypted IS NOT NULL, COALESCE(mfa_backup_codes, '{}')
        FROM users WHERE id = $1`, uid).
		Scan(&enabled, &hasSecret, &backupCodes); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load MFA status"})
	}
	return c.JSON(fiber.Map{
		"enabled":                enabled,
		"has_secret":             hasSecret,
		"backup_codes_remaining": len(backupCodes),
	})
}

func (h *AuthHandler) BeginMFASetup(c *fiber.Ctx) error {
	uid, err := middleware.GetUserIDFromToken(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	ctx := c.Context()

	var emailEnc []byte
	if err := h.db.QueryRow(ctx, `SELECT email_encrypted FROM users WHERE id = $1`, uid).Scan(&emailEnc); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Unable to start MFA setup"})
	}
	emailBytes, err := h.crypto.Decrypt(emailEnc)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Unable to start MFA setup"})
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "CivicAid",
		AccountName: string(emailBytes),
		Period:      30,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to generate MFA secret"})
	}
	secret := key.Secret()
	encryptedSecret, err := h.crypto.Encrypt([]byte(secret))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to secure MFA secret"})
	}
	if _, err := h.db.Exec(ctx, `UPDATE users SET mfa_secret_encrypted = $1, mfa_enabled = FALSE WHERE id = $2`, encryptedSecret, uid); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to persist MFA secret"})
	}
	h.logAudit(ctx, uid, "mfa.setup_started", "user", c)
	return c.JSON(fiber.Map{
		"secret":      secret,
		"otpauth_url": key.URL(),
		"issuer":      key.Issuer(),
		"account":     key.AccountName(),
	})
}

// EnableMFA turns MFA on after the reviewer proves they hold the secret.
// Backup codes are returned exactly once; only their hashes are stored.
func (h *AuthHandler) EnableMFA(c *fiber.Ctx) error {
	uid, err := middleware.GetUserIDFromToken(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	var req mfaCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return c.Status(400).JSON(fiber.Map{"error": "MFA code required"})
	}
	ctx := c.Context()

	var secretEnc []byte
	if err := h.db.QueryRow(ctx, `SELECT mfa_secret_encrypted FROM users WHERE id = $1`, uid).Scan(&secretEnc); err != nil || len(secretEnc) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "MFA secret not initialized"})
	}
	secretBytes, err := h.crypto.Decrypt(secretEnc)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to access MFA secret"})
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return c.Status(500).JSON(fiber.Map{"error": "MFA secret invalid"})
	}
	if !totp.Validate(code, secret) {
		h.logAudit(ctx, uid, "mfa.enable_failed", "user", c)
		return c.Status(401).JSON(fiber.Map{"error": "Invalid MFA code"})
	}

	backupCodes, err := h.mfa.GenerateBackupCodes(backupCodeCount)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to generate backup codes"})
	}
	hashed := make([][]byte, len(backupCodes))
	for i, bc := range backupCodes {
		hashed[i] = h.mfa.HashBackupCode(bc)
	}

	if _, err := h.db.Exec(ctx, `UPDATE users SET mfa_enabled = TRUE, mfa_backup_codes = $1 WHERE id = $2`, hashed, uid); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to enable MFA"})
	}
	h.logAudit(ctx, uid, "mfa.enabled", "user", c)
	return c.JSON(fiber.Map{
		"enabled":      true,
		"backup_codes": backupCodes,
	})
}

func (h *AuthHandler) DisableMFA(c *fiber.Ctx) error {
	uid, err := middleware.GetUserIDFromToken(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	var req mfaCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return c.Status(400).JSON(fiber.Map{"error": "MFA code required"})
	}
	ctx := c.Context()

	var secretEnc []byte
	if err := h.db.QueryRow(ctx, `SELECT mfa_secret_encrypted FROM users WHERE id = $1`, uid).Scan(&secretEnc); err != nil || len(secretEnc) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "MFA not enabled"})
	}
	if ok := h.verifyMFACode(ctx, uid, secretEnc, code); !ok {
		h.logAudit(ctx, uid, "mfa.disable_failed", "user", c)
		return c.Status(401).JSON(fiber.Map{"error": "Invalid MFA code"})
	}
	if _, err := h.db.Exec(ctx, `UPDATE users SET mfa_enabled = FALSE, mfa_secret_encrypted = NULL, mfa_backup_codes = NULL WHERE id = $1`, uid); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to disable MFA"})
	}
	h.logAudit(ctx, uid, "mfa.disabled", "user", c)
	return c.JSON(fiber.Map{"enabled": false})
}

func (h *AuthHandler) lockedResponse(c *fiber.Ctx, lockedUntil time.Time) error {
	timeRemaining := time.Until(lockedUntil)
	minutes := int(timeRemaining.Minutes())
	seconds := int(timeRemaining.Seconds()) % 60

	var timeMessage string
	if minutes > 0 {
		timeMessage = fmt.Sprintf("%d minutes and %d seconds", minutes, seconds)
	} else {
		timeMessage = fmt.Sprintf("%d seconds", seconds)
	}

	return c.Status(423).JSON(fiber.Map{
		"error":               fmt.Sprintf("Account locked due to too many failed login attempts. Please try again in %s.", timeMessage),
		"locked_until":        lockedUntil.Format(time.RFC3339),
		"retry_after_seconds": int(timeRemaining.Seconds()),
	})
}

func (h *AuthHandler) generateToken(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(h.config.SessionDuration).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(h.config.JWTSecret)
}

// logAudit records a reviewer account event. c may be nil when no request
// context is available; the IP column is left empty in that case.
func (h *AuthHandler) logAudit(ctx context.Context, userID uuid.UUID, action, resource string, c *fiber.Ctx) {
	var encryptedIP []byte
	if c != nil {
		var err error
		encryptedIP, err = h.crypto.Encrypt([]byte(utils.ClientIP(c)))
		if err != nil {
			log.Printf("failed to encrypt audit log IP: %v", err)
			encryptedIP = nil
		}
	}

	if _, err := h.db.Exec(ctx, `
        INSERT INTO audit_log (user_id, action, resource, ip_encrypted)
        VALUES ($1, $2, $3, $4)`,
		userID, action, resource, encryptedIP,
	); err != nil {
		log.Printf("failed to write audit log entry: %v", err)
	}
}
