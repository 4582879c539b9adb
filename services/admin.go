package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"civicaid/crypto"
)

// ReviewerConfig holds configuration for default reviewer account creation
type ReviewerConfig struct {
	Enabled  bool
	Email    string
	Password string
}

// CryptoService interface for encryption operations
type CryptoService interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
	EncryptField(plaintext []byte, fieldType string) ([]byte, error)
	DecryptField(ciphertext []byte, fieldType string) ([]byte, error)
	HashEmail(email string) []byte
	HashPhone(phone string) []byte
}

// Database interface for database operations
type Database interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ReviewerService handles reviewer account bootstrap
type ReviewerService struct {
	db     Database
	crypto CryptoService
	config ReviewerConfig
}

// NewReviewerService creates a new reviewer service
func NewReviewerService(db Database, cryptoService CryptoService, config ReviewerConfig) *ReviewerService {
	return &ReviewerService{
		db:     db,
		crypto: cryptoService,
		config: config,
	}
}

// ValidateConfig validates the reviewer bootstrap configuration
func (s *ReviewerService) ValidateConfig() error {
	if !s.config.Enabled {
		return nil
	}

	if s.config.Email == "" {
		return errors.New("reviewer email cannot be empty")
	}

	if !isValidEmail(s.config.Email) {
		return fmt.Errorf("invalid reviewer email format: %s", s.config.Email)
	}

	if err := validatePassword(s.config.Password); err != nil {
		return fmt.Errorf("reviewer password validation failed: %w", err)
	}

	return nil
}

// validatePassword ensures the password meets security requirements
func validatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters long")
	}

	if len(password) > 128 {
		return errors.New("password must be less than 128 characters long")
	}

	hasUpper := regexp.MustCompile(`[A-Z]`).MatchString(password)
	hasLower := regexp.MustCompile(`[a-z]`).MatchString(password)
	hasDigit := regexp.MustCompile(`[0-9]`).MatchString(password)
	hasSpecial := regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\?]`).MatchString(password)

	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasDigit {
		return errors.New("password must contain at least one digit")
	}
	if !hasSpecial {
		return errors.New("password must contain at least one special character")
	}

	return nil
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func isValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// CreateDefaultReviewer creates the default reviewer account if enabled and
// no account for the configured email exists yet.
func (s *ReviewerService) CreateDefaultReviewer(ctx context.Context) error {
	if !s.config.Enabled {
		log.Println("⏭️ Default reviewer creation is disabled")
		return nil
	}

	if err := s.ValidateConfig(); err != nil {
		return fmt.Errorf("reviewer configuration invalid: %w", err)
	}

	emailHash := s.crypto.HashEmail(s.config.Email)

	var exists bool
	if err := s.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE email_hash = $1)", emailHash).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check reviewer existence: %w", err)
	}
	if exists {
		log.Println("Default reviewer already present, skipping seed")
		return nil
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	passwordHash := crypto.HashPassword(s.config.Password, salt)

	emailEncrypted, err := s.crypto.Encrypt([]byte(s.config.Email))
	if err != nil {
		return fmt.Errorf("failed to encrypt reviewer email: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO users (email_hash, email_encrypted, password_hash, salt, is_admin)
		VALUES ($1, $2, $3, $4, true)
	`, emailHash, emailEncrypted, passwordHash, salt)
	if err != nil {
		return fmt.Errorf("failed to insert default reviewer: %w", err)
	}

	log.Printf("✅ Seeded default reviewer account: %s", s.config.Email)
	return nil
}
