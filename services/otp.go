package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"civicaid/utils"
)

// OTP verification failure modes surfaced to handlers.
var (
	ErrOTPCooldown      = errors.New("otp resend cooldown active")
	ErrOTPExpired       = errors.New("otp expired or never requested")
	ErrOTPMismatch      = errors.New("otp code does not match")
	ErrOTPMaxAttempts   = errors.New("otp verification attempts exhausted")
	ErrPhoneNotVerified = errors.New("phone not verified")
)

// OTPSender delivers a one-time code to a phone number. The production
// deployment plugs an SMS gateway in here; development uses LogOTPSender.
type OTPSender interface {
	Send(ctx context.Context, phone, code string) error
}

// LogOTPSender writes codes to the application log instead of sending SMS.
type LogOTPSender struct{}

// Send logs the code with the phone number masked.
func (LogOTPSender) Send(_ context.Context, phone, code string) error {
	log.Printf("📲 OTP for %s: %s", utils.MaskPhone(phone), code)
	return nil
}

// PhoneHasher is the slice of CryptoService the OTP flow needs.
type PhoneHasher interface {
	HashPhone(phone string) []byte
}

// OTPConfig carries the tunables for the verification flow.
type OTPConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	TokenTTL       time.Duration
}

// OTPService implements phone verification: a 6-digit code delivered out of
// band, stored hashed in Redis with a TTL, verified with a bounded number of
// attempts, and exchanged for a single-use verification token that
// authorizes one submission.
type OTPService struct {
	redis  *redis.Client
	hasher PhoneHasher
	sender OTPSender
	config OTPConfig
}

// NewOTPService creates a new OTP service
func NewOTPService(rdb *redis.Client, hasher PhoneHasher, sender OTPSender, config OTPConfig) *OTPService {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	return &OTPService{redis: rdb, hasher: hasher, sender: sender, config: config}
}

func (s *OTPService) codeKey(phoneHash []byte) string {
	return fmt.Sprintf("otp:code:%x", phoneHash)
}

func (s *OTPService) cooldownKey(phoneHash []byte) string {
	return fmt.Sprintf("otp:cooldown:%x", phoneHash)
}

func (s *OTPService) attemptsKey(phoneHash []byte) string {
	return fmt.Sprintf("otp:attempts:%x", phoneHash)
}

func (s *OTPService) tokenKey(token string) string {
	return "otp:verified:" + token
}

// RequestCode normalizes the phone number, generates a fresh code and sends
// it. Returns the normalized E.164 number. A second request inside the
// resend cooldown returns ErrOTPCooldown.
func (s *OTPService) RequestCode(ctx context.Context, rawPhone string) (string, error) {
	phone := utils.NormalizePhone(rawPhone)
	phoneHash := s.hasher.HashPhone(phone)

	ok, err := s.redis.SetNX(ctx, s.cooldownKey(phoneHash), "1", s.config.ResendCooldown).Result()
	if err != nil {
		return "", fmt.Errorf("failed to check otp cooldown: %w", err)
	}
	if !ok {
		return phone, ErrOTPCooldown
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate otp code: %w", err)
	}

	codeHash := sha256.Sum256([]byte(code))
	if err := s.redis.Set(ctx, s.codeKey(phoneHash), codeHash[:], s.config.TTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store otp code: %w", err)
	}
	// A fresh code resets the attempt budget
	if err := s.redis.Del(ctx, s.attemptsKey(phoneHash)).Err(); err != nil {
		return "", fmt.Errorf("failed to reset otp attempts: %w", err)
	}

	if err := s.sender.Send(ctx, phone, code); err != nil {
		return "", fmt.Errorf("failed to send otp: %w", err)
	}

	return phone, nil
}

// VerifyCode checks the submitted code and, on success, issues a
// verification token bound to the phone hash. At most MaxAttempts wrong
// codes are tolerated per issued code.
func (s *OTPService) VerifyCode(ctx context.Context, rawPhone, code string) (string, error) {
	phone := utils.NormalizePhone(rawPhone)
	phoneHash := s.hasher.HashPhone(phone)

	attempts, err := s.redis.Incr(ctx, s.attemptsKey(phoneHash)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to count otp attempt: %w", err)
	}
	if err := s.redis.Expire(ctx, s.attemptsKey(phoneHash), s.config.TTL).Err(); err != nil {
		return "", fmt.Errorf("failed to expire otp attempts: %w", err)
	}
	if attempts > int64(s.config.MaxAttempts) {
		// Burn the code so further guessing is pointless
		_ = s.redis.Del(ctx, s.codeKey(phoneHash)).Err()
		return "", ErrOTPMaxAttempts
	}

	stored, err := s.redis.Get(ctx, s.codeKey(phoneHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrOTPExpired
	}
	if err != nil {
		return "", fmt.Errorf("failed to load otp code: %w", err)
	}

	codeHash := sha256.Sum256([]byte(code))
	if subtle.ConstantTimeCompare(stored, codeHash[:]) != 1 {
		return "", ErrOTPMismatch
	}

	if err := s.redis.Del(ctx, s.codeKey(phoneHash), s.attemptsKey(phoneHash)).Err(); err != nil {
		return "", fmt.Errorf("failed to clear otp state: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	if err := s.redis.Set(ctx, s.tokenKey(token), hex.EncodeToString(phoneHash), s.config.TokenTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}

	return token, nil
}

// Consume redeems a verification token for the given phone number. Tokens
// are single use: a successful Consume deletes the token.
func (s *OTPService) Consume(ctx context.Context, token, rawPhone string) error {
	phone := utils.NormalizePhone(rawPhone)
	phoneHash := s.hasher.HashPhone(phone)

	stored, err := s.redis.GetDel(ctx, s.tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrPhoneNotVerified
	}
	if err != nil {
		return fmt.Errorf("failed to redeem verification token: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(hex.EncodeToString(phoneHash))) != 1 {
		return ErrPhoneNotVerified
	}
	return nil
}

// generateCode returns a uniformly random 6-digit code
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// generateToken returns 32 random bytes hex encoded
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
