package services

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// MFAService handles TOTP backup codes and MFA session tokens for
// reviewer accounts.
type MFAService struct{}

// NewMFAService creates a new MFA service
func NewMFAService() *MFAService {
	return &MFAService{}
}

// GenerateBackupCodes generates cryptographically secure backup codes
// formatted as XXXX-XXXX-XXXX-XXXX.
func (s *MFAService) GenerateBackupCodes(count int) ([]string, error) {
	if count <= 0 || count > 20 {
		return nil, fmt.Errorf("invalid backup code count: %d (must be 1-20)", count)
	}

	codes := make([]string, count)
	for i := 0; i < count; i++ {
		code, err := s.generateSingleBackupCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate backup code %d: %w", i, err)
		}
		codes[i] = code
	}

	return codes, nil
}

func (s *MFAService) generateSingleBackupCode() (string, error) {
	// 10 random bytes gives 80 bits of entropy
	randomBytes := make([]byte, 10)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// Base32 keeps the code readable without ambiguous characters
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)

	code := strings.ToUpper(encoded[:16])
	return fmt.Sprintf("%s-%s-%s-%s",
		code[0:4],
		code[4:8],
		code[8:12],
		code[12:16],
	), nil
}

// HashBackupCode hashes a backup code using Argon2id for storage.
// The salt is derived from the code content so verification does not
// need a separately stored salt per code.
func (s *MFAService) HashBackupCode(code string) []byte {
	normalized := s.NormalizeBackupCode(code)

	salt := sha256.Sum256([]byte("civicaid_backup_code_salt_v1"))

	// Argon2id parameters: 3 iterations, 64MB memory, 4 parallelism, 32 byte hash
	return argon2.IDKey([]byte(normalized), salt[:], 3, 64*1024, 4, 32)
}

// VerifyBackupCode verifies a backup code against an array of hashed codes.
// Returns (isValid, indexOfCode) - index is -1 if not found.
func (s *MFAService) VerifyBackupCode(code string, hashedCodes [][]byte) (bool, int) {
	if len(hashedCodes) == 0 {
		return false, -1
	}

	inputHash := s.HashBackupCode(code)

	for i, storedHash := range hashedCodes {
		if len(storedHash) != len(inputHash) {
			continue
		}
		if subtle.ConstantTimeCompare(storedHash, inputHash) == 1 {
			return true, i
		}
	}

	return false, -1
}

// GenerateMFASessionToken generates a temporary token handed out between
// password verification and TOTP verification during reviewer login.
func (s *MFAService) GenerateMFASessionToken(userID string) (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	data := fmt.Sprintf("%s:%s", userID, hex.EncodeToString(randomBytes))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("mfa_session_%s", hex.EncodeToString(hash[:])), nil
}

// NormalizeBackupCode removes dashes and uppercases a backup code.
func (s *MFAService) NormalizeBackupCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(code, "-", ""))
}

// FormatBackupCode formats a plain code string into XXXX-XXXX-XXXX-XXXX format
func (s *MFAService) FormatBackupCode(code string) string {
	clean := strings.ReplaceAll(strings.ReplaceAll(code, "-", ""), " ", "")
	clean = strings.ToUpper(clean)

	if len(clean) != 16 {
		return code
	}

	return fmt.Sprintf("%s-%s-%s-%s",
		clean[0:4],
		clean[4:8],
		clean[8:12],
		clean[12:16],
	)
}
