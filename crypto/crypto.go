// Package crypto provides the server-side encryption used to protect
// citizen PII (names, phone numbers, addresses, Aadhaar numbers) at rest.
// It uses the XChaCha20-Poly1305 AEAD cipher keyed from the server key.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// CryptoService provides encryption and decryption operations using a server key.
type CryptoService struct {
	serverKey []byte
}

// NewCryptoService creates a new CryptoService instance with the provided server key.
// The key should be at least 32 bytes for secure XChaCha20-Poly1305 encryption.
func NewCryptoService(key []byte) *CryptoService {
	return &CryptoService{serverKey: key}
}

// Encrypt encrypts plaintext using XChaCha20-Poly1305 with a random nonce.
// Returns the nonce prepended to the ciphertext.
func (c *CryptoService) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.serverKey[:32])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

// Decrypt decrypts ciphertext that was encrypted with Encrypt.
// Expects the nonce to be prepended to the ciphertext.
func (c *CryptoService) Decrypt(ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.serverKey[:32])
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce := ciphertext[:aead.NonceSize()]
	ciphertext = ciphertext[aead.NonceSize():]

	return aead.Open(nil, nonce, ciphertext, nil)
}

// EncryptField encrypts plaintext using a key derived from the server key and
// a field type identifier (e.g. "phone", "aadhaar"). Different PII fields
// therefore use different derived keys.
func (c *CryptoService) EncryptField(plaintext []byte, fieldType string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.fieldKey(fieldType))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

// DecryptField decrypts ciphertext encrypted with EncryptField.
// Must use the same fieldType that was used during encryption.
func (c *CryptoService) DecryptField(ciphertext []byte, fieldType string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.fieldKey(fieldType))
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := ciphertext[:aead.NonceSize()]
	ciphertext = ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

// fieldKey derives a per-field-type subkey from the server key with HKDF so
// a leak of one field's key material does not expose the others.
func (c *CryptoService) fieldKey(fieldType string) []byte {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, c.serverKey[:32], nil, []byte("field:"+fieldType))
	if _, err := io.ReadFull(kdf, key); err != nil {
		// sha256-based HKDF cannot fail to produce 32 bytes
		panic(err)
	}
	return key
}

// HashEmail creates a SHA-256 hash of an email address (case-insensitive).
// Useful for reviewer account lookup while maintaining privacy.
func (c *CryptoService) HashEmail(email string) []byte {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(email)))
	return h.Sum(nil)
}

// HashPhone creates a SHA-256 hash of an E.164 phone number. OTP state in
// Redis and verification tokens are keyed by this hash so that raw numbers
// never appear in cache keys.
func (c *CryptoService) HashPhone(phone string) []byte {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(phone)))
	return h.Sum(nil)
}
