package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Reference number prefixes per submission type.
const (
	ReferencePrefixComplaint = "CMP"
	ReferencePrefixRTI       = "RTI"
	ReferencePrefixTraffic   = "TRF"
)

// GenerateReference produces a citizen-facing reference number such as
// CMP-20260830-482913. The random suffix avoids exposing sequential IDs.
func GenerateReference(prefix string, now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate reference suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, now.UTC().Format("20060102"), n.Int64()), nil
}
