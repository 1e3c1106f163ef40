package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeMin   = 100000
	codeRange = 900000

	// maxCodeAttempts bounds retries when a generated code is already
	// used by an unfinished session.
	maxCodeAttempts = 5
)

// GenerateCode returns a uniformly random 6-digit join code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("failed to generate quiz code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
