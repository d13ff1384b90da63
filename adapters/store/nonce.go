package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// nonceBytes is the entropy of every issued nonce
const nonceBytes = 16

func generateNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
