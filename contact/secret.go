package contact

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const secretAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// GenerateSecret returns a random printable secret of SecretSize characters,
// suitable for sharing with a contact out of band.
func GenerateSecret() (string, error) {
	buf := make([]byte, SecretSize)
	limit := big.NewInt(int64(len(secretAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate secret: %w", err)
		}
		buf[i] = secretAlphabet[n.Int64()]
	}
	return string(buf), nil
}
