package crypto

import (
	"crypto/rand"
	"fmt"
)

// RandomBytes returns n cryptographically secure random bytes. A failure of
// the platform RNG is returned as an error and must be treated as fatal by
// the caller; there is no fallback source.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: platform RNG unavailable: %w", err)
	}
	return b, nil
}
