package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinIterations is the lowest PBKDF2 iteration count this package will
	// accept. Lowering it is a breaking security change, not a tunable.
	MinIterations = 100_000

	// DefaultIterations is the count stamped into newly derived material.
	DefaultIterations = 100_000

	// KeySize is the derived key length in bytes (AES-256).
	KeySize = 32

	// SaltSize is the KDF salt length in bytes.
	SaltSize = 32
)

var ErrWeakKDF = errors.New("crypto: iteration count below minimum floor")

type KDFParams struct {
	Iterations int
	Salt       []byte
}

// DefaultKDF returns the current derivation parameters with a fresh salt.
func DefaultKDF() (KDFParams, error) {
	salt, err := RandomBytes(SaltSize)
	if err != nil {
		return KDFParams{}, err
	}
	return KDFParams{Iterations: DefaultIterations, Salt: salt}, nil
}

// DeriveKey stretches a passphrase into a 256-bit key with
// PBKDF2-HMAC-SHA256. Deterministic: the same (passphrase, salt, iterations)
// always yields the same key.
func DeriveKey(passphrase []byte, p KDFParams) ([]byte, error) {
	if p.Iterations < MinIterations {
		return nil, fmt.Errorf("%w: %d < %d", ErrWeakKDF, p.Iterations, MinIterations)
	}
	if len(p.Salt) == 0 {
		return nil, errors.New("crypto: empty KDF salt")
	}
	return pbkdf2.Key(passphrase, p.Salt, p.Iterations, KeySize, sha256.New), nil
}
