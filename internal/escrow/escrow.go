// Package escrow lets a user recover a forgotten passphrase without the
// operator ever learning it. A high-entropy recovery key, generated once at
// signup and shown to the user exactly once, derives a second key that
// encrypts the passphrase; only the resulting blob is persisted.
package escrow

import (
	"encoding/hex"
	"errors"
	"fmt"

	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
	"github.com/DenzilGreenwood/studio-sub001/internal/envelope"
)

// RecoveryKeySize is the entropy of an issued recovery key in bytes.
// Hex-encoded, a key is 64 characters.
const RecoveryKeySize = 32

var (
	// ErrInvalidRecoveryKey is the expected outcome of a mistyped recovery
	// key. Distinct from storage/transport failures; not retryable.
	ErrInvalidRecoveryKey = errors.New("escrow: recovery key does not match")

	// ErrNoRecoveryData means no blob was ever escrowed for this user.
	ErrNoRecoveryData = errors.New("escrow: no recovery data exists")
)

// Blob is the persisted escrow record. Created once at signup, read-only
// thereafter. Salt and Iterations are the KDF inputs Redeem re-derives from.
type Blob struct {
	EncryptedPassphrase []byte `bson:"encryptedPassphrase" json:"encryptedPassphrase"`
	Salt                []byte `bson:"salt" json:"salt"`
	IV                  []byte `bson:"iv" json:"iv"`
	Iterations          int    `bson:"iterations" json:"iterations"`
	Version             string `bson:"version" json:"version"`
}

// Issue generates a fresh recovery key. The caller displays it to the user
// once; it is never logged, emailed, or sent to any sink.
func Issue() (string, error) {
	b, err := cr.RandomBytes(RecoveryKeySize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Escrow encrypts passphrase under a key derived from recoveryKey and returns
// the blob for persistence. The recovery key is treated as the passphrase
// input to the KDF, with its own fresh salt.
func Escrow(passphrase, recoveryKey string) (*Blob, error) {
	if passphrase == "" {
		return nil, errors.New("escrow: empty passphrase")
	}
	if recoveryKey == "" {
		return nil, errors.New("escrow: empty recovery key")
	}
	params, err := cr.DefaultKDF()
	if err != nil {
		return nil, err
	}
	key, err := cr.DeriveKey([]byte(recoveryKey), params)
	if err != nil {
		return nil, err
	}
	defer cr.Zero(key)

	ct, iv, err := cr.Encrypt(key, []byte(passphrase), nil)
	if err != nil {
		return nil, err
	}
	return &Blob{
		EncryptedPassphrase: ct,
		Salt:                params.Salt,
		IV:                  iv,
		Iterations:          params.Iterations,
		Version:             envelope.VersionCurrent,
	}, nil
}

// Redeem recovers the passphrase from an escrowed blob. The result must only
// reach in-memory session key material or an on-device display; it is never
// persisted or logged by this package or its callers.
func Redeem(blob *Blob, recoveryKey string) (string, error) {
	if blob == nil || len(blob.EncryptedPassphrase) == 0 {
		return "", ErrNoRecoveryData
	}
	if !envelope.Supported(blob.Version) {
		return "", fmt.Errorf("%w: %q", envelope.ErrUnsupportedVersion, blob.Version)
	}
	key, err := cr.DeriveKey([]byte(recoveryKey), cr.KDFParams{
		Iterations: blob.Iterations,
		Salt:       blob.Salt,
	})
	if err != nil {
		return "", err
	}
	defer cr.Zero(key)

	var pt []byte
	switch blob.Version {
	case envelope.VersionLegacy:
		pt, err = cr.OpenLegacy(key, blob.EncryptedPassphrase, nil)
	default:
		pt, err = cr.Decrypt(key, blob.EncryptedPassphrase, blob.IV, nil)
	}
	if errors.Is(err, cr.ErrAuthentication) {
		return "", ErrInvalidRecoveryKey
	}
	if err != nil {
		return "", err
	}
	pass := string(pt)
	cr.Zero(pt)
	return pass, nil
}
