package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
)

// Format versions. Each version pins the full algorithm suite (cipher, key
// length, KDF iteration count) so stored envelopes can be migrated forward.
const (
	// VersionCurrent is stamped on everything Seal produces:
	// AES-256-GCM over canonical JSON, PBKDF2-SHA256/100k keys.
	VersionCurrent = "aes256gcm/v2"

	// VersionLegacy covers envelopes written before the AES-GCM migration:
	// XChaCha20-Poly1305 with the nonce prefixed to the ciphertext.
	VersionLegacy = "xchacha20poly1305/v1"
)

var (
	ErrUnsupportedVersion = errors.New("envelope: unsupported format version")

	// ErrMalformedRecord reports a deserialization failure after the
	// ciphertext authenticated. That is a logic bug in the writer, not a
	// security event, and is deliberately distinct from ErrAuthentication.
	ErrMalformedRecord = errors.New("envelope: record failed to deserialize")
)

// Envelope is the persisted unit of encrypted data. Salt and IV are unique
// per envelope; the salt is carried for key-rotation tooling and is not
// re-derived from on the ordinary open path.
type Envelope struct {
	Ciphertext []byte `bson:"ciphertext" json:"ciphertext"`
	Salt       []byte `bson:"salt" json:"salt"`
	IV         []byte `bson:"iv" json:"iv"`
	Version    string `bson:"version" json:"version"`
}

// Supported reports whether this codec can open the given format version.
func Supported(version string) bool {
	switch version {
	case VersionCurrent, VersionLegacy:
		return true
	default:
		return false
	}
}

// Seal serializes record to canonical JSON and encrypts it under key.
// A fresh salt is generated per envelope even though the key was derived
// elsewhere, so no two documents share a salt.
func Seal(record any, key []byte) (*Envelope, error) {
	pt, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("envelope: serialize record: %w", err)
	}
	salt, err := cr.RandomBytes(cr.SaltSize)
	if err != nil {
		return nil, err
	}
	ct, iv, err := cr.Encrypt(key, pt, nil)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Ciphertext: ct,
		Salt:       salt,
		IV:         iv,
		Version:    VersionCurrent,
	}, nil
}

// Open authenticates and decrypts env into out. The version gate runs before
// any decryption attempt; an unknown version is never downgraded or guessed
// at. Integrity failures surface as crypto.ErrAuthentication.
func Open(env *Envelope, key []byte, out any) error {
	if env == nil {
		return errors.New("envelope: nil envelope")
	}
	var pt []byte
	var err error
	switch env.Version {
	case VersionCurrent:
		pt, err = cr.Decrypt(key, env.Ciphertext, env.IV, nil)
	case VersionLegacy:
		pt, err = cr.OpenLegacy(key, env.Ciphertext, nil)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, env.Version)
	}
	if err != nil {
		return err
	}
	defer cr.Zero(pt)
	if err := json.Unmarshal(pt, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return nil
}
