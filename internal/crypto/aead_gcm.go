package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// NonceSize is the AES-GCM nonce length in bytes (96 bits). One fresh nonce
// per Encrypt call; a nonce must never be reused with the same key.
const NonceSize = 12

var (
	// ErrAuthentication reports a failed integrity check: tampering, a wrong
	// key, or corruption. The three are indistinguishable at this layer.
	ErrAuthentication = errors.New("crypto: message authentication failed")

	errBadKeySize = errors.New("crypto: key must be 32 bytes")
)

// Encrypt seals plaintext with AES-256-GCM under a fresh random nonce.
// The returned iv is the nonce; it is not secret but must be stored with
// the ciphertext.
func Encrypt(key, plaintext, aad []byte) (ciphertext, iv []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	iv, err = RandomBytes(NonceSize)
	if err != nil {
		return nil, nil, err
	}
	ciphertext = aead.Seal(nil, iv, plaintext, aad)
	return ciphertext, iv, nil
}

// Decrypt opens AES-256-GCM ciphertext. A tag verification failure is
// returned as ErrAuthentication, never as garbage plaintext.
func Decrypt(key, ciphertext, iv, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != NonceSize {
		return nil, ErrAuthentication
	}
	pt, err := aead.Open(nil, iv, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, errBadKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
