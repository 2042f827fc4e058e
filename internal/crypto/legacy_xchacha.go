package crypto

import (
	xchacha "golang.org/x/crypto/chacha20poly1305"
)

// OpenLegacy decrypts the XChaCha20-Poly1305 layout used by envelopes written
// before the AES-GCM migration: a 24-byte nonce prefixed to the ciphertext,
// with the envelope iv field left empty. Provided for backward compatibility
// only; nothing writes this format anymore.
func OpenLegacy(key, ciphertext, aad []byte) ([]byte, error) {
	aead, err := xchacha.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < xchacha.NonceSizeX {
		return nil, ErrAuthentication
	}
	nonce := ciphertext[:xchacha.NonceSizeX]
	ct := ciphertext[xchacha.NonceSizeX:]
	pt, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return pt, nil
}
