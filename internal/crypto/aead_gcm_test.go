package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func randBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return b
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := randBytes(t, KeySize)
	pt := randBytes(t, 4096)
	aad := []byte("context")
	ct, iv, err := Encrypt(key, pt, aad)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(iv) != NonceSize {
		t.Fatalf("iv length = %d, want %d", len(iv), NonceSize)
	}
	out, err := Decrypt(key, ct, iv, aad)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, out) {
		t.Fatal("plaintext mismatch")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key := randBytes(t, KeySize)
	ct, iv, err := Encrypt(key, []byte("secret-data"), nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	other := randBytes(t, KeySize)
	if _, err := Decrypt(other, ct, iv, nil); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestDecryptAADMismatch(t *testing.T) {
	key := randBytes(t, KeySize)
	ct, iv, err := Encrypt(key, []byte("secret-data"), []byte("aad-1"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(key, ct, iv, []byte("aad-2")); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication with mismatched AAD, got %v", err)
	}
}

func TestDecryptCiphertextTamper(t *testing.T) {
	key := randBytes(t, KeySize)
	ct, iv, err := Encrypt(key, []byte("hello"), nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	for i := range ct {
		mut := append([]byte(nil), ct...)
		mut[i] ^= 0xFF
		if _, err := Decrypt(key, mut, iv, nil); !errors.Is(err, ErrAuthentication) {
			t.Fatalf("tamper at byte %d: expected ErrAuthentication, got %v", i, err)
		}
	}
}

func TestDecryptIVTamper(t *testing.T) {
	key := randBytes(t, KeySize)
	ct, iv, err := Encrypt(key, []byte("hello"), nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	for i := range iv {
		mut := append([]byte(nil), iv...)
		mut[i] ^= 0x01
		if _, err := Decrypt(key, ct, mut, nil); !errors.Is(err, ErrAuthentication) {
			t.Fatalf("iv tamper at byte %d: expected ErrAuthentication, got %v", i, err)
		}
	}
}

func TestEncryptUniqueIV(t *testing.T) {
	key := randBytes(t, KeySize)
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		_, iv, err := Encrypt(key, []byte("data"), nil)
		if err != nil {
			t.Fatalf("encrypt %d: %v", i, err)
		}
		if seen[string(iv)] {
			t.Fatalf("iv collision after %d encryptions", i)
		}
		seen[string(iv)] = true
	}
}

func FuzzDecryptRejectMutations(f *testing.F) {
	f.Add([]byte("hello"), []byte("aad"))
	f.Add([]byte(""), []byte(""))
	f.Fuzz(func(t *testing.T, pt, aad []byte) {
		key := randBytes(t, KeySize)
		ct, iv, err := Encrypt(key, pt, aad)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if _, err := Decrypt(key, ct, iv, aad); err != nil {
			t.Fatalf("decrypt baseline: %v", err)
		}
		if len(ct) == 0 {
			return
		}
		mut := append([]byte(nil), ct...)
		idx := len(pt) % len(mut)
		mut[idx] ^= 0xFF
		if _, err := Decrypt(key, mut, iv, aad); err == nil {
			t.Fatalf("mutation at %d succeeded", idx)
		}
	})
}
