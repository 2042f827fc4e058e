package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := randBytes(t, SaltSize)
	p := KDFParams{Iterations: MinIterations, Salt: salt}
	k1, err := DeriveKey([]byte("correct horse battery staple"), p)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := DeriveKey([]byte("correct horse battery staple"), p)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("same inputs produced different keys")
	}
	if len(k1) != KeySize {
		t.Fatalf("key length = %d, want %d", len(k1), KeySize)
	}
}

func TestDeriveKeySaltSensitive(t *testing.T) {
	p1 := KDFParams{Iterations: MinIterations, Salt: randBytes(t, SaltSize)}
	p2 := KDFParams{Iterations: MinIterations, Salt: randBytes(t, SaltSize)}
	k1, _ := DeriveKey([]byte("pw"), p1)
	k2, _ := DeriveKey([]byte("pw"), p2)
	if bytes.Equal(k1, k2) {
		t.Fatal("different salts produced identical keys")
	}
}

func TestDeriveKeyRejectsWeakIterations(t *testing.T) {
	p := KDFParams{Iterations: MinIterations - 1, Salt: randBytes(t, SaltSize)}
	if _, err := DeriveKey([]byte("pw"), p); !errors.Is(err, ErrWeakKDF) {
		t.Fatalf("expected ErrWeakKDF, got %v", err)
	}
}

func TestDefaultKDFFreshSalt(t *testing.T) {
	p1, err := DefaultKDF()
	if err != nil {
		t.Fatalf("default kdf: %v", err)
	}
	p2, err := DefaultKDF()
	if err != nil {
		t.Fatalf("default kdf: %v", err)
	}
	if bytes.Equal(p1.Salt, p2.Salt) {
		t.Fatal("expected distinct salts")
	}
	if p1.Iterations < MinIterations {
		t.Fatalf("default iterations %d below floor", p1.Iterations)
	}
}
