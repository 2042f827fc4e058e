package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword(DefaultArgon, "Password123!")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !strings.HasPrefix(hash, "argon2id$") {
		t.Fatalf("unexpected hash encoding: %q", hash)
	}

	ok, err := VerifyPassword("Password123!", hash)
	if err != nil {
		t.Fatalf("VerifyPassword error: %v", err)
	}
	if !ok {
		t.Fatal("correct password should verify")
	}

	ok, err = VerifyPassword("Password123?", hash)
	if err != nil {
		t.Fatalf("VerifyPassword error: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not verify")
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	for _, encoded := range []string{"", "invalid-hash-format", "argon2id$m=1$x"} {
		ok, err := VerifyPassword("Password123!", encoded)
		if err == nil {
			t.Fatalf("%q: expected error for malformed hash", encoded)
		}
		if ok {
			t.Fatalf("%q: malformed hash must not verify", encoded)
		}
	}
}

func TestHashesAreSalted(t *testing.T) {
	h1, err := HashPassword(DefaultArgon, "Password123!")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashPassword(DefaultArgon, "Password123!")
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("two hashes of the same password must differ")
	}
}
