package envelope

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
	xchacha "golang.org/x/crypto/chacha20poly1305"
)

type entry struct {
	Text string            `json:"text"`
	Tags []string          `json:"tags,omitempty"`
	Meta map[string]string `json:"meta,omitempty"`
}

func testKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, cr.KeySize)
	if _, err := rand.Read(k); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return k
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey(t)
	in := entry{
		Text: "wrote three pages before breakfast",
		Tags: []string{"morning", "draft"},
		Meta: map[string]string{"mood": "calm"},
	}
	env, err := Seal(in, key)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if env.Version != VersionCurrent {
		t.Fatalf("version = %q, want %q", env.Version, VersionCurrent)
	}
	if len(env.Salt) != cr.SaltSize {
		t.Fatalf("salt length = %d, want %d", len(env.Salt), cr.SaltSize)
	}
	var out entry
	if err := Open(env, key, &out); err != nil {
		t.Fatalf("open: %v", err)
	}
	if out.Text != in.Text || len(out.Tags) != 2 || out.Meta["mood"] != "calm" {
		t.Fatalf("record mismatch: %+v", out)
	}
}

func TestSealCiphertextOpaque(t *testing.T) {
	key := testKey(t)
	env, err := Seal(entry{Text: "hello"}, key)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(env.Ciphertext, []byte("hello")) {
		t.Fatal("plaintext visible in ciphertext")
	}
}

func TestOpenTamperCiphertext(t *testing.T) {
	key := testKey(t)
	env, err := Seal(entry{Text: "hello"}, key)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	for i := range env.Ciphertext {
		mut := *env
		mut.Ciphertext = append([]byte(nil), env.Ciphertext...)
		mut.Ciphertext[i] ^= 0xFF
		var out entry
		if err := Open(&mut, key, &out); !errors.Is(err, cr.ErrAuthentication) {
			t.Fatalf("ciphertext tamper at %d: got %v", i, err)
		}
	}
}

func TestOpenTamperIV(t *testing.T) {
	key := testKey(t)
	env, err := Seal(entry{Text: "hello"}, key)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	for i := range env.IV {
		mut := *env
		mut.IV = append([]byte(nil), env.IV...)
		mut.IV[i] ^= 0x01
		var out entry
		if err := Open(&mut, key, &out); !errors.Is(err, cr.ErrAuthentication) {
			t.Fatalf("iv tamper at %d: got %v", i, err)
		}
	}
}

func TestOpenWrongKey(t *testing.T) {
	env, err := Seal(entry{Text: "hello"}, testKey(t))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	var out entry
	if err := Open(env, testKey(t), &out); !errors.Is(err, cr.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestOpenUnsupportedVersion(t *testing.T) {
	key := testKey(t)
	env, err := Seal(entry{Text: "hello"}, key)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	for _, v := range []string{"", "aes256gcm/v99", "plaintext/v0"} {
		mut := *env
		mut.Version = v
		var out entry
		if err := Open(&mut, key, &out); !errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("version %q: expected ErrUnsupportedVersion, got %v", v, err)
		}
	}
}

func TestOpenMalformedRecord(t *testing.T) {
	key := testKey(t)
	// A JSON array authenticates fine but cannot decode into a struct: that
	// is a writer bug, reported as ErrMalformedRecord, not ErrAuthentication.
	env, err := Seal([]int{1, 2, 3}, key)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	var out entry
	err = Open(env, key, &out)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
	if errors.Is(err, cr.ErrAuthentication) {
		t.Fatal("decode failure must not be reported as an authentication failure")
	}
}

func TestSealDistinctSaltAndIV(t *testing.T) {
	key := testKey(t)
	e1, err := Seal(entry{Text: "data"}, key)
	if err != nil {
		t.Fatalf("seal1: %v", err)
	}
	e2, err := Seal(entry{Text: "data"}, key)
	if err != nil {
		t.Fatalf("seal2: %v", err)
	}
	if bytes.Equal(e1.Salt, e2.Salt) {
		t.Fatal("expected distinct salts")
	}
	if bytes.Equal(e1.IV, e2.IV) {
		t.Fatal("expected distinct ivs")
	}
}

func TestOpenLegacyVersion(t *testing.T) {
	key := testKey(t)
	aead, err := xchacha.NewX(key)
	if err != nil {
		t.Fatalf("xchacha: %v", err)
	}
	nonce := make([]byte, xchacha.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	pt := []byte(`{"text":"pre-migration entry"}`)
	ct := append(append([]byte(nil), nonce...), aead.Seal(nil, nonce, pt, nil)...)

	env := &Envelope{Ciphertext: ct, Version: VersionLegacy}
	var out entry
	if err := Open(env, key, &out); err != nil {
		t.Fatalf("open legacy: %v", err)
	}
	if out.Text != "pre-migration entry" {
		t.Fatalf("legacy record mismatch: %+v", out)
	}
}

func FuzzOpenRejectMutations(f *testing.F) {
	f.Add("an entry", 0)
	f.Add("", 3)
	f.Fuzz(func(t *testing.T, text string, idx int) {
		key := testKey(t)
		env, err := Seal(entry{Text: text}, key)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		if len(env.Ciphertext) == 0 {
			return
		}
		if idx < 0 {
			idx = -idx
		}
		mut := *env
		mut.Ciphertext = append([]byte(nil), env.Ciphertext...)
		mut.Ciphertext[idx%len(mut.Ciphertext)] ^= 0xFF
		var out entry
		if err := Open(&mut, key, &out); err == nil {
			t.Fatal("mutated envelope opened")
		}
	})
}
