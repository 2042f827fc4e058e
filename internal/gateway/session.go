package gateway

import (
	"errors"
	"sync"

	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
)

var ErrSessionClosed = errors.New("gateway: session closed")

// Session holds the (userID, derived key) pair for one authenticated user.
// It is the only mutable shared state in the subsystem: confined to one
// login, zeroed on Close, never written to durable storage. There is no
// package-level key state; every gateway call takes a Session explicitly.
//
// Close may run concurrently with gateway calls (the server replaces the
// session on every unlock). Operations therefore never read the shared
// slice directly: each takes a private copy under the lock via keyCopy, so
// zeroing can never land mid-encrypt and seal a document under a dead key.
type Session struct {
	userID string

	mu  sync.RWMutex
	key []byte
}

// NewSession derives the content key from the user's passphrase. This is a
// CPU-bound call (>=100k KDF iterations); do not invoke it on a
// latency-sensitive path without offloading.
func NewSession(userID, passphrase string, p cr.KDFParams) (*Session, error) {
	if userID == "" {
		return nil, errors.New("gateway: empty userID")
	}
	key, err := cr.DeriveKey([]byte(passphrase), p)
	if err != nil {
		return nil, err
	}
	return newSessionWithKey(userID, key)
}

// NewSessionWithKey adopts already-derived key material, e.g. after a
// recovery-key redemption re-derived the passphrase elsewhere.
func NewSessionWithKey(userID string, key []byte) (*Session, error) {
	if userID == "" {
		return nil, errors.New("gateway: empty userID")
	}
	if len(key) != cr.KeySize {
		return nil, errors.New("gateway: key must be 32 bytes")
	}
	k := append([]byte(nil), key...)
	return newSessionWithKey(userID, k)
}

func newSessionWithKey(userID string, key []byte) (*Session, error) {
	// Best effort; some platforms refuse mlock for unprivileged processes.
	_ = cr.LockMemory(key)
	return &Session{userID: userID, key: key}, nil
}

func (s *Session) UserID() string { return s.userID }

// keyCopy hands out a private copy of the key for the duration of one
// operation. The caller zeroes the copy when done. A concurrent Close only
// affects the shared slice, never a copy already taken.
func (s *Session) keyCopy() ([]byte, error) {
	if s == nil {
		return nil, ErrSessionClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, ErrSessionClosed
	}
	return append([]byte(nil), s.key...), nil
}

// Close zeroes the key material. Safe to call more than once; all gateway
// operations on a closed session fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil {
		cr.Zero(s.key)
		_ = cr.UnlockMemory(s.key)
		s.key = nil
	}
}

func (s *Session) closed() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key == nil
}
