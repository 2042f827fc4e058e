package auth

import (
	"errors"
	"strings"
)

// User is an account identity. The account password authenticates the user
// to the service; it is unrelated to the content passphrase, which never
// reaches this package.
type User struct {
	Username string
	Email    string
	PassHash string // argon2id encoded string
	Roles    []Role

	// Content-key derivation parameters. The salt is public material; the
	// passphrase it stretches never reaches the server-side account record.
	KDFSalt       []byte
	KDFIterations int
}

type UserStore interface {
	FindByUsername(username string) (*User, error)
	FindByEmail(email string) (*User, error)
	Add(u *User) error
}

// MemoryUserStore backs the dev server and tests.
type MemoryUserStore struct {
	byUsername map[string]*User
	byEmail    map[string]*User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byUsername: map[string]*User{},
		byEmail:    map[string]*User{},
	}
}

func (s *MemoryUserStore) Add(u *User) error {
	if u == nil {
		return errors.New("user is nil")
	}
	if _, exists := s.byUsername[u.Username]; exists {
		return errors.New("user already exists")
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email != "" {
		if _, exists := s.byEmail[email]; exists {
			return errors.New("email already exists")
		}
	}
	clone := *u
	clone.Email = email
	s.byUsername[u.Username] = &clone
	if email != "" {
		s.byEmail[email] = &clone
	}
	return nil
}

func (s *MemoryUserStore) FindByUsername(username string) (*User, error) {
	if u, ok := s.byUsername[username]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, ErrUserNotFound
}

func (s *MemoryUserStore) FindByEmail(email string) (*User, error) {
	if u, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, ErrUserNotFound
}
