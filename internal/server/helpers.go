package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func tooMany(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	http.Error(w, "too many requests", http.StatusTooManyRequests)
}

var (
	reUpper = regexp.MustCompile(`[A-Z]`)
	reLower = regexp.MustCompile(`[a-z]`)
	reDigit = regexp.MustCompile(`[0-9]`)
	reEmail = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// validatePassword covers the account password only. The content passphrase
// is the user's to choose; this layer never judges or inspects it.
func validatePassword(pw string) error {
	switch {
	case len(pw) < 12:
		return errors.New("password must be at least 12 characters")
	case strings.Contains(pw, " "):
		return errors.New("password must not contain spaces")
	case !reUpper.MatchString(pw):
		return errors.New("password must include an uppercase letter")
	case !reLower.MatchString(pw):
		return errors.New("password must include a lowercase letter")
	case !reDigit.MatchString(pw):
		return errors.New("password must include a digit")
	default:
		return nil
	}
}

func isValidEmail(email string) bool {
	return reEmail.MatchString(email)
}

func newDocID() string {
	b := make([]byte, 10)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
