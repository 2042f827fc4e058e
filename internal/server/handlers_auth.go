package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/DenzilGreenwood/studio-sub001/internal/auth"
	"github.com/DenzilGreenwood/studio-sub001/internal/escrow"
	"github.com/DenzilGreenwood/studio-sub001/internal/gateway"

	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
)

type signupRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Passphrase string `json:"passphrase"`
}

type signupResponse struct {
	Token string `json:"token"`
	// RecoveryKey is displayed to the user exactly once and never stored.
	RecoveryKey string `json:"recovery_key"`
}

// handleSignup creates the account, escrows the passphrase under a freshly
// issued recovery key, and opens the first gateway session. The recovery key
// appears only in this response; no copy survives server-side.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Passphrase == "" {
		http.Error(w, "username and passphrase required", http.StatusBadRequest)
		return
	}
	if !isValidEmail(req.Email) {
		http.Error(w, "invalid email", http.StatusBadRequest)
		return
	}
	if err := validatePassword(req.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(auth.DefaultArgon, req.Password)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	kdf, err := cr.DefaultKDF()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	user := &auth.User{
		Username:      req.Username,
		Email:         req.Email,
		PassHash:      hash,
		Roles:         []auth.Role{auth.RoleUser},
		KDFSalt:       kdf.Salt,
		KDFIterations: kdf.Iterations,
	}
	if err := s.users.Add(user); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	recoveryKey, err := escrow.Issue()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	blob, err := escrow.Escrow(req.Passphrase, recoveryKey)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := s.store.PutRecoveryBlob(r.Context(), gateway.RecoveryBlobPath(req.Username), blob); err != nil {
		http.Error(w, "recovery escrow failed", http.StatusInternalServerError)
		return
	}

	sess, err := gateway.NewSession(req.Username, req.Passphrase, kdf)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.putSession(req.Username, sess)

	tok, _, err := s.signer.IssueToken(user.Username, user.Roles)
	if err != nil {
		http.Error(w, "token issue failed", http.StatusInternalServerError)
		return
	}
	s.log.WithField("uid", user.Username).Info("account created")
	writeJSONStatus(w, http.StatusCreated, signupResponse{Token: tok, RecoveryKey: recoveryKey})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ip := getClientIP(r)
	if !s.rlLoginIP.allow(ip) {
		tooMany(w, 60)
		return
	}
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || !s.rlLoginID.allow(strings.ToLower(req.Username)) {
		tooMany(w, 60)
		return
	}

	u, err := s.users.FindByUsername(req.Username)
	if err != nil {
		u, err = s.users.FindByEmail(req.Username)
	}
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	ok, err := auth.VerifyPassword(req.Password, u.PassHash)
	if err != nil || !ok {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	tok, exp, err := s.signer.IssueToken(u.Username, u.Roles)
	if err != nil {
		http.Error(w, "token issue failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, auth.LoginResponse{Token: tok, ExpiresAt: exp})
}
