package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DenzilGreenwood/studio-sub001/internal/auth"
	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
	"github.com/DenzilGreenwood/studio-sub001/internal/escrow"
	"github.com/DenzilGreenwood/studio-sub001/internal/gateway"
	"github.com/DenzilGreenwood/studio-sub001/internal/storage"
)

type unlockRequest struct {
	Passphrase string `json:"passphrase"`
}

// handleUnlock derives the content key from the supplied passphrase and the
// account's stored KDF parameters, replacing any previous session. The
// derivation is CPU-bound; it runs on the request goroutine by design.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	u, err := s.users.FindByUsername(claims.Sub)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	sess, err := gateway.NewSession(claims.Sub, req.Passphrase, cr.KDFParams{
		Iterations: u.KDFIterations,
		Salt:       u.KDFSalt,
	})
	if err != nil {
		http.Error(w, "unlock failed", http.StatusBadRequest)
		return
	}
	s.putSession(claims.Sub, sess)
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.dropSession(claims.Sub)
	w.WriteHeader(http.StatusNoContent)
}

type redeemRequest struct {
	RecoveryKey string `json:"recovery_key"`
}

type redeemResponse struct {
	// Passphrase is returned for on-device display only. This endpoint is
	// served by the user's local daemon; the value is never logged.
	Passphrase string `json:"passphrase"`
}

// handleRecoveryRedeem opens the escrowed blob with the supplied recovery key
// and re-establishes the gateway session from the recovered passphrase.
func (s *Server) handleRecoveryRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	blob, err := s.store.GetRecoveryBlob(r.Context(), gateway.RecoveryBlobPath(claims.Sub))
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "no recovery data exists for this account", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "store unavailable", http.StatusBadGateway)
		return
	}

	passphrase, err := escrow.Redeem(blob, req.RecoveryKey)
	switch {
	case errors.Is(err, escrow.ErrNoRecoveryData):
		http.Error(w, "no recovery data exists for this account", http.StatusNotFound)
		return
	case errors.Is(err, escrow.ErrInvalidRecoveryKey):
		http.Error(w, "recovery key does not match", http.StatusUnauthorized)
		return
	case err != nil:
		http.Error(w, "recovery failed", http.StatusInternalServerError)
		return
	}

	u, err := s.users.FindByUsername(claims.Sub)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	sess, err := gateway.NewSession(claims.Sub, passphrase, cr.KDFParams{
		Iterations: u.KDFIterations,
		Salt:       u.KDFSalt,
	})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.putSession(claims.Sub, sess)
	writeJSON(w, redeemResponse{Passphrase: passphrase})
}
