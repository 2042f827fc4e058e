package server

import "net/http"

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	s.mux.HandleFunc("/api/signup", s.handleSignup)
	s.mux.HandleFunc("/api/login", s.handleLogin)

	s.mux.HandleFunc("/api/unlock", s.handleUnlock)
	s.mux.HandleFunc("/api/lock", s.handleLock)
	s.mux.HandleFunc("/api/recovery/redeem", s.handleRecoveryRedeem)

	s.mux.HandleFunc("/api/docs/batch", s.handleBatch)
	s.mux.HandleFunc("/api/docs/", s.handleDocs)
	s.mux.HandleFunc("/api/trash/", s.handleRestore)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
