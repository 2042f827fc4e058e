// Package server is the device-local HTTP surface over the encryption
// subsystem. It holds unlocked gateway sessions in memory for the lifetime
// of the process; only sealed envelopes ever leave towards the remote store.
package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/DenzilGreenwood/studio-sub001/internal/auth"
	"github.com/DenzilGreenwood/studio-sub001/internal/gateway"
	"github.com/DenzilGreenwood/studio-sub001/internal/storage"
)

// DocStore is what the server needs from a storage backend: envelope
// documents plus write-once recovery material.
type DocStore interface {
	storage.Store
	storage.RecoveryStore
}

type Server struct {
	cfg Config

	mux    *http.ServeMux
	signer *auth.JWTSigner
	users  auth.UserStore
	store  DocStore
	gw     *gateway.Gateway
	log    *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*gateway.Session

	rlLoginIP *keyedLimiter
	rlLoginID *keyedLimiter
}

func New(ctx context.Context, cfg Config) (*Server, error) {
	cfg.setDefaults()

	priv, _, err := auth.GenerateEd25519()
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var users auth.UserStore
	var store DocStore
	if cfg.MongoURI == "" {
		users = auth.NewMemoryUserStore()
		store = storage.NewMemoryStore()
		log.Warn("no mongo uri configured, using in-memory store")
	} else {
		mu, err := auth.NewMongoUserStore(ctx, cfg.MongoURI, cfg.MongoDB, cfg.UsersCollection)
		if err != nil {
			return nil, err
		}
		users = mu
		ms, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB, cfg.DocsCollection)
		if err != nil {
			return nil, err
		}
		store = ms
	}

	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		signer:   auth.NewJWTSigner(priv, cfg.JWTIssuer, cfg.TokenTTL),
		users:    users,
		store:    store,
		gw:       gateway.New(store, log),
		log:      log,
		sessions: map[string]*gateway.Session{},
	}

	perWindow := func(n int, window time.Duration) float64 { return float64(n) / window.Seconds() }
	s.rlLoginIP = newKeyedLimiter(rate.Limit(perWindow(10, time.Minute)), 10, 1*time.Hour)
	s.rlLoginID = newKeyedLimiter(rate.Limit(perWindow(5, time.Minute)), 5, 1*time.Hour)

	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.WithField("panic", rec).Error("handler panic")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}()

	s.addDefaultHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") && !s.isPublic(path) {
		handler := auth.AuthRequired(s.signer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		}))
		handler.ServeHTTP(w, r)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler { return s }

func (s *Server) isPublic(path string) bool {
	switch path {
	case "/health", "/api/health", "/api/login", "/api/signup":
		return true
	default:
		return false
	}
}

func (s *Server) addDefaultHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
}

// session returns the caller's unlocked gateway session, if any.
func (s *Server) session(r *http.Request) (*gateway.Session, error) {
	claims, err := auth.MustClaims(r)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[claims.Sub]
	if !ok {
		return nil, gateway.ErrSessionClosed
	}
	return sess, nil
}

func (s *Server) putSession(userID string, sess *gateway.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.sessions[userID]; ok {
		old.Close()
	}
	s.sessions[userID] = sess
}

func (s *Server) dropSession(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		sess.Close()
		delete(s.sessions, userID)
	}
}
