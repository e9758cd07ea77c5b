package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/jamhq/jam/internal/google"
	"github.com/jamhq/jam/internal/instrumentation"
	"github.com/jamhq/jam/internal/logging"
	"github.com/jamhq/jam/internal/scheduler"
	"github.com/jamhq/jam/internal/store"
	"github.com/jamhq/jam/internal/syncer"
)

// UserStore is the slice of the record store the API server depends on.
// *store.DB satisfies it.
type UserStore interface {
	UserBySessionToken(ctx context.Context, token string) (*store.User, error)
	UpsertGoogleUser(ctx context.Context, googleID, email, name, avatar string) (*store.User, error)
	SaveRefreshToken(ctx context.Context, userID, refreshToken string) error
	SaveSessionToken(ctx context.Context, userID, sessionToken string) error
}

// ConsentFlow is the OAuth code flow. *google.OAuth satisfies it.
type ConsentFlow interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// SyncTrigger enqueues an on-demand sync pass. *scheduler.Scheduler
// satisfies it.
type SyncTrigger interface {
	Trigger(ctx context.Context, ownerID string) error
}

// UserInfoFunc resolves the Google account behind an exchanged token.
type UserInfoFunc func(ctx context.Context, token *oauth2.Token) (*google.UserInfo, error)

// APIServerConfig holds configuration for the API server.
type APIServerConfig struct {
	// Addr is the address to bind the API server to (e.g., ":8080").
	Addr string

	Store UserStore
	OAuth ConsentFlow
	Syncs SyncTrigger

	// UserInfo is optional; nil uses the Google userinfo endpoint.
	UserInfo UserInfoFunc

	// Metrics is optional; nil disables HTTP and OAuth metrics.
	Metrics *instrumentation.Metrics

	// Audit is optional; nil disables credential audit logging.
	Audit *instrumentation.AuditLogger

	// Logger is optional; nil falls back to the default adapter.
	Logger logging.Logger
}

// APIServer serves the user-facing HTTP surface: the Gmail connect flow
// and the on-demand sync trigger, plus health probes.
type APIServer struct {
	httpServer *http.Server
	addr       string

	store         UserStore
	oauth         ConsentFlow
	syncs         SyncTrigger
	fetchUserInfo UserInfoFunc

	states  *StateManager
	health  *HealthChecker
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  logging.Logger
}

// NewAPIServer creates an API server from the given configuration.
func NewAPIServer(config APIServerConfig) (*APIServer, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("user store is required for api server")
	}
	if config.OAuth == nil {
		return nil, fmt.Errorf("oauth flow is required for api server")
	}
	if config.Syncs == nil {
		return nil, fmt.Errorf("sync trigger is required for api server")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.UserInfo == nil {
		config.UserInfo = google.FetchUserInfo
	}
	if config.Logger == nil {
		config.Logger = logging.DefaultLogger()
	}

	return &APIServer{
		addr:          config.Addr,
		store:         config.Store,
		oauth:         config.OAuth,
		syncs:         config.Syncs,
		fetchUserInfo: config.UserInfo,
		states:        NewStateManager(),
		health:        NewHealthChecker(),
		metrics:       config.Metrics,
		audit:         config.Audit,
		logger:        config.Logger,
	}, nil
}

// Handler builds the route table. Exposed for tests.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /auth/google/url", s.instrument("/auth/google/url", s.handleAuthURL))
	mux.Handle("GET /auth/google/callback", s.instrument("/auth/google/callback", s.handleAuthCallback))
	mux.Handle("POST /sync/gmail", s.instrument("/sync/gmail", s.handleSyncGmail))

	s.health.RegisterHealthEndpoints(mux)

	return mux
}

// Start starts the API server in a blocking manner.
func (s *APIServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting api server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains and stops the API server. Readiness starts failing
// immediately so new traffic is routed away during the drain.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	s.states.Stop()
	if s.httpServer != nil {
		s.logger.Info("shutting down api server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the configured address for the API server.
func (s *APIServer) Addr() string {
	return s.addr
}

// Health returns the health checker so the serve loop can flip readiness.
func (s *APIServer) Health() *HealthChecker {
	return s.health
}

// instrument wraps a handler with request metrics keyed by route pattern,
// not raw path, to keep label cardinality bounded.
func (s *APIServer) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Context(), r.Method, route, rec.status, time.Since(start))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *APIServer) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	state, err := s.states.Issue()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url": s.oauth.AuthURL(state),
	})
}

func (s *APIServer) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		s.recordOAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, http.StatusBadRequest, "consent was not granted")
		return
	}

	code := q.Get("code")
	if code == "" {
		s.recordOAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	if !s.states.Consume(q.Get("state")) {
		s.recordOAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, http.StatusBadRequest, "invalid or expired state")
		return
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth code exchange failed", "error", err)
		s.recordOAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, http.StatusBadGateway, "code exchange failed")
		return
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		s.logger.Warn("userinfo fetch failed", "error", err)
		s.recordOAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, http.StatusBadGateway, "could not resolve account")
		return
	}

	user, err := s.store.UpsertGoogleUser(ctx, info.ID, info.Email, info.Name, info.Picture)
	if err != nil {
		s.logger.Error("user upsert failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not persist account")
		return
	}

	// Google returns a refresh token only on the first consent or after
	// a forced re-consent. An empty one must not clobber a stored token.
	if token.RefreshToken != "" {
		if err := s.store.SaveRefreshToken(ctx, user.ID, token.RefreshToken); err != nil {
			s.logger.Error("refresh token save failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not persist credential")
			return
		}
	}

	session, err := newSessionToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue session")
		return
	}
	if err := s.store.SaveSessionToken(ctx, user.ID, session); err != nil {
		s.logger.Error("session token save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not persist session")
		return
	}

	s.recordOAuth(ctx, instrumentation.OAuthResultSuccess)
	if s.audit != nil {
		s.audit.LogCredentialConnect(user.ID, user.Email, true)
	}
	s.logger.Info("mailbox connected",
		"user", logging.AnonymizeEmail(user.Email))

	writeJSON(w, http.StatusOK, map[string]any{
		"token": session,
		"user": map[string]string{
			"email":  user.Email,
			"name":   user.Name,
			"avatar": user.Avatar,
		},
	})
}

func (s *APIServer) handleSyncGmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	user, err := s.store.UserBySessionToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}
	if err != nil {
		s.logger.Error("session lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	switch err := s.syncs.Trigger(ctx, user.ID); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
	case errors.Is(err, syncer.ErrNoCredential):
		writeError(w, http.StatusBadRequest, "gmail is not connected")
	case errors.Is(err, scheduler.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "sync queue is full, try again later")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusUnauthorized, "invalid session")
	default:
		s.logger.Error("sync trigger failed", "user", logging.AnonymizeEmail(user.Email), "error", err)
		writeError(w, http.StatusInternalServerError, "could not start sync")
	}
}

func (s *APIServer) recordOAuth(ctx context.Context, result string) {
	if s.metrics != nil {
		s.metrics.RecordOAuthAuth(ctx, result)
	}
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// newSessionToken issues an opaque 256-bit bearer token.
func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
