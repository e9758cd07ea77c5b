package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jamhq/jam/internal/google"
	"github.com/jamhq/jam/internal/scheduler"
	"github.com/jamhq/jam/internal/store"
	"github.com/jamhq/jam/internal/syncer"
)

type fakeUserStore struct {
	sessions      map[string]*store.User
	upserted      *store.User
	refreshTokens map[string]string
	sessionTokens map[string]string
}

func (f *fakeUserStore) UserBySessionToken(_ context.Context, token string) (*store.User, error) {
	if u, ok := f.sessions[token]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) UpsertGoogleUser(_ context.Context, googleID, email, name, avatar string) (*store.User, error) {
	f.upserted = &store.User{ID: "user1", GoogleID: googleID, Email: email, Name: name, Avatar: avatar}
	return f.upserted, nil
}

func (f *fakeUserStore) SaveRefreshToken(_ context.Context, userID, refreshToken string) error {
	if f.refreshTokens == nil {
		f.refreshTokens = map[string]string{}
	}
	f.refreshTokens[userID] = refreshToken
	return nil
}

func (f *fakeUserStore) SaveSessionToken(_ context.Context, userID, sessionToken string) error {
	if f.sessionTokens == nil {
		f.sessionTokens = map[string]string{}
	}
	f.sessionTokens[userID] = sessionToken
	return nil
}

type fakeFlow struct {
	exchangeErr error
	token       *oauth2.Token
}

func (f *fakeFlow) AuthURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (f *fakeFlow) Exchange(context.Context, string) (*oauth2.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.token, nil
}

type fakeSyncs struct {
	err       error
	triggered []string
}

func (f *fakeSyncs) Trigger(_ context.Context, ownerID string) error {
	if f.err != nil {
		return f.err
	}
	f.triggered = append(f.triggered, ownerID)
	return nil
}

func newTestServer(t *testing.T, us *fakeUserStore, flow *fakeFlow, syncs *fakeSyncs) *APIServer {
	t.Helper()
	srv, err := NewAPIServer(APIServerConfig{
		Store: us,
		OAuth: flow,
		Syncs: syncs,
		UserInfo: func(context.Context, *oauth2.Token) (*google.UserInfo, error) {
			return &google.UserInfo{ID: "g-123", Email: "jane@example.com", Name: "Jane"}, nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(srv.states.Stop)
	return srv
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func TestAuthURLIssuesState(t *testing.T) {
	srv := newTestServer(t, &fakeUserStore{}, &fakeFlow{}, &fakeSyncs{})

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/auth/google/url", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	url, _ := body["url"].(string)
	require.Contains(t, url, "state=")

	state := url[strings.Index(url, "state=")+len("state="):]
	assert.True(t, srv.states.Consume(state), "issued state is consumable exactly once")
	assert.False(t, srv.states.Consume(state), "state is single use")
}

func TestAuthCallbackConnectsMailbox(t *testing.T) {
	us := &fakeUserStore{}
	flow := &fakeFlow{token: &oauth2.Token{AccessToken: "at", RefreshToken: "rt"}}
	srv := newTestServer(t, us, flow, &fakeSyncs{})

	state, err := srv.states.Issue()
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet,
		"/auth/google/callback?code=abc&state="+state, nil))

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	require.NotNil(t, us.upserted)
	assert.Equal(t, "g-123", us.upserted.GoogleID)
	assert.Equal(t, "rt", us.refreshTokens["user1"])
	assert.Equal(t, token, us.sessionTokens["user1"])
}

func TestAuthCallbackKeepsStoredRefreshToken(t *testing.T) {
	// Re-consent without a refresh token must not clobber the stored one.
	us := &fakeUserStore{}
	flow := &fakeFlow{token: &oauth2.Token{AccessToken: "at"}}
	srv := newTestServer(t, us, flow, &fakeSyncs{})

	state, err := srv.states.Issue()
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet,
		"/auth/google/callback?code=abc&state="+state, nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, us.refreshTokens)
}

func TestAuthCallbackRejectsBadState(t *testing.T) {
	srv := newTestServer(t, &fakeUserStore{}, &fakeFlow{token: &oauth2.Token{}}, &fakeSyncs{})

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet,
		"/auth/google/callback?code=abc&state=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAuthCallbackExchangeFailure(t *testing.T) {
	srv := newTestServer(t, &fakeUserStore{},
		&fakeFlow{exchangeErr: errors.New("upstream says no")}, &fakeSyncs{})

	state, err := srv.states.Issue()
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet,
		"/auth/google/callback?code=abc&state="+state, nil))

	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestSyncGmailAccepted(t *testing.T) {
	us := &fakeUserStore{sessions: map[string]*store.User{
		"tok1": {ID: "user1", GmailRefreshToken: "rt"},
	}}
	syncs := &fakeSyncs{}
	srv := newTestServer(t, us, &fakeFlow{}, syncs)

	req := httptest.NewRequest(http.MethodPost, "/sync/gmail", nil)
	req.Header.Set("Authorization", "Bearer tok1")
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, req)

	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, "processing", decodeBody(t, resp)["status"])
	assert.Equal(t, []string{"user1"}, syncs.triggered)
}

func TestSyncGmailUnauthorized(t *testing.T) {
	srv := newTestServer(t, &fakeUserStore{}, &fakeFlow{}, &fakeSyncs{})

	// No header at all.
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/sync/gmail", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// Unknown token.
	req := httptest.NewRequest(http.MethodPost, "/sync/gmail", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp = httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestSyncGmailNoCredential(t *testing.T) {
	us := &fakeUserStore{sessions: map[string]*store.User{
		"tok1": {ID: "user1"},
	}}
	srv := newTestServer(t, us, &fakeFlow{}, &fakeSyncs{err: syncer.ErrNoCredential})

	req := httptest.NewRequest(http.MethodPost, "/sync/gmail", nil)
	req.Header.Set("Authorization", "Bearer tok1")
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSyncGmailQueueFull(t *testing.T) {
	us := &fakeUserStore{sessions: map[string]*store.User{
		"tok1": {ID: "user1", GmailRefreshToken: "rt"},
	}}
	srv := newTestServer(t, us, &fakeFlow{}, &fakeSyncs{err: scheduler.ErrQueueFull})

	req := httptest.NewRequest(http.MethodPost, "/sync/gmail", nil)
	req.Header.Set("Authorization", "Bearer tok1")
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeUserStore{}, &fakeFlow{}, &fakeSyncs{})
	h := srv.Handler()

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	// Draining fails readiness but keeps liveness.
	srv.health.SetShuttingDown()

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/sync/gmail", nil)

	_, ok := bearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "Basic abc")
	_, ok = bearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "Bearer abc")
	tok, ok := bearerToken(r)
	require.True(t, ok)
	assert.Equal(t, "abc", tok)
}
