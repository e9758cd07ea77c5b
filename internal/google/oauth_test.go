package google

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamhq/jam/internal/config"
)

func testOAuth(t *testing.T) *OAuth {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Google.ClientID = "client-id"
	cfg.Google.ClientSecret = "client-secret"
	cfg.Google.RedirectURL = "https://jam.example.com/auth/google/callback"
	return NewOAuth(cfg)
}

func TestAuthURL(t *testing.T) {
	o := testOAuth(t)
	url := o.AuthURL("state-token")

	assert.True(t, strings.HasPrefix(url, "https://accounts.google.com/o/oauth2/auth"))
	assert.Contains(t, url, "client_id=client-id")
	assert.Contains(t, url, "state=state-token")
	assert.Contains(t, url, "access_type=offline")
	assert.Contains(t, url, "prompt=consent")
	assert.Contains(t, url, "gmail.readonly")
	assert.Contains(t, url, "userinfo.email")
}

func TestTokenSourceForcesRefresh(t *testing.T) {
	o := testOAuth(t)
	ts := o.TokenSource(context.Background(), "stored-refresh-token")
	assert.NotNil(t, ts)
}
