package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"

	"github.com/jamhq/jam/internal/config"
)

// OAuth wraps the oauth2 client configuration for the connect flow.
type OAuth struct {
	conf *oauth2.Config
}

// NewOAuth builds the OAuth2 configuration from service config.
func NewOAuth(cfg *config.Config) *OAuth {
	return &OAuth{
		conf: &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Endpoint:     googleauth.Endpoint,
			Scopes:       OAuthScopes,
		},
	}
}

// AuthURL returns the consent URL. Offline access with forced consent
// guarantees a refresh token even for users who authorized before.
func (o *OAuth) AuthURL(state string) string {
	return o.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	t, err := o.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange auth code: %w", err)
	}
	return t, nil
}

// TokenSource builds a self-refreshing source from a stored refresh
// token. The expiry is set in the past so the first use forces a
// refresh instead of trusting a stale access token.
func (o *OAuth) TokenSource(ctx context.Context, refreshToken string) oauth2.TokenSource {
	return o.conf.TokenSource(ctx, &oauth2.Token{
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
		Expiry:       expiredNow,
	})
}
