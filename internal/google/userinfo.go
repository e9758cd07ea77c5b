package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var expiredNow = time.Unix(1, 0)

// UserInfo identifies the Google account that completed consent.
type UserInfo struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// FetchUserInfo resolves the account behind a freshly exchanged token.
func FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	svc, err := oauth2api.NewService(ctx,
		option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("build userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	return &UserInfo{
		ID:      info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
