package google

// OAuthScopes are the scopes requested during the connect flow. Mailbox
// access is read-only; the userinfo scopes identify the account.
var OAuthScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/gmail.readonly",
}
