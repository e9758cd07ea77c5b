// Package google holds the OAuth2 plumbing for connecting a user's
// Gmail account: the consent URL, the authorization-code exchange,
// refresh-token sources for API calls, and the userinfo lookup used to
// identify the account after consent.
package google
