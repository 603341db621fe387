package model

import "time"

// Credentials is the credential material for one tenant (seller account).
// The sync core only ever rewrites AccessToken and TokenExpiry; the refresh
// token is owned by the onboarding flow and is never modified here.
type Credentials struct {
	TenantID      string
	MarketplaceID string
	ClientID      string
	ClientSecret  string
	RefreshToken  string
	AccessToken   string
	TokenExpiry   *time.Time
}

// HasValidToken reports whether the cached access token is still usable with
// the given safety margin before expiry.
func (c *Credentials) HasValidToken(margin time.Duration, now time.Time) bool {
	if c.AccessToken == "" || c.TokenExpiry == nil {
		return false
	}
	return c.TokenExpiry.After(now.Add(margin))
}
