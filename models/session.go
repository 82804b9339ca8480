package models

import "time"

// TokenRecord holds the Trakt OAuth credentials owned by a session.
type TokenRecord struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	ClientID     string    `json:"clientId"`
	ClientSecret string    `json:"clientSecret"`
}

// IsZero reports whether no token has been stored at all.
func (t TokenRecord) IsZero() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// IsExpired returns true if the access token is past its expiry.
func (t TokenRecord) IsExpired() bool {
	return t.AccessToken == "" || time.Now().After(t.ExpiresAt)
}

// ExpiresSoon returns true if the token has less than the given lifetime
// remaining. Used to trigger refresh-on-next-use.
func (t TokenRecord) ExpiresSoon(within time.Duration) bool {
	return time.Until(t.ExpiresAt) < within
}

// Session represents one linked Trakt user, keyed by an opaque identifier.
// A Session whose TokenRecord is invalid is treated as unauthenticated.
type Session struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"createdAt"`
	Username  string      `json:"username,omitempty"`
	Token     TokenRecord `json:"token"`
}

// Authenticated reports whether the session owns a usable token record
// (valid now, or refreshable).
func (s Session) Authenticated() bool {
	return !s.Token.IsZero() && (!s.Token.IsExpired() || s.Token.RefreshToken != "")
}
