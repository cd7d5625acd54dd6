package models

import (
	"fmt"
	"time"
)

// User represents a registered listener whose playlist is kept in sync.
//
// Stores the Spotify account identifier and the OAuth2 token pair needed
// to act on the user's behalf between interactive sessions.
type User struct {
	entity
	spotifyID      string
	displayName    string
	accessToken    string
	refreshToken   string
	tokenExpiresAt *time.Time
}

// NewUser creates a User for the given Spotify account.
func NewUser(sequence int, spotifyID, displayName string) *User {
	return &User{
		entity:      newEntity(sequence),
		spotifyID:   spotifyID,
		displayName: displayName,
	}
}

func (u *User) SpotifyID() string          { return u.spotifyID }
func (u *User) DisplayName() string        { return u.displayName }
func (u *User) AccessToken() string        { return u.accessToken }
func (u *User) RefreshToken() string       { return u.refreshToken }
func (u *User) TokenExpiresAt() *time.Time { return u.tokenExpiresAt }

// SetDisplayName updates the cached display name.
func (u *User) SetDisplayName(name string) { u.displayName = name }

// SetTokens stores a fresh OAuth2 token pair.
//
// An empty refresh token keeps the previous one: Spotify only returns a
// refresh token on the initial authorization.
func (u *User) SetTokens(accessToken, refreshToken string, expiresAt time.Time) {
	u.accessToken = accessToken
	if refreshToken != "" {
		u.refreshToken = refreshToken
	}
	if !expiresAt.IsZero() {
		u.tokenExpiresAt = &expiresAt
	}
}

// TokenExpired reports whether the stored access token has passed its expiry.
func (u *User) TokenExpired(now time.Time) bool {
	return u.tokenExpiresAt != nil && u.tokenExpiresAt.Before(now)
}

// Validate checks that the user record is persistable.
func (u *User) Validate() error {
	if u.spotifyID == "" {
		return fmt.Errorf("user missing spotify ID")
	}
	return nil
}
