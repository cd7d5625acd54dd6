// package services defines interface Service for the streaming provider APIs the reconciler consumes
package services

import (
	"context"

	"github.com/desertthunder/replay/internal/models"
	"golang.org/x/oauth2"
)

// Service defines the remote operations one reconciliation cycle consumes.
//
// The engine never talks to the network itself; everything it needs from
// the streaming provider goes through this interface.
type Service interface {
	// Authenticate installs credentials for subsequent calls.
	// Accepts an access_token/refresh_token pair or an auth_code to exchange.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// UserProfile retrieves the authenticated user's profile.
	UserProfile(ctx context.Context) (*Profile, error)

	// EnsurePlaylist verifies that playlistID still exists, creating a new
	// playlist with the given name when the ID is empty or gone.
	// Returns the playlist ID to use for this cycle.
	EnsurePlaylist(ctx context.Context, playlistID, name string) (string, error)

	// PlaylistTracks retrieves the full ordered track list of a playlist,
	// following pagination internally.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// RecentlyPlayed retrieves up to limit recently played events, newest first.
	RecentlyPlayed(ctx context.Context, limit int) ([]models.PlayEvent, error)

	// NowPlaying retrieves the currently playing track, or nil when playback
	// is stopped or the player is on a non-track item.
	NowPlaying(ctx context.Context) (*models.Track, error)

	// AppendTracks inserts tracks at the given position, batching as the
	// provider allows. Tracks the provider rejects are reported per track.
	AppendTracks(ctx context.Context, playlistID string, position int, tracks []models.Track) (*BatchResult, error)

	// RemoveTracks removes all occurrences of the given tracks by ID.
	RemoveTracks(ctx context.Context, playlistID string, tracks []models.Track) (*BatchResult, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService extends Service for providers using browser OAuth flows.
type OAuthService interface {
	Service

	// AuthURL returns the authorization URL for the given CSRF state token.
	AuthURL(state string) string

	// Exchange trades an authorization code for a token pair.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// CurrentToken returns the active token pair, refreshed if the transport
	// renewed it, so callers can persist it.
	CurrentToken() (*oauth2.Token, error)
}

// Profile represents the authenticated user's account on the provider.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
	Country     string
}

// BatchResult reports per-track outcomes of a playlist mutation batch.
type BatchResult struct {
	Succeeded []models.Track
	Rejected  []models.Track // Tracks the provider refused (unavailable, region-locked)
}

// RejectedIDs returns the IDs of rejected tracks for logging.
func (b *BatchResult) RejectedIDs() []string {
	ids := make([]string, len(b.Rejected))
	for i, track := range b.Rejected {
		ids[i] = track.ID
	}
	return ids
}
