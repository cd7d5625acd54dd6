// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Spotify caps playlist mutation batches and track pages at 100 items.
	spotifyPageLimit  = 100
	spotifyBatchLimit = 100

	// defaultRequestTimeout bounds each API call so a stalled connection
	// cannot pin a user's sync lock for the rest of the process lifetime.
	defaultRequestTimeout = 30 * time.Second
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"` // nil for removed/local items
}

// SpotifyPlaylistTracksPage represents one page of a playlist's track listing.
type SpotifyPlaylistTracksPage struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

// SpotifyPlayHistoryItem represents one entry of the recently-played feed.
type SpotifyPlayHistoryItem struct {
	Track    SpotifyTrack `json:"track"`
	PlayedAt string       `json:"played_at"`
}

// SpotifyRecentlyPlayed represents the recently-played response.
type SpotifyRecentlyPlayed struct {
	Items []SpotifyPlayHistoryItem `json:"items"`
}

// SpotifyCurrentlyPlaying represents the currently-playing response.
type SpotifyCurrentlyPlaying struct {
	Item             *SpotifyTrack `json:"item"`
	IsPlaying        bool          `json:"is_playing"`
	CurrentlyPlaying string        `json:"currently_playing_type"`
}

// SpotifyService implements [Service] and [OAuthService] for the Spotify Web API.
// Uses [oauth2] for authentication with automatic token refresh.
type SpotifyService struct {
	config      *oauth2.Config
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	baseURL     string
	timeout     time.Duration
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-currently-playing",
			"user-read-recently-played",
			"playlist-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
		timeout:    defaultRequestTimeout,
	}, nil
}

// SetRequestTimeout overrides the per-call deadline applied to every API
// request. Non-positive values disable the deadline.
func (s *SpotifyService) SetRequestTimeout(d time.Duration) {
	s.timeout = d
}

// Authenticate installs a token pair or exchanges an auth code.
//
// Expects "access_token" (optionally with "refresh_token" and "expiry" in
// RFC 3339) or "auth_code" in credentials. The resulting client refreshes
// tokens transparently; callers persist the latest pair via [SpotifyService.CurrentToken].
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		token := &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
		}
		if raw, ok := credentials["expiry"]; ok && raw != "" {
			if expiry, err := time.Parse(time.RFC3339, raw); err == nil {
				token.Expiry = expiry
			}
		}
		s.setToken(ctx, token)
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		s.setToken(ctx, token)
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

func (s *SpotifyService) setToken(ctx context.Context, token *oauth2.Token) {
	s.tokenSource = s.config.TokenSource(ctx, token)
	s.httpClient = oauth2.NewClient(ctx, s.tokenSource)
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token pair.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange failed: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// CurrentToken returns the active token pair, including any refresh the
// transport performed since Authenticate.
func (s *SpotifyService) CurrentToken() (*oauth2.Token, error) {
	if s.tokenSource == nil {
		return nil, shared.ErrNotAuthenticated
	}
	token, err := s.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return token, nil
}

// doRequest performs an authenticated request against the Spotify API,
// decoding a JSON response into result when one is given.
//
// Returns the HTTP status code so callers can distinguish 200 from 204.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) (int, error) {
	if s.tokenSource == nil {
		return 0, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	apiURL := s.baseURL + endpoint

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %v", shared.ErrTimeout, err)
		}
		return 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return resp.StatusCode, err
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// classifyStatus maps HTTP statuses to the shared error taxonomy.
//
// Transient statuses (429, 5xx) and auth statuses (401, 403) map to distinct
// sentinels so the orchestrator can decide between retry-next-tick and
// reauthorization.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", shared.ErrTokenExpired, code)
	case code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrAuthFailed, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", shared.ErrPlaylistNotFound, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", shared.ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, code)
	default:
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, code)
	}
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*Profile, error) {
	var user SpotifyUser
	if _, err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}

	return &Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
	}, nil
}

// EnsurePlaylist verifies the playlist still exists, creating a replacement
// when the ID is empty or the playlist was deleted on the Spotify side.
func (s *SpotifyService) EnsurePlaylist(ctx context.Context, playlistID, name string) (string, error) {
	if playlistID != "" {
		var playlist SpotifyPlaylist
		endpoint := fmt.Sprintf("/playlists/%s?fields=id,name", playlistID)
		_, err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &playlist)
		if err == nil {
			return playlist.ID, nil
		}
		if !isNotFound(err) {
			return "", err
		}
	}

	profile, err := s.UserProfile(ctx)
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"name":        name,
		"public":      false,
		"description": "Your recent listening, kept fresh by Replay",
	}

	var created SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", profile.ID)
	if _, err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return "", err
	}

	return created.ID, nil
}

// PlaylistTracks retrieves all tracks in a playlist, following pagination.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var all []models.Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, spotifyPageLimit, offset)

		var page SpotifyPlaylistTracksPage
		if _, err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch playlist page at offset %d: %w", offset, err)
		}

		for _, item := range page.Items {
			// Episodes and locally deleted items come back with a nil track.
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			all = append(all, toTrack(*item.Track))
		}

		offset += len(page.Items)
		if page.Next == nil || len(page.Items) == 0 || offset >= page.Total {
			break
		}
	}

	return all, nil
}

// RecentlyPlayed retrieves up to limit recently played events, newest first.
func (s *SpotifyService) RecentlyPlayed(ctx context.Context, limit int) ([]models.PlayEvent, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/me/player/recently-played?limit=%d", limit)

	var response SpotifyRecentlyPlayed
	if _, err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	events := make([]models.PlayEvent, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Track.ID == "" {
			continue
		}

		playedAt, err := time.Parse(time.RFC3339, item.PlayedAt)
		if err != nil {
			// The feed is ordered; a missing timestamp only loses tie-break precision.
			playedAt = time.Time{}
		}

		events = append(events, models.PlayEvent{
			Track:    toTrack(item.Track),
			PlayedAt: playedAt,
		})
	}

	return events, nil
}

// NowPlaying retrieves the currently playing track.
//
// Returns nil without error when nothing is playing (204), playback is
// paused, or the active item is an episode rather than a track.
func (s *SpotifyService) NowPlaying(ctx context.Context) (*models.Track, error) {
	var response SpotifyCurrentlyPlaying
	status, err := s.doRequest(ctx, http.MethodGet, "/me/player/currently-playing", nil, &response)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNoContent || !response.IsPlaying || response.Item == nil || response.Item.ID == "" {
		return nil, nil
	}

	track := toTrack(*response.Item)
	return &track, nil
}

// AppendTracks inserts tracks at the given position in batches of up to 100.
//
// A rejected batch (400) is retried track by track so one unavailable track
// does not sink the rest; the stragglers are reported in the result.
func (s *SpotifyService) AppendTracks(ctx context.Context, playlistID string, position int, tracks []models.Track) (*BatchResult, error) {
	result := &BatchResult{}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)

	offset := 0
	for start := 0; start < len(tracks); start += spotifyBatchLimit {
		end := min(start+spotifyBatchLimit, len(tracks))
		chunk := tracks[start:end]

		body := map[string]any{
			"uris":     trackURIs(chunk),
			"position": position + offset,
		}

		_, err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil)
		if err == nil {
			result.Succeeded = append(result.Succeeded, chunk...)
			offset += len(chunk)
			continue
		}
		if !isRejection(err) {
			return result, err
		}

		// Isolate the rejected tracks within the chunk.
		for _, track := range chunk {
			body := map[string]any{
				"uris":     []string{trackURI(track)},
				"position": position + offset,
			}
			if _, err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil); err != nil {
				if !isRejection(err) {
					return result, err
				}
				result.Rejected = append(result.Rejected, track)
				continue
			}
			result.Succeeded = append(result.Succeeded, track)
			offset++
		}
	}

	return result, nil
}

// RemoveTracks removes all occurrences of the given tracks by URI in batches
// of up to 100. Removal is keyed by identifier, never by position, so a
// whole batch cannot drift.
func (s *SpotifyService) RemoveTracks(ctx context.Context, playlistID string, tracks []models.Track) (*BatchResult, error) {
	result := &BatchResult{}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)

	for start := 0; start < len(tracks); start += spotifyBatchLimit {
		end := min(start+spotifyBatchLimit, len(tracks))
		chunk := tracks[start:end]

		_, err := s.doRequest(ctx, http.MethodDelete, endpoint, removalBody(chunk), nil)
		if err == nil {
			result.Succeeded = append(result.Succeeded, chunk...)
			continue
		}
		if !isRejection(err) {
			return result, err
		}

		for _, track := range chunk {
			if _, err := s.doRequest(ctx, http.MethodDelete, endpoint, removalBody([]models.Track{track}), nil); err != nil {
				if !isRejection(err) {
					return result, err
				}
				result.Rejected = append(result.Rejected, track)
				continue
			}
			result.Succeeded = append(result.Succeeded, track)
		}
	}

	return result, nil
}

func removalBody(tracks []models.Track) map[string]any {
	uris := make([]map[string]string, len(tracks))
	for i, track := range tracks {
		uris[i] = map[string]string{"uri": trackURI(track)}
	}
	return map[string]any{"tracks": uris}
}

func toTrack(st SpotifyTrack) models.Track {
	track := models.Track{
		ID:       st.ID,
		Title:    st.Name,
		Album:    st.Album.Name,
		Duration: st.DurationMS / 1000,
	}
	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
	}
	return track
}

func trackURI(track models.Track) string {
	return "spotify:track:" + track.ID
}

func trackURIs(tracks []models.Track) []string {
	uris := make([]string, len(tracks))
	for i, track := range tracks {
		uris[i] = trackURI(track)
	}
	return uris
}

// isRejection reports whether the error is a per-request rejection (bad or
// unavailable track) rather than an auth, rate limit, or availability
// failure that should abort the cycle.
func isRejection(err error) bool {
	return errors.Is(err, shared.ErrAPIRequest)
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrPlaylistNotFound)
}
