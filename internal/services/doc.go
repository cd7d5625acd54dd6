// Package services defines the [Service] interface for the streaming provider and implements it for the Spotify Web API.
//
// # Service Interface
//
// [Service] is the complete set of remote operations one reconciliation
// cycle consumes: fetch the playlist, fetch the listening window, and push
// mutation batches. The engine and orchestrator depend only on this
// interface, so tests run against mocks and the provider can be swapped.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Config.TokenSource] refreshes expired tokens using the stored
// refresh token; callers read the refreshed pair back through
// [SpotifyService.CurrentToken] to persist it.
//
// # Batching
//
// Playlist mutations go out in batches of up to 100 tracks, the API's cap.
// When Spotify rejects a batch outright the service retries its members one
// by one and reports the rejected tracks in [BatchResult] instead of
// failing the cycle.
//
// # Error Handling
//
// Responses map onto the shared error taxonomy:
//   - [shared.ErrTokenExpired] / [shared.ErrAuthFailed] : reauthorization needed (401/403)
//   - [shared.ErrRateLimited] : request budget exhausted (429)
//   - [shared.ErrServiceUnavailable] : provider-side failure (5xx)
//   - [shared.ErrPlaylistNotFound] : playlist deleted out from under us (404)
//   - [shared.ErrAPIRequest] : per-request rejection (400 and friends)
//
// The orchestrator treats the first three as cycle-aborting and the rest as
// conditions the next cycle's re-fetch self-corrects.
package services
