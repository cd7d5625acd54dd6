// Package server provides HTTP routing, middleware, and the web surface of the sync daemon.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the one-shot OAuth2 authorization code callback used by the CLI login flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Web Application
//
// [App] is the daemon's multi-user surface. Listeners register through the
// provider OAuth flow at /login, and a small JSON API exposes registered
// users, recent sync outcomes, and manual sync triggers:
//
//	GET  /healthz    → liveness probe
//	GET  /login      → redirect into the provider authorization flow
//	GET  /callback   → complete authorization, register or refresh the user
//	GET  /api/users  → registered users
//	GET  /api/runs   → recent sync outcomes (?user= filters to one account)
//	POST /api/sync   → run a cycle (?user=) or a full sweep (?all=true)
//
// Unlike [OAuthHandler], [App] tracks many concurrent login attempts; each
// pending state token expires after ten minutes.
package server
