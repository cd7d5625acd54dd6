package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/services"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/desertthunder/replay/internal/tasks"
	"golang.org/x/oauth2"
)

// stateTTL bounds how long a login attempt may sit between redirect and callback.
const stateTTL = 10 * time.Minute

// UserDirectory is the slice of the user repository the web app consumes.
type UserDirectory interface {
	GetBySpotifyID(spotifyID string) (*models.User, error)
	Create(user *models.User) error
	Update(user *models.User) error
	List(criteria map[string]any) ([]*models.User, error)
}

// RunLog exposes recorded sync outcomes for the status API.
type RunLog interface {
	List(criteria map[string]any) ([]*models.SyncRun, error)
}

// AuthFactory builds a fresh provider client for one OAuth exchange.
//
// Each callback gets its own client so concurrent logins never share a
// token source.
type AuthFactory func() (services.OAuthService, error)

// App is the multi-user web surface of the sync daemon.
//
// It registers listeners through the provider's OAuth flow and exposes a
// small JSON API for inspecting and triggering syncs.
type App struct {
	router  *BasicRouter
	users   UserDirectory
	runs    RunLog
	engine  tasks.SyncEngine
	newAuth AuthFactory
	logger  *log.Logger

	mu     sync.Mutex
	states map[string]time.Time // pending CSRF states by value
}

// NewApp wires the web application's routes and middleware.
func NewApp(users UserDirectory, runs RunLog, engine tasks.SyncEngine, newAuth AuthFactory, logger *log.Logger) *App {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	app := &App{
		router:  NewBasicRouter(),
		users:   users,
		runs:    runs,
		engine:  engine,
		newAuth: newAuth,
		logger:  logger,
		states:  make(map[string]time.Time),
	}

	app.router.Use(RequestID(), Logging(logger))
	app.router.HandleFunc(http.MethodGet, "/healthz", app.handleHealth)
	app.router.HandleFunc(http.MethodGet, "/login", app.handleLogin)
	app.router.HandleFunc(http.MethodGet, "/callback", app.handleCallback)
	app.router.HandleFunc(http.MethodGet, "/api/users", app.handleUsers)
	app.router.HandleFunc(http.MethodGet, "/api/runs", app.handleRuns)
	app.router.HandleFunc(http.MethodPost, "/api/sync", app.handleSync)

	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Serve blocks running the HTTP server on the given address.
func (a *App) Serve(addr string) error {
	a.logger.Info("web app listening", "addr", addr)
	return http.ListenAndServe(addr, a)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogin redirects the browser into the provider's authorization flow.
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	auth, err := a.newAuth()
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	state := shared.GenerateID()

	a.mu.Lock()
	a.pruneStates()
	a.states[state] = time.Now().Add(stateTTL)
	a.mu.Unlock()

	http.Redirect(w, r, auth.AuthURL(state), http.StatusFound)
}

// handleCallback completes the OAuth flow and registers (or refreshes) the user.
func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if !a.consumeState(state) {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid state parameter"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("authorization failed: %s", errParam))
		return
	}

	auth, err := a.newAuth()
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	ctx := r.Context()
	token, err := auth.Exchange(ctx, code)
	if err != nil {
		a.writeError(w, http.StatusBadGateway, err)
		return
	}

	credentials := map[string]string{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expiry":        token.Expiry.Format(time.RFC3339),
	}
	if err := auth.Authenticate(ctx, credentials); err != nil {
		a.writeError(w, http.StatusBadGateway, err)
		return
	}

	profile, err := auth.UserProfile(ctx)
	if err != nil {
		a.writeError(w, http.StatusBadGateway, err)
		return
	}

	user, err := a.upsertUser(profile, token)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	a.logger.Info("user authorized", "spotify_id", user.SpotifyID(), "display_name", user.DisplayName())

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, registeredPage, user.DisplayName())
}

// upsertUser stores the authorized account, updating tokens for returning users.
func (a *App) upsertUser(profile *services.Profile, token *oauth2.Token) (*models.User, error) {
	user, err := a.users.GetBySpotifyID(profile.ID)
	if err != nil {
		user = models.NewUser(0, profile.ID, profile.DisplayName)
		user.SetTokens(token.AccessToken, token.RefreshToken, token.Expiry)
		if err := a.users.Create(user); err != nil {
			return nil, fmt.Errorf("failed to register user: %w", err)
		}
		return user, nil
	}

	user.SetDisplayName(profile.DisplayName)
	user.SetTokens(token.AccessToken, token.RefreshToken, token.Expiry)
	if err := a.users.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// handleUsers lists registered users.
func (a *App) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.List(nil)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	type userView struct {
		SpotifyID   string     `json:"spotify_id"`
		DisplayName string     `json:"display_name"`
		ExpiresAt   *time.Time `json:"token_expires_at,omitempty"`
	}

	views := make([]userView, len(users))
	for i, user := range users {
		views[i] = userView{
			SpotifyID:   user.SpotifyID(),
			DisplayName: user.DisplayName(),
			ExpiresAt:   user.TokenExpiresAt(),
		}
	}

	a.writeJSON(w, http.StatusOK, views)
}

// handleRuns lists recent sync outcomes, optionally filtered to one user.
func (a *App) handleRuns(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{"limit": 20}

	if spotifyID := r.URL.Query().Get("user"); spotifyID != "" {
		user, err := a.users.GetBySpotifyID(spotifyID)
		if err != nil {
			a.writeError(w, http.StatusNotFound, err)
			return
		}
		criteria["user_id"] = user.ID()
	}

	runs, err := a.runs.List(criteria)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	type runView struct {
		UserID   string    `json:"user_id"`
		Status   string    `json:"status"`
		Added    int       `json:"added"`
		Removed  int       `json:"removed"`
		Rejected int       `json:"rejected"`
		Message  string    `json:"message,omitempty"`
		At       time.Time `json:"at"`
	}

	views := make([]runView, len(runs))
	for i, run := range runs {
		views[i] = runView{
			UserID:   run.UserID(),
			Status:   run.Status(),
			Added:    run.Added(),
			Removed:  run.Removed(),
			Rejected: run.Rejected(),
			Message:  run.Message(),
			At:       run.CreatedAt(),
		}
	}

	a.writeJSON(w, http.StatusOK, views)
}

// handleSync triggers a reconciliation cycle for one user (?user=spotify_id)
// or a full sweep (?all=true).
func (a *App) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.URL.Query().Get("all") == "true" {
		report, err := a.engine.SyncAll(ctx, nil)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		a.writeJSON(w, http.StatusOK, report)
		return
	}

	spotifyID := r.URL.Query().Get("user")
	if spotifyID == "" {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: user or all=true", shared.ErrMissingArgument))
		return
	}

	user, err := a.users.GetBySpotifyID(spotifyID)
	if err != nil {
		a.writeError(w, http.StatusNotFound, err)
		return
	}

	result, err := a.engine.ReconcileUser(ctx, nil, user.ID())
	if err != nil && result == nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	status := http.StatusOK
	if result.Status == models.SyncStatusSkipped {
		status = http.StatusConflict
	}
	a.writeJSON(w, status, result)
}

// consumeState validates a CSRF state token and removes it.
func (a *App) consumeState(state string) bool {
	if state == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	expiry, ok := a.states[state]
	delete(a.states, state)
	return ok && time.Now().Before(expiry)
}

// pruneStates drops expired login attempts. Caller holds a.mu.
func (a *App) pruneStates() {
	now := time.Now()
	for state, expiry := range a.states {
		if now.After(expiry) {
			delete(a.states, state)
		}
	}
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "err", err)
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, err error) {
	a.logger.Warn("request failed", "status", status, "err", err)
	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}

const registeredPage = `
<!DOCTYPE html>
<html>
<head>
    <title>Replay</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Welcome, %s</h1>
        <p>Replay will keep your playlist in step with your listening from here on.</p>
    </div>
</body>
</html>
`
