package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/server"
	"github.com/desertthunder/replay/internal/services"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Auth performs the OAuth2 authorization flow and registers the account for syncing.
//
// Starts a local HTTP server, opens the browser for user authorization,
// exchanges the auth code for tokens, and stores the account in the database.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	r.config = r.loadConfig(cmd.String("config"))

	svc, err := r.newSpotifyService()
	if err != nil {
		return err
	}

	token, err := r.doOAuth(svc)
	if err != nil {
		return err
	}

	credentials := map[string]string{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expiry":        token.Expiry.Format(time.RFC3339),
	}
	if err := svc.Authenticate(ctx, credentials); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	profile, err := svc.UserProfile(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch user profile: %w", err)
	}

	st, err := r.openStores()
	if err != nil {
		return err
	}

	user, err := st.users.GetBySpotifyID(profile.ID)
	if err != nil {
		user = models.NewUser(0, profile.ID, profile.DisplayName)
		user.SetTokens(token.AccessToken, token.RefreshToken, token.Expiry)
		if err := st.users.Create(user); err != nil {
			return fmt.Errorf("failed to register user: %w", err)
		}
		r.writePlainln("✓ Authorization successful")
		r.writePlain("✓ Registered %s (%s) for playlist syncing\n\n", profile.DisplayName, profile.ID)
		r.writePlain("You can now use: replay sync --user %s\n", profile.ID)
		return nil
	}

	user.SetDisplayName(profile.DisplayName)
	user.SetTokens(token.AccessToken, token.RefreshToken, token.Expiry)
	if err := st.users.Update(user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	r.writePlainln("✓ Reauthorization successful")
	r.writePlain("✓ Refreshed tokens for %s\n", profile.ID)
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(oauthSrv services.OAuthService) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.AuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.Exchange, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}
