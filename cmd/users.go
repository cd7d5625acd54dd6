package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/replay/internal/formatter"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/urfave/cli/v3"
)

// UsersList lists registered users.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStores()
	if err != nil {
		return err
	}

	users, err := st.users.List(nil)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if cmd.Bool("json") {
		type userView struct {
			SpotifyID   string `json:"spotify_id"`
			DisplayName string `json:"display_name"`
		}
		views := make([]userView, len(users))
		for i, user := range users {
			views[i] = userView{SpotifyID: user.SpotifyID(), DisplayName: user.DisplayName()}
		}
		return r.writeJSON(views, true)
	}

	if len(users) == 0 {
		return r.writePlain("No registered users. Run 'replay auth' to add one.\n")
	}

	return r.writePlain("%s", formatter.UsersToText(users))
}

// UserRuns shows recent sync runs for one user, most recent first.
func (r *Runner) UserRuns(ctx context.Context, cmd *cli.Command) error {
	spotifyID := cmd.String("user")
	limit := cmd.Int("limit")

	st, err := r.openStores()
	if err != nil {
		return err
	}

	user, err := st.users.GetBySpotifyID(spotifyID)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, spotifyID)
	}

	runs, err := st.runs.List(map[string]any{"user_id": user.ID(), "limit": limit})
	if err != nil {
		return fmt.Errorf("failed to list sync runs: %w", err)
	}

	if len(runs) == 0 {
		return r.writePlain("No sync runs recorded for %s yet.\n", spotifyID)
	}

	return r.writePlain("%s", formatter.RunsToText(runs))
}

// UserRemove unregisters a user.
//
// The managed playlist stays on Spotify; only the local registration and
// sync history stop.
func (r *Runner) UserRemove(ctx context.Context, cmd *cli.Command) error {
	spotifyID := cmd.String("user")

	st, err := r.openStores()
	if err != nil {
		return err
	}

	user, err := st.users.GetBySpotifyID(spotifyID)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, spotifyID)
	}

	if record, err := st.playlists.GetByUserID(user.ID()); err == nil {
		if err := st.playlists.Delete(record.ID()); err != nil {
			r.logger.Warn("failed to remove playlist record", "error", err)
		}
	}

	if err := st.users.Delete(user.ID()); err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}

	return r.writePlain("✓ Unregistered %s; their playlist will no longer be synced\n", spotifyID)
}
