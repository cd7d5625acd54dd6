package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/replay/internal/formatter"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/urfave/cli/v3"
)

// Snapshot exports a user's managed playlist to a file.
func (r *Runner) Snapshot(ctx context.Context, cmd *cli.Command) error {
	spotifyID := cmd.String("user")
	format := cmd.String("format")
	output := cmd.String("output")

	st, err := r.openStores()
	if err != nil {
		return err
	}

	user, err := st.users.GetBySpotifyID(spotifyID)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, spotifyID)
	}

	record, err := st.playlists.GetByUserID(user.ID())
	if err != nil {
		return fmt.Errorf("%w: no managed playlist for %s yet (run 'replay sync' first)", shared.ErrPlaylistNotFound, spotifyID)
	}

	svc, err := r.serviceFactory()(ctx, user)
	if err != nil {
		return err
	}

	tracks, err := svc.PlaylistTracks(ctx, record.SpotifyPlaylistID())
	if err != nil {
		return fmt.Errorf("failed to fetch playlist tracks: %w", err)
	}

	written, err := formatter.WriteSnapshot(record.Name(), tracks, format, output)
	if err != nil {
		return err
	}

	r.writePlain("✓ Playlist exported to %s\n", written)
	r.writePlain("  Playlist: %s\n", record.Name())
	r.writePlain("  Tracks: %d\n", len(tracks))
	return nil
}
