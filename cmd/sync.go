package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/replay/internal/formatter"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/desertthunder/replay/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync runs one reconciliation cycle for a user or a sweep over everyone.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	spotifyID := cmd.String("user")
	all := cmd.Bool("all")
	useJSON := cmd.Bool("json")
	useCSV := cmd.Bool("csv")

	if spotifyID == "" && !all {
		return fmt.Errorf("%w: --user or --all", shared.ErrMissingArgument)
	}
	if spotifyID != "" && all {
		return fmt.Errorf("%w: cannot combine --user and --all", shared.ErrInvalidArgument)
	}

	st, err := r.openStores()
	if err != nil {
		return err
	}
	engine := r.buildEngine(st)

	progress := make(chan tasks.ProgressUpdate, 50)
	go func() {
		for update := range progress {
			r.logger.Debug(update.Message, "phase", update.Phase.String())
		}
	}()
	defer close(progress)

	if all {
		report, err := engine.SyncAll(ctx, progress)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		switch {
		case useJSON:
			return r.writeJSON(report, true)
		case useCSV:
			data, err := formatter.ReportToCSV(report)
			if err != nil {
				return err
			}
			return r.writePlain("%s", data)
		default:
			return r.writePlain("%s", formatter.ReportToText(report))
		}
	}

	user, err := st.users.GetBySpotifyID(spotifyID)
	if err != nil {
		return fmt.Errorf("%w: %s (run 'replay auth' first)", shared.ErrUserNotFound, spotifyID)
	}

	result, err := engine.ReconcileUser(ctx, progress, user.ID())
	if err != nil && !errors.Is(err, shared.ErrSyncInProgress) {
		if result != nil {
			r.writePlain("%s", formatter.ResultToText(result))
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	if useJSON {
		return r.writeJSON(result, true)
	}
	return r.writePlain("%s", formatter.ResultToText(result))
}
