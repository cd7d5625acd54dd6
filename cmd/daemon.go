package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/replay/internal/formatter"
	"github.com/desertthunder/replay/internal/server"
	"github.com/desertthunder/replay/internal/services"
	"github.com/desertthunder/replay/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Daemon runs the periodic sweep scheduler, and unless disabled, the
// registration web app alongside it.
//
// Every tick re-derives each user's playlist from a fresh fetch, so a missed
// or failed sweep needs no recovery step beyond the next tick.
func (r *Runner) Daemon(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStores()
	if err != nil {
		return err
	}
	engine := r.buildEngine(st)

	interval := r.config.Sync.TickInterval()
	if raw := cmd.String("interval"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("invalid interval %q: %v", raw, err)
		}
		interval = parsed
	}

	if !cmd.Bool("no-web") {
		factory := func() (services.OAuthService, error) {
			return r.newSpotifyService()
		}
		app := server.NewApp(st.users, st.runs, engine, factory, r.logger)

		addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
		go func() {
			if err := app.Serve(addr); err != nil {
				r.logger.Error("web app stopped", "error", err)
			}
		}()
	}

	r.logger.Info("sync daemon started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First sweep runs immediately rather than waiting a full interval.
	r.sweep(ctx, engine)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sync daemon stopping")
			return nil
		case <-ticker.C:
			r.sweep(ctx, engine)
		}
	}
}

func (r *Runner) sweep(ctx context.Context, engine *tasks.PlaylistEngine) {
	report, err := engine.SyncAll(ctx, nil)
	if err != nil {
		r.logger.Error("sweep failed", "error", err)
		return
	}

	r.logger.Info("sweep complete",
		"users", report.TotalUsers,
		"synced", report.Succeeded,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	if report.Failed > 0 {
		r.logger.Debugf("sweep detail:\n%s", formatter.ReportToText(report))
	}
}
