// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand registers a listener through the Spotify OAuth flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authorize a Spotify account and register it for syncing",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Auth,
	}
}

// syncCommand runs reconciliation cycles.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile managed playlists with recent listening",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Spotify ID of the user to sync",
			},
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "Sync every registered user",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output sweep results as CSV",
			},
		},
		Action: r.Sync,
	}
}

// usersCommand inspects registered listeners and their sync history.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Registered listener operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List registered users",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.UsersList,
			},
			{
				Name:  "runs",
				Usage: "Show recent sync runs for a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Spotify ID of the user",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 10,
					},
				},
				Action: r.UserRuns,
			},
			{
				Name:  "remove",
				Usage: "Unregister a user and stop syncing their playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Spotify ID of the user",
						Required: true,
					},
				},
				Action: r.UserRemove,
			},
		},
	}
}

// snapshotCommand exports a user's managed playlist to a file.
func snapshotCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Export a user's managed playlist",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "Spotify ID of the user",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format: text, csv, markdown, json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path",
			},
		},
		Action: r.Snapshot,
	}
}

// daemonCommand runs the sync scheduler and web app.
func daemonCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "Run the periodic sync scheduler with the registration web app",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "interval",
				Usage: "Sweep interval (e.g. 5m, 90s); defaults to the configured value",
			},
			&cli.BoolFlag{
				Name:  "no-web",
				Usage: "Run the scheduler without the web app",
			},
		},
		Action: r.Daemon,
	}
}

// tuiCommand launches the interactive terminal interface.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Interactive terminal interface for browsing users and running syncs",
		Action: r.TUI,
	}
}
