package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/repositories"
	"github.com/desertthunder/replay/internal/services"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/desertthunder/replay/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
	db     *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
	DB     *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
		db:     opts.DB,
	}
}

// SetLogger swaps the runner's logger, used when the TUI takes over the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, usersCommand, snapshotCommand, daemonCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openDatabase opens (and caches) the configured SQLite database.
func (r *Runner) openDatabase() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.db = db
	return db, nil
}

// stores bundles the repositories backing the sync engine.
type stores struct {
	users     *repositories.UserRepository
	playlists *repositories.PlaylistRepository
	runs      *repositories.SyncRunRepository
}

func (r *Runner) openStores() (*stores, error) {
	db, err := r.openDatabase()
	if err != nil {
		return nil, err
	}

	return &stores{
		users:     repositories.NewUserRepository(db),
		playlists: repositories.NewPlaylistRepository(db),
		runs:      repositories.NewSyncRunRepository(db),
	}, nil
}

// newSpotifyService builds an unauthenticated Spotify client from config credentials.
func (r *Runner) newSpotifyService() (*services.SpotifyService, error) {
	if !r.config.Credentials.Spotify.Valid() {
		return nil, fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}
	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map())
	if err != nil {
		return nil, err
	}
	svc.SetRequestTimeout(r.config.Sync.RequestTimeout())
	return svc, nil
}

// serviceFactory builds the per-user authenticated client the sync engine uses.
func (r *Runner) serviceFactory() tasks.ServiceFactory {
	return func(ctx context.Context, user *models.User) (services.Service, error) {
		svc, err := r.newSpotifyService()
		if err != nil {
			return nil, err
		}

		if user.AccessToken() == "" && user.RefreshToken() == "" {
			return nil, fmt.Errorf("%w: user %s has no stored tokens", shared.ErrNotAuthenticated, user.SpotifyID())
		}

		credentials := map[string]string{
			"access_token":  user.AccessToken(),
			"refresh_token": user.RefreshToken(),
		}
		if at := user.TokenExpiresAt(); at != nil {
			credentials["expiry"] = at.Format(time.RFC3339)
		}

		if err := svc.Authenticate(ctx, credentials); err != nil {
			return nil, err
		}
		return svc, nil
	}
}

// buildEngine wires the sync engine from config, stores, and the service factory.
func (r *Runner) buildEngine(st *stores) *tasks.PlaylistEngine {
	opts := tasks.Options{
		Capacity:     r.config.Sync.Capacity,
		HistoryLimit: r.config.Sync.HistoryLimit,
		NumWorkers:   r.config.Sync.NumWorkers,
		RateLimit:    r.config.Sync.RateLimit,
		PlaylistName: r.config.Sync.PlaylistName,
	}

	return tasks.NewPlaylistEngine(st.users, st.playlists, st.runs, r.serviceFactory(), opts, r.logger)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
