// package tasks orchestrates playlist reconciliation cycles.
//
// The core abstraction is SyncEngine, which drives one fetch → reconcile →
// plan → execute cycle per user and sweeps all registered users with bounded
// concurrency. Operations emit progress updates via channels for
// non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/replay/internal/engine"
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/services"
	"github.com/desertthunder/replay/internal/shared"
)

// SyncResult is the outcome of one reconciliation cycle for one user.
type SyncResult struct {
	UserID     string        `json:"user_id"`
	SpotifyID  string        `json:"spotify_id"`
	PlaylistID string        `json:"playlist_id,omitempty"`
	Status     string        `json:"status"`
	Added      int           `json:"added"`
	Removed    int           `json:"removed"`
	Rejected   []string      `json:"rejected,omitempty"` // Track IDs the provider refused
	Message    string        `json:"message,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// SweepReport aggregates the results of one all-users sweep.
type SweepReport struct {
	TotalUsers int           `json:"total_users"`
	Succeeded  int           `json:"succeeded"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Results    []*SyncResult `json:"results"`
}

// UserStore is the slice of the user repository the engine consumes.
type UserStore interface {
	Get(id string) (*models.User, error)
	List(criteria map[string]any) ([]*models.User, error)
	Update(user *models.User) error
}

// PlaylistStore is the slice of the playlist repository the engine consumes.
type PlaylistStore interface {
	GetByUserID(userID string) (*models.PlaylistRecord, error)
	Create(record *models.PlaylistRecord) error
	Update(record *models.PlaylistRecord) error
}

// RunStore records cycle outcomes.
type RunStore interface {
	Create(run *models.SyncRun) error
}

// ServiceFactory builds an authenticated provider client for a user from
// their stored token pair.
type ServiceFactory func(ctx context.Context, user *models.User) (services.Service, error)

// SyncEngine defines the reconciliation operations exposed to the CLI and daemon.
type SyncEngine interface {
	// ReconcileUser drives one full cycle for one user.
	ReconcileUser(ctx context.Context, progress chan<- ProgressUpdate, userID string) (*SyncResult, error)

	// SyncAll runs a cycle for every registered user with bounded concurrency.
	SyncAll(ctx context.Context, progress chan<- ProgressUpdate) (*SweepReport, error)
}

// Options contains tunables for a PlaylistEngine.
type Options struct {
	Capacity     int     // Maximum playlist size (default engine.DefaultCapacity)
	HistoryLimit int     // Recently played fetch size (default 50)
	NumWorkers   int     // Concurrent user syncs (default 4)
	RateLimit    float64 // Cycle dispatches per second during sweeps (default 5)
	PlaylistName string  // Name for newly created playlists (default "Replay")
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = engine.DefaultCapacity
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
	if o.NumWorkers <= 0 {
		o.NumWorkers = 4
	}
	if o.NumWorkers > 10 {
		o.NumWorkers = 10
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 5.0
	}
	if o.PlaylistName == "" {
		o.PlaylistName = "Replay"
	}
	return o
}

// PlaylistEngine implements SyncEngine.
//
// Each cycle re-derives the previous playlist state from a fresh remote
// fetch rather than trusting anything cached from earlier cycles; a crashed
// or partially failed cycle is healed by the next one for free.
type PlaylistEngine struct {
	users     UserStore
	playlists PlaylistStore
	runs      RunStore
	factory   ServiceFactory
	opts      Options
	locks     *userLocks
	logger    *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine with the provided stores and service factory.
func NewPlaylistEngine(users UserStore, playlists PlaylistStore, runs RunStore, factory ServiceFactory, opts Options, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &PlaylistEngine{
		users:     users,
		playlists: playlists,
		runs:      runs,
		factory:   factory,
		opts:      opts.withDefaults(),
		locks:     newUserLocks(),
		logger:    logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// ReconcileUser drives one full reconciliation cycle for one user.
//
// A cycle whose user is already mid-cycle is skipped, not queued. Fetch
// failures abort before any remote mutation; partial batch rejections are
// reported in the result and self-correct on the next cycle's re-fetch.
func (e *PlaylistEngine) ReconcileUser(ctx context.Context, progress chan<- ProgressUpdate, userID string) (*SyncResult, error) {
	release, ok := e.locks.TryAcquire(userID)
	if !ok {
		result := &SyncResult{
			UserID:  userID,
			Status:  models.SyncStatusSkipped,
			Message: shared.ErrSyncInProgress.Error(),
		}
		return result, fmt.Errorf("%w: user %s", shared.ErrSyncInProgress, userID)
	}
	defer release()

	started := time.Now()

	user, err := e.users.Get(userID)
	if err != nil {
		// The store distinguishes a missing user from a failing database;
		// keep that distinction for callers.
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	result := &SyncResult{UserID: user.ID(), SpotifyID: user.SpotifyID()}

	svc, err := e.factory(ctx, user)
	if err != nil {
		return e.finish(result, started, err), err
	}

	err = e.runCycle(ctx, progress, user, svc, result)

	// The oauth transport may have refreshed the token mid-cycle; persist
	// the latest pair regardless of how the cycle ended.
	e.persistTokens(user, svc)

	return e.finish(result, started, err), err
}

// runCycle executes the fetch → reconcile → plan → execute pipeline.
func (e *PlaylistEngine) runCycle(ctx context.Context, progress chan<- ProgressUpdate, user *models.User, svc services.Service, result *SyncResult) error {
	logger := e.logger.With("user", user.SpotifyID())

	e.sendProgress(progress, ensurePlaylistUpdate())
	playlistID, err := e.ensurePlaylist(ctx, user, svc)
	if err != nil {
		return fmt.Errorf("failed to ensure playlist: %w", err)
	}
	result.PlaylistID = playlistID

	raw, err := svc.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist tracks: %w", err)
	}
	e.sendProgress(progress, fetchPlaylistUpdate(len(raw)))

	previous := engine.Normalize(raw, e.opts.Capacity)

	window, err := e.fetchWindow(ctx, svc)
	if err != nil {
		return fmt.Errorf("failed to fetch listening window: %w", err)
	}
	e.sendProgress(progress, fetchHistoryUpdate(len(window.Events), window.NowPlaying != nil))

	target := engine.Reconcile(previous, window, e.opts.Capacity)
	plan := engine.NewPlan(previous, target)
	e.sendProgress(progress, computePlanUpdate(len(plan.Removals), len(plan.Insertions)))

	if plan.Empty() {
		logger.Debug("playlist already converged, no operations needed")
		result.Status = models.SyncStatusOK
		return nil
	}

	// Removals commit before insertions so the playlist never transiently
	// exceeds capacity.
	if len(plan.Removals) > 0 {
		e.sendProgress(progress, executeRemovalsUpdate(len(plan.Removals)))
		batch, err := svc.RemoveTracks(ctx, playlistID, plan.Removals)
		if batch != nil {
			result.Removed = len(batch.Succeeded)
			result.Rejected = append(result.Rejected, batch.RejectedIDs()...)
		}
		if err != nil {
			return fmt.Errorf("failed to remove tracks: %w", err)
		}
	}

	if len(plan.Insertions) > 0 {
		e.sendProgress(progress, executeInsertionsUpdate(len(plan.Insertions)))
		for _, run := range plan.InsertionRuns() {
			tracks := make([]models.Track, len(run))
			for i, ins := range run {
				tracks[i] = ins.Track
			}

			batch, err := svc.AppendTracks(ctx, playlistID, run[0].Position, tracks)
			if batch != nil {
				result.Added += len(batch.Succeeded)
				result.Rejected = append(result.Rejected, batch.RejectedIDs()...)
			}
			if err != nil {
				return fmt.Errorf("failed to append tracks: %w", err)
			}
		}
	}

	if len(result.Rejected) > 0 {
		// Non-fatal: the provider refused some tracks (region locks and the
		// like). The next cycle re-fetches truth and drops them naturally.
		logger.Warn("provider rejected tracks", "ids", result.Rejected)
	}

	logger.Info("cycle complete", "added", result.Added, "removed", result.Removed, "rejected", len(result.Rejected))
	result.Status = models.SyncStatusOK
	return nil
}

// ensurePlaylist resolves the user's managed playlist, creating the remote
// playlist and the local record as needed.
func (e *PlaylistEngine) ensurePlaylist(ctx context.Context, user *models.User, svc services.Service) (string, error) {
	record, err := e.playlists.GetByUserID(user.ID())
	if err != nil && !errors.Is(err, shared.ErrPlaylistNotFound) {
		return "", err
	}

	known := ""
	if record != nil {
		known = record.SpotifyPlaylistID()
	}

	playlistID, err := svc.EnsurePlaylist(ctx, known, e.opts.PlaylistName)
	if err != nil {
		return "", err
	}

	switch {
	case record == nil:
		record = models.NewPlaylistRecord(0, user.ID(), playlistID, e.opts.PlaylistName)
		if err := e.playlists.Create(record); err != nil {
			return "", fmt.Errorf("failed to persist playlist record: %w", err)
		}
	case record.SpotifyPlaylistID() != playlistID:
		record.SetSpotifyPlaylistID(playlistID)
		if err := e.playlists.Update(record); err != nil {
			return "", fmt.Errorf("failed to update playlist record: %w", err)
		}
	}

	return playlistID, nil
}

// fetchWindow assembles the listening window from the history feed and the
// live player state.
func (e *PlaylistEngine) fetchWindow(ctx context.Context, svc services.Service) (models.ListeningWindow, error) {
	var window models.ListeningWindow

	events, err := svc.RecentlyPlayed(ctx, e.opts.HistoryLimit)
	if err != nil {
		return window, err
	}
	window.Events = events
	window.SortEvents()

	nowPlaying, err := svc.NowPlaying(ctx)
	if err != nil {
		return window, err
	}
	window.NowPlaying = nowPlaying

	return window, nil
}

// persistTokens writes the service's current token pair back to the user
// record. Best effort: a failure here only costs a refresh next cycle.
func (e *PlaylistEngine) persistTokens(user *models.User, svc services.Service) {
	oauthSvc, ok := svc.(services.OAuthService)
	if !ok {
		return
	}

	token, err := oauthSvc.CurrentToken()
	if err != nil || token.AccessToken == user.AccessToken() {
		return
	}

	user.SetTokens(token.AccessToken, token.RefreshToken, token.Expiry)
	if err := e.users.Update(user); err != nil {
		e.logger.Warn("failed to persist refreshed token", "user", user.SpotifyID(), "err", err)
	}
}

// finish classifies the cycle outcome, records it, and stamps the duration.
func (e *PlaylistEngine) finish(result *SyncResult, started time.Time, err error) *SyncResult {
	result.Duration = time.Since(started)

	if err != nil {
		result.Status = statusForError(err)
		result.Message = err.Error()
	} else if result.Status == "" {
		result.Status = models.SyncStatusOK
	}

	e.recordRun(result)
	return result
}

// recordRun persists the cycle outcome. Best effort: observability must not
// fail a cycle that already converged the playlist.
func (e *PlaylistEngine) recordRun(result *SyncResult) {
	if e.runs == nil {
		return
	}

	run := models.NewSyncRun(0, result.UserID, result.Status)
	run.SetCounts(result.Added, result.Removed, len(result.Rejected))
	run.SetMessage(result.Message)

	if err := e.runs.Create(run); err != nil {
		e.logger.Warn("failed to record sync run", "user", result.UserID, "err", err)
	}
}

// statusForError maps the shared error taxonomy onto run statuses.
//
// Authorization failures are surfaced as reauth-required so the web layer
// can prompt the user; everything else is a plain failure retried on the
// next tick.
func statusForError(err error) string {
	switch {
	case errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrAuthFailed),
		errors.Is(err, shared.ErrNoRefreshToken),
		errors.Is(err, shared.ErrRefreshFailed):
		return models.SyncStatusReauthNeeded
	case errors.Is(err, shared.ErrSyncInProgress):
		return models.SyncStatusSkipped
	default:
		return models.SyncStatusFailed
	}
}
