package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/shared"
	"golang.org/x/time/rate"
)

// SyncAll runs one reconciliation cycle for every registered user.
//
// This method implements a worker pool pattern so a deployment with many
// users finishes a sweep well inside the scheduler interval. Job dispatch
// is rate limited to stay under the provider's API budget, and per-user
// failures are recorded in the report without aborting the sweep.
func (e *PlaylistEngine) SyncAll(ctx context.Context, progress chan<- ProgressUpdate) (*SweepReport, error) {
	users, err := e.users.List(nil)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{
		TotalUsers: len(users),
		Results:    make([]*SyncResult, 0, len(users)),
	}

	if len(users) == 0 {
		e.sendProgress(progress, sweepDoneUpdate(0, report))
		return report, nil
	}

	limiter := rate.NewLimiter(rate.Limit(e.opts.RateLimit), 1)

	jobs := make(chan *models.User, len(users))
	results := make(chan *SyncResult, len(users))

	var wg sync.WaitGroup
	for i := 0; i < e.opts.NumWorkers; i++ {
		wg.Add(1)
		go e.syncWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, user := range users {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := limiter.Wait(ctx); err != nil {
				return
			}

			jobs <- user
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		report.Results = append(report.Results, res)

		switch res.Status {
		case models.SyncStatusOK:
			report.Succeeded++
		case models.SyncStatusSkipped:
			report.Skipped++
		default:
			report.Failed++
		}

		e.sendProgress(progress, syncUserUpdate(completed, len(users), res))
	}

	e.sendProgress(progress, sweepDoneUpdate(len(users), report))

	e.logger.Info("sweep complete",
		"users", report.TotalUsers,
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)

	return report, nil
}

// syncWorker processes user sync jobs until the jobs channel closes.
func (e *PlaylistEngine) syncWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan *models.User, results chan<- *SyncResult) {
	defer wg.Done()

	for user := range jobs {
		result, err := e.ReconcileUser(ctx, nil, user.ID())
		if result == nil {
			result = &SyncResult{
				UserID:    user.ID(),
				SpotifyID: user.SpotifyID(),
				Status:    models.SyncStatusFailed,
			}
			if err != nil {
				result.Message = err.Error()
			}
		}

		if err != nil && !errors.Is(err, shared.ErrSyncInProgress) {
			e.logger.Warn("user sync failed", "user", user.SpotifyID(), "err", err)
		}

		results <- result
	}
}
