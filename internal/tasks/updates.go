package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	EnsurePlaylist Phase = iota
	FetchPlaylist
	FetchHistory
	ComputePlan
	ExecuteRemovals
	ExecuteInsertions
	RecordOutcome
	SyncUser
	SweepDone
)

func (p Phase) String() string {
	switch p {
	case EnsurePlaylist:
		return "ensure_playlist"
	case FetchPlaylist:
		return "fetch_playlist"
	case FetchHistory:
		return "fetch_history"
	case ComputePlan:
		return "compute_plan"
	case ExecuteRemovals:
		return "execute_removals"
	case ExecuteInsertions:
		return "execute_insertions"
	case RecordOutcome:
		return "record_outcome"
	case SyncUser:
		return "sync_user"
	case SweepDone:
		return "sweep_done"
	default:
		return ""
	}
}

func ensurePlaylistUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnsurePlaylist,
		Step:    1,
		Total:   1,
		Message: "Ensuring managed playlist exists...",
	}
}

func fetchPlaylistUpdate(trackCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetched playlist (%d tracks)", trackCount),
	}
}

func fetchHistoryUpdate(eventCount int, nowPlaying bool) ProgressUpdate {
	msg := fmt.Sprintf("Fetched %d recent plays", eventCount)
	if nowPlaying {
		msg += " (track currently playing)"
	}
	return ProgressUpdate{
		Phase:   FetchHistory,
		Step:    1,
		Total:   1,
		Message: msg,
	}
}

func computePlanUpdate(removals, insertions int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ComputePlan,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Planned %d removals, %d insertions", removals, insertions),
	}
}

func executeRemovalsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExecuteRemovals,
		Step:    1,
		Total:   2,
		Message: fmt.Sprintf("Removing %d tracks...", count),
	}
}

func executeInsertionsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExecuteInsertions,
		Step:    2,
		Total:   2,
		Message: fmt.Sprintf("Inserting %d tracks...", count),
	}
}

func syncUserUpdate(step, total int, result *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncUser,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Synced user %d of %d", step, total),
		Data:    result,
	}
}

func sweepDoneUpdate(total int, report *SweepReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SweepDone,
		Step:    total,
		Total:   total,
		Message: "Sweep complete",
		Data:    report,
	}
}
