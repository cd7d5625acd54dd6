package models

import "fmt"

// Sync run status values.
const (
	SyncStatusOK           = "ok"
	SyncStatusSkipped      = "skipped"
	SyncStatusFailed       = "failed"
	SyncStatusReauthNeeded = "reauth_required"
)

// SyncRun records the outcome of one reconciliation cycle for one user.
//
// Kept for observability only; the reconciler never reads past runs
// because each cycle re-derives truth from the remote playlist.
type SyncRun struct {
	entity
	userID   string
	status   string
	added    int
	removed  int
	rejected int
	message  string
}

// NewSyncRun creates a SyncRun for the given user and status.
func NewSyncRun(sequence int, userID, status string) *SyncRun {
	return &SyncRun{
		entity: newEntity(sequence),
		userID: userID,
		status: status,
	}
}

func (s *SyncRun) UserID() string  { return s.userID }
func (s *SyncRun) Status() string  { return s.status }
func (s *SyncRun) Added() int      { return s.added }
func (s *SyncRun) Removed() int    { return s.removed }
func (s *SyncRun) Rejected() int   { return s.rejected }
func (s *SyncRun) Message() string { return s.message }

// SetCounts stores the mutation counts for a completed cycle.
func (s *SyncRun) SetCounts(added, removed, rejected int) {
	s.added = added
	s.removed = removed
	s.rejected = rejected
}

// SetMessage stores a failure or skip explanation.
func (s *SyncRun) SetMessage(msg string) { s.message = msg }

// Validate checks that the run record is persistable.
func (s *SyncRun) Validate() error {
	if s.userID == "" {
		return fmt.Errorf("sync run missing user ID")
	}
	switch s.status {
	case SyncStatusOK, SyncStatusSkipped, SyncStatusFailed, SyncStatusReauthNeeded:
		return nil
	default:
		return fmt.Errorf("invalid sync run status: %q", s.status)
	}
}
