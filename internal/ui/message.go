package ui

import (
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/tasks"
)

// usersLoadedMsg carries the registered user roster into the model.
type usersLoadedMsg struct {
	users []*models.User
	err   error
}

// progressMsg carries one progress update from a running cycle.
type progressMsg tasks.ProgressUpdate

// syncDoneMsg carries a finished single-user cycle.
type syncDoneMsg struct {
	result *tasks.SyncResult
	err    error
}

// sweepDoneMsg carries a finished all-users sweep.
type sweepDoneMsg struct {
	report *tasks.SweepReport
	err    error
}
