package engine

import (
	"github.com/desertthunder/replay/internal/models"
)

// Insertion places a track at a specific position in the target playlist.
type Insertion struct {
	Track    models.Track
	Position int
}

// Plan is the ordered set of remote mutations that converges a playlist
// from a previous state to a target state.
//
// Removals are keyed by track ID rather than position so a whole batch can
// be issued in one call without position drift. They must be applied before
// insertions so the playlist never transiently exceeds capacity. Insertions
// are listed in ascending target position; applying them in order keeps
// each position valid given the insertions before it.
type Plan struct {
	Removals   []models.Track
	Insertions []Insertion
}

// Empty reports whether the plan requires no remote calls.
func (p Plan) Empty() bool {
	return len(p.Removals) == 0 && len(p.Insertions) == 0
}

// InsertionRuns groups consecutive insertions into contiguous position runs.
//
// Each run can be pushed as a single append-at-position call, which is how
// the Spotify add-items endpoint batches.
func (p Plan) InsertionRuns() [][]Insertion {
	var runs [][]Insertion
	var current []Insertion

	for _, ins := range p.Insertions {
		if len(current) > 0 && ins.Position != current[len(current)-1].Position+1 {
			runs = append(runs, current)
			current = nil
		}
		current = append(current, ins)
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}

// Apply replays the plan against a previous state and returns the result.
//
// Used to verify that executing the plan reproduces the target exactly.
func (p Plan) Apply(previous State) State {
	removed := make(map[string]struct{}, len(p.Removals))
	for _, track := range p.Removals {
		removed[track.ID] = struct{}{}
	}

	tracks := make([]models.Track, 0, previous.Len()+len(p.Insertions))
	for _, track := range previous.tracks {
		if _, ok := removed[track.ID]; !ok {
			tracks = append(tracks, track)
		}
	}

	for _, ins := range p.Insertions {
		pos := ins.Position
		if pos > len(tracks) {
			pos = len(tracks)
		}
		tracks = append(tracks[:pos], append([]models.Track{ins.Track}, tracks[pos:]...)...)
	}

	return State{tracks: tracks}
}

// NewPlan computes the minimal mutation plan that transforms previous into
// target.
//
// The longest common subsequence of the two states (by track ID) is the set
// of tracks left untouched; keeping it as large as possible minimizes
// remote calls since the API has no move primitive and a reorder costs a
// removal plus a reinsertion. Previous-only tracks become the removal
// batch; target-only tracks become insertions at their target positions.
// Identical states produce an empty plan.
func NewPlan(previous, target State) Plan {
	keep := commonSubsequence(previous.IDs(), target.IDs())

	var plan Plan

	for _, track := range previous.tracks {
		if _, ok := keep[track.ID]; !ok {
			plan.Removals = append(plan.Removals, track)
		}
	}

	for i, track := range target.tracks {
		if _, ok := keep[track.ID]; !ok {
			plan.Insertions = append(plan.Insertions, Insertion{Track: track, Position: i})
		}
	}

	return plan
}

// commonSubsequence returns the set of IDs in the longest common
// subsequence of a and b.
//
// Standard dynamic program; states are capped at the playlist capacity so
// the quadratic table stays small.
func commonSubsequence(a, b []string) map[string]struct{} {
	n, m := len(a), len(b)
	keep := make(map[string]struct{})
	if n == 0 || m == 0 {
		return keep
	}

	lengths := make([][]int, n+1)
	for i := range lengths {
		lengths[i] = make([]int, m+1)
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				lengths[i][j] = lengths[i-1][j-1] + 1
			} else {
				lengths[i][j] = max(lengths[i-1][j], lengths[i][j-1])
			}
		}
	}

	// Walk back through the table to recover the subsequence members.
	for i, j := n, m; i > 0 && j > 0; {
		switch {
		case a[i-1] == b[j-1]:
			keep[a[i-1]] = struct{}{}
			i--
			j--
		case lengths[i-1][j] >= lengths[i][j-1]:
			i--
		default:
			j--
		}
	}

	return keep
}
