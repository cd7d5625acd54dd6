package engine

import (
	"github.com/desertthunder/replay/internal/models"
)

// DefaultCapacity is the maximum number of tracks kept in a managed playlist.
const DefaultCapacity = 100

// State is the canonical in-memory view of a playlist: an ordered sequence
// of tracks with no duplicate IDs, bounded by a capacity.
//
// A State is built fresh from a remote fetch at the start of each cycle and
// superseded at the end of it; it is never carried across cycles.
type State struct {
	tracks []models.Track
}

// Normalize builds a State from a raw remote track list.
//
// Duplicate IDs collapse to their first (topmost) occurrence, relative order
// is preserved, and the result is truncated to capacity. Tracks with empty
// IDs are dropped; they cannot be addressed by any remote mutation.
// A capacity of zero or less falls back to [DefaultCapacity].
func Normalize(raw []models.Track, capacity int) State {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	seen := make(map[string]struct{}, len(raw))
	tracks := make([]models.Track, 0, min(len(raw), capacity))

	for _, track := range raw {
		if track.ID == "" {
			continue
		}
		if _, ok := seen[track.ID]; ok {
			continue
		}
		seen[track.ID] = struct{}{}

		tracks = append(tracks, track)
		if len(tracks) == capacity {
			break
		}
	}

	return State{tracks: tracks}
}

// Len returns the number of tracks in the state.
func (s State) Len() int { return len(s.tracks) }

// Tracks returns a copy of the ordered track list.
func (s State) Tracks() []models.Track {
	out := make([]models.Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// IDs returns the track IDs in playlist order.
func (s State) IDs() []string {
	ids := make([]string, len(s.tracks))
	for i, track := range s.tracks {
		ids[i] = track.ID
	}
	return ids
}

// Contains reports whether the state holds a track with the given ID.
func (s State) Contains(id string) bool {
	for _, track := range s.tracks {
		if track.ID == id {
			return true
		}
	}
	return false
}

// Equal reports whether two states hold the same tracks in the same order.
// Comparison is by ID only; metadata differences are ignored.
func (s State) Equal(other State) bool {
	if len(s.tracks) != len(other.tracks) {
		return false
	}
	for i := range s.tracks {
		if s.tracks[i].ID != other.tracks[i].ID {
			return false
		}
	}
	return true
}
