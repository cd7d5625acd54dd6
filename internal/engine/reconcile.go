package engine

import (
	"github.com/desertthunder/replay/internal/models"
)

// Reconcile merges a listening window into the previous playlist state and
// returns the target state for this cycle.
//
// Candidates are considered in priority order: the currently playing track
// first (history endpoints lag live playback, so it may not appear in the
// window yet), then window events newest first, then the previous playlist
// top to bottom. The first occurrence of each ID wins, so a track that is
// playing now and also sits mid-playlist is promoted to the top exactly
// once. Truncation to capacity evicts the least recently relevant tail.
//
// Pure function: an empty window returns previous unchanged, and
// reconciling twice without new activity is a no-op.
func Reconcile(previous State, window models.ListeningWindow, capacity int) State {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	candidates := make([]models.Track, 0, 1+len(window.Events)+previous.Len())

	if window.NowPlaying != nil {
		candidates = append(candidates, *window.NowPlaying)
	}
	for _, event := range window.Events {
		candidates = append(candidates, event.Track)
	}
	candidates = append(candidates, previous.tracks...)

	// Dedup and truncation share the normalizer's rules.
	return Normalize(candidates, capacity)
}
