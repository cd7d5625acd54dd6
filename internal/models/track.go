package models

import (
	"sort"
	"time"
)

// Track represents a single track on the streaming service.
//
// Identity is carried entirely by ID; the remaining fields are cached
// metadata for display and debugging and never participate in equality.
type Track struct {
	ID       string
	Title    string
	Artist   string
	Album    string
	Duration int // Duration in seconds
}

// Same reports whether two tracks identify the same recording.
func (t Track) Same(other Track) bool {
	return t.ID == other.ID
}

// PlayEvent represents one occurrence of a track being played.
type PlayEvent struct {
	Track    Track
	PlayedAt time.Time
}

// ListeningWindow is the recently-played history fetched in one cycle,
// most recent first, plus the currently playing track when one was observed.
//
// Repeated plays of the same track are retained as distinct events;
// deduplication happens at playlist assembly time.
type ListeningWindow struct {
	Events     []PlayEvent
	NowPlaying *Track
}

// SortEvents orders the window's events most recent first.
//
// The sort is stable so events sharing a timestamp keep the order the
// upstream history endpoint returned them in.
func (w *ListeningWindow) SortEvents() {
	sort.SliceStable(w.Events, func(i, j int) bool {
		return w.Events[i].PlayedAt.After(w.Events[j].PlayedAt)
	})
}

// TrackIDs returns the event track IDs in window order.
func (w *ListeningWindow) TrackIDs() []string {
	ids := make([]string, 0, len(w.Events))
	for _, ev := range w.Events {
		ids = append(ids, ev.Track.ID)
	}
	return ids
}

// Empty reports whether the window carries no observations at all.
func (w *ListeningWindow) Empty() bool {
	return len(w.Events) == 0 && w.NowPlaying == nil
}
