package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/replay/internal/models"
)

func window(nowPlaying string, eventIDs ...string) models.ListeningWindow {
	w := models.ListeningWindow{}
	if nowPlaying != "" {
		np := track(nowPlaying)
		w.NowPlaying = &np
	}

	// Newest first, one minute apart.
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range eventIDs {
		w.Events = append(w.Events, models.PlayEvent{
			Track:    track(id),
			PlayedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return w
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		previous []models.Track
		window   models.ListeningWindow
		capacity int
		want     []string
	}{
		{
			name:     "empty window is a no-op",
			previous: trackList("a", "b", "c"),
			window:   models.ListeningWindow{},
			capacity: 100,
			want:     []string{"a", "b", "c"},
		},
		{
			name:     "new user with empty playlist",
			previous: nil,
			window:   window("d", "c", "b"),
			capacity: 100,
			want:     []string{"d", "c", "b"},
		},
		{
			name:     "history lands above previous tracks",
			previous: trackList("a", "b"),
			window:   window("", "c"),
			capacity: 100,
			want:     []string{"c", "a", "b"},
		},
		{
			name:     "now playing promoted from mid playlist",
			previous: trackList("a", "b", "c"),
			window:   window("b"),
			capacity: 100,
			want:     []string{"b", "a", "c"},
		},
		{
			name:     "now playing outranks its own history entry",
			previous: trackList("a"),
			window:   window("b", "c", "b"),
			capacity: 100,
			want:     []string{"b", "c", "a"},
		},
		{
			name:     "repeat plays collapse to most recent",
			previous: nil,
			window:   window("", "a", "b", "a", "c", "a"),
			capacity: 100,
			want:     []string{"a", "b", "c"},
		},
		{
			name:     "eviction drops the single lowest priority track",
			previous: trackList("a", "b", "c"),
			window:   window("", "d"),
			capacity: 3,
			want:     []string{"d", "a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			previous := Normalize(tt.previous, tt.capacity)
			got := Reconcile(previous, tt.window, tt.capacity)
			assertOrder(t, got, tt.want...)
		})
	}
}

// The worked example from the product behavior: previous [A,B], window plays
// C then A (C more recent), D currently playing. A is promoted to its window
// position, B retained at the tail.
func TestReconcileScenario(t *testing.T) {
	previous := Normalize(trackList("A", "B"), 100)
	w := window("D", "C", "A")

	got := Reconcile(previous, w, 100)
	assertOrder(t, got, "D", "C", "A", "B")
}

func TestReconcileIdempotent(t *testing.T) {
	previous := Normalize(trackList("a", "b", "c"), 100)
	w := window("x", "y", "a")

	first := Reconcile(previous, w, 100)
	second := Reconcile(first, w, 100)

	if !first.Equal(second) {
		t.Errorf("reconciling twice with the same window diverged: %v vs %v", first.IDs(), second.IDs())
	}

	// No new activity at all: target equals previous.
	third := Reconcile(first, models.ListeningWindow{}, 100)
	if !first.Equal(third) {
		t.Errorf("empty window should be a no-op, got %v", third.IDs())
	}
}

func TestReconcileInvariants(t *testing.T) {
	// Full playlist, overlapping window, repeated plays: the result must stay
	// unique and within capacity with now playing on top.
	previous := make([]models.Track, 0, DefaultCapacity)
	for i := 0; i < DefaultCapacity; i++ {
		previous = append(previous, track(fmt.Sprintf("p%03d", i)))
	}

	w := window("p050", "n1", "p010", "n2", "p010", "n1")
	got := Reconcile(Normalize(previous, DefaultCapacity), w, DefaultCapacity)

	if got.Len() > DefaultCapacity {
		t.Fatalf("capacity exceeded: %d tracks", got.Len())
	}

	seen := map[string]bool{}
	for _, id := range got.IDs() {
		if seen[id] {
			t.Errorf("duplicate track in target: %s", id)
		}
		seen[id] = true
	}

	if got.IDs()[0] != "p050" {
		t.Errorf("now playing should hold position 0, got %s", got.IDs()[0])
	}
}

func TestListeningWindowSortEvents(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	w := models.ListeningWindow{
		Events: []models.PlayEvent{
			{Track: track("older"), PlayedAt: base.Add(-time.Hour)},
			{Track: track("tie-first"), PlayedAt: base},
			{Track: track("tie-second"), PlayedAt: base},
		},
	}

	w.SortEvents()

	got := w.TrackIDs()
	want := []string{"tie-first", "tie-second", "older"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
