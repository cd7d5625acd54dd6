package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/services"
	"github.com/desertthunder/replay/internal/shared"
	"golang.org/x/oauth2"
)

// fakeService is a scriptable in-memory services.Service.
type fakeService struct {
	playlistID string
	tracks     []models.Track
	events     []models.PlayEvent
	nowPlaying *models.Track

	fetchErr  error
	appendErr error
	removeErr error
	rejected  map[string]bool

	calls    []string
	appended []models.Track
	removed  []models.Track

	token *oauth2.Token
}

func (f *fakeService) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}

func (f *fakeService) UserProfile(ctx context.Context) (*services.Profile, error) {
	return &services.Profile{ID: "fake_user"}, nil
}

func (f *fakeService) EnsurePlaylist(ctx context.Context, playlistID, name string) (string, error) {
	f.calls = append(f.calls, "ensure")
	if playlistID != "" && playlistID == f.playlistID {
		return playlistID, nil
	}
	if f.playlistID == "" {
		f.playlistID = "pl_created"
	}
	return f.playlistID, nil
}

func (f *fakeService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	f.calls = append(f.calls, "playlist")
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]models.Track(nil), f.tracks...), nil
}

func (f *fakeService) RecentlyPlayed(ctx context.Context, limit int) ([]models.PlayEvent, error) {
	f.calls = append(f.calls, "recent")
	return append([]models.PlayEvent(nil), f.events...), nil
}

func (f *fakeService) NowPlaying(ctx context.Context) (*models.Track, error) {
	f.calls = append(f.calls, "now")
	return f.nowPlaying, nil
}

func (f *fakeService) AppendTracks(ctx context.Context, playlistID string, position int, tracks []models.Track) (*services.BatchResult, error) {
	f.calls = append(f.calls, "append")
	if f.appendErr != nil {
		return nil, f.appendErr
	}

	batch := &services.BatchResult{}
	for _, track := range tracks {
		if f.rejected[track.ID] {
			batch.Rejected = append(batch.Rejected, track)
			continue
		}
		batch.Succeeded = append(batch.Succeeded, track)
		f.appended = append(f.appended, track)
	}
	return batch, nil
}

func (f *fakeService) RemoveTracks(ctx context.Context, playlistID string, tracks []models.Track) (*services.BatchResult, error) {
	f.calls = append(f.calls, "remove")
	if f.removeErr != nil {
		return nil, f.removeErr
	}
	f.removed = append(f.removed, tracks...)
	return &services.BatchResult{Succeeded: tracks}, nil
}

func (f *fakeService) Name() string { return "Fake" }

// fakeOAuthService adds a token source for persistence tests.
type fakeOAuthService struct {
	*fakeService
}

func (f *fakeOAuthService) AuthURL(state string) string { return "http://localhost/auth?" + state }

func (f *fakeOAuthService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return f.token, nil
}

func (f *fakeOAuthService) CurrentToken() (*oauth2.Token, error) {
	if f.token == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return f.token, nil
}

type fakeUserStore struct {
	users   map[string]*models.User
	order   []string
	updated []*models.User
	getErr  error
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[string]*models.User)}
	for i, user := range users {
		if user.ID() == "" {
			user.SetID(fmt.Sprintf("user_%d", i+1))
		}
		store.users[user.ID()] = user
		store.order = append(store.order, user.ID())
	}
	return store
}

func (s *fakeUserStore) Get(id string) (*models.User, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	user, ok := s.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) List(criteria map[string]any) ([]*models.User, error) {
	users := make([]*models.User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, s.users[id])
	}
	return users, nil
}

func (s *fakeUserStore) Update(user *models.User) error {
	s.updated = append(s.updated, user)
	return nil
}

type fakePlaylistStore struct {
	records map[string]*models.PlaylistRecord // keyed by user ID
	created []*models.PlaylistRecord
	updated []*models.PlaylistRecord
}

func newFakePlaylistStore() *fakePlaylistStore {
	return &fakePlaylistStore{records: make(map[string]*models.PlaylistRecord)}
}

func (s *fakePlaylistStore) GetByUserID(userID string) (*models.PlaylistRecord, error) {
	record, ok := s.records[userID]
	if !ok {
		return nil, shared.ErrPlaylistNotFound
	}
	return record, nil
}

func (s *fakePlaylistStore) Create(record *models.PlaylistRecord) error {
	record.SetID(shared.GenerateID())
	s.records[record.UserID()] = record
	s.created = append(s.created, record)
	return nil
}

func (s *fakePlaylistStore) Update(record *models.PlaylistRecord) error {
	s.records[record.UserID()] = record
	s.updated = append(s.updated, record)
	return nil
}

type fakeRunStore struct {
	runs []*models.SyncRun
}

func (s *fakeRunStore) Create(run *models.SyncRun) error {
	s.runs = append(s.runs, run)
	return nil
}

func track(id string) models.Track {
	return models.Track{ID: id, Title: "Track " + id, Artist: "Artist"}
}

func playEvent(id string, playedAt time.Time) models.PlayEvent {
	return models.PlayEvent{Track: track(id), PlayedAt: playedAt}
}

func staticFactory(svc services.Service) ServiceFactory {
	return func(ctx context.Context, user *models.User) (services.Service, error) {
		return svc, nil
	}
}

func newTestEngine(t *testing.T, users *fakeUserStore, svc services.Service, opts Options) (*PlaylistEngine, *fakePlaylistStore, *fakeRunStore) {
	t.Helper()

	playlists := newFakePlaylistStore()
	runs := &fakeRunStore{}
	engine := NewPlaylistEngine(users, playlists, runs, staticFactory(svc), opts, nil)
	return engine, playlists, runs
}

func TestReconcileUser(t *testing.T) {
	t.Run("Prepends New Listening To Existing Playlist", func(t *testing.T) {
		now := time.Now()
		svc := &fakeService{
			playlistID: "pl_1",
			tracks:     []models.Track{track("a"), track("b")},
			events:     []models.PlayEvent{playEvent("c", now.Add(-time.Minute))},
			nowPlaying: &models.Track{ID: "d", Title: "Track d"},
		}

		user := models.NewUser(0, "listener", "Listener")
		users := newFakeUserStore(user)
		engine, playlists, runs := newTestEngine(t, users, svc, Options{})
		playlists.records[user.ID()] = models.NewPlaylistRecord(0, user.ID(), "pl_1", "Replay")

		result, err := engine.ReconcileUser(context.Background(), nil, user.ID())
		if err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}

		if result.Status != models.SyncStatusOK {
			t.Errorf("expected status ok, got %s", result.Status)
		}
		if result.Added != 2 {
			t.Errorf("expected 2 added, got %d", result.Added)
		}
		if result.Removed != 0 {
			t.Errorf("expected 0 removed, got %d", result.Removed)
		}
		if len(svc.appended) != 2 || svc.appended[0].ID != "d" || svc.appended[1].ID != "c" {
			t.Errorf("unexpected appended tracks: %v", svc.appended)
		}
		if len(runs.runs) != 1 || runs.runs[0].Status() != models.SyncStatusOK {
			t.Errorf("expected one ok run recorded, got %v", runs.runs)
		}
	})

	t.Run("Evicts Oldest When At Capacity", func(t *testing.T) {
		svc := &fakeService{
			playlistID: "pl_1",
			tracks:     []models.Track{track("a"), track("b"), track("c")},
			nowPlaying: &models.Track{ID: "d", Title: "Track d"},
		}

		user := models.NewUser(0, "listener", "Listener")
		users := newFakeUserStore(user)
		engine, playlists, _ := newTestEngine(t, users, svc, Options{Capacity: 3})
		playlists.records[user.ID()] = models.NewPlaylistRecord(0, user.ID(), "pl_1", "Replay")

		result, err := engine.ReconcileUser(context.Background(), nil, user.ID())
		if err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}

		if result.Added != 1 || result.Removed != 1 {
			t.Errorf("expected 1 added and 1 removed, got %d/%d", result.Added, result.Removed)
		}
		if len(svc.removed) != 1 || svc.removed[0].ID != "c" {
			t.Errorf("expected oldest track c removed, got %v", svc.removed)
		}

		// Removals must land before insertions so the playlist never
		// transiently exceeds capacity.
		removeIdx, appendIdx := -1, -1
		for i, call := range svc.calls {
			switch call {
			case "remove":
				removeIdx = i
			case "append":
				if appendIdx == -1 {
					appendIdx = i
				}
			}
		}
		if removeIdx == -1 || appendIdx == -1 || removeIdx > appendIdx {
			t.Errorf("expected remove before append, calls: %v", svc.calls)
		}
	})

	t.Run("Converged Playlist Makes No Mutations", func(t *testing.T) {
		svc := &fakeService{
			playlistID: "pl_1",
			tracks:     []models.Track{track("a"), track("b")},
		}

		user := models.NewUser(0, "listener", "Listener")
		users := newFakeUserStore(user)
		engine, playlists, _ := newTestEngine(t, users, svc, Options{})
		playlists.records[user.ID()] = models.NewPlaylistRecord(0, user.ID(), "pl_1", "Replay")

		result, err := engine.ReconcileUser(context.Background(), nil, user.ID())
		if err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}

		if result.Added != 0 || result.Removed != 0 {
			t.Errorf("expected no mutations, got added=%d removed=%d", result.Added, result.Removed)
		}
		for _, call := range svc.calls {
			if call == "append" || call == "remove" {
				t.Errorf("unexpected mutation call: %v", svc.calls)
			}
		}
	})

	t.Run("Creates Playlist Record On First Cycle", func(t *testing.T) {
		svc := &fakeService{
			nowPlaying: &models.Track{ID: "a", Title: "Track a"},
		}

		user := models.NewUser(0, "listener", "Listener")
		users := newFakeUserStore(user)
		engine, playlists, _ := newTestEngine(t, users, svc, Options{PlaylistName: "Replay"})

		result, err := engine.ReconcileUser(context.Background(), nil, user.ID())
		if err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}

		if result.PlaylistID != "pl_created" {
			t.Errorf("expected created playlist ID, got %s", result.PlaylistID)
		}
		if len(playlists.created) != 1 {
			t.Fatalf("expected 1 playlist record created, got %d", len(playlists.created))
		}
		if playlists.created[0].SpotifyPlaylistID() != "pl_created" {
			t.Errorf("record points at wrong playlist: %s", playlists.created[0].SpotifyPlaylistID())
		}
	})

	t.Run("Repoints Record When Remote Playlist Recreated", func(t *testing.T) {
		svc := &fakeService{playlistID: ""}

		user := models.NewUser(0, "listener", "Listener")
		users := newFakeUserStore(user)
		engine, playlists, _ := newTestEngine(t, users, svc, Options{})
		playlists.records[user.ID()] = models.NewPlaylistRecord(0, user.ID(), "pl_deleted", "Replay")

		if _, err := engine.ReconcileUser(context.Background(), nil, user.ID()); err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}

		if len(playlists.updated) != 1 {
			t.Fatalf("expected record update, got %d", len(playlists.updated))
		}
		if playlists.updated[0].SpotifyPlaylistID() != "pl_created" {
			t.Errorf("record not repointed: %s", playlists.updated[0].SpotifyPlaylistID())
		}
	})

	t.Run("Skips When Cycle Already Running", func(t *testing.T) {
		svc := &fakeService{}
		user := models.NewUser(0, "listener", "Listener")
		users := newFakeUserStore(user)
		engine, _, runs := newTestEngine(t, users, svc, Options{})

		release, ok := engine.locks.TryAcquire(user.ID())
		if !ok {
			t.Fatal("failed to take lock for test setup")
		}
		defer release()

		result, err := engine.ReconcileUser(context.Background(), nil, user.ID())
		if !errors.Is(err, shared.ErrSyncInProgress) {
			t.Errorf("expected ErrSyncInProgress, got %v", err)
		}
		if result == nil || result.Status != models.SyncStatusSkipped {
			t.Errorf("expected skipped result, got %+v", result)
		}
		if len(runs.runs) != 0 {
			t.Errorf("skipped cycle should not record a run, got %d", len(runs.runs))
		}
		if len(svc.calls) != 0 {
			t.Errorf("skipped cycle should not touch the service, calls: %v", svc.calls)
		}
	})

	t.Run("Expired Token Flags Reauth", func(t *testing.T) {
		svc := &fakeService{
			playlistID: "pl_1",
			fetchErr:   fmt.Errorf("%w: GET /playlists", shared.ErrTokenExpired),
		}

		user := models.NewUser(0, "listener", "Listener")
		users := newFakeUserStore(user)
		engine, playlists, runs := newTestEngine(t, users, svc, Options{})
		playlists.records[user.ID()] = models.NewPlaylistRecord(0, user.ID(), "pl_1", "Replay")

		result, err := engine.ReconcileUser(context.Background(), nil, user.ID())
		if err == nil {
			t.Fatal("expected error")
		}

		if result.Status != models.SyncStatusReauthNeeded {
			t.Errorf("expected reauth status, got %s", result.Status)
		}
		if len(runs.runs) != 1 || runs.runs[0].Status() != models.SyncStatusReauthNeeded {
			t.Errorf("expected reauth run recorded, got %v", runs.runs)
		}
	})

	t.Run("Rejected Tracks Are Non Fatal", func(t *testing.T) {
		svc := &fakeService{
			playlistID: "pl_1",
			nowPlaying: &models.Track{ID: "good", Title: "Good"},
			events: []models.PlayEvent{
				playEvent("blocked", time.Now().Add(-time.Minute)),
			},
			rejected: map[string]bool{"blocked": true},
		}

		user := models.NewUser(0, "listener", "Listener")
		users := newFakeUserStore(user)
		engine, playlists, _ := newTestEngine(t, users, svc, Options{})
		playlists.records[user.ID()] = models.NewPlaylistRecord(0, user.ID(), "pl_1", "Replay")

		result, err := engine.ReconcileUser(context.Background(), nil, user.ID())
		if err != nil {
			t.Fatalf("rejections should not fail the cycle: %v", err)
		}

		if result.Status != models.SyncStatusOK {
			t.Errorf("expected status ok, got %s", result.Status)
		}
		if result.Added != 1 {
			t.Errorf("expected 1 added, got %d", result.Added)
		}
		if len(result.Rejected) != 1 || result.Rejected[0] != "blocked" {
			t.Errorf("expected blocked track reported, got %v", result.Rejected)
		}
	})

	t.Run("Unknown User", func(t *testing.T) {
		engine, _, _ := newTestEngine(t, newFakeUserStore(), &fakeService{}, Options{})

		if _, err := engine.ReconcileUser(context.Background(), nil, "ghost"); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("User Store Failure Surfaces", func(t *testing.T) {
		storeErr := errors.New("database is locked")
		users := newFakeUserStore()
		users.getErr = storeErr
		engine, _, _ := newTestEngine(t, users, &fakeService{}, Options{})

		_, err := engine.ReconcileUser(context.Background(), nil, "user_1")
		if !errors.Is(err, storeErr) {
			t.Errorf("expected store error to surface, got %v", err)
		}
		if errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("store failure misreported as missing user: %v", err)
		}
	})

	t.Run("Persists Refreshed Token", func(t *testing.T) {
		expiry := time.Now().Add(time.Hour)
		svc := &fakeOAuthService{fakeService: &fakeService{
			playlistID: "pl_1",
			token: &oauth2.Token{
				AccessToken:  "refreshed_access",
				RefreshToken: "refreshed_refresh",
				Expiry:       expiry,
			},
		}}

		user := models.NewUser(0, "listener", "Listener")
		user.SetTokens("stale_access", "old_refresh", time.Now().Add(-time.Hour))
		users := newFakeUserStore(user)
		engine, playlists, _ := newTestEngine(t, users, svc, Options{})
		playlists.records[user.ID()] = models.NewPlaylistRecord(0, user.ID(), "pl_1", "Replay")

		if _, err := engine.ReconcileUser(context.Background(), nil, user.ID()); err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}

		if len(users.updated) != 1 {
			t.Fatalf("expected token persistence, got %d updates", len(users.updated))
		}
		if users.updated[0].AccessToken() != "refreshed_access" {
			t.Errorf("refreshed token not stored: %s", users.updated[0].AccessToken())
		}
	})

	t.Run("Reports Progress Phases", func(t *testing.T) {
		svc := &fakeService{
			playlistID: "pl_1",
			nowPlaying: &models.Track{ID: "a", Title: "Track a"},
		}

		user := models.NewUser(0, "listener", "Listener")
		users := newFakeUserStore(user)
		engine, playlists, _ := newTestEngine(t, users, svc, Options{})
		playlists.records[user.ID()] = models.NewPlaylistRecord(0, user.ID(), "pl_1", "Replay")

		progress := make(chan ProgressUpdate, 16)
		if _, err := engine.ReconcileUser(context.Background(), progress, user.ID()); err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}
		close(progress)

		phases := make(map[Phase]bool)
		for update := range progress {
			phases[update.Phase] = true
		}
		for _, want := range []Phase{EnsurePlaylist, FetchPlaylist, FetchHistory, ComputePlan, ExecuteInsertions} {
			if !phases[want] {
				t.Errorf("missing progress phase %s", want)
			}
		}
	})
}

func TestSyncAll(t *testing.T) {
	t.Run("Sweeps All Users", func(t *testing.T) {
		alice := models.NewUser(0, "alice", "Alice")
		bob := models.NewUser(0, "bob", "Bob")
		users := newFakeUserStore(alice, bob)

		factory := func(ctx context.Context, user *models.User) (services.Service, error) {
			return &fakeService{
				playlistID: "pl_" + user.SpotifyID(),
				nowPlaying: &models.Track{ID: "song_" + user.SpotifyID(), Title: "Song"},
			}, nil
		}

		playlists := newFakePlaylistStore()
		runs := &fakeRunStore{}
		engine := NewPlaylistEngine(users, playlists, runs, factory, Options{NumWorkers: 2, RateLimit: 1000}, nil)

		report, err := engine.SyncAll(context.Background(), nil)
		if err != nil {
			t.Fatalf("sweep failed: %v", err)
		}

		if report.TotalUsers != 2 || report.Succeeded != 2 {
			t.Errorf("expected 2/2 succeeded, got %d/%d", report.Succeeded, report.TotalUsers)
		}
		if len(report.Results) != 2 {
			t.Errorf("expected 2 results, got %d", len(report.Results))
		}
		if len(runs.runs) != 2 {
			t.Errorf("expected 2 runs recorded, got %d", len(runs.runs))
		}
	})

	t.Run("Isolates Per User Failures", func(t *testing.T) {
		alice := models.NewUser(0, "alice", "Alice")
		bob := models.NewUser(0, "bob", "Bob")
		users := newFakeUserStore(alice, bob)

		factory := func(ctx context.Context, user *models.User) (services.Service, error) {
			if user.SpotifyID() == "bob" {
				return nil, fmt.Errorf("%w: no refresh token", shared.ErrNoRefreshToken)
			}
			return &fakeService{playlistID: "pl_alice"}, nil
		}

		engine := NewPlaylistEngine(users, newFakePlaylistStore(), &fakeRunStore{}, factory, Options{RateLimit: 1000}, nil)

		report, err := engine.SyncAll(context.Background(), nil)
		if err != nil {
			t.Fatalf("sweep failed: %v", err)
		}

		if report.Succeeded != 1 || report.Failed != 1 {
			t.Errorf("expected 1 success and 1 failure, got %d/%d", report.Succeeded, report.Failed)
		}

		for _, result := range report.Results {
			if result.SpotifyID == "bob" && result.Status != models.SyncStatusReauthNeeded {
				t.Errorf("expected bob flagged for reauth, got %s", result.Status)
			}
		}
	})

	t.Run("Empty Roster", func(t *testing.T) {
		engine := NewPlaylistEngine(newFakeUserStore(), newFakePlaylistStore(), &fakeRunStore{}, staticFactory(&fakeService{}), Options{}, nil)

		report, err := engine.SyncAll(context.Background(), nil)
		if err != nil {
			t.Fatalf("sweep failed: %v", err)
		}
		if report.TotalUsers != 0 || len(report.Results) != 0 {
			t.Errorf("expected empty report, got %+v", report)
		}
	})
}

func TestUserLocks(t *testing.T) {
	locks := newUserLocks()

	release, ok := locks.TryAcquire("u1")
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	if _, ok := locks.TryAcquire("u1"); ok {
		t.Error("second acquire on held lock should fail")
	}

	if other, ok := locks.TryAcquire("u2"); !ok {
		t.Error("distinct users should not contend")
	} else {
		other()
	}

	release()

	if again, ok := locks.TryAcquire("u1"); !ok {
		t.Error("acquire after release should succeed")
	} else {
		again()
	}
}
