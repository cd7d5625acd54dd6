package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *sql.DB, spotifyID string) *models.User {
	t.Helper()

	repo := NewUserRepository(db)
	user := models.NewUser(0, spotifyID, "Test User")
	user.SetTokens("access", "refresh", time.Now().Add(time.Hour))

	if err := repo.Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestUserRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)

		user := createTestUser(t, db, "spotify_user_1")

		if user.ID() == "" {
			t.Error("user ID should be set after creation")
		}
		if user.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", user.Sequence())
		}
	})

	t.Run("Create Rejects Missing Spotify ID", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewUserRepository(db)
		if err := repo.Create(models.NewUser(0, "", "No Account")); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Get Round Trips Tokens", func(t *testing.T) {
		db := setupTestDB(t)

		expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		repo := NewUserRepository(db)
		user := models.NewUser(0, "spotify_user_1", "Test User")
		user.SetTokens("access_token_value", "refresh_token_value", expiry)
		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		got, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}

		if got.SpotifyID() != "spotify_user_1" {
			t.Errorf("expected spotify_user_1, got %s", got.SpotifyID())
		}
		if got.AccessToken() != "access_token_value" {
			t.Errorf("access token not persisted: %s", got.AccessToken())
		}
		if got.RefreshToken() != "refresh_token_value" {
			t.Errorf("refresh token not persisted: %s", got.RefreshToken())
		}
		if got.TokenExpiresAt() == nil || !got.TokenExpiresAt().Equal(expiry) {
			t.Errorf("expiry not persisted: %v", got.TokenExpiresAt())
		}
	})

	t.Run("GetBySpotifyID", func(t *testing.T) {
		db := setupTestDB(t)

		user := createTestUser(t, db, "spotify_abc")

		repo := NewUserRepository(db)
		got, err := repo.GetBySpotifyID("spotify_abc")
		if err != nil {
			t.Fatalf("failed to get user by spotify ID: %v", err)
		}
		if got.ID() != user.ID() {
			t.Errorf("expected %s, got %s", user.ID(), got.ID())
		}

		if _, err := repo.GetBySpotifyID("missing"); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("Update Persists Refreshed Tokens", func(t *testing.T) {
		db := setupTestDB(t)

		user := createTestUser(t, db, "spotify_user_1")

		repo := NewUserRepository(db)
		user.SetTokens("new_access", "new_refresh", time.Now().Add(2*time.Hour))
		if err := repo.Update(user); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		got, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.AccessToken() != "new_access" {
			t.Errorf("expected refreshed access token, got %s", got.AccessToken())
		}
	})

	t.Run("Delete Hides User", func(t *testing.T) {
		db := setupTestDB(t)

		user := createTestUser(t, db, "spotify_user_1")

		repo := NewUserRepository(db)
		if err := repo.Delete(user.ID()); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		if _, err := repo.Get(user.ID()); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound after delete, got %v", err)
		}

		users, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 0 {
			t.Errorf("expected no users listed, got %d", len(users))
		}
	})

	t.Run("List Orders By Sequence", func(t *testing.T) {
		db := setupTestDB(t)

		createTestUser(t, db, "first")
		createTestUser(t, db, "second")

		repo := NewUserRepository(db)
		users, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("expected 2 users, got %d", len(users))
		}
		if users[0].SpotifyID() != "first" || users[1].SpotifyID() != "second" {
			t.Errorf("unexpected order: %s, %s", users[0].SpotifyID(), users[1].SpotifyID())
		}
	})
}

func TestPlaylistRepository(t *testing.T) {
	t.Run("Create And GetByUserID", func(t *testing.T) {
		db := setupTestDB(t)

		user := createTestUser(t, db, "spotify_user_1")

		repo := NewPlaylistRepository(db)
		record := models.NewPlaylistRecord(0, user.ID(), "spotify_pl_1", "Replay")
		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create playlist record: %v", err)
		}

		got, err := repo.GetByUserID(user.ID())
		if err != nil {
			t.Fatalf("failed to get playlist by user: %v", err)
		}
		if got.SpotifyPlaylistID() != "spotify_pl_1" {
			t.Errorf("expected spotify_pl_1, got %s", got.SpotifyPlaylistID())
		}
		if got.Name() != "Replay" {
			t.Errorf("expected name Replay, got %s", got.Name())
		}
	})

	t.Run("GetByUserID Missing", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewPlaylistRepository(db)
		if _, err := repo.GetByUserID("nobody"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Update Repoints Remote Playlist", func(t *testing.T) {
		db := setupTestDB(t)

		user := createTestUser(t, db, "spotify_user_1")

		repo := NewPlaylistRepository(db)
		record := models.NewPlaylistRecord(0, user.ID(), "old_remote", "Replay")
		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create playlist record: %v", err)
		}

		// The remote playlist was deleted by the user; the cycle recreated it.
		record.SetSpotifyPlaylistID("new_remote")
		if err := repo.Update(record); err != nil {
			t.Fatalf("failed to update playlist record: %v", err)
		}

		got, err := repo.Get(record.ID())
		if err != nil {
			t.Fatalf("failed to get playlist record: %v", err)
		}
		if got.SpotifyPlaylistID() != "new_remote" {
			t.Errorf("expected new_remote, got %s", got.SpotifyPlaylistID())
		}
	})
}

func TestSyncRunRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		db := setupTestDB(t)

		user := createTestUser(t, db, "spotify_user_1")

		repo := NewSyncRunRepository(db)
		run := models.NewSyncRun(0, user.ID(), models.SyncStatusOK)
		run.SetCounts(3, 1, 0)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create sync run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get sync run: %v", err)
		}
		if got.Added() != 3 || got.Removed() != 1 {
			t.Errorf("counts not persisted: added=%d removed=%d", got.Added(), got.Removed())
		}
		if got.Status() != models.SyncStatusOK {
			t.Errorf("expected status ok, got %s", got.Status())
		}
	})

	t.Run("Create Rejects Unknown Status", func(t *testing.T) {
		db := setupTestDB(t)

		user := createTestUser(t, db, "spotify_user_1")

		repo := NewSyncRunRepository(db)
		if err := repo.Create(models.NewSyncRun(0, user.ID(), "exploded")); err == nil {
			t.Error("expected validation error for unknown status")
		}
	})

	t.Run("List Most Recent First With Limit", func(t *testing.T) {
		db := setupTestDB(t)

		user := createTestUser(t, db, "spotify_user_1")

		repo := NewSyncRunRepository(db)
		for _, status := range []string{models.SyncStatusOK, models.SyncStatusFailed, models.SyncStatusOK} {
			run := models.NewSyncRun(0, user.ID(), status)
			if err := repo.Create(run); err != nil {
				t.Fatalf("failed to create sync run: %v", err)
			}
		}

		runs, err := repo.List(map[string]any{"user_id": user.ID(), "limit": 2})
		if err != nil {
			t.Fatalf("failed to list sync runs: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		if runs[0].Sequence() < runs[1].Sequence() {
			t.Error("expected most recent run first")
		}

		failed, err := repo.List(map[string]any{"status": models.SyncStatusFailed})
		if err != nil {
			t.Fatalf("failed to list failed runs: %v", err)
		}
		if len(failed) != 1 {
			t.Errorf("expected 1 failed run, got %d", len(failed))
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	first, err := NextSequence(db, "users")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}
	second, err := NextSequence(db, "users")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}

	if second != first+1 {
		t.Errorf("expected consecutive sequences, got %d then %d", first, second)
	}
}
