package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/shared"
)

// PlaylistRepository implements [models.Repository] for [models.PlaylistRecord] persistence.
//
// The product maintains one managed playlist per user, so the primary
// lookup is by user ID.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist record into the database with generated ID and sequence
func (r *PlaylistRepository) Create(record *models.PlaylistRecord) error {
	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	record.SetID(id)
	record.SetSequence(sequence)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO playlists (id, sequence, user_id, spotify_playlist_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		record.UserID(),
		record.SpotifyPlaylistID(),
		record.Name(),
		record.CreatedAt(),
		record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist record: %w", err)
	}

	return nil
}

// Get retrieves a playlist record by ID, excluding soft-deleted records
func (r *PlaylistRepository) Get(id string) (*models.PlaylistRecord, error) {
	query := playlistSelect + ` WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByUserID retrieves the managed playlist record for a user
func (r *PlaylistRepository) GetByUserID(userID string) (*models.PlaylistRecord, error) {
	query := playlistSelect + ` WHERE user_id = ? AND deleted_at IS NULL LIMIT 1`
	return r.scanOne(r.db.QueryRow(query, userID))
}

// Update modifies an existing playlist record
func (r *PlaylistRepository) Update(record *models.PlaylistRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	record.SetUpdatedAt(now)

	query := `
		UPDATE playlists
		SET spotify_playlist_id = ?, name = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, record.SpotifyPlaylistID(), record.Name(), now, record.ID())
	if err != nil {
		return fmt.Errorf("failed to update playlist record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, record.ID())
	}

	return nil
}

// Delete soft-deletes a playlist record by ID
func (r *PlaylistRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE playlists
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}

	return nil
}

// List retrieves all playlist records matching the given criteria, excluding soft-deleted records
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.PlaylistRecord, error) {
	query := playlistSelect + ` WHERE deleted_at IS NULL`

	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist records: %w", err)
	}
	defer rows.Close()

	var records []*models.PlaylistRecord
	for rows.Next() {
		record, err := scanPlaylist(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

const playlistSelect = `
	SELECT id, sequence, user_id, spotify_playlist_id, name, created_at, updated_at, deleted_at
	FROM playlists
`

func (r *PlaylistRepository) scanOne(row *sql.Row) (*models.PlaylistRecord, error) {
	record, err := scanPlaylist(row.Scan)
	if err == sql.ErrNoRows {
		return nil, shared.ErrPlaylistNotFound
	}
	return record, err
}

func scanPlaylist(scan func(...any) error) (*models.PlaylistRecord, error) {
	var (
		id                string
		sequence          int
		userID            string
		spotifyPlaylistID string
		name              string
		createdAt         time.Time
		updatedAt         time.Time
		deletedAt         sql.NullTime
	)

	err := scan(&id, &sequence, &userID, &spotifyPlaylistID, &name, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan playlist record: %w", err)
	}

	record := models.NewPlaylistRecord(sequence, userID, spotifyPlaylistID, name)
	record.SetID(id)
	record.SetCreatedAt(createdAt)
	record.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		record.SetDeletedAt(&deletedAt.Time)
	}

	return record, nil
}
