package models

import "fmt"

// PlaylistRecord maps a user to the Spotify playlist the service manages
// for them. One managed playlist per user.
type PlaylistRecord struct {
	entity
	userID            string
	spotifyPlaylistID string
	name              string
}

// NewPlaylistRecord creates a PlaylistRecord linking a user to a Spotify playlist.
func NewPlaylistRecord(sequence int, userID, spotifyPlaylistID, name string) *PlaylistRecord {
	return &PlaylistRecord{
		entity:            newEntity(sequence),
		userID:            userID,
		spotifyPlaylistID: spotifyPlaylistID,
		name:              name,
	}
}

func (p *PlaylistRecord) UserID() string            { return p.userID }
func (p *PlaylistRecord) SpotifyPlaylistID() string { return p.spotifyPlaylistID }
func (p *PlaylistRecord) Name() string              { return p.name }

// SetName updates the playlist display name.
func (p *PlaylistRecord) SetName(name string) { p.name = name }

// SetSpotifyPlaylistID repoints the record at a new remote playlist,
// used when the previous one was deleted on the Spotify side.
func (p *PlaylistRecord) SetSpotifyPlaylistID(id string) { p.spotifyPlaylistID = id }

// Validate checks that the record is persistable.
func (p *PlaylistRecord) Validate() error {
	if p.userID == "" {
		return fmt.Errorf("playlist record missing user ID")
	}
	if p.spotifyPlaylistID == "" {
		return fmt.Errorf("playlist record missing spotify playlist ID")
	}
	return nil
}
