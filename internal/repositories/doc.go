// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [UserRepository] : Registered listeners with their OAuth2 tokens, looked up by Spotify account ID
//   - [PlaylistRepository] : The managed playlist mapping, one active record per user
//   - [SyncRunRepository] : Reconciliation cycle outcomes for the history views
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, run #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
