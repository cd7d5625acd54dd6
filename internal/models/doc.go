// Package models defines domain entities and persistence interfaces for the Replay playlist service.
//
// The package contains two categories of types:
//
// 1. Domain value types consumed by the reconciliation engine:
//   - [Track] : A streaming-service track; identity is the external ID only
//   - [PlayEvent] : One play of a track at a point in time
//   - [ListeningWindow] : The recently-played events for one cycle plus the currently playing track
//
// 2. Persistent entities backed by SQLite:
//   - [User] : Registered listeners with their OAuth2 token pair
//   - [PlaylistRecord] : The managed playlist mapping (one per user)
//   - [SyncRun] : Reconciliation cycle outcomes for observability
//
// All persistent entities implement the [Model] interface providing ID generation, timestamps, validation, and soft delete support.
// The [Repository] interface defines standard CRUD operations for database access.
package models
