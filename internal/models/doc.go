// Package models defines the domain types of the iTunes library migration service.
//
// The package contains two categories of types:
//
// 1. Transient values produced and consumed during a single migration run
//   - [TrackRecord] : normalized metadata for one library track
//   - [PlaylistSummary] : a playlist found in a library file
//   - [MatchResult] : the best catalog candidate for a track and its confidence
//   - [LogEntry] : one progress event of a run, as sent to clients
//
// 2. Persistent Entities: database-backed models with full lifecycle management
//   - [MigrationJob] : the summary of a finished or running migration
//
// Persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
