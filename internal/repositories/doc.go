// Package repositories implements SQLite persistence for migration history.
//
// [MigrationRepository] implements models.Repository for [models.MigrationJob]
// with soft deletes: deleted rows keep their data but are excluded from every
// query. [MigrationRecorder] adapts the repository to the engine's run
// recorder so each run is inserted when it starts and updated when it ends.
//
// Sequence numbers give runs a stable, human-readable order (run #42)
// independent of UUIDs and timestamps. [NextSequence] atomically increments
// a per-table counter kept in a dedicated "<table>_sequence" table.
package repositories
