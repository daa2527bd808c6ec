// Package tasks runs iTunes library migrations into a Spotify playlist.
//
// # Core Operations
//
// [Engine.Run] is the single migration core:
//
//  1. Parse the uploaded library and pick a playlist name
//  2. Create one destination playlist for the run
//  3. Match every track through the catalog, in playlist or library order
//  4. Add matched uris to the playlist in batches
//
// Each step emits a [models.LogEntry]. [Engine.Collect] buffers those entries
// for request/response callers and [Engine.Stream] pushes them onto a channel
// as they happen.
//
// # Failures
//
// Missing credentials and empty uploads are rejected before the run starts and
// produce no entries. Anything that goes wrong afterwards ends the run with a
// single failed entry. Tracks that cannot be matched are reported and skipped.
//
// # Recording
//
// The optional [RunRecorder] persists a [models.MigrationJob] per run
// (repositories.MigrationRecorder). Recorder errors are logged and ignored.
package tasks
