package models

import (
	"fmt"
	"time"
)

// Migration job statuses.
const (
	MigrationRunning   = "running"
	MigrationCompleted = "completed"
	MigrationFailed    = "failed"
)

// MigrationJob is the persisted summary of one migration run.
type MigrationJob struct {
	id               string
	sequence         int
	userID           string
	sourceFile       string
	playlistName     string
	targetPlaylistID string
	status           string
	tracksTotal      int
	tracksMatched    int
	tracksFailed     int
	errorMessage     string
	startedAt        *time.Time
	completedAt      *time.Time
	createdAt        time.Time
	updatedAt        time.Time
	deletedAt        *time.Time
}

// NewMigrationJob creates a running job for the given user and source file.
func NewMigrationJob(sequence int, userID, sourceFile, playlistName string) *MigrationJob {
	now := time.Now()
	return &MigrationJob{
		sequence:     sequence,
		userID:       userID,
		sourceFile:   sourceFile,
		playlistName: playlistName,
		status:       MigrationRunning,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (m *MigrationJob) ID() string { return m.id }
func (m *MigrationJob) Sequence() int { return m.sequence }
func (m *MigrationJob) UserID() string { return m.userID }
func (m *MigrationJob) SourceFile() string { return m.sourceFile }
func (m *MigrationJob) PlaylistName() string { return m.playlistName }
func (m *MigrationJob) TargetPlaylistID() string { return m.targetPlaylistID }
func (m *MigrationJob) Status() string { return m.status }
func (m *MigrationJob) TracksTotal() int { return m.tracksTotal }
func (m *MigrationJob) TracksMatched() int { return m.tracksMatched }
func (m *MigrationJob) TracksFailed() int { return m.tracksFailed }
func (m *MigrationJob) ErrorMessage() string { return m.errorMessage }
func (m *MigrationJob) StartedAt() *time.Time { return m.startedAt }
func (m *MigrationJob) CompletedAt() *time.Time { return m.completedAt }
func (m *MigrationJob) CreatedAt() time.Time { return m.createdAt }
func (m *MigrationJob) UpdatedAt() time.Time { return m.updatedAt }
func (m *MigrationJob) DeletedAt() *time.Time { return m.deletedAt }

func (m *MigrationJob) SetID(id string) { m.id = id }
func (m *MigrationJob) SetSequence(seq int) { m.sequence = seq }
func (m *MigrationJob) SetPlaylistName(name string) { m.playlistName = name }
func (m *MigrationJob) SetTargetPlaylistID(id string) { m.targetPlaylistID = id }
func (m *MigrationJob) SetStatus(status string) { m.status = status }
func (m *MigrationJob) SetTracksTotal(n int) { m.tracksTotal = n }
func (m *MigrationJob) SetTracksMatched(n int) { m.tracksMatched = n }
func (m *MigrationJob) SetTracksFailed(n int) { m.tracksFailed = n }
func (m *MigrationJob) SetErrorMessage(msg string) { m.errorMessage = msg }
func (m *MigrationJob) SetStartedAt(t *time.Time) { m.startedAt = t }
func (m *MigrationJob) SetCompletedAt(t *time.Time) { m.completedAt = t }
func (m *MigrationJob) SetCreatedAt(t time.Time) { m.createdAt = t }
func (m *MigrationJob) SetUpdatedAt(t time.Time) { m.updatedAt = t }
func (m *MigrationJob) SetDeletedAt(t *time.Time) { m.deletedAt = t }

// Start marks the job as running from now.
func (m *MigrationJob) Start() {
	now := time.Now()
	m.status = MigrationRunning
	m.startedAt = &now
}

// Complete marks the job as finished and records the final counts.
func (m *MigrationJob) Complete(matched, failed int) {
	now := time.Now()
	m.status = MigrationCompleted
	m.tracksMatched = matched
	m.tracksFailed = failed
	m.completedAt = &now
}

// Fail marks the job as failed with the given error.
func (m *MigrationJob) Fail(err error) {
	now := time.Now()
	m.status = MigrationFailed
	if err != nil {
		m.errorMessage = err.Error()
	}
	m.completedAt = &now
}

// Duration is the time between start and completion, or zero while running.
func (m *MigrationJob) Duration() time.Duration {
	if m.startedAt == nil || m.completedAt == nil {
		return 0
	}
	return m.completedAt.Sub(*m.startedAt)
}

// Validate checks status and counters.
func (m *MigrationJob) Validate() error {
	switch m.status {
	case MigrationRunning, MigrationCompleted, MigrationFailed:
	default:
		return fmt.Errorf("invalid migration status %q", m.status)
	}
	if m.tracksTotal < 0 || m.tracksMatched < 0 || m.tracksFailed < 0 {
		return fmt.Errorf("track counts must not be negative")
	}
	if m.tracksMatched+m.tracksFailed > m.tracksTotal {
		return fmt.Errorf("matched (%d) and failed (%d) exceed total (%d)", m.tracksMatched, m.tracksFailed, m.tracksTotal)
	}
	return nil
}

var _ Model = (*MigrationJob)(nil)
