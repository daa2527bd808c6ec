package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/itx/internal/models"
	"github.com/desertthunder/itx/internal/shared"
)

const migrationColumns = `
	id, sequence, user_id, source_file, playlist_name,
	target_playlist_id, status, tracks_total, tracks_matched,
	tracks_failed, error_message, started_at, completed_at,
	created_at, updated_at, deleted_at`

// MigrationRepository implements models.Repository[*models.MigrationJob] for migration history.
//
// Handles migration job CRUD operations with soft delete support and status-based queries.
type MigrationRepository struct {
	db *sql.DB
}

// NewMigrationRepository creates a new MigrationRepository with the given database connection
func NewMigrationRepository(db *sql.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// Create inserts a migration job, assigning its sequence and, when unset, its ID.
func (r *MigrationRepository) Create(migration *models.MigrationJob) error {
	if err := migration.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "migrations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if migration.ID() == "" {
		migration.SetID(shared.GenerateID())
	}
	migration.SetSequence(sequence)

	query := `
		INSERT INTO migrations (
			id, sequence, user_id, source_file, playlist_name,
			target_playlist_id, status, tracks_total, tracks_matched,
			tracks_failed, error_message, started_at, completed_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		migration.ID(),
		sequence,
		migration.UserID(),
		migration.SourceFile(),
		migration.PlaylistName(),
		migration.TargetPlaylistID(),
		migration.Status(),
		migration.TracksTotal(),
		migration.TracksMatched(),
		migration.TracksFailed(),
		migration.ErrorMessage(),
		migration.StartedAt(),
		migration.CompletedAt(),
		migration.CreatedAt(),
		migration.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert migration: %w", err)
	}

	return nil
}

// Get retrieves a migration job by ID, excluding soft-deleted migrations
func (r *MigrationRepository) Get(id string) (*models.MigrationJob, error) {
	query := "SELECT " + migrationColumns + " FROM migrations WHERE id = ? AND deleted_at IS NULL"

	migration, err := scanMigration(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: migration %s", shared.ErrNotFound, id)
	}
	return migration, err
}

// GetBySequence retrieves a migration job by its run number.
func (r *MigrationRepository) GetBySequence(sequence int) (*models.MigrationJob, error) {
	query := "SELECT " + migrationColumns + " FROM migrations WHERE sequence = ? AND deleted_at IS NULL"

	migration, err := scanMigration(r.db.QueryRow(query, sequence))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: migration #%d", shared.ErrNotFound, sequence)
	}
	return migration, err
}

// Update modifies an existing migration job in the database
func (r *MigrationRepository) Update(migration *models.MigrationJob) error {
	if err := migration.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	migration.SetUpdatedAt(now)

	query := `
		UPDATE migrations
		SET playlist_name = ?, target_playlist_id = ?, status = ?,
			tracks_total = ?, tracks_matched = ?, tracks_failed = ?,
			error_message = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		migration.PlaylistName(),
		migration.TargetPlaylistID(),
		migration.Status(),
		migration.TracksTotal(),
		migration.TracksMatched(),
		migration.TracksFailed(),
		migration.ErrorMessage(),
		migration.StartedAt(),
		migration.CompletedAt(),
		now,
		migration.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update migration: %w", err)
	}

	return expectRow(result, migration.ID())
}

// Delete soft-deletes a migration job by ID
func (r *MigrationRepository) Delete(id string) error {
	query := `
		UPDATE migrations
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete migration: %w", err)
	}

	return expectRow(result, id)
}

// List retrieves migration jobs newest first, excluding soft-deleted ones.
//
// Supported criteria: "user_id" and "status" (string) and "limit" (int).
func (r *MigrationRepository) List(criteria map[string]any) ([]*models.MigrationJob, error) {
	query := "SELECT " + migrationColumns + " FROM migrations WHERE deleted_at IS NULL"
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var migrations []*models.MigrationJob
	for rows.Next() {
		migration, err := scanMigration(rows)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, migration)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return migrations, nil
}

// Stats counts non-deleted migrations per status.
func (r *MigrationRepository) Stats() (map[string]int, error) {
	rows, err := r.db.Query("SELECT status, COUNT(*) FROM migrations WHERE deleted_at IS NULL GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count migrations: %w", err)
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan migration stats: %w", err)
		}
		stats[status] = n
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanMigration scans a [sql.Row] or the current row of [sql.Rows] into a [models.MigrationJob].
// A missing row is returned as [sql.ErrNoRows] unwrapped.
func scanMigration(row rowScanner) (*models.MigrationJob, error) {
	var (
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
		startedAt        sql.NullTime
		completedAt      sql.NullTime
		createdAt        time.Time
		updatedAt        time.Time
		deletedAt        sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &userID, &sourceFile, &playlistName,
		&targetPlaylistID, &status, &tracksTotal, &tracksMatched,
		&tracksFailed, &errorMessage, &startedAt, &completedAt,
		&createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan migration: %w", err)
	}

	migration := models.NewMigrationJob(sequence, userID, sourceFile, playlistName)
	migration.SetID(id)
	migration.SetTargetPlaylistID(targetPlaylistID)
	migration.SetStatus(status)
	migration.SetTracksTotal(tracksTotal)
	migration.SetTracksMatched(tracksMatched)
	migration.SetTracksFailed(tracksFailed)
	migration.SetErrorMessage(errorMessage)
	migration.SetCreatedAt(createdAt)
	migration.SetUpdatedAt(updatedAt)
	if startedAt.Valid {
		migration.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		migration.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		migration.SetDeletedAt(&deletedAt.Time)
	}

	return migration, nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: migration %s not found or already deleted", shared.ErrNotFound, id)
	}
	return nil
}

var _ models.Repository[*models.MigrationJob] = (*MigrationRepository)(nil)
