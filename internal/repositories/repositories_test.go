package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/itx/internal/models"
	"github.com/desertthunder/itx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func newJob(user string) *models.MigrationJob {
	job := models.NewMigrationJob(0, user, "Library.xml", "Road Trip")
	job.Start()
	return job
}

func TestMigrationRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMigrationRepository(db)
		job := newJob("listener")

		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create migration: %v", err)
		}
		if job.ID() == "" {
			t.Error("migration ID should be set after creation")
		}
		if job.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", job.Sequence())
		}
	})

	t.Run("Create keeps an existing ID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMigrationRepository(db)
		job := newJob("listener")
		job.SetID("run-1")

		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create migration: %v", err)
		}
		if _, err := repo.Get("run-1"); err != nil {
			t.Errorf("expected to find run-1: %v", err)
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMigrationRepository(db)
		job := newJob("listener")
		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create migration: %v", err)
		}

		retrieved, err := repo.Get(job.ID())
		if err != nil {
			t.Fatalf("failed to get migration: %v", err)
		}

		if retrieved.SourceFile() != "Library.xml" || retrieved.PlaylistName() != "Road Trip" {
			t.Errorf("unexpected fields %q %q", retrieved.SourceFile(), retrieved.PlaylistName())
		}
		if retrieved.Status() != models.MigrationRunning {
			t.Errorf("expected status running, got %s", retrieved.Status())
		}
		if retrieved.StartedAt() == nil {
			t.Error("expected started_at to round-trip")
		}
		if retrieved.CompletedAt() != nil {
			t.Error("expected no completed_at")
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMigrationRepository(db)
		job := newJob("listener")
		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create migration: %v", err)
		}

		job.SetTargetPlaylistID("pl-1")
		job.SetTracksTotal(10)
		job.Complete(7, 3)

		if err := repo.Update(job); err != nil {
			t.Fatalf("failed to update migration: %v", err)
		}

		retrieved, err := repo.Get(job.ID())
		if err != nil {
			t.Fatalf("failed to get migration: %v", err)
		}
		if retrieved.Status() != models.MigrationCompleted {
			t.Errorf("expected status completed, got %s", retrieved.Status())
		}
		if retrieved.TracksMatched() != 7 || retrieved.TracksFailed() != 3 || retrieved.TracksTotal() != 10 {
			t.Errorf("unexpected counts %d/%d/%d", retrieved.TracksMatched(), retrieved.TracksFailed(), retrieved.TracksTotal())
		}
		if retrieved.TargetPlaylistID() != "pl-1" {
			t.Errorf("expected target pl-1, got %q", retrieved.TargetPlaylistID())
		}
		if retrieved.CompletedAt() == nil {
			t.Error("expected completed_at")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMigrationRepository(db)
		job := newJob("listener")
		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create migration: %v", err)
		}

		if err := repo.Delete(job.ID()); err != nil {
			t.Fatalf("failed to delete migration: %v", err)
		}
		if _, err := repo.Get(job.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.Delete(job.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMigrationRepository(db)
		for _, user := range []string{"a", "b", "a"} {
			if err := repo.Create(newJob(user)); err != nil {
				t.Fatalf("failed to create migration: %v", err)
			}
		}

		failed := newJob("a")
		if err := repo.Create(failed); err != nil {
			t.Fatalf("failed to create migration: %v", err)
		}
		failed.Fail(errors.New("boom"))
		if err := repo.Update(failed); err != nil {
			t.Fatalf("failed to update migration: %v", err)
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list migrations: %v", err)
		}
		if len(all) != 4 || all[0].Sequence() != 4 {
			t.Errorf("expected 4 migrations newest first, got %d", len(all))
		}

		byUser, _ := repo.List(map[string]any{"user_id": "a"})
		if len(byUser) != 3 {
			t.Errorf("expected 3 migrations for user a, got %d", len(byUser))
		}

		byStatus, _ := repo.List(map[string]any{"status": models.MigrationFailed})
		if len(byStatus) != 1 || byStatus[0].ErrorMessage() != "boom" {
			t.Errorf("expected the failed migration, got %v", byStatus)
		}

		limited, _ := repo.List(map[string]any{"limit": 2})
		if len(limited) != 2 {
			t.Errorf("expected 2 migrations, got %d", len(limited))
		}
	})

	t.Run("GetBySequence", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMigrationRepository(db)
		job := newJob("listener")
		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create migration: %v", err)
		}

		got, err := repo.GetBySequence(1)
		if err != nil || got.ID() != job.ID() {
			t.Errorf("expected job #1, got %v (%v)", got, err)
		}
		if _, err := repo.GetBySequence(9); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMigrationRepository(db)
		done := newJob("a")
		if err := repo.Create(done); err != nil {
			t.Fatalf("failed to create migration: %v", err)
		}
		done.Complete(0, 0)
		if err := repo.Update(done); err != nil {
			t.Fatalf("failed to update migration: %v", err)
		}
		if err := repo.Create(newJob("a")); err != nil {
			t.Fatalf("failed to create migration: %v", err)
		}

		stats, err := repo.Stats()
		if err != nil {
			t.Fatalf("failed to get stats: %v", err)
		}
		if stats[models.MigrationCompleted] != 1 || stats[models.MigrationRunning] != 1 {
			t.Errorf("unexpected stats %v", stats)
		}
	})
}

func TestMigrationRepositoryErrors(t *testing.T) {
	t.Run("ValidationError", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMigrationRepository(db)
		job := newJob("listener")
		job.SetTracksMatched(5)

		if err := repo.Create(job); err == nil {
			t.Fatal("expected validation error for counts exceeding total")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewMigrationRepository(db).Get("nonexistent-id"); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		job := newJob("listener")
		job.SetID("missing")
		if err := NewMigrationRepository(db).Update(job); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ClosedDatabase", func(t *testing.T) {
		db := setupTestDB(t)
		db.Close()

		if err := NewMigrationRepository(db).Create(newJob("listener")); err == nil {
			t.Fatal("expected error on closed database")
		}
	})
}

func TestMigrationRecorder(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewMigrationRepository(db)
	rec := NewMigrationRecorder(repo)

	job := newJob("listener")
	if err := rec.Start(job); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job.SetTracksTotal(2)
	job.Complete(2, 0)
	if err := rec.Finish(job); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err := repo.Get(job.ID())
	if err != nil {
		t.Fatalf("failed to get migration: %v", err)
	}
	if got.Status() != models.MigrationCompleted || got.TracksMatched() != 2 {
		t.Errorf("unexpected stored job %s %d", got.Status(), got.TracksMatched())
	}

	t.Run("finish without start inserts", func(t *testing.T) {
		orphan := newJob("listener")
		orphan.Fail(errors.New("parse"))
		if err := rec.Finish(orphan); err != nil {
			t.Fatalf("Finish failed: %v", err)
		}
		if _, err := repo.Get(orphan.ID()); err != nil {
			t.Errorf("expected orphan to be stored: %v", err)
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seq1, err := NextSequence(db, "migrations")
	if err != nil {
		t.Fatalf("failed to get first sequence: %v", err)
	}

	if seq1 != 1 {
		t.Errorf("expected first sequence to be 1, got %d", seq1)
	}

	seq2, err := NextSequence(db, "migrations")
	if err != nil {
		t.Fatalf("failed to get second sequence: %v", err)
	}

	if seq2 != 2 {
		t.Errorf("expected second sequence to be 2, got %d", seq2)
	}

	if _, err := NextSequence(db, "unknown"); err == nil {
		t.Error("expected error for a table without a sequence")
	}
}
