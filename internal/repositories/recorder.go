package repositories

import "github.com/desertthunder/itx/internal/models"

// MigrationRecorder persists run summaries through a [MigrationRepository].
type MigrationRecorder struct {
	repo *MigrationRepository
}

// NewMigrationRecorder creates a recorder backed by repo.
func NewMigrationRecorder(repo *MigrationRepository) *MigrationRecorder {
	return &MigrationRecorder{repo: repo}
}

// Start inserts the job as it begins.
func (r *MigrationRecorder) Start(job *models.MigrationJob) error {
	return r.repo.Create(job)
}

// Finish stores the job's final state. Jobs that were never inserted are
// created instead.
func (r *MigrationRecorder) Finish(job *models.MigrationJob) error {
	if job.Sequence() == 0 {
		return r.repo.Create(job)
	}
	return r.repo.Update(job)
}
