package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/itx/internal/models"
	"github.com/desertthunder/itx/internal/repositories"
	"github.com/desertthunder/itx/internal/shared"
	"github.com/urfave/cli/v3"
)

// runSummary is the JSON form of a recorded run.
type runSummary struct {
	ID          string     `json:"id"`
	Sequence    int        `json:"sequence"`
	UserID      string     `json:"user_id"`
	SourceFile  string     `json:"source_file"`
	Playlist    string     `json:"playlist"`
	PlaylistID  string     `json:"playlist_id,omitempty"`
	Status      string     `json:"status"`
	Total       int        `json:"tracks_total"`
	Matched     int        `json:"tracks_matched"`
	Failed      int        `json:"tracks_failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newRunSummary(m *models.MigrationJob) runSummary {
	return runSummary{
		ID:          m.ID(),
		Sequence:    m.Sequence(),
		UserID:      m.UserID(),
		SourceFile:  m.SourceFile(),
		Playlist:    m.PlaylistName(),
		PlaylistID:  m.TargetPlaylistID(),
		Status:      m.Status(),
		Total:       m.TracksTotal(),
		Matched:     m.TracksMatched(),
		Failed:      m.TracksFailed(),
		Error:       m.ErrorMessage(),
		StartedAt:   m.StartedAt(),
		CompletedAt: m.CompletedAt(),
	}
}

// History lists recorded migration runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	config, err := r.resolveConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repo := repositories.NewMigrationRepository(db)
	jobs, err := repo.List(map[string]any{
		"limit":   int(cmd.Int("limit")),
		"user_id": cmd.String("user"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]runSummary, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, newRunSummary(j))
		}
		return r.writeJSON(out, true)
	}

	return r.writeHistory(jobs)
}

func (r *Runner) writeHistory(jobs []*models.MigrationJob) error {
	r.writePlainHeader(fmt.Sprintf("Migration history (%d)", len(jobs)))
	if len(jobs) == 0 {
		return r.writePlain("No runs recorded\n")
	}

	for _, j := range jobs {
		when := "-"
		if j.StartedAt() != nil {
			when = j.StartedAt().Local().Format("2006-01-02 15:04")
		}
		if err := r.writePlain("#%-4d %-10s %s  %q  %d/%d matched  (%s)\n",
			j.Sequence(), j.Status(), when, j.PlaylistName(), j.TracksMatched(), j.TracksTotal(), j.SourceFile()); err != nil {
			return err
		}
		if j.ErrorMessage() != "" {
			r.writePlain("      error: %s\n", j.ErrorMessage())
		}
	}
	return nil
}
