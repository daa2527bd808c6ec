package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/itx/internal/formatter"
	"github.com/desertthunder/itx/internal/models"
	"github.com/desertthunder/itx/internal/repositories"
	"github.com/desertthunder/itx/internal/shared"
	"github.com/desertthunder/itx/internal/tasks"
	"github.com/desertthunder/itx/internal/ui"
	"github.com/urfave/cli/v3"
)

// Migrate runs one migration and streams its entries to the output.
//
// The command fails when the run ends with a failed entry.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	config, err := r.resolveConfig(cmd)
	if err != nil {
		return err
	}

	path := cmd.String("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInput, err)
	}

	token := cmd.String("token")
	if token == "" {
		return fmt.Errorf("%w: --token or ITX_ACCESS_TOKEN is required (see 'itx login')", shared.ErrMissingArgument)
	}

	opts := tasks.OptionsFromConfig(config.Migration)
	if cmd.IsSet("threshold") {
		opts.Threshold = cmd.Float("threshold")
	}
	if cmd.IsSet("batch-size") {
		opts.BatchSize = int(cmd.Int("batch-size"))
	}
	if cmd.IsSet("concurrency") {
		opts.Concurrency = int(cmd.Int("concurrency"))
	}
	if opts.Threshold < 0 || opts.Threshold > 100 {
		return fmt.Errorf("%w: threshold must be within [0, 100]", shared.ErrInvalidArgument)
	}

	var engineOpts []tasks.EngineOption
	if !cmd.Bool("no-history") {
		if db := r.openHistory(config); db != nil {
			defer db.Close()
			engineOpts = append(engineOpts, tasks.WithRecorder(repositories.NewMigrationRecorder(repositories.NewMigrationRepository(db))))
		}
	}

	engine := tasks.NewEngine(r.catalogFor(config), opts, r.logger, engineOpts...)
	req := tasks.Request{
		Auth:     &tasks.AuthContext{AccessToken: token, UserID: cmd.String("user")},
		File:     data,
		Filename: filepath.Base(path),
		Playlist: cmd.String("playlist"),
	}

	ch := make(chan models.LogEntry)
	go engine.Stream(ctx, req, ch)

	entries, err := r.printEntries(ch, cmd.Bool("json"))
	if err != nil {
		return err
	}

	if report := cmd.String("report"); report != "" {
		if err := formatter.WriteReport(entries, report); err != nil {
			return err
		}
		r.logger.Info("report written", "path", report)
	}

	if len(entries) == 0 {
		return fmt.Errorf("%w: no entries produced", shared.ErrCancelled)
	}
	if last := entries[len(entries)-1]; last.Kind == models.EntryFailed {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", shared.ErrCancelled, last.Text)
		}
		return fmt.Errorf("migration failed: %s", last.Text)
	}
	return nil
}

// printEntries drains ch, writing each entry styled or as a JSON line, and
// returns everything it saw.
func (r *Runner) printEntries(ch <-chan models.LogEntry, asJSON bool) ([]models.LogEntry, error) {
	var (
		entries []models.LogEntry
		printer = ui.NewPrinter(r.output, nil)
		enc     = json.NewEncoder(r.output)
		werr    error
	)

	for e := range ch {
		entries = append(entries, e)
		if werr != nil {
			continue
		}
		if asJSON {
			werr = enc.Encode(e)
		} else {
			werr = printer.Print(e)
		}
	}

	if werr != nil {
		return entries, fmt.Errorf("failed to write output: %w", werr)
	}
	return entries, nil
}

// openHistory opens the run history database, logging and returning nil
// when it is unavailable so a migration can still proceed.
func (r *Runner) openHistory(config *shared.Config) *sql.DB {
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		r.logger.Warn("run history disabled", "path", config.Database.Path, "error", err)
		return nil
	}
	return db
}
