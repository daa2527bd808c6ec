package main

import (
	"context"
	"strings"

	"github.com/desertthunder/itx/internal/repositories"
	"github.com/desertthunder/itx/internal/server"
	"github.com/desertthunder/itx/internal/services"
	"github.com/desertthunder/itx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP service until the command context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.resolveConfig(cmd)
	if err != nil {
		return err
	}

	var engineOpts []tasks.EngineOption
	if db := r.openHistory(config); db != nil {
		defer db.Close()
		engineOpts = append(engineOpts, tasks.WithRecorder(repositories.NewMigrationRecorder(repositories.NewMigrationRepository(db))))
	}

	opts := tasks.OptionsFromConfig(config.Migration)
	engines := func() *tasks.Engine {
		return tasks.NewEngine(r.catalogFor(config), opts, r.logger, engineOpts...)
	}

	deps := server.Deps{
		Engines: engines,
		Metrics: server.NewMetrics(),
		Logger:  r.logger,
	}

	spotify := config.Credentials.Spotify
	if spotify.ClientID != "" && spotify.ClientSecret != "" {
		users := services.NewSpotifyService(services.SpotifyOptions{HTTPClient: r.httpClient})
		deps.Login = server.NewLoginHandler(
			server.NewSpotifyAuthenticator(spotify),
			users.CurrentUser,
			server.CallbackPath(spotify.RedirectURI),
			strings.HasPrefix(spotify.RedirectURI, "https://"),
			r.logger,
		)
	} else {
		r.logger.Warn("spotify credentials not configured, /auth routes disabled")
	}

	return server.New(config.Server, deps).Start(ctx)
}
