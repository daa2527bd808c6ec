// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

const defaultConfigPath = "config.toml"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

func fileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "iTunes library file (XML or binary plist)",
		Required: true,
	}
}

// serveCommand runs the HTTP service.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the migration HTTP service",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Serve,
	}
}

// migrateCommand runs one migration from the terminal.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Migrate an iTunes library playlist to Spotify",
		Flags: []cli.Flag{
			configFlag(),
			fileFlag(),
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Source playlist to follow; also names the Spotify playlist",
			},
			&cli.StringFlag{
				Name:    "token",
				Aliases: []string{"t"},
				Usage:   "Spotify access token",
				Sources: cli.EnvVars("ITX_ACCESS_TOKEN"),
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "Spotify user id (resolved from the token when empty)",
			},
			&cli.FloatFlag{
				Name:  "threshold",
				Usage: "Minimum match score in [0, 100]",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Tracks per add request (at most 100)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Tracks matched in parallel",
			},
			&cli.StringFlag{
				Name:    "report",
				Aliases: []string{"o"},
				Usage:   "Write the run log to a .json, .csv or .txt file",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print entries as JSON lines",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the database",
			},
		},
		Action: r.Migrate,
	}
}

// inspectCommand prints what a library file contains.
func inspectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "List the tracks and playlists of a library file",
		Flags: []cli.Flag{
			fileFlag(),
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: text, json, csv or markdown",
				Value: "text",
			},
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Only list the tracks of this playlist, in playlist order",
			},
		},
		Action: r.Inspect,
	}
}

// setupCommand handles setup operations for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
		},
	}
}

// historyCommand lists recorded runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded migration runs",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "Only runs of this Spotify user",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

// loginCommand runs the OAuth flow and prints an access token.
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Authorize with Spotify and print an access token",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Login,
	}
}
