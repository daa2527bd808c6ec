package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/itx/internal/formatter"
	"github.com/desertthunder/itx/internal/library"
	"github.com/desertthunder/itx/internal/models"
	"github.com/desertthunder/itx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Inspect parses a library file and prints its tracks and playlists.
//
// Nothing is sent to Spotify.
func (r *Runner) Inspect(ctx context.Context, cmd *cli.Command) error {
	data, err := os.ReadFile(cmd.String("file"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInput, err)
	}

	doc, err := library.Parse(data)
	if err != nil {
		return err
	}

	table, err := library.ParseTracks(doc)
	if err != nil {
		return err
	}

	playlists, err := library.ListPlaylists(doc)
	if err != nil {
		return err
	}

	lib := formatter.Library{Tracks: table.Records(), Playlists: playlists}

	if name := cmd.String("playlist"); name != "" {
		selected, order, _, err := library.SelectPlaylist(doc, name)
		if err != nil {
			return err
		}
		if selected != name {
			r.logger.Warn("playlist not found, showing first playlist", "requested", name, "playlist", selected)
		}

		tracks := make([]models.TrackRecord, 0, len(order))
		for _, id := range order {
			if t, ok := table.Get(id); ok {
				tracks = append(tracks, t)
			} else {
				r.logger.Debug("playlist item not in track table", "id", id)
			}
		}
		lib.Tracks = tracks
		lib.Playlists = nil
	}

	out, err := formatter.FormatLibrary(lib, cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	_, err = r.output.Write(out)
	return err
}
