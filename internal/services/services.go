// package services defines the remote catalog capability used by the migration
// pipeline and its Spotify implementation.
package services

import (
	"context"
)

// Catalog is the remote music catalog a library is migrated into.
//
// Every call carries the user's access token so a single implementation can
// serve many users without holding per-user state.
type Catalog interface {
	// SearchTracks runs a track search and returns candidates in catalog ranking order.
	SearchTracks(ctx context.Context, token, query string) ([]Candidate, error)

	// SearchAlbums runs an album search.
	SearchAlbums(ctx context.Context, token, query string) ([]Album, error)

	// AlbumTracks lists the tracks of an album. Candidates carry no popularity or artwork.
	AlbumTracks(ctx context.Context, token, albumID string) ([]Candidate, error)

	// CreatePlaylist creates a private playlist for userID and returns its id.
	CreatePlaylist(ctx context.Context, token, userID, name, description string) (string, error)

	// AddTracksToPlaylist appends uris to the playlist in the given order.
	AddTracksToPlaylist(ctx context.Context, token, playlistID string, uris []string) error

	// GetTrackByID fetches full track details.
	GetTrackByID(ctx context.Context, token, id string) (*Candidate, error)

	// CurrentUser returns the id of the token's owner.
	CurrentUser(ctx context.Context, token string) (string, error)
}

// Candidate is a catalog track considered as a match for a library track.
type Candidate struct {
	ID          string
	URI         string
	Name        string
	Artist      string
	Album       string
	TrackNumber int
	Popularity  int
	Artwork     string
}

// Album is an album search result.
type Album struct {
	ID      string
	Name    string
	Artist  string
	Artwork string
}
