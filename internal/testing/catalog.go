package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/itx/internal/services"
	"github.com/desertthunder/itx/internal/shared"
)

// CreateCall records one CreatePlaylist invocation.
type CreateCall struct {
	UserID      string
	Name        string
	Description string
}

// MockCatalog is a programmable test double for [services.Catalog].
//
// Nil funcs answer with empty results. Every call is recorded and safe for
// concurrent use.
type MockCatalog struct {
	SearchFunc      func(query string) ([]services.Candidate, error)
	AlbumSearchFunc func(query string) ([]services.Album, error)
	AlbumTracksFunc func(albumID string) ([]services.Candidate, error)
	TrackFunc       func(id string) (*services.Candidate, error)
	AddFunc         func(call int, uris []string) error

	CreateErr  error
	PlaylistID string
	UserID     string

	mu            sync.Mutex
	searches      []string
	albumSearches []string
	albumListings []string
	creates       []CreateCall
	adds          [][]string
}

func (m *MockCatalog) SearchTracks(ctx context.Context, token, query string) ([]services.Candidate, error) {
	m.mu.Lock()
	m.searches = append(m.searches, query)
	m.mu.Unlock()

	if m.SearchFunc == nil {
		return nil, nil
	}
	return m.SearchFunc(query)
}

func (m *MockCatalog) SearchAlbums(ctx context.Context, token, query string) ([]services.Album, error) {
	m.mu.Lock()
	m.albumSearches = append(m.albumSearches, query)
	m.mu.Unlock()

	if m.AlbumSearchFunc == nil {
		return nil, nil
	}
	return m.AlbumSearchFunc(query)
}

func (m *MockCatalog) AlbumTracks(ctx context.Context, token, albumID string) ([]services.Candidate, error) {
	m.mu.Lock()
	m.albumListings = append(m.albumListings, albumID)
	m.mu.Unlock()

	if m.AlbumTracksFunc == nil {
		return nil, nil
	}
	return m.AlbumTracksFunc(albumID)
}

func (m *MockCatalog) CreatePlaylist(ctx context.Context, token, userID, name, description string) (string, error) {
	m.mu.Lock()
	m.creates = append(m.creates, CreateCall{UserID: userID, Name: name, Description: description})
	m.mu.Unlock()

	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	if m.PlaylistID == "" {
		return "playlist-1", nil
	}
	return m.PlaylistID, nil
}

func (m *MockCatalog) AddTracksToPlaylist(ctx context.Context, token, playlistID string, uris []string) error {
	m.mu.Lock()
	call := len(m.adds)
	m.adds = append(m.adds, append([]string(nil), uris...))
	m.mu.Unlock()

	if m.AddFunc == nil {
		return nil
	}
	return m.AddFunc(call, uris)
}

func (m *MockCatalog) GetTrackByID(ctx context.Context, token, id string) (*services.Candidate, error) {
	if m.TrackFunc == nil {
		return nil, fmt.Errorf("%w: track %s not found", shared.ErrRemoteAPI, id)
	}
	return m.TrackFunc(id)
}

func (m *MockCatalog) CurrentUser(ctx context.Context, token string) (string, error) {
	if m.UserID == "" {
		return "", fmt.Errorf("%w: no user", shared.ErrRemoteAPI)
	}
	return m.UserID, nil
}

// Searches returns the track search queries issued so far.
func (m *MockCatalog) Searches() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.searches...)
}

// AlbumSearches returns the album search queries issued so far.
func (m *MockCatalog) AlbumSearches() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.albumSearches...)
}

// AlbumListings returns the album ids whose tracks were listed.
func (m *MockCatalog) AlbumListings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.albumListings...)
}

// Creates returns the CreatePlaylist calls.
func (m *MockCatalog) Creates() []CreateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CreateCall(nil), m.creates...)
}

// Adds returns the uri batches passed to AddTracksToPlaylist.
func (m *MockCatalog) Adds() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.adds...)
}

// EchoSearch answers a structured "track:<t> artist:<a> ..." query with one
// candidate that repeats the query fields, so every track matches with a
// perfect score. The uri is derived from the title.
func EchoSearch(query string) ([]services.Candidate, error) {
	fields := ParseQuery(query)
	title := fields["track"]
	if title == "" {
		return nil, nil
	}
	return []services.Candidate{{
		ID:         slug(title),
		URI:        "spotify:track:" + slug(title),
		Name:       title,
		Artist:     fields["artist"],
		Album:      fields["album"],
		Popularity: 50,
		Artwork:    "https://img.example/" + slug(title) + ".jpg",
	}}, nil
}

// ParseQuery splits a field-scoped query into its values.
func ParseQuery(query string) map[string]string {
	fields := map[string]string{}
	key := ""
	for _, word := range strings.Fields(query) {
		if k, v, ok := strings.Cut(word, ":"); ok && (k == "track" || k == "artist" || k == "album") {
			key = k
			fields[key] = v
			continue
		}
		if key != "" {
			fields[key] += " " + word
		}
	}
	return fields
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "-")
}

var _ services.Catalog = (*MockCatalog)(nil)
