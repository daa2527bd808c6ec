package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/itx/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	trackURIPrefix = "spotify:track:"

	// searchLimit bounds the candidates scored per stage.
	searchLimit = 10
)

// SpotifyOptions configures a [SpotifyService].
type SpotifyOptions struct {
	// BaseURL overrides the Web API root, e.g. an httptest server. Must end in "/".
	BaseURL string
	// HTTPClient is the transport the token is layered on; it carries timeouts.
	HTTPClient *http.Client
	// RequestsPerSecond throttles outbound calls; zero or less disables throttling.
	RequestsPerSecond float64
}

// SpotifyService implements [Catalog] against the Spotify Web API.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSpotifyService creates a Spotify catalog.
func NewSpotifyService(opts SpotifyOptions) *SpotifyService {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	baseURL := opts.BaseURL
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &SpotifyService{baseURL: baseURL, httpClient: httpClient, limiter: limiter}
}

// client waits for the limiter and returns a Web API client authorized with token.
func (s *SpotifyService) client(ctx context.Context, token string) (*spotify.Client, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRemoteAPI, err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	var opts []spotify.ClientOption
	if s.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.baseURL))
	}
	return spotify.New(hc, opts...), nil
}

// SearchTracks implements [Catalog].
func (s *SpotifyService) SearchTracks(ctx context.Context, token, query string) ([]Candidate, error) {
	c, err := s.client(ctx, token)
	if err != nil {
		return nil, err
	}

	res, err := c.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(searchLimit))
	if err != nil {
		return nil, fmt.Errorf("%w: search tracks %q: %v", shared.ErrRemoteAPI, query, err)
	}
	if res.Tracks == nil {
		return nil, nil
	}

	out := make([]Candidate, 0, len(res.Tracks.Tracks))
	for i := range res.Tracks.Tracks {
		out = append(out, fromFullTrack(&res.Tracks.Tracks[i]))
	}
	return out, nil
}

// SearchAlbums implements [Catalog].
func (s *SpotifyService) SearchAlbums(ctx context.Context, token, query string) ([]Album, error) {
	c, err := s.client(ctx, token)
	if err != nil {
		return nil, err
	}

	res, err := c.Search(ctx, query, spotify.SearchTypeAlbum, spotify.Limit(searchLimit))
	if err != nil {
		return nil, fmt.Errorf("%w: search albums %q: %v", shared.ErrRemoteAPI, query, err)
	}
	if res.Albums == nil {
		return nil, nil
	}

	out := make([]Album, 0, len(res.Albums.Albums))
	for _, a := range res.Albums.Albums {
		out = append(out, Album{
			ID:      string(a.ID),
			Name:    a.Name,
			Artist:  firstArtist(a.Artists),
			Artwork: firstImage(a.Images),
		})
	}
	return out, nil
}

// AlbumTracks implements [Catalog].
func (s *SpotifyService) AlbumTracks(ctx context.Context, token, albumID string) ([]Candidate, error) {
	c, err := s.client(ctx, token)
	if err != nil {
		return nil, err
	}

	page, err := c.GetAlbumTracks(ctx, spotify.ID(albumID), spotify.Limit(50))
	if err != nil {
		return nil, fmt.Errorf("%w: album tracks %s: %v", shared.ErrRemoteAPI, albumID, err)
	}

	out := make([]Candidate, 0, len(page.Tracks))
	for _, t := range page.Tracks {
		out = append(out, Candidate{
			ID:          string(t.ID),
			URI:         string(t.URI),
			Name:        t.Name,
			Artist:      firstArtist(t.Artists),
			TrackNumber: int(t.TrackNumber),
		})
	}
	return out, nil
}

// CreatePlaylist implements [Catalog]. Playlists are created private and not collaborative.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, token, userID, name, description string) (string, error) {
	c, err := s.client(ctx, token)
	if err != nil {
		return "", err
	}

	p, err := c.CreatePlaylistForUser(ctx, userID, name, description, false, false)
	if err != nil {
		return "", fmt.Errorf("%w: create playlist %q: %v", shared.ErrRemoteAPI, name, err)
	}
	return string(p.ID), nil
}

// AddTracksToPlaylist implements [Catalog].
func (s *SpotifyService) AddTracksToPlaylist(ctx context.Context, token, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}

	c, err := s.client(ctx, token)
	if err != nil {
		return err
	}

	ids := make([]spotify.ID, 0, len(uris))
	for _, uri := range uris {
		ids = append(ids, spotify.ID(strings.TrimPrefix(uri, trackURIPrefix)))
	}

	if _, err := c.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return fmt.Errorf("%w: add %d tracks to %s: %v", shared.ErrRemoteAPI, len(ids), playlistID, err)
	}
	return nil
}

// GetTrackByID implements [Catalog].
func (s *SpotifyService) GetTrackByID(ctx context.Context, token, id string) (*Candidate, error) {
	c, err := s.client(ctx, token)
	if err != nil {
		return nil, err
	}

	t, err := c.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return nil, fmt.Errorf("%w: get track %s: %v", shared.ErrRemoteAPI, id, err)
	}
	candidate := fromFullTrack(t)
	return &candidate, nil
}

// CurrentUser implements [Catalog].
func (s *SpotifyService) CurrentUser(ctx context.Context, token string) (string, error) {
	c, err := s.client(ctx, token)
	if err != nil {
		return "", err
	}

	u, err := c.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: current user: %v", shared.ErrRemoteAPI, err)
	}
	return u.ID, nil
}

func fromFullTrack(t *spotify.FullTrack) Candidate {
	return Candidate{
		ID:          string(t.ID),
		URI:         string(t.URI),
		Name:        t.Name,
		Artist:      firstArtist(t.Artists),
		Album:       t.Album.Name,
		TrackNumber: int(t.TrackNumber),
		Popularity:  int(t.Popularity),
		Artwork:     firstImage(t.Album.Images),
	}
}

func firstArtist(artists []spotify.SimpleArtist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}

func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

var _ Catalog = (*SpotifyService)(nil)
