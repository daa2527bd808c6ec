// Package matcher finds the catalog track that best corresponds to a library track.
//
// Searches run in stages, each only when the previous one returned nothing:
//
//  1. structured: track:<title> artist:<artist> album:<album>
//  2. relaxed: track:<title> artist:<artist>
//  3. plain text: <artist> <title> <album>
//  4. album: look up the album and pick the entry at the library track number
//
// Candidates are scored with the Sorensen-Dice coefficient over character
// bigrams of "artist title album", after both sides went through the same
// normalization. Ties go to the more popular candidate, then to the earliest.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/desertthunder/itx/internal/models"
	"github.com/desertthunder/itx/internal/services"
	"github.com/desertthunder/itx/internal/shared"
)

const defaultAlbumCacheSize = 128

// Matcher scores catalog candidates for library tracks.
//
// A Matcher caches album listings and is meant to serve a single migration run.
type Matcher struct {
	catalog services.Catalog
	metric  *metrics.SorensenDice
	albums  *lru.Cache[string, []services.Candidate]
	logger  *log.Logger
}

// Option configures a [Matcher].
type Option func(*Matcher)

// WithLogger sets the logger used for stage diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(m *Matcher) { m.logger = l }
}

// WithAlbumCacheSize bounds the number of album listings kept in memory.
func WithAlbumCacheSize(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.albums, _ = lru.New[string, []services.Candidate](n)
		}
	}
}

// New creates a Matcher over catalog.
func New(catalog services.Catalog, opts ...Option) *Matcher {
	metric := metrics.NewSorensenDice()
	metric.CaseSensitive = false

	albums, _ := lru.New[string, []services.Candidate](defaultAlbumCacheSize)
	m := &Matcher{
		catalog: catalog,
		metric:  metric,
		albums:  albums,
		logger:  shared.NewLogger(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Query is one track search stage.
type Query struct {
	Stage models.MatchStage
	Text  string
}

// Queries returns the track searches tried for t, in order. Empty fields are
// left out of scoped queries; a stage that would repeat the previous query or
// has nothing to search for is dropped.
func Queries(t models.TrackRecord) []Query {
	candidates := []Query{
		{models.StageStructured, scoped("track", t.Name, "artist", t.Artist, "album", t.Album)},
		{models.StageRelaxed, scoped("track", t.Name, "artist", t.Artist)},
		{models.StagePlainText, join(t.Artist, t.Name, t.Album)},
	}

	var out []Query
	prev := ""
	for _, q := range candidates {
		if q.Text == "" || q.Text == prev {
			continue
		}
		out = append(out, q)
		prev = q.Text
	}
	return out
}

// FindBestTrack returns the best candidate for t and its [0, 100] score.
//
// When no stage yields a candidate the result has an empty URI and a zero
// score. Catalog failures are returned wrapped in [shared.ErrRemoteAPI].
// No acceptance threshold is applied.
func (m *Matcher) FindBestTrack(ctx context.Context, token string, t models.TrackRecord) (models.MatchResult, error) {
	for _, q := range Queries(t) {
		if err := ctx.Err(); err != nil {
			return models.MatchResult{}, err
		}

		found, err := m.catalog.SearchTracks(ctx, token, q.Text)
		if err != nil {
			return models.MatchResult{}, remote(err)
		}
		m.logger.Debug("search stage", "stage", q.Stage, "query", q.Text, "candidates", len(found))

		if len(found) > 0 {
			return m.best(t, q.Stage, found), nil
		}
	}

	return m.albumFallback(ctx, token, t)
}

// albumFallback searches for the track's album and takes its entry at TrackNumber.
func (m *Matcher) albumFallback(ctx context.Context, token string, t models.TrackRecord) (models.MatchResult, error) {
	if t.TrackNumber <= 0 || t.Album == "" {
		return models.MatchResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return models.MatchResult{}, err
	}

	albums, err := m.catalog.SearchAlbums(ctx, token, scoped("artist", t.Artist, "album", t.Album))
	if err != nil {
		return models.MatchResult{}, remote(err)
	}
	if len(albums) == 0 {
		return models.MatchResult{}, nil
	}
	album := albums[0]

	listing, err := m.albumTracks(ctx, token, album.ID)
	if err != nil {
		return models.MatchResult{}, err
	}

	for _, c := range listing {
		if c.TrackNumber != t.TrackNumber {
			continue
		}

		if err := ctx.Err(); err != nil {
			return models.MatchResult{}, err
		}
		full, err := m.catalog.GetTrackByID(ctx, token, c.ID)
		if err != nil || full == nil {
			m.logger.Debug("album track lookup failed, using listing", "id", c.ID, "err", err)
			c.Album, c.Artwork = album.Name, album.Artwork
			if c.Artist == "" {
				c.Artist = album.Artist
			}
			full = &c
		}
		return m.best(t, models.StageAlbum, []services.Candidate{*full}), nil
	}

	return models.MatchResult{}, nil
}

func (m *Matcher) albumTracks(ctx context.Context, token, albumID string) ([]services.Candidate, error) {
	if cached, ok := m.albums.Get(albumID); ok {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	listing, err := m.catalog.AlbumTracks(ctx, token, albumID)
	if err != nil {
		return nil, remote(err)
	}
	m.albums.Add(albumID, listing)
	return listing, nil
}

// best scores every candidate and keeps the highest score, then the highest
// popularity, then the first one seen.
func (m *Matcher) best(t models.TrackRecord, stage models.MatchStage, found []services.Candidate) models.MatchResult {
	query := shared.FoldForCompare(join(t.Artist, t.Name, t.Album))

	var (
		winner services.Candidate
		top    = -1.0
	)
	for _, c := range found {
		score := m.Score(query, c)
		if score > top || (score == top && c.Popularity > winner.Popularity) {
			winner, top = c, score
		}
	}

	return models.MatchResult{URI: winner.URI, Score: top, Artwork: winner.Artwork, Stage: stage}
}

// Score compares a folded query with a candidate normalized the same way as
// library tracks, on a [0, 100] scale.
func (m *Matcher) Score(query string, c services.Candidate) float64 {
	candidate := shared.FoldForCompare(join(
		shared.NormalizeArtist(c.Artist),
		shared.NormalizeTitle(c.Name),
		shared.NormalizeAlbum(c.Album),
	))
	return strutil.Similarity(query, candidate, m.metric) * 100
}

func scoped(kv ...string) string {
	parts := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if v := strings.TrimSpace(kv[i+1]); v != "" {
			parts = append(parts, kv[i]+":"+v)
		}
	}
	return strings.Join(parts, " ")
}

func join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func remote(err error) error {
	if errors.Is(err, shared.ErrRemoteAPI) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", shared.ErrRemoteAPI, err)
}
