package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/itx/internal/library"
	"github.com/desertthunder/itx/internal/matcher"
	"github.com/desertthunder/itx/internal/models"
	"github.com/desertthunder/itx/internal/services"
	"github.com/desertthunder/itx/internal/shared"
	"golang.org/x/sync/errgroup"
)

// AuthContext identifies the catalog user a run acts for.
type AuthContext struct {
	AccessToken string
	UserID      string
}

// Request is one uploaded library to migrate.
//
// Playlist selects the source playlist whose order is followed and names the
// destination playlist. Filename is only used for reporting.
type Request struct {
	Auth     *AuthContext
	File     []byte
	Filename string
	Playlist string
}

// Options tune a run.
type Options struct {
	Threshold           float64 // Minimum score accepted as a match, in [0, 100]
	BatchSize           int     // Uris per add call
	DefaultPlaylistName string  // Used when the library names no playlist
	PlaylistDescription string
	Concurrency         int // Tracks matched in parallel per window
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Threshold:           50,
		BatchSize:           50,
		DefaultPlaylistName: "iTunes Playlist",
		PlaylistDescription: "Imported from an iTunes library",
		Concurrency:         1,
	}
}

// OptionsFromConfig maps the [migration] config section onto [Options].
func OptionsFromConfig(c shared.MigrationConfig) Options {
	opts := Options{
		Threshold:           c.Threshold,
		BatchSize:           c.BatchSize,
		DefaultPlaylistName: c.DefaultPlaylistName,
		PlaylistDescription: c.PlaylistDescription,
		Concurrency:         c.Concurrency,
	}
	return opts.withDefaults()
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.BatchSize > 100 {
		o.BatchSize = 100
	}
	if o.DefaultPlaylistName == "" {
		o.DefaultPlaylistName = d.DefaultPlaylistName
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	return o
}

// TrackMatcher finds the best catalog candidate for a track.
type TrackMatcher interface {
	FindBestTrack(ctx context.Context, token string, t models.TrackRecord) (models.MatchResult, error)
}

// RunRecorder persists a summary of each run.
type RunRecorder interface {
	Start(job *models.MigrationJob) error
	Finish(job *models.MigrationJob) error
}

// Engine migrates uploaded libraries through a [services.Catalog].
//
// An Engine holds no per-run state; each run gets its own [TrackMatcher] and
// therefore its own album cache.
type Engine struct {
	catalog    services.Catalog
	opts       Options
	logger     *log.Logger
	recorder   RunRecorder
	newMatcher func(*log.Logger) TrackMatcher
}

// EngineOption configures an [Engine].
type EngineOption func(*Engine)

// WithRecorder records every run through r.
func WithRecorder(r RunRecorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// WithMatcher replaces the catalog-backed matcher built for each run.
func WithMatcher(f func(*log.Logger) TrackMatcher) EngineOption {
	return func(e *Engine) { e.newMatcher = f }
}

// NewEngine creates an [Engine]. A nil logger writes to stderr.
func NewEngine(catalog services.Catalog, opts Options, logger *log.Logger, options ...EngineOption) *Engine {
	if logger == nil {
		logger = shared.NewLogger(os.Stderr)
	}
	e := &Engine{
		catalog: catalog,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
	e.newMatcher = func(l *log.Logger) TrackMatcher {
		return matcher.New(catalog, matcher.WithLogger(l))
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Run migrates req, calling emit for every progress entry in order.
//
// Missing credentials return [shared.ErrAuth] and an empty upload returns
// [shared.ErrInput], both before any entry is emitted. Every later failure is
// reported through exactly one failed entry, which is always the last one, and
// is also returned.
func (e *Engine) Run(ctx context.Context, req Request, emit func(models.LogEntry)) error {
	if req.Auth == nil || req.Auth.AccessToken == "" {
		return fmt.Errorf("%w: missing access token", shared.ErrAuth)
	}
	if len(req.File) == 0 {
		return fmt.Errorf("%w: no library file uploaded", shared.ErrInput)
	}
	if emit == nil {
		emit = func(models.LogEntry) {}
	}

	userID := req.Auth.UserID
	if userID == "" {
		id, err := e.catalog.CurrentUser(ctx, req.Auth.AccessToken)
		if err != nil {
			return fmt.Errorf("%w: could not resolve user: %v", shared.ErrAuth, err)
		}
		userID = id
	}

	filename := req.Filename
	if filename == "" {
		filename = "library.xml"
	}

	runID := shared.GenerateID()
	logger := shared.WithLogger(e.logger, "run", runID[:8], "user", userID)
	r := &migrationRun{
		engine:  e,
		ctx:     ctx,
		token:   req.Auth.AccessToken,
		userID:  userID,
		logger:  logger,
		emit:    emit,
		matcher: e.newMatcher(logger),
		job:     models.NewMigrationJob(0, userID, filename, ""),
	}
	r.job.SetID(runID)
	return r.execute(req, filename)
}

// Collect runs req and returns every entry it produced.
func (e *Engine) Collect(ctx context.Context, req Request) ([]models.LogEntry, error) {
	var entries []models.LogEntry
	err := e.Run(ctx, req, func(entry models.LogEntry) {
		entries = append(entries, entry)
	})
	return entries, err
}

// Stream runs req and sends every entry on ch, closing it when the run ends.
//
// Pre-run rejections are sent as a single failed entry. Sends block until the
// receiver is ready or ctx is done.
func (e *Engine) Stream(ctx context.Context, req Request, ch chan<- models.LogEntry) {
	defer close(ch)

	send := func(entry models.LogEntry) {
		select {
		case ch <- entry:
		case <-ctx.Done():
		}
	}

	err := e.Run(ctx, req, send)
	if errors.Is(err, shared.ErrAuth) || errors.Is(err, shared.ErrInput) {
		send(failedEntry("Error: %v", err))
	}
}

// migrationRun is the mutable state of a single run.
type migrationRun struct {
	engine  *Engine
	ctx     context.Context
	token   string
	userID  string
	logger  *log.Logger
	emit    func(models.LogEntry)
	matcher TrackMatcher
	job     *models.MigrationJob

	playlistID string
	uris       []string // matched uris in input order, append-only
	flushed    int      // uris[:flushed] are already in the playlist
	unmatched  int
}

func (r *migrationRun) execute(req Request, filename string) error {
	opts := r.engine.opts

	r.job.Start()
	r.record(r.engine.recorderStart)
	r.emit(receivedEntry(filename))
	r.logger.Info("migration started", "file", filename, "bytes", len(req.File))

	doc, err := library.Parse(req.File)
	if err != nil {
		return r.fail(err, failedEntry("Failed to parse library: %v", err))
	}
	table, err := library.ParseTracks(doc)
	if err != nil {
		return r.fail(err, failedEntry("Failed to parse library: %v", err))
	}

	selected, order, found, err := library.SelectPlaylist(doc, req.Playlist)
	if err != nil {
		r.logger.Warn("ignoring playlist order", "error", err)
		order = nil
	}
	if found && req.Playlist != "" && selected != req.Playlist {
		r.logger.Warn("requested playlist not found, using first playlist", "requested", req.Playlist, "playlist", selected)
	}

	name := r.playlistName(doc, req.Playlist, selected, found)
	r.job.SetPlaylistName(name)

	queue := r.queue(table, order)
	r.job.SetTracksTotal(len(queue))
	r.emit(parsedEntry(table.Len()))

	if err := r.ctx.Err(); err != nil {
		return r.cancel(err)
	}

	id, err := r.engine.catalog.CreatePlaylist(r.ctx, r.token, r.userID, name, opts.PlaylistDescription)
	if err != nil {
		if r.ctx.Err() != nil {
			return r.cancel(r.ctx.Err())
		}
		err = remoteErr(err)
		return r.fail(err, failedEntry("Failed to create playlist: %v", err))
	}
	r.playlistID = id
	r.job.SetTargetPlaylistID(id)
	r.emit(playlistCreatedEntry(name, id))
	r.logger.Info("playlist created", "name", name, "id", id, "tracks", len(queue))

	for start := 0; start < len(queue); start += opts.Concurrency {
		end := min(start+opts.Concurrency, len(queue))
		outcomes := r.matchWindow(queue[start:end])

		for i, out := range outcomes {
			if err := r.ctx.Err(); err != nil {
				return r.cancel(err)
			}
			if err := r.handle(start+i+1, len(queue), queue[start+i], out); err != nil {
				return err
			}
		}
	}

	if err := r.flush(); err != nil {
		return err
	}
	if len(r.uris) == 0 {
		r.emit(nothingToAddEntry())
	}

	r.job.Complete(len(r.uris), r.unmatched)
	r.record(r.engine.recorderFinish)
	r.emit(completedEntry(len(r.uris), len(queue)))
	r.logger.Info("migration complete", "matched", len(r.uris), "total", len(queue), "duration", r.job.Duration())
	return nil
}

// playlistName names the destination after the selected source playlist.
// A requested name is only used as-is when the library has no playlists, so
// the name never disagrees with the tracks it receives.
func (r *migrationRun) playlistName(doc *library.Document, requested, selected string, found bool) string {
	switch {
	case found && selected != "":
		return selected
	case !found && requested != "":
		return requested
	}
	if n, ok := library.ParsePlaylistName(doc); ok {
		return n
	}
	return r.engine.opts.DefaultPlaylistName
}

// queue returns the tracks to migrate. The selected playlist's order wins
// when at least one of its ids resolves; otherwise library order is used.
func (r *migrationRun) queue(table *library.TrackTable, order []int) []models.TrackRecord {
	queue := make([]models.TrackRecord, 0, len(order))
	for _, id := range order {
		t, ok := table.Get(id)
		if !ok {
			r.logger.Debug("skipping unknown track id", "id", id)
			continue
		}
		queue = append(queue, t)
	}
	if len(queue) > 0 {
		return queue
	}
	return table.Records()
}

type outcome struct {
	result models.MatchResult
	err    error
}

// matchWindow matches tracks in parallel and returns outcomes in input order.
func (r *migrationRun) matchWindow(tracks []models.TrackRecord) []outcome {
	outcomes := make([]outcome, len(tracks))
	if len(tracks) == 1 {
		res, err := r.matcher.FindBestTrack(r.ctx, r.token, tracks[0])
		outcomes[0] = outcome{res, err}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(len(tracks))
	for i, t := range tracks {
		g.Go(func() error {
			res, err := r.matcher.FindBestTrack(r.ctx, r.token, t)
			outcomes[i] = outcome{res, err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (r *migrationRun) handle(step, total int, t models.TrackRecord, out outcome) error {
	opts := r.engine.opts

	switch {
	case out.err != nil:
		r.logger.Warn("match failed", "track", t.Label(), "error", out.err)
		r.unmatched++
		r.emit(unmatchedEntry(step, total, t, models.MatchResult{}))
	case out.result.Accepted(opts.Threshold):
		r.uris = append(r.uris, out.result.URI)
		r.emit(matchedEntry(step, total, t, out.result))
	default:
		r.logger.Debug("below threshold", "track", t.Label(), "score", out.result.Score)
		r.unmatched++
		r.emit(unmatchedEntry(step, total, t, out.result))
	}

	if len(r.uris)-r.flushed >= opts.BatchSize {
		return r.flush()
	}
	return nil
}

// flush adds every pending uri to the playlist with one call.
func (r *migrationRun) flush() error {
	pending := r.uris[r.flushed:]
	if len(pending) == 0 {
		return nil
	}
	if err := r.ctx.Err(); err != nil {
		return r.cancel(err)
	}

	if err := r.engine.catalog.AddTracksToPlaylist(r.ctx, r.token, r.playlistID, pending); err != nil {
		if r.ctx.Err() != nil {
			return r.cancel(r.ctx.Err())
		}
		err = remoteErr(err)
		return r.fail(err, failedEntry("Failed to add tracks: %v", err))
	}

	r.flushed = len(r.uris)
	r.emit(flushedEntry(len(pending)))
	r.logger.Debug("batch added", "size", len(pending), "total", r.flushed)
	return nil
}

func (r *migrationRun) cancel(cause error) error {
	return r.fail(fmt.Errorf("%w: %v", shared.ErrCancelled, cause), cancelledEntry())
}

func (r *migrationRun) fail(err error, entry models.LogEntry) error {
	r.job.SetTracksMatched(r.flushed)
	r.job.SetTracksFailed(min(r.unmatched, r.job.TracksTotal()-r.flushed))
	r.job.Fail(err)
	r.record(r.engine.recorderFinish)
	r.emit(entry)
	r.logger.Error("migration failed", "error", err)
	return err
}

func (r *migrationRun) record(f func(*models.MigrationJob) error) {
	if err := f(r.job); err != nil {
		r.logger.Warn("could not record migration", "error", err)
	}
}

func (e *Engine) recorderStart(job *models.MigrationJob) error {
	if e.recorder == nil {
		return nil
	}
	return e.recorder.Start(job)
}

func (e *Engine) recorderFinish(job *models.MigrationJob) error {
	if e.recorder == nil {
		return nil
	}
	return e.recorder.Finish(job)
}

func remoteErr(err error) error {
	if errors.Is(err, shared.ErrRemoteAPI) {
		return err
	}
	return fmt.Errorf("%w: %v", shared.ErrRemoteAPI, err)
}
