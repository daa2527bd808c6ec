package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/itx/internal/models"
	"github.com/desertthunder/itx/internal/shared"
	"github.com/desertthunder/itx/internal/tasks"
)

// MaxUploadBytes bounds the size of an uploaded library.
const MaxUploadBytes = 128 << 20

// EngineFactory builds the engine for one request, so no catalog client or
// rate limiter is shared between users.
type EngineFactory func() *tasks.Engine

// ImportHandler serves buffered and streamed library imports.
type ImportHandler struct {
	engines EngineFactory
	auth    AuthProvider
	metrics *Metrics
	logger  *log.Logger
}

// NewImportHandler creates an [ImportHandler].
func NewImportHandler(engines EngineFactory, auth AuthProvider, metrics *Metrics, logger *log.Logger) *ImportHandler {
	return &ImportHandler{engines: engines, auth: auth, metrics: metrics, logger: logger}
}

func (h *ImportHandler) Routes() []string {
	return []string{"POST /import", "POST /import/stream"}
}

func (h *ImportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := h.readRequest(w, r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if r.URL.Path == "/import/stream" {
		h.stream(w, r, req)
		return
	}
	h.collect(w, r, req)
}

// collect answers with the whole log once the run ends. A run that failed
// after it started is a 500 that still carries the log.
func (h *ImportHandler) collect(w http.ResponseWriter, r *http.Request, req tasks.Request) {
	observe := h.metrics.Observer(time.Now())

	entries := []models.LogEntry{}
	err := h.engines().Run(r.Context(), req, func(e models.LogEntry) {
		observe(e)
		entries = append(entries, e)
	})

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, entries)
	case len(entries) == 0:
		writeError(w, statusFor(err), err.Error())
	default:
		h.logger.Warn("import failed", "file", req.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, entries)
	}
}

// stream sends each entry as a server-sent event as soon as it is produced.
func (h *ImportHandler) stream(w http.ResponseWriter, r *http.Request, req tasks.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	observe := h.metrics.Observer(time.Now())
	ch := make(chan models.LogEntry)
	go h.engines().Stream(r.Context(), req, ch)

	for entry := range ch {
		observe(entry)
		b, err := json.Marshal(entry)
		if err != nil {
			h.logger.Error("failed to encode entry", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			h.logger.Debug("client went away", "error", err)
			continue
		}
		flusher.Flush()
	}
}

// readRequest authenticates the caller and reads the library upload, either a
// multipart "file" field (with optional "playlist") or a raw XML body.
func (h *ImportHandler) readRequest(w http.ResponseWriter, r *http.Request) (tasks.Request, error) {
	auth, err := h.auth.FromRequest(r)
	if err != nil {
		return tasks.Request{}, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	req := tasks.Request{Auth: auth}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return req, fmt.Errorf("%w: %v", shared.ErrInput, err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return req, fmt.Errorf("%w: missing form field \"file\"", shared.ErrInput)
		}
		defer file.Close()

		if req.File, err = io.ReadAll(file); err != nil {
			return req, fmt.Errorf("%w: %v", shared.ErrInput, err)
		}
		req.Filename = header.Filename
		req.Playlist = r.FormValue("playlist")
	case "application/xml", "text/xml", "application/octet-stream", "application/x-plist":
		if req.File, err = io.ReadAll(r.Body); err != nil {
			return req, fmt.Errorf("%w: %v", shared.ErrInput, err)
		}
		req.Filename = r.URL.Query().Get("filename")
		req.Playlist = r.URL.Query().Get("playlist")
	default:
		return req, fmt.Errorf("%w: unsupported content type %q", shared.ErrInput, mediaType)
	}

	if len(req.File) == 0 {
		return req, fmt.Errorf("%w: uploaded file is empty", shared.ErrInput)
	}
	return req, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
