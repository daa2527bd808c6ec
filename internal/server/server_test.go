package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/itx/internal/models"
	"github.com/desertthunder/itx/internal/shared"
	"github.com/desertthunder/itx/internal/tasks"
	ttesting "github.com/desertthunder/itx/internal/testing"
	"golang.org/x/oauth2"
)

const testOrigin = "http://app.test"

func newTestServer(cat *ttesting.MockCatalog, login *LoginHandler) *Server {
	logger := shared.NewLogger(io.Discard)
	return New(shared.ServerConfig{Host: "127.0.0.1", Port: 3000, AllowedOrigins: []string{testOrigin}}, Deps{
		Engines: func() *tasks.Engine {
			return tasks.NewEngine(cat, tasks.DefaultOptions(), logger)
		},
		Login:  login,
		Logger: logger,
	})
}

func uploadRequest(t *testing.T, path string, file []byte, playlist string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if file != nil {
		fw, err := mw.CreateFormFile("file", "Library.xml")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		fw.Write(file)
	}
	if playlist != "" {
		mw.WriteField("playlist", playlist)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func withCookies(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "token"})
	req.AddCookie(&http.Cookie{Name: UserCookie, Value: "listener"})
	return req
}

func serve(s http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestBasicRoutes(t *testing.T) {
	s := newTestServer(&ttesting.MockCatalog{}, nil)

	t.Run("ping", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("healthz", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Errorf("unexpected health response %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/import", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("auth routes disabled", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestImport(t *testing.T) {
	file := ttesting.BuildLibrary(ttesting.NumberedTracks(3))

	t.Run("buffered success", func(t *testing.T) {
		cat := &ttesting.MockCatalog{SearchFunc: ttesting.EchoSearch}
		rec := serve(newTestServer(cat, nil), withCookies(uploadRequest(t, "/import", file, "")))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var entries []models.LogEntry
		if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(entries) != 8 {
			t.Fatalf("expected 8 entries, got %d", len(entries))
		}
		if entries[0].Text != "Received file: Library.xml" {
			t.Errorf("unexpected first entry %q", entries[0].Text)
		}
		if entries[len(entries)-1].Kind != models.EntryCompleted {
			t.Errorf("expected completion last, got %+v", entries[len(entries)-1])
		}
		if got := cat.Creates()[0].UserID; got != "listener" {
			t.Errorf("expected cookie user, got %q", got)
		}
	})

	t.Run("wire shape", func(t *testing.T) {
		cat := &ttesting.MockCatalog{SearchFunc: ttesting.EchoSearch}
		rec := serve(newTestServer(cat, nil), withCookies(uploadRequest(t, "/import", file, "")))

		var raw []map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if _, ok := raw[0]["score"]; ok {
			t.Error("score should be omitted when absent")
		}
		if _, ok := raw[3]["pic"]; !ok {
			t.Error("expected pic on a matched entry")
		}
		if raw[3]["score"].(float64) != 100 {
			t.Errorf("expected score 100, got %v", raw[3]["score"])
		}
	})

	t.Run("bearer header", func(t *testing.T) {
		cat := &ttesting.MockCatalog{SearchFunc: ttesting.EchoSearch}
		req := uploadRequest(t, "/import", file, "")
		req.Header.Set("Authorization", "Bearer token")
		req.Header.Set(UserHeader, "header-user")

		rec := serve(newTestServer(cat, nil), req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := cat.Creates()[0].UserID; got != "header-user" {
			t.Errorf("expected header user, got %q", got)
		}
	})

	t.Run("raw xml body", func(t *testing.T) {
		cat := &ttesting.MockCatalog{SearchFunc: ttesting.EchoSearch}
		req := withCookies(httptest.NewRequest(http.MethodPost, "/import?filename=raw.xml&playlist=Mine", bytes.NewReader(file)))
		req.Header.Set("Content-Type", "application/xml")

		rec := serve(newTestServer(cat, nil), req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := cat.Creates()[0].Name; got != "Mine" {
			t.Errorf("expected playlist Mine, got %q", got)
		}
	})

	t.Run("no credentials", func(t *testing.T) {
		cat := &ttesting.MockCatalog{}
		rec := serve(newTestServer(cat, nil), uploadRequest(t, "/import", file, ""))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"error"`) {
			t.Errorf("expected error body, got %q", rec.Body.String())
		}
		if len(cat.Creates()) != 0 {
			t.Error("no playlist should be created")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		rec := serve(newTestServer(&ttesting.MockCatalog{}, nil), withCookies(uploadRequest(t, "/import", nil, "Road Trip")))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unsupported content type", func(t *testing.T) {
		req := withCookies(httptest.NewRequest(http.MethodPost, "/import", strings.NewReader("{}")))
		req.Header.Set("Content-Type", "application/json")
		if rec := serve(newTestServer(&ttesting.MockCatalog{}, nil), req); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("failure after start carries the log", func(t *testing.T) {
		cat := &ttesting.MockCatalog{SearchFunc: ttesting.EchoSearch, CreateErr: errors.New("forbidden")}
		rec := serve(newTestServer(cat, nil), withCookies(uploadRequest(t, "/import", file, "")))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		var entries []models.LogEntry
		if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if last := entries[len(entries)-1]; last.Kind != models.EntryFailed {
			t.Errorf("expected failed entry last, got %+v", last)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		req := uploadRequest(t, "/import", file, "")
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "token"})

		rec := serve(newTestServer(&ttesting.MockCatalog{}, nil), req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 when the user cannot be resolved, got %d", rec.Code)
		}
	})
}

func readEvents(t *testing.T, body string) []models.LogEntry {
	t.Helper()

	var entries []models.LogEntry
	for _, frame := range strings.Split(body, "\n\n") {
		if frame == "" {
			continue
		}
		data, ok := strings.CutPrefix(frame, "data: ")
		if !ok {
			t.Fatalf("unexpected frame %q", frame)
		}
		var e models.LogEntry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			t.Fatalf("invalid event %q: %v", data, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestImportStream(t *testing.T) {
	file := ttesting.BuildLibrary(ttesting.NumberedTracks(3))

	t.Run("events match the buffered log", func(t *testing.T) {
		buffered := serve(newTestServer(&ttesting.MockCatalog{SearchFunc: ttesting.EchoSearch}, nil), withCookies(uploadRequest(t, "/import", file, "")))
		var want []models.LogEntry
		if err := json.Unmarshal(buffered.Body.Bytes(), &want); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}

		rec := serve(newTestServer(&ttesting.MockCatalog{SearchFunc: ttesting.EchoSearch}, nil), withCookies(uploadRequest(t, "/import/stream", file, "")))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
			t.Errorf("expected event stream, got %q", ct)
		}

		got := readEvents(t, rec.Body.String())
		if len(got) != len(want) {
			t.Fatalf("expected %d events, got %d", len(want), len(got))
		}
		for i := range got {
			if got[i].Text != want[i].Text || got[i].Kind != want[i].Kind {
				t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("rejected before streaming", func(t *testing.T) {
		rec := serve(newTestServer(&ttesting.MockCatalog{}, nil), uploadRequest(t, "/import/stream", file, ""))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected a plain JSON error, got %q", ct)
		}
	})

	t.Run("failed run ends with a failed event", func(t *testing.T) {
		cat := &ttesting.MockCatalog{CreateErr: errors.New("forbidden")}
		rec := serve(newTestServer(cat, nil), withCookies(uploadRequest(t, "/import/stream", file, "")))

		got := readEvents(t, rec.Body.String())
		if last := got[len(got)-1]; last.Kind != models.EntryFailed {
			t.Errorf("expected failed event last, got %+v", last)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&ttesting.MockCatalog{SearchFunc: ttesting.EchoSearch}, nil)
	serve(s, withCookies(uploadRequest(t, "/import", ttesting.BuildLibrary(ttesting.NumberedTracks(2)), "")))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`itx_migrations_total{status="completed"} 1`,
		`itx_tracks_total{result="matched"} 2`,
		`itx_batches_flushed_total 1`,
		`itx_migration_duration_seconds_count 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("recover", func(t *testing.T) {
		r := NewBasicRouter()
		r.Use(Recover(logger), Logging(logger))
		r.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("logging keeps the flusher", func(t *testing.T) {
		var flushed bool
		h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, flushed = w.(http.Flusher)
		}))
		serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		if !flushed {
			t.Error("expected the wrapped writer to implement http.Flusher")
		}
	})

	s := newTestServer(&ttesting.MockCatalog{}, nil)

	tc := []struct {
		name       string
		origin     string
		preflight  bool
		wantStatus int
		wantAllow  string
	}{
		{name: "allowed preflight", origin: testOrigin, preflight: true, wantStatus: http.StatusNoContent, wantAllow: testOrigin},
		{name: "denied preflight", origin: "http://evil.test", preflight: true, wantStatus: http.StatusForbidden},
		{name: "allowed simple request", origin: testOrigin, wantStatus: http.StatusOK, wantAllow: testOrigin},
		{name: "other origin gets no header", origin: "http://evil.test", wantStatus: http.StatusOK},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/ping", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}

			rec := serve(s, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("expected allow-origin %q, got %q", tt.wantAllow, got)
			}
		})
	}
}

func TestCookieAuth(t *testing.T) {
	tc := []struct {
		name     string
		setup    func(r *http.Request)
		wantUser string
		wantErr  bool
	}{
		{
			name: "cookies",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "t"})
				r.AddCookie(&http.Cookie{Name: UserCookie, Value: "u"})
			},
			wantUser: "u",
		},
		{
			name:     "bearer without user",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer t") },
			wantUser: "",
		},
		{
			name:    "basic scheme",
			setup:   func(r *http.Request) { r.Header.Set("Authorization", "Basic dTpw") },
			wantErr: true,
		},
		{name: "nothing", setup: func(*http.Request) {}, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)

			auth, err := CookieAuth{}.FromRequest(req)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrAuth) {
					t.Errorf("expected ErrAuth, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if auth.AccessToken != "t" || auth.UserID != tt.wantUser {
				t.Errorf("unexpected auth %+v", auth)
			}
		})
	}
}

type fakeAuthenticator struct{}

func (fakeAuthenticator) AuthURL(state string, _ ...oauth2.AuthCodeOption) string {
	return "https://accounts.test/authorize?state=" + state
}

func (fakeAuthenticator) Exchange(_ context.Context, code string, _ ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	if code != "good" {
		return nil, errors.New("bad code")
	}
	return &oauth2.Token{AccessToken: "tok-1", Expiry: time.Now().Add(time.Hour)}, nil
}

func TestLoginHandler(t *testing.T) {
	users := func(_ context.Context, token string) (string, error) {
		if token != "tok-1" {
			return "", errors.New("unknown token")
		}
		return "listener-42", nil
	}
	login := NewLoginHandler(fakeAuthenticator{}, users, "/auth/callback", false, shared.NewLogger(io.Discard))
	s := newTestServer(&ttesting.MockCatalog{}, login)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}

	var state *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookie {
			state = c
		}
	}
	if state == nil || !strings.HasSuffix(rec.Header().Get("Location"), "state="+state.Value) {
		t.Fatalf("expected state cookie matching the redirect, got %v", rec.Header().Get("Location"))
	}

	t.Run("callback sets cookies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good&state="+state.Value, nil)
		req.AddCookie(state)

		rec := serve(s, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		got := map[string]string{}
		for _, c := range rec.Result().Cookies() {
			got[c.Name] = c.Value
		}
		if got[TokenCookie] != "tok-1" || got[UserCookie] != "listener-42" {
			t.Errorf("unexpected cookies %v", got)
		}
	})

	t.Run("state mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good&state=forged", nil)
		req.AddCookie(state)

		if rec := serve(s, req); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("denied consent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied&state="+state.Value, nil)
		req.AddCookie(state)

		if rec := serve(s, req); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("whoami", func(t *testing.T) {
		if rec := serve(s, httptest.NewRequest(http.MethodGet, "/auth/whoami", nil)); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 without cookies, got %d", rec.Code)
		}

		rec := serve(s, withCookies(httptest.NewRequest(http.MethodGet, "/auth/whoami", nil)))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"listener"`) {
			t.Errorf("unexpected whoami response %d %q", rec.Code, rec.Body.String())
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	t.Run("single callback", func(t *testing.T) {
		h := NewOAuthHandler(fakeAuthenticator{}, "s1", "/auth/callback")

		rec := serve(h, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good&state=s1", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		res := <-h.Result()
		if res.Error() != nil || res.Token.AccessToken != "tok-1" {
			t.Errorf("unexpected result %+v", res)
		}

		if rec := serve(h, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good&state=s1", nil)); rec.Code != http.StatusBadRequest {
			t.Errorf("expected replay to be rejected, got %d", rec.Code)
		}
	})

	t.Run("bad state", func(t *testing.T) {
		h := NewOAuthHandler(fakeAuthenticator{}, "s1", "/auth/callback")
		serve(h, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good&state=s2", nil))

		if res := <-h.Result(); !errors.Is(res.Error(), shared.ErrAuth) {
			t.Errorf("expected ErrAuth, got %v", res.Error())
		}
	})

	t.Run("callback path", func(t *testing.T) {
		tc := map[string]string{
			"http://127.0.0.1:3000/auth/callback": "/auth/callback",
			"http://localhost:8080/cb":            "/cb",
			"http://localhost:8080":               "/auth/callback",
		}
		for in, want := range tc {
			if got := CallbackPath(in); got != want {
				t.Errorf("CallbackPath(%q) = %q, want %q", in, got, want)
			}
		}
	})
}
