package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/itx/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Authenticator is the part of an OAuth2 authorization-code flow the
// handlers need. [*spotifyauth.Authenticator] satisfies it.
type Authenticator interface {
	AuthURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// NewSpotifyAuthenticator configures the Spotify accounts flow with the scopes
// a migration needs.
func NewSpotifyAuthenticator(c shared.SpotifyConfig) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithRedirectURL(c.RedirectURI),
		spotifyauth.WithClientID(c.ClientID),
		spotifyauth.WithClientSecret(c.ClientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopeUserReadPrivate,
		),
	)
}

// CallbackPath returns the path component of a redirect URI, defaulting to
// "/auth/callback".
func CallbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/auth/callback"
	}
	return u.Path
}

// exchange validates the callback's state and trades its code for a token.
func exchange(ctx context.Context, auth Authenticator, r *http.Request, state string) (*oauth2.Token, error) {
	q := r.URL.Query()
	if state == "" || q.Get("state") != state {
		return nil, fmt.Errorf("%w: invalid state parameter", shared.ErrAuth)
	}

	code := q.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: authorization failed: %s - %s", shared.ErrAuth, q.Get("error"), q.Get("error_description"))
	}

	token, err := auth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange failed: %v", shared.ErrAuth, err)
	}
	return token, nil
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles a single OAuth2 callback for the command-line login.
//
// It only processes one callback to prevent replay attacks and reports the
// outcome on [OAuthHandler.Result].
type OAuthHandler struct {
	auth        Authenticator
	state       string
	path        string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler serving path. The state token should be
// random; it is compared with the callback's state parameter.
func NewOAuthHandler(auth Authenticator, state, path string) *OAuthHandler {
	return &OAuthHandler{
		auth:       auth,
		state:      state,
		path:       path,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET " + h.path}
}

// ServeHTTP handles the OAuth callback request.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	token, err := exchange(r.Context(), h.auth, r, h.state)
	if err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.Send(OAuthResult{Token: token})
	writeSuccessPage(w, "You can close this window and return to the terminal.")
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// LoginHandler runs the browser login for the HTTP service and stores the
// resulting token and user id in the cookies [CookieAuth] reads.
type LoginHandler struct {
	auth     Authenticator
	users    func(ctx context.Context, token string) (string, error)
	callback string
	secure   bool
	logger   *log.Logger
}

// NewLoginHandler creates a [LoginHandler]. users resolves the account id of
// a fresh token; callback is the path of the redirect URI.
func NewLoginHandler(auth Authenticator, users func(ctx context.Context, token string) (string, error), callback string, secure bool, logger *log.Logger) *LoginHandler {
	return &LoginHandler{auth: auth, users: users, callback: callback, secure: secure, logger: logger}
}

func (h *LoginHandler) Routes() []string {
	return []string{"GET /auth/login", "GET " + h.callback, "GET /auth/whoami"}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/login":
		h.login(w, r)
	case h.callback:
		h.complete(w, r)
	default:
		h.whoami(w, r)
	}
}

func (h *LoginHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()
	http.SetCookie(w, h.cookie(stateCookie, state, 10*time.Minute))
	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusFound)
}

func (h *LoginHandler) complete(w http.ResponseWriter, r *http.Request) {
	var state string
	if c, err := r.Cookie(stateCookie); err == nil {
		state = c.Value
	}

	token, err := exchange(r.Context(), h.auth, r, state)
	if err != nil {
		h.logger.Warn("login failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := h.users(r.Context(), token.AccessToken)
	if err != nil {
		h.logger.Error("could not resolve user", "error", err)
		writeError(w, http.StatusBadGateway, "could not resolve the Spotify account")
		return
	}

	maxAge := time.Hour
	if !token.Expiry.IsZero() {
		maxAge = time.Until(token.Expiry)
	}
	http.SetCookie(w, h.cookie(stateCookie, "", -1))
	http.SetCookie(w, h.cookie(TokenCookie, token.AccessToken, maxAge))
	http.SetCookie(w, h.cookie(UserCookie, userID, 30*24*time.Hour))

	h.logger.Info("user logged in", "user", userID)
	writeSuccessPage(w, "You can now upload your iTunes library.")
}

func (h *LoginHandler) whoami(w http.ResponseWriter, r *http.Request) {
	auth, err := CookieAuth{}.FromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user_id": auth.UserID})
}

func (h *LoginHandler) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	}
	if maxAge < 0 {
		c.MaxAge = -1
	}
	return c
}

func writeSuccessPage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorization Successful</h1>
        <p>%s</p>
    </div>
</body>
</html>
`, message)
}
