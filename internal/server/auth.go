package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/itx/internal/shared"
	"github.com/desertthunder/itx/internal/tasks"
)

// Cookie names set by the login flow.
const (
	TokenCookie = "access_token"
	UserCookie  = "spotify_id"
	stateCookie = "oauth_state"
)

// UserHeader names the user when the token comes from an Authorization header.
const UserHeader = "X-Spotify-User"

// AuthProvider extracts the caller's catalog credentials from a request.
type AuthProvider interface {
	FromRequest(r *http.Request) (*tasks.AuthContext, error)
}

// CookieAuth reads the access_token and spotify_id cookies, falling back to
// an "Authorization: Bearer" header and [UserHeader].
//
// The user may be empty; the engine then resolves it from the token.
type CookieAuth struct{}

func (CookieAuth) FromRequest(r *http.Request) (*tasks.AuthContext, error) {
	auth := &tasks.AuthContext{}

	if c, err := r.Cookie(TokenCookie); err == nil {
		auth.AccessToken = c.Value
	} else if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			auth.AccessToken = strings.TrimSpace(token)
		}
	}

	if c, err := r.Cookie(UserCookie); err == nil {
		auth.UserID = c.Value
	} else {
		auth.UserID = strings.TrimSpace(r.Header.Get(UserHeader))
	}

	if auth.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token", shared.ErrAuth)
	}
	return auth, nil
}
