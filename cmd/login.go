package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/itx/internal/server"
	"github.com/desertthunder/itx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const loginTimeout = 2 * time.Minute

// Login runs the authorization-code flow against a temporary local callback
// server and prints the resulting access token.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	config, err := r.resolveConfig(cmd)
	if err != nil {
		return err
	}

	spotify := config.Credentials.Spotify
	if spotify.ClientID == "" || spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrInvalidArgument)
	}

	token, err := r.doOAuth(ctx, spotify, server.NewSpotifyAuthenticator(spotify))
	if err != nil {
		return err
	}

	user, err := r.catalogFor(config).CurrentUser(ctx, token.AccessToken)
	if err != nil {
		r.logger.Warn("could not resolve user", "error", err)
	}

	r.writePlainln("✓ Authorization successful")
	if user != "" {
		r.writePlain("User: %s\n", user)
	}
	r.writePlain("Expires: %s\n\n", token.Expiry.Local().Format(time.RFC1123))
	r.writePlain("export ITX_ACCESS_TOKEN=%s\n", token.AccessToken)
	return nil
}

// doOAuth serves the callback path of the redirect URI until one callback
// arrives, the timeout passes or ctx is done.
func (r *Runner) doOAuth(ctx context.Context, c shared.SpotifyConfig, auth server.Authenticator) (*oauth2.Token, error) {
	redirect, err := url.Parse(c.RedirectURI)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, c.RedirectURI)
	}

	state := shared.GenerateID()
	handler := server.NewOAuthHandler(auth, state, server.CallbackPath(c.RedirectURI))
	router := server.NewBasicRouter()
	router.Handler(handler)

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", redirect.Host)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Open this URL in your browser to authorize:\n%s\n\n", auth.AuthURL(state))
	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(loginTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrNotAuthenticated)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrNotAuthenticated)
	}
	return result.Token, nil
}
