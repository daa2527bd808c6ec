// Package server exposes library migrations over HTTP.
//
// # Routes
//
//   - GET  /ping, GET /healthz : liveness
//   - POST /import : runs a migration and answers with the full JSON log
//   - POST /import/stream : runs a migration and sends each log entry as a
//     server-sent event ("data: <json>") while it happens
//   - GET  /metrics : Prometheus metrics from a private registry
//   - GET  /auth/login, the redirect callback, GET /auth/whoami : browser login
//
// Uploads are a multipart "file" field with an optional "playlist" field, or
// a raw XML body with "filename" and "playlist" query parameters.
//
// # Authentication
//
// [CookieAuth] reads the access_token and spotify_id cookies written by
// [LoginHandler], or an "Authorization: Bearer" header plus X-Spotify-User.
// Missing credentials are a 401 and a missing upload a 400, both before any
// work starts. A run that fails after it started is a 500 carrying the log.
//
// # Router Infrastructure
//
// [BasicRouter] registers method patterns on an [http.ServeMux] and wraps the
// whole mux in its middleware ([Recover], [Logging], [CORS]), first added
// outermost. Custom handlers implement [Handler] so they can register several
// routes at once.
//
// [OAuthHandler] serves the one-shot callback of the command-line login.
package server
