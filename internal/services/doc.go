// Package services defines the [Catalog] capability for remote music catalogs and implements it for Spotify.
//
// # Catalog Interface
//
// The migration pipeline only needs a handful of operations from the remote side:
// track and album search, album listings, single track lookups, playlist creation
// and batched track additions. [Catalog] captures exactly those, with the user's
// access token passed on every call.
//
// # Spotify Implementation
//
// [SpotifyService] wraps the github.com/zmb3/spotify/v2 client. Each call builds a
// client over an [oauth2.StaticTokenSource] for the given token, waits on a
// [rate.Limiter] and converts the response into [Candidate] or [Album] values.
//
// # Error Handling
//
// Every failed call is wrapped in [shared.ErrRemoteAPI]. Retries are left to the
// caller's transport.
package services
