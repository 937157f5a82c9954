// Package services talks HTTP to the two APIs the application depends on.
//
// # Spotify
//
// [SpotifyService] owns the OAuth2 configuration ([golang.org/x/oauth2]), a shared [net/http.Client]
// with a timeout, and a [golang.org/x/time/rate] limiter. It implements [Authenticator] for the
// authorization code and refresh grants.
//
// It never stores a user token. [SpotifyService.Client] (or [SpotifyService.ForToken]) returns a
// [SpotifyClient] bound to one bearer token for the lifetime of a request, so concurrent requests
// from different users cannot observe each other's credentials.
//
// Listing endpoints follow the "next" link until the last page.
//
// # Gateway
//
// [APIService] is the client for the gateway's REST surface. Authenticated calls obtain a token from a
// [TokenSource] (normally a tokens.Store) and [APIService] itself implements tokens.Refresher by
// calling the gateway's refresh endpoint.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no token available
//   - [shared.ErrAuthFailed] : code exchange failed or the callback carried an error
//   - [shared.ErrRefreshFailed] : refresh grant failed
//   - [shared.ErrAPIRequest] : non-2xx response, see [APIError] and [GatewayError]
//
// # API Mappings
//
// Upstream objects are reshaped into the flat DTOs of the models package by [ToTrack],
// [ToPlaylistSummary], [ToPlaylistDetail] and [ToCreatedPlaylist]. Artist names are joined with ", "
// and the first album or playlist image is used.
package services
