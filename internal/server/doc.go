// Package server implements the HTTP gateway between the swipe client and the Spotify Web API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [ChiRouter] implements it on
// top of go-chi. [Middleware] is applied in the order it is added.
//
// Every request passes through [RequestID], [Recoverer], [Logger], [Instrument] and, when a frontend
// origin is configured, [CORS]. Protected routes additionally pass through [RequireBearer].
//
// # Endpoints
//
// [AuthHandler] serves the OAuth authorization code flow:
//   - GET /api/auth/login sets the spotify_auth_state cookie and redirects to Spotify
//   - GET /api/auth/callback checks state against the cookie, exchanges the code and redirects to the frontend
//   - GET /api/auth/refresh_token returns {access_token, expires_in}
//
// [APIHandler] serves the passthrough endpoints. It holds no user credentials: each request gets its own
// upstream client built from its bearer token. Any upstream failure is logged and answered with a
// generic 500 body of the form {"error": "Failed to ..."}.
//
// Preferences are keyed by the Spotify user id. [IdentityCache] remembers the owner of each token for
// an hour so GET /me is called once per token.
//
// # Security
//
// The callback hands access_token and refresh_token to the frontend as query parameters of a redirect.
// They can end up in browser history, referrer headers and proxy logs. A production deployment should
// instead redirect with a one-time code and let the frontend fetch the tokens with a POST.
// The request logger records paths only, never query strings.
//
// # CLI Login
//
// [CallbackHandler] plays the frontend during "swiper login": it captures the first /callback or
// /error redirect and publishes it on a channel.
package server
