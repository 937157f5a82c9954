// Package tokens keeps the client side of the OAuth token lifecycle.
//
// A [Store] persists the access token, refresh token and expiry through a [Backend]
// and hands out a usable access token with [Store.ValidToken].
//
// # States
//
// Token validity is an explicit state computed by [Evaluate]:
//   - [Absent]: no access token stored
//   - [Valid]: access token stored and not past its expiry
//   - [Expired]: access token stored and now is strictly after its expiry (or the expiry is unknown)
//
// Expired tokens are refreshed through a [Refresher]. Concurrent callers share a single
// refresh. When no token can be produced callers get [ErrNoToken].
package tokens
