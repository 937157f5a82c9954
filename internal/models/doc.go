// Package models defines the JSON contract shared by the gateway and its clients.
//
// The upstream Spotify objects are reshaped into these flat DTOs:
//   - [Track] : id, name, joined artist names, album, preview and image URLs
//   - [Playlist] : list, detail and create views of a playlist
//   - [Preferences] : an open-ended JSON object with [DefaultPreferences] as fallback
//   - [TokenPair] : the access/refresh token triple owned by the client
//
// None of these are stored by the gateway; they are produced per request and discarded.
package models
