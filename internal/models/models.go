package models

import (
	"strings"
	"time"
)

// LikedPlaylistName is the playlist liked tracks are collected into.
const LikedPlaylistName = "Music Swiper Likes"

// LikedPlaylistDescription is used when the liked playlist has to be created.
const LikedPlaylistDescription = "Tracks you liked on Music Swiper"

// Track is the flattened view of an upstream track.
type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	PreviewURL string `json:"preview_url"`
	ImageURL   string `json:"image_url,omitempty"`
}

// Playlist is the flattened view of an upstream playlist.
//
// List responses fill TracksCount, detail responses fill Description and Tracks.
type Playlist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Public      *bool   `json:"public,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	TracksCount *int    `json:"tracks_count,omitempty"`
	Tracks      []Track `json:"tracks,omitempty"`
}

// Count returns the track count, falling back to the number of embedded tracks.
func (p Playlist) Count() int {
	if p.TracksCount != nil {
		return *p.TracksCount
	}
	return len(p.Tracks)
}

// IsPublic reports the playlist's visibility, treating unknown as private.
func (p Playlist) IsPublic() bool {
	return p.Public != nil && *p.Public
}

// RecommendationsResponse is the body of GET /api/tracks/recommendations.
type RecommendationsResponse struct {
	Tracks []Track `json:"tracks"`
}

// PlaylistsResponse is the body of GET /api/playlists.
type PlaylistsResponse struct {
	Playlists []Playlist `json:"playlists"`
}

// TrackRequest is the body of the like and dislike endpoints.
type TrackRequest struct {
	TrackID string `json:"track_id"`
}

// CreatePlaylistRequest is the body of POST /api/playlists.
type CreatePlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Public      *bool  `json:"public,omitempty"`
}

// StatusResponse acknowledges a write.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every 4xx/5xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RefreshResponse is the body of GET /api/auth/refresh_token.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenPair is the client-owned credential set.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExpiresAtFrom computes the absolute expiry of a token issued at issuedAt.
func ExpiresAtFrom(issuedAt time.Time, expiresIn int) time.Time {
	return issuedAt.Add(time.Duration(expiresIn) * time.Second)
}

// Preferences is an open-ended mapping of preference fields.
type Preferences map[string]any

// DefaultPreferences returns the preferences served for users who never set any. They are not a
// merge base: a user's first update replaces them entirely.
func DefaultPreferences() Preferences {
	return Preferences{
		"genres":  []any{"pop", "rock", "indie"},
		"artists": []any{},
		"tracks":  []any{},
		"audio_features": map[string]any{
			"min_energy":       0.4,
			"max_energy":       0.9,
			"min_danceability": 0.3,
			"max_danceability": 0.8,
		},
	}
}

// Merge returns a copy of p with the top-level keys of patch applied over it.
func (p Preferences) Merge(patch Preferences) Preferences {
	out := make(Preferences, len(p)+len(patch))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Genres returns the "genres" entry as strings, skipping non-string values.
func (p Preferences) Genres() []string {
	return stringList(p["genres"])
}

func stringList(v any) []string {
	var out []string
	switch items := v.(type) {
	case []string:
		for _, s := range items {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}
