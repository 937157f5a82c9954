// Request-scoped upstream interfaces and the mappers from upstream objects to gateway DTOs
package services

import (
	"context"

	"github.com/desertthunder/swiper/internal/models"
	"golang.org/x/oauth2"
)

// Authenticator performs the OAuth2 authorization code and refresh token grants.
type Authenticator interface {
	// AuthURL returns the upstream authorize URL carrying state.
	AuthURL(state string) string

	// Exchange trades an authorization code for a token pair.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Refresh obtains a new access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Service is the set of upstream operations the passthrough handlers need, bound to a single bearer token.
type Service interface {
	// CurrentUser returns the profile of the token's owner.
	CurrentUser(ctx context.Context) (*SpotifyUser, error)

	// Recommendations lists recommended tracks for the given seeds.
	Recommendations(ctx context.Context, query RecommendationQuery) ([]SpotifyTrack, error)

	// UserPlaylists lists every playlist of the current user.
	UserPlaylists(ctx context.Context) ([]SpotifySimplePlaylist, error)

	// Playlist retrieves playlist metadata by ID.
	Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error)

	// PlaylistTracks retrieves the tracks of a playlist.
	PlaylistTracks(ctx context.Context, playlistID string) ([]SpotifyPlaylistTrack, error)

	// CreatePlaylist creates a playlist owned by the current user.
	CreatePlaylist(ctx context.Context, name, description string, public bool) (*SpotifyPlaylist, error)

	// AddTracksToPlaylist appends track URIs to a playlist.
	AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) error
}

// ServiceFactory builds a request-scoped [Service] for a bearer token.
type ServiceFactory interface {
	ForToken(accessToken string) Service
}

// RecommendationQuery carries the optional seeds for a recommendations call.
type RecommendationQuery struct {
	Limit   int
	Genres  []string
	Artists []string
	Tracks  []string
}

// ToTrack reshapes an upstream track into the flat [models.Track] DTO.
func ToTrack(t SpotifyTrack) models.Track {
	return models.Track{
		ID:         t.ID,
		Name:       t.Name,
		Artist:     t.ArtistNames(),
		Album:      t.Album.Name,
		PreviewURL: t.PreviewURL,
		ImageURL:   firstImage(t.Album.Images),
	}
}

// ToTracks reshapes a slice of upstream tracks.
func ToTracks(tracks []SpotifyTrack) []models.Track {
	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, ToTrack(t))
	}
	return out
}

// ToPlaylistSummary reshapes a list entry into {id, name, image_url, tracks_count}.
func ToPlaylistSummary(p SpotifySimplePlaylist) models.Playlist {
	count := p.Tracks.Total
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		ImageURL:    firstImage(p.Images),
		TracksCount: &count,
	}
}

// ToPlaylistDetail reshapes playlist metadata and its items into {id, name, description, image_url, tracks}.
func ToPlaylistDetail(p SpotifyPlaylist, items []SpotifyPlaylistTrack) models.Playlist {
	tracks := make([]models.Track, 0, len(items))
	for _, item := range items {
		if item.Track == nil {
			continue
		}
		tracks = append(tracks, ToTrack(*item.Track))
	}
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    firstImage(p.Images),
		Tracks:      tracks,
	}
}

// ToCreatedPlaylist reshapes a freshly created playlist; its track count is always zero.
func ToCreatedPlaylist(p SpotifyPlaylist) models.Playlist {
	public := p.Public
	count := 0
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Public:      &public,
		ImageURL:    firstImage(p.Images),
		TracksCount: &count,
	}
}

func firstImage(images []SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
