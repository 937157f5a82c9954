package server

import (
	"net/http"

	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/services"
	"github.com/go-chi/chi/v5"
)

// Playlists serves GET /api/playlists.
func (h *APIHandler) Playlists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlists, err := h.client(ctx).UserPlaylists(ctx)
	if err != nil {
		h.upstreamFailed(ctx, "playlists", err)
		writeFailure(w, "Failed to get playlists")
		return
	}

	out := make([]models.Playlist, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, services.ToPlaylistSummary(p))
	}
	writeJSON(w, http.StatusOK, models.PlaylistsResponse{Playlists: out})
}

// Playlist serves GET /api/playlists/{id}: metadata, then items.
func (h *APIHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	client := h.client(ctx)

	playlist, err := client.Playlist(ctx, id)
	if err != nil {
		h.upstreamFailed(ctx, "playlist", err)
		writeFailure(w, "Failed to get playlist")
		return
	}

	items, err := client.PlaylistTracks(ctx, id)
	if err != nil {
		h.upstreamFailed(ctx, "playlist", err)
		writeFailure(w, "Failed to get playlist")
		return
	}

	detail := services.ToPlaylistDetail(*playlist, items)
	if detail.Tracks == nil {
		detail.Tracks = []models.Track{}
	}
	writeJSON(w, http.StatusOK, playlistDetail(detail))
}

// CreatePlaylist serves POST /api/playlists. Description defaults to "" and visibility to private.
func (h *APIHandler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreatePlaylistRequest
	if err := decodeBody(r, &req); err != nil && err != errEmptyBody {
		writeJSON(w, http.StatusBadRequest, invalidJSONBody)
		return
	}
	if req.Name == "" {
		writeMissingParam(w, "name")
		return
	}

	public := req.Public != nil && *req.Public
	created, err := h.client(ctx).CreatePlaylist(ctx, req.Name, req.Description, public)
	if err != nil {
		h.upstreamFailed(ctx, "create_playlist", err)
		writeFailure(w, "Failed to create playlist")
		return
	}

	h.metrics.PlaylistsCreated.Inc()
	writeJSON(w, http.StatusOK, createdPlaylist(services.ToCreatedPlaylist(*created)))
}

// playlistDetail always carries description and tracks, even when empty.
type playlistDetailBody struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ImageURL    string         `json:"image_url,omitempty"`
	Tracks      []models.Track `json:"tracks"`
}

func playlistDetail(p models.Playlist) playlistDetailBody {
	return playlistDetailBody{ID: p.ID, Name: p.Name, Description: p.Description, ImageURL: p.ImageURL, Tracks: p.Tracks}
}

// createdPlaylistBody always carries description, public and a zero tracks_count.
type createdPlaylistBody struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
	ImageURL    string `json:"image_url,omitempty"`
	TracksCount int    `json:"tracks_count"`
}

func createdPlaylist(p models.Playlist) createdPlaylistBody {
	return createdPlaylistBody{ID: p.ID, Name: p.Name, Description: p.Description, Public: p.IsPublic(), ImageURL: p.ImageURL, TracksCount: p.Count()}
}
