package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/services"
)

const (
	DefaultRecommendationLimit = 10
	MaxRecommendationLimit     = 100
)

// Recommendations serves GET /api/tracks/recommendations.
func (h *APIHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	query := services.RecommendationQuery{
		Limit:   parseLimit(q.Get("limit")),
		Genres:  splitList(q.Get("seed_genres")),
		Artists: splitList(q.Get("seed_artists")),
		Tracks:  splitList(q.Get("seed_tracks")),
	}

	tracks, err := h.client(ctx).Recommendations(ctx, query)
	if err != nil {
		h.upstreamFailed(ctx, "recommendations", err)
		writeFailure(w, "Failed to get recommendations")
		return
	}

	writeJSON(w, http.StatusOK, models.RecommendationsResponse{Tracks: services.ToTracks(tracks)})
}

// Like serves POST /api/tracks/like: find or create the liked playlist, then append the track.
func (h *APIHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.TrackRequest
	if err := decodeBody(r, &req); err != nil && err != errEmptyBody {
		writeJSON(w, http.StatusBadRequest, invalidJSONBody)
		return
	}
	if req.TrackID == "" {
		writeMissingParam(w, "track_id")
		return
	}

	client := h.client(ctx)
	playlistID, err := h.likedPlaylistID(ctx, client)
	if err != nil {
		h.upstreamFailed(ctx, "like_track", err)
		writeFailure(w, "Failed to like track")
		return
	}

	if err := client.AddTracksToPlaylist(ctx, playlistID, []string{services.TrackURI(req.TrackID)}); err != nil {
		h.upstreamFailed(ctx, "like_track", err)
		writeFailure(w, "Failed to like track")
		return
	}

	h.metrics.TracksLiked.Inc()
	writeJSON(w, http.StatusOK, models.StatusResponse{Success: true, Message: "Track added to playlist"})
}

// likedPlaylistID returns the id of the user's liked playlist, creating it as a private playlist when missing.
//
// Two concurrent first likes can both create it.
func (h *APIHandler) likedPlaylistID(ctx context.Context, client services.Service) (string, error) {
	playlists, err := client.UserPlaylists(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range playlists {
		if p.Name == models.LikedPlaylistName {
			return p.ID, nil
		}
	}

	created, err := client.CreatePlaylist(ctx, models.LikedPlaylistName, models.LikedPlaylistDescription, false)
	if err != nil {
		return "", err
	}
	h.metrics.PlaylistsCreated.Inc()
	h.logger.Info("created liked playlist", "playlist_id", created.ID, "request_id", GetRequestID(ctx))
	return created.ID, nil
}

// Dislike serves POST /api/tracks/dislike. Nothing is recorded and no upstream call is made.
func (h *APIHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	var req models.TrackRequest
	if err := decodeBody(r, &req); err != nil && err != errEmptyBody {
		writeJSON(w, http.StatusBadRequest, invalidJSONBody)
		return
	}
	if req.TrackID == "" {
		writeMissingParam(w, "track_id")
		return
	}

	h.logger.Debug("track disliked", "track_id", req.TrackID, "request_id", GetRequestID(r.Context()))
	writeJSON(w, http.StatusOK, models.StatusResponse{Success: true, Message: "Track marked as disliked"})
}

// parseLimit falls back to the default for missing or non-positive values and caps at the upstream maximum.
func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultRecommendationLimit
	}
	if n > MaxRecommendationLimit {
		return MaxRecommendationLimit
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
