package server

import (
	"net/http"

	"github.com/desertthunder/swiper/internal/models"
)

// GetPreferences serves GET /api/preferences for the token's owner.
func (h *APIHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := h.identities.UserID(ctx, GetToken(ctx), h.client(ctx))
	if err != nil {
		h.upstreamFailed(ctx, "current_user", err)
		writeFailure(w, "Failed to get preferences")
		return
	}

	prefs, err := h.prefs.Get(ctx, userID)
	if err != nil {
		h.logger.Error("failed to load preferences", "user_id", userID, "error", err, "request_id", GetRequestID(ctx))
		writeFailure(w, "Failed to get preferences")
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

// UpdatePreferences serves POST /api/preferences: a shallow merge of the body's top-level keys.
func (h *APIHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var patch models.Preferences
	if err := decodeBody(r, &patch); err != nil && err != errEmptyBody {
		writeJSON(w, http.StatusBadRequest, invalidJSONBody)
		return
	}

	userID, err := h.identities.UserID(ctx, GetToken(ctx), h.client(ctx))
	if err != nil {
		h.upstreamFailed(ctx, "current_user", err)
		writeFailure(w, "Failed to update preferences")
		return
	}

	if _, err := h.prefs.Merge(ctx, userID, patch); err != nil {
		h.logger.Error("failed to save preferences", "user_id", userID, "error", err, "request_id", GetRequestID(ctx))
		writeFailure(w, "Failed to update preferences")
		return
	}

	writeJSON(w, http.StatusOK, models.StatusResponse{Success: true, Message: "Preferences updated successfully"})
}
