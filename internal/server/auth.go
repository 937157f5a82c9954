package server

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/services"
	"github.com/desertthunder/swiper/internal/shared"
)

// StateCookie holds the login nonce between /login and /callback.
const StateCookie = "spotify_auth_state"

// Redirect messages sent to the frontend error page.
const (
	MessageStateMismatch = "state_mismatch"
	MessageInvalidToken  = "invalid_token"
)

// AuthHandler serves the OAuth login, callback and refresh endpoints.
type AuthHandler struct {
	auth        services.Authenticator
	frontendURI string
	logger      *log.Logger
	metrics     *Metrics
	now         func() time.Time
}

// NewAuthHandler creates the OAuth endpoints handler.
func NewAuthHandler(auth services.Authenticator, frontendURI string, logger *log.Logger, metrics *Metrics) *AuthHandler {
	return &AuthHandler{
		auth:        auth,
		frontendURI: frontendURI,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Login sets the state cookie and redirects to the Spotify authorize page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err, "request_id", GetRequestID(r.Context()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusFound)
}

// Callback validates state, exchanges the code and hands the tokens to the frontend.
//
// Tokens travel in the redirect URL; see the package documentation.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	state := q.Get("state")
	var stored string
	if cookie, err := r.Cookie(StateCookie); err == nil {
		stored = cookie.Value
	}
	if state == "" || state != stored {
		h.logger.Warn("oauth state mismatch", "request_id", GetRequestID(ctx))
		h.redirectError(w, r, MessageStateMismatch)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: StateCookie, Value: "", Path: "/", MaxAge: -1})

	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Warn("authorization denied", "error", providerErr, "request_id", GetRequestID(ctx))
		h.redirectError(w, r, MessageInvalidToken)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.logger.Warn("callback without code", "request_id", GetRequestID(ctx))
		h.redirectError(w, r, MessageInvalidToken)
		return
	}

	token, err := h.auth.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err, "request_id", GetRequestID(ctx))
		h.metrics.UpstreamFailed("exchange_code")
		h.redirectError(w, r, MessageInvalidToken)
		return
	}

	params := url.Values{}
	params.Set("access_token", token.AccessToken)
	params.Set("refresh_token", token.RefreshToken)
	params.Set("expires_in", strconv.Itoa(services.ExpiresIn(token, h.now())))

	http.Redirect(w, r, h.frontendURI+"/callback?"+params.Encode(), http.StatusFound)
}

// RefreshToken exchanges ?refresh_token= for a new access token. The refresh token is never echoed back.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.URL.Query().Get("refresh_token")
	if refreshToken == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Refresh token is required"})
		return
	}

	token, err := h.auth.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.logger.Error("token refresh failed", "error", err, "request_id", GetRequestID(r.Context()))
		h.metrics.UpstreamFailed("refresh_token")
		writeFailure(w, "Failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, models.RefreshResponse{
		AccessToken: token.AccessToken,
		ExpiresIn:   services.ExpiresIn(token, h.now()),
	})
}

func (h *AuthHandler) redirectError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, h.frontendURI+"/error?"+url.Values{"message": {message}}.Encode(), http.StatusFound)
}
