// Client for the gateway's own REST API, used by the CLI and the swipe UI
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/shared"
	"github.com/desertthunder/swiper/internal/tokens"
)

const defaultAPIURL = "http://127.0.0.1:8888"

// TokenSource yields an access token for authenticated gateway calls. [tokens.Store] implements it.
type TokenSource interface {
	ValidToken(ctx context.Context) (string, error)
}

// APIService calls the gateway over HTTP.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

var _ tokens.Refresher = (*APIService)(nil)

// NewAPIService creates a new API service instance for the gateway at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// UseTokens sets the source of bearer tokens for authenticated calls.
func (a *APIService) UseTokens(src TokenSource) {
	a.tokens = src
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// GatewayError is a non-2xx gateway response. It wraps [shared.ErrAPIRequest],
// and [shared.ErrNotAuthenticated] for 401s.
type GatewayError struct {
	StatusCode int
	Body       models.ErrorResponse
}

func (e *GatewayError) Error() string {
	msg := e.Body.Message
	if msg == "" {
		msg = e.Body.Error
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, msg)
}

func (e *GatewayError) Unwrap() []error {
	if e.StatusCode == http.StatusUnauthorized {
		return []error{shared.ErrAPIRequest, shared.ErrNotAuthenticated}
	}
	return []error{shared.ErrAPIRequest}
}

// Do performs a request and returns the raw response. The bearer token is attached when a token source is set.
func (a *APIService) Do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	fullURL := a.baseURL + path

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if a.tokens != nil {
		token, err := a.tokens.ValidToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	var jsonData any
	if err := json.Unmarshal(respBody, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	if data == nil {
		data = []byte{}
	}
	return a.Do(ctx, http.MethodPost, path, data)
}

// call performs an authenticated JSON request and decodes a 2xx body into result.
func (a *APIService) call(ctx context.Context, method, path string, payload, result any) error {
	if a.tokens == nil {
		return fmt.Errorf("%w: no token source configured", shared.ErrNotAuthenticated)
	}

	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := a.Do(ctx, method, path, data)
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func checkStatus(resp *APIResponse) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	gwErr := &GatewayError{StatusCode: resp.StatusCode}
	_ = json.Unmarshal(resp.Body, &gwErr.Body)
	return gwErr
}

// LoginURL is the page a browser opens to start the OAuth flow.
func (a *APIService) LoginURL() string {
	return a.baseURL + "/api/auth/login"
}

// TokensFromURL reads the tokens the gateway appends to the frontend callback URL.
//
// A redirect to the frontend error page returns [shared.ErrAuthFailed] carrying its message.
func (a *APIService) TokensFromURL(u *url.URL) (*tokens.Refreshed, error) {
	q := u.Query()
	if strings.HasSuffix(u.Path, "/error") {
		return nil, fmt.Errorf("%w: %s", shared.ErrAuthFailed, q.Get("message"))
	}

	access := q.Get("access_token")
	if access == "" {
		return nil, fmt.Errorf("%w: callback has no access_token", shared.ErrAuthFailed)
	}

	expiresIn, err := strconv.Atoi(q.Get("expires_in"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid expires_in %q", shared.ErrAuthFailed, q.Get("expires_in"))
	}

	return &tokens.Refreshed{
		AccessToken:  access,
		RefreshToken: q.Get("refresh_token"),
		ExpiresIn:    expiresIn,
	}, nil
}

// RefreshToken asks the gateway for a new access token. It never sends a bearer token.
func (a *APIService) RefreshToken(ctx context.Context, refreshToken string) (*tokens.Refreshed, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	path := "/api/auth/refresh_token?refresh_token=" + url.QueryEscape(refreshToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := checkStatus(&APIResponse{StatusCode: resp.StatusCode, Body: body}); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	var out models.RefreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", shared.ErrRefreshFailed)
	}

	return &tokens.Refreshed{AccessToken: out.AccessToken, ExpiresIn: out.ExpiresIn}, nil
}

// Recommendations fetches recommended tracks.
func (a *APIService) Recommendations(ctx context.Context, query RecommendationQuery) ([]models.Track, error) {
	params := url.Values{}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if len(query.Genres) > 0 {
		params.Set("seed_genres", strings.Join(query.Genres, ","))
	}
	if len(query.Artists) > 0 {
		params.Set("seed_artists", strings.Join(query.Artists, ","))
	}
	if len(query.Tracks) > 0 {
		params.Set("seed_tracks", strings.Join(query.Tracks, ","))
	}

	path := "/api/tracks/recommendations"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var out models.RecommendationsResponse
	if err := a.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tracks, nil
}

// LikeTrack adds a track to the liked playlist.
func (a *APIService) LikeTrack(ctx context.Context, trackID string) (*models.StatusResponse, error) {
	return a.trackAction(ctx, "/api/tracks/like", trackID)
}

// DislikeTrack records a dislike.
func (a *APIService) DislikeTrack(ctx context.Context, trackID string) (*models.StatusResponse, error) {
	return a.trackAction(ctx, "/api/tracks/dislike", trackID)
}

func (a *APIService) trackAction(ctx context.Context, path, trackID string) (*models.StatusResponse, error) {
	if trackID == "" {
		return nil, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	var out models.StatusResponse
	if err := a.call(ctx, http.MethodPost, path, models.TrackRequest{TrackID: trackID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Playlists lists the user's playlists.
func (a *APIService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var out models.PlaylistsResponse
	if err := a.call(ctx, http.MethodGet, "/api/playlists", nil, &out); err != nil {
		return nil, err
	}
	return out.Playlists, nil
}

// Playlist fetches a playlist with its tracks.
func (a *APIService) Playlist(ctx context.Context, id string) (*models.Playlist, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	var out models.Playlist
	if err := a.call(ctx, http.MethodGet, "/api/playlists/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePlaylist creates a playlist.
func (a *APIService) CreatePlaylist(ctx context.Context, req models.CreatePlaylistRequest) (*models.Playlist, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}
	var out models.Playlist
	if err := a.call(ctx, http.MethodPost, "/api/playlists", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Preferences fetches the user's preferences.
func (a *APIService) Preferences(ctx context.Context) (models.Preferences, error) {
	var out models.Preferences
	if err := a.call(ctx, http.MethodGet, "/api/preferences", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePreferences shallow-merges patch into the stored preferences.
func (a *APIService) UpdatePreferences(ctx context.Context, patch models.Preferences) (*models.StatusResponse, error) {
	if patch == nil {
		patch = models.Preferences{}
	}
	var out models.StatusResponse
	if err := a.call(ctx, http.MethodPost, "/api/preferences", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
