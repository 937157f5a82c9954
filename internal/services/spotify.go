// Spotify API implementation of [Service] and [Authenticator]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/swiper/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	playlistPageSize      = 50
	playlistTrackPageSize = 100
)

// Scopes requested on login.
var Scopes = []string{
	"user-read-private",
	"user-read-email",
	"user-top-read",
	"playlist-modify-public",
	"playlist-modify-private",
	"playlist-read-private",
	"user-library-modify",
	"user-library-read",
	"streaming",
	"user-read-playback-state",
}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	PreviewURL string          `json:"preview_url"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// ArtistNames joins the track's artist names with ", ".
func (t SpotifyTrack) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracks struct {
	Total int                    `json:"total"`
	Items []SpotifyPlaylistTrack `json:"items"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       Owner          `json:"owner"`
	Public      bool           `json:"public"`
	Tracks      playlistTracks `json:"tracks"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for items Spotify can no longer resolve.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylistTracks represents a page of playlist items.
type SpotifyPaginatedPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifySimplePlaylist `json:"items"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	Images      []SpotifyImage      `json:"images"`
	URI         string              `json:"uri"`
}

// SpotifyRecommendations is the body of GET /recommendations.
type SpotifyRecommendations struct {
	Tracks []SpotifyTrack `json:"tracks"`
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is returned for non-2xx upstream responses. It wraps [shared.ErrAPIRequest].
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return shared.ErrAPIRequest
}

// SpotifyOpts configures a [SpotifyService].
type SpotifyOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	APIURL       string
	Timeout      time.Duration
	RateLimit    float64 // upstream requests per second, 0 disables limiting
	HTTPClient   *http.Client
}

// SpotifyOptsFromConfig maps the application config onto [SpotifyOpts].
func SpotifyOptsFromConfig(cfg *shared.Config) SpotifyOpts {
	sp := cfg.Credentials.Spotify
	return SpotifyOpts{
		ClientID:     sp.ClientID,
		ClientSecret: sp.ClientSecret,
		RedirectURI:  sp.RedirectURI,
		AuthURL:      sp.AuthURL,
		TokenURL:     sp.TokenURL,
		APIURL:       sp.APIURL,
		Timeout:      time.Duration(cfg.Server.UpstreamTimeoutSeconds) * time.Second,
		RateLimit:    cfg.Server.UpstreamRateLimit,
	}
}

// SpotifyService owns the OAuth2 configuration and the process-wide HTTP plumbing for Spotify.
//
// It never holds a user token. Use [SpotifyService.Client] to get a client bound to one bearer token.
type SpotifyService struct {
	config     *oauth2.Config
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}
	if opts.RedirectURI == "" {
		opts.RedirectURI = "http://127.0.0.1:8888/api/auth/callback"
	}
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.APIURL == "" {
		opts.APIURL = spotifyBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	config := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURL:  opts.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   opts.AuthURL,
			TokenURL:  opts.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &SpotifyService{
		config:     config,
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens at the Spotify token endpoint.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}
	token, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Refresh obtains a new access token for refreshToken.
//
// Spotify does not always rotate the refresh token, so callers must not assume one is returned.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}
	src := s.config.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return token, nil
}

// oauthContext makes x/oauth2 use the service's HTTP client for token requests.
func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// Client returns a [SpotifyClient] bound to accessToken.
//
// The returned client is request-scoped: it shares the HTTP client and rate limiter but nothing mutable.
func (s *SpotifyService) Client(accessToken string) *SpotifyClient {
	return &SpotifyClient{service: s, accessToken: accessToken}
}

// ForToken implements [ServiceFactory].
func (s *SpotifyService) ForToken(accessToken string) Service {
	return s.Client(accessToken)
}

// SpotifyClient performs Spotify Web API calls with a single bearer token.
type SpotifyClient struct {
	service     *SpotifyService
	accessToken string
}

var _ Service = (*SpotifyClient)(nil)

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// endpoint is either a path below the API base URL or an absolute URL (pagination "next" links).
func (c *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if c.accessToken == "" {
		return fmt.Errorf("%w: no access token", shared.ErrNotAuthenticated)
	}

	if l := c.service.limiter; l != nil {
		if err := l.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = c.service.apiURL + endpoint
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.service.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody spotifyErrorBody
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && json.Unmarshal(data, &errBody) == nil {
			apiErr.Message = errBody.Error.Message
		}
		return apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CurrentUser retrieves the current authenticated user's profile.
func (c *SpotifyClient) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := c.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Recommendations retrieves recommended tracks for the query's seeds.
func (c *SpotifyClient) Recommendations(ctx context.Context, query RecommendationQuery) ([]SpotifyTrack, error) {
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

	endpoint := "/recommendations"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var response SpotifyRecommendations
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// UserPlaylists retrieves every playlist of the current user, following pagination.
func (c *SpotifyClient) UserPlaylists(ctx context.Context) ([]SpotifySimplePlaylist, error) {
	var playlists []SpotifySimplePlaylist
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=0", playlistPageSize)

	for endpoint != "" {
		var page SpotifyPaginatedPlaylists
		if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		playlists = append(playlists, page.Items...)

		endpoint = ""
		if page.Next != nil {
			endpoint = *page.Next
		}
	}

	return playlists, nil
}

// Playlist retrieves a playlist by ID.
func (c *SpotifyClient) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))

	var playlist SpotifyPlaylist
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &playlist); err != nil {
		return nil, err
	}

	return &playlist, nil
}

// PlaylistTracks retrieves every item of a playlist, following pagination.
func (c *SpotifyClient) PlaylistTracks(ctx context.Context, playlistID string) ([]SpotifyPlaylistTrack, error) {
	var items []SpotifyPlaylistTrack
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=0", url.PathEscape(playlistID), playlistTrackPageSize)

	for endpoint != "" {
		var page SpotifyPaginatedPlaylistTracks
		if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		items = append(items, page.Items...)

		endpoint = ""
		if page.Next != nil {
			endpoint = *page.Next
		}
	}

	return items, nil
}

// CreatePlaylist creates a playlist for the current user.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, name, description string, public bool) (*SpotifyPlaylist, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var playlist SpotifyPlaylist
	if err := c.doRequest(ctx, http.MethodPost, "/me/playlists", body, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// AddTracksToPlaylist appends track URIs (spotify:track:{id}) to a playlist.
func (c *SpotifyClient) AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return errors.New("no track URIs provided")
	}
	if len(uris) > 100 {
		return fmt.Errorf("%w: maximum 100 track URIs allowed", shared.ErrInvalidArgument)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return c.doRequest(ctx, http.MethodPost, endpoint, map[string]any{"uris": uris}, nil)
}

// TrackURI returns the Spotify URI for a track ID.
func TrackURI(trackID string) string {
	return "spotify:track:" + trackID
}

// ExpiresIn returns the token lifetime in seconds as reported by the token endpoint,
// falling back to the remaining time until its expiry.
func ExpiresIn(tok *oauth2.Token, now time.Time) int {
	if tok == nil {
		return 0
	}
	if tok.ExpiresIn > 0 {
		return int(tok.ExpiresIn)
	}
	if tok.Expiry.IsZero() {
		return 0
	}
	remaining := tok.Expiry.Sub(now).Round(time.Second)
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Second)
}
