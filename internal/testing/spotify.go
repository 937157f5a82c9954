package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeTrack is a catalog entry served by [FakeSpotify].
type FakeTrack struct {
	ID         string
	Name       string
	Artists    []string
	Album      string
	PreviewURL string // empty is served as null
	ImageURL   string
}

// FakePlaylist is a playlist owned by a fake user. An empty entry in TrackIDs is served as a null track.
type FakePlaylist struct {
	ID          string
	Name        string
	Description string
	Public      bool
	TrackIDs    []string
}

// FakeSpotify serves the subset of the Spotify accounts service and Web API the gateway calls.
//
// Accounts endpoints live under /authorize and /api/token, the Web API under /v1.
type FakeSpotify struct {
	*httptest.Server

	ClientID     string
	ClientSecret string
	ExpiresIn    int
	// RotateRefresh makes the refresh grant return a new refresh token.
	RotateRefresh bool

	mu        sync.Mutex
	codes     map[string]string // auth code -> user id
	access    map[string]string // access token -> user id
	refresh   map[string]string // refresh token -> user id
	playlists map[string][]*FakePlaylist
	tracks    []FakeTrack
	calls     map[string]int
	queries   map[string]url.Values
	failures  map[string]int
	issued    int
}

// NewFakeSpotify starts a fake upstream that is closed when the test ends.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
		ExpiresIn:    3600,
		codes:        make(map[string]string),
		access:       make(map[string]string),
		refresh:      make(map[string]string),
		playlists:    make(map[string][]*FakePlaylist),
		calls:        make(map[string]int),
		queries:      make(map[string]url.Values),
		failures:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /authorize", f.handleAuthorize)
	mux.HandleFunc("POST /api/token", f.handleToken)
	mux.HandleFunc("GET /v1/me", f.authed(f.handleMe))
	mux.HandleFunc("GET /v1/recommendations", f.authed(f.handleRecommendations))
	mux.HandleFunc("GET /v1/me/playlists", f.authed(f.handleUserPlaylists))
	mux.HandleFunc("POST /v1/me/playlists", f.authed(f.handleCreatePlaylist))
	mux.HandleFunc("GET /v1/playlists/{id}", f.authed(f.handlePlaylist))
	mux.HandleFunc("GET /v1/playlists/{id}/tracks", f.authed(f.handlePlaylistTracks))
	mux.HandleFunc("POST /v1/playlists/{id}/tracks", f.authed(f.handleAddTracks))

	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Close)
	return f
}

func (f *FakeSpotify) AuthURL() string  { return f.URL + "/authorize" }
func (f *FakeSpotify) TokenURL() string { return f.URL + "/api/token" }
func (f *FakeSpotify) APIURL() string   { return f.URL + "/v1" }

// AddUser registers a user reachable with accessToken and, when non-empty, refreshToken.
func (f *FakeSpotify) AddUser(userID, accessToken, refreshToken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access[accessToken] = userID
	if refreshToken != "" {
		f.refresh[refreshToken] = userID
	}
}

// AddCode registers an authorization code that exchanges into tokens for userID.
func (f *FakeSpotify) AddCode(code, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = userID
}

// AddTracks appends tracks to the recommendation catalog.
func (f *FakeSpotify) AddTracks(tracks ...FakeTrack) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, tracks...)
}

// AddPlaylist gives userID a playlist.
func (f *FakeSpotify) AddPlaylist(userID string, p FakePlaylist) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists[userID] = append(f.playlists[userID], &p)
}

// Playlists returns a snapshot of userID's playlists.
func (f *FakeSpotify) Playlists(userID string) []FakePlaylist {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakePlaylist, 0, len(f.playlists[userID]))
	for _, p := range f.playlists[userID] {
		cp := *p
		cp.TrackIDs = append([]string(nil), p.TrackIDs...)
		out = append(out, cp)
	}
	return out
}

// Calls returns how many requests matched "METHOD /path".
func (f *FakeSpotify) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// TotalCalls returns the number of requests served.
func (f *FakeSpotify) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// LastQuery returns the query string of the last request to "METHOD /path".
func (f *FakeSpotify) LastQuery(key string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[key]
}

// Fail makes every request to "METHOD /path" answer with status. A zero status clears the failure.
func (f *FakeSpotify) Fail(key string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, key)
		return
	}
	f.failures[key] = status
}

func (f *FakeSpotify) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		f.mu.Lock()
		f.calls[key]++
		f.queries[key] = r.URL.Query()
		status, failing := f.failures[key]
		f.mu.Unlock()

		if failing {
			writeAPIError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (f *FakeSpotify) authed(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		userID, known := f.access[token]
		f.mu.Unlock()
		if !ok || !known {
			writeAPIError(w, http.StatusUnauthorized, "Invalid access token")
			return
		}
		next(w, r, userID)
	}
}

func (f *FakeSpotify) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("redirect_uri") + "?code=fake-code&state=" + url.QueryEscape(q.Get("state"))
	http.Redirect(w, r, target, http.StatusFound)
}

func (f *FakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	id, secret, ok := r.BasicAuth()
	if !ok || id != f.ClientID || secret != f.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		userID     string
		known      bool
		newRefresh bool
	)
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		code := r.PostForm.Get("code")
		userID, known = f.codes[code]
		delete(f.codes, code)
		newRefresh = true
	case "refresh_token":
		userID, known = f.refresh[r.PostForm.Get("refresh_token")]
		newRefresh = f.RotateRefresh
	}
	if !known {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	f.issued++
	body := map[string]any{
		"access_token": fmt.Sprintf("access-%d", f.issued),
		"token_type":   "Bearer",
		"expires_in":   f.ExpiresIn,
		"scope":        "user-read-private",
	}
	f.access[body["access_token"].(string)] = userID
	if newRefresh {
		rt := fmt.Sprintf("refresh-%d", f.issued)
		f.refresh[rt] = userID
		body["refresh_token"] = rt
	}
	writeJSON(w, http.StatusOK, body)
}

func (f *FakeSpotify) handleMe(w http.ResponseWriter, r *http.Request, userID string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           userID,
		"display_name": "User " + userID,
	})
}

func (f *FakeSpotify) handleRecommendations(w http.ResponseWriter, r *http.Request, _ string) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	f.mu.Lock()
	tracks := make([]any, 0, limit)
	for i := 0; i < len(f.tracks) && i < limit; i++ {
		tracks = append(tracks, trackJSON(f.tracks[i]))
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks, "seeds": []any{}})
}

func (f *FakeSpotify) handleUserPlaylists(w http.ResponseWriter, r *http.Request, userID string) {
	limit, offset := pageParams(r, 20)

	f.mu.Lock()
	owned := f.playlists[userID]
	items := make([]any, 0, limit)
	for i := offset; i < len(owned) && i < offset+limit; i++ {
		items = append(items, f.playlistJSON(userID, owned[i], false))
	}
	total := len(owned)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, f.page(r, items, total, limit, offset))
}

func (f *FakeSpotify) handleCreatePlaylist(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Public      *bool  `json:"public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeAPIError(w, http.StatusBadRequest, "Missing name")
		return
	}

	f.mu.Lock()
	f.issued++
	p := &FakePlaylist{
		ID:          fmt.Sprintf("playlist-%d", f.issued),
		Name:        body.Name,
		Description: body.Description,
		Public:      body.Public == nil || *body.Public,
	}
	f.playlists[userID] = append(f.playlists[userID], p)
	resp := f.playlistJSON(userID, p, true)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, resp)
}

func (f *FakeSpotify) handlePlaylist(w http.ResponseWriter, r *http.Request, _ string) {
	f.mu.Lock()
	owner, p := f.findPlaylist(r.PathValue("id"))
	var resp map[string]any
	if p != nil {
		resp = f.playlistJSON(owner, p, true)
	}
	f.mu.Unlock()

	if p == nil {
		writeAPIError(w, http.StatusNotFound, "Resource not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeSpotify) handlePlaylistTracks(w http.ResponseWriter, r *http.Request, _ string) {
	limit, offset := pageParams(r, 100)

	f.mu.Lock()
	_, p := f.findPlaylist(r.PathValue("id"))
	if p == nil {
		f.mu.Unlock()
		writeAPIError(w, http.StatusNotFound, "Resource not found")
		return
	}
	items := make([]any, 0, limit)
	for i := offset; i < len(p.TrackIDs) && i < offset+limit; i++ {
		items = append(items, f.itemJSON(p.TrackIDs[i]))
	}
	total := len(p.TrackIDs)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, f.page(r, items, total, limit, offset))
}

func (f *FakeSpotify) handleAddTracks(w http.ResponseWriter, r *http.Request, _ string) {
	var body struct {
		URIs []string `json:"uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.URIs) == 0 {
		writeAPIError(w, http.StatusBadRequest, "No uris provided")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	_, p := f.findPlaylist(r.PathValue("id"))
	if p == nil {
		writeAPIError(w, http.StatusNotFound, "Resource not found")
		return
	}
	for _, uri := range body.URIs {
		id, ok := strings.CutPrefix(uri, "spotify:track:")
		if !ok {
			writeAPIError(w, http.StatusBadRequest, "Invalid track uri: "+uri)
			return
		}
		p.TrackIDs = append(p.TrackIDs, id)
	}
	f.issued++
	writeJSON(w, http.StatusCreated, map[string]string{"snapshot_id": fmt.Sprintf("snapshot-%d", f.issued)})
}

// findPlaylist must be called with f.mu held.
func (f *FakeSpotify) findPlaylist(id string) (string, *FakePlaylist) {
	for owner, owned := range f.playlists {
		for _, p := range owned {
			if p.ID == id {
				return owner, p
			}
		}
	}
	return "", nil
}

// playlistJSON must be called with f.mu held.
func (f *FakeSpotify) playlistJSON(owner string, p *FakePlaylist, full bool) map[string]any {
	tracks := map[string]any{"total": len(p.TrackIDs)}
	if full {
		items := make([]any, 0, len(p.TrackIDs))
		for _, id := range p.TrackIDs {
			items = append(items, f.itemJSON(id))
		}
		tracks["items"] = items
	}
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"public":      p.Public,
		"owner":       map[string]string{"id": owner},
		"images":      []any{map[string]any{"url": "https://img.example/" + p.ID}},
		"tracks":      tracks,
		"uri":         "spotify:playlist:" + p.ID,
	}
}

// itemJSON must be called with f.mu held.
func (f *FakeSpotify) itemJSON(trackID string) map[string]any {
	if trackID == "" {
		return map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": nil}
	}
	track := FakeTrack{ID: trackID, Name: trackID}
	for _, t := range f.tracks {
		if t.ID == trackID {
			track = t
			break
		}
	}
	return map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": trackJSON(track)}
}

func (f *FakeSpotify) page(r *http.Request, items []any, total, limit, offset int) map[string]any {
	var next any
	if offset+limit < total {
		u := *r.URL
		q := u.Query()
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset+limit))
		u.RawQuery = q.Encode()
		next = f.URL + u.RequestURI()
	}
	return map[string]any{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"next":   next,
	}
}

func pageParams(r *http.Request, defaultLimit int) (int, int) {
	limit, offset := defaultLimit, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func trackJSON(t FakeTrack) map[string]any {
	artists := make([]any, 0, len(t.Artists))
	for _, name := range t.Artists {
		artists = append(artists, map[string]string{"name": name})
	}
	images := []any{}
	if t.ImageURL != "" {
		images = append(images, map[string]any{"url": t.ImageURL, "height": 640, "width": 640})
	}
	var preview any
	if t.PreviewURL != "" {
		preview = t.PreviewURL
	}
	return map[string]any{
		"id":          t.ID,
		"name":        t.Name,
		"artists":     artists,
		"album":       map[string]any{"name": t.Album, "images": images},
		"preview_url": preview,
		"uri":         "spotify:track:" + t.ID,
	}
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
