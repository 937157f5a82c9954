package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/services"
	tu "github.com/desertthunder/swiper/internal/testing"
)

const (
	testFrontend    = "http://127.0.0.1:5173"
	unauthorizedRaw = `{"error":"Unauthorized","message":"Access token is required"}`
)

type harness struct {
	server *Server
	fake   *tu.FakeSpotify
}

func newHarness(t *testing.T, basePath string) *harness {
	t.Helper()

	fake := tu.NewFakeSpotify(t)
	spotify, err := services.NewSpotifyService(services.SpotifyOpts{
		ClientID:     fake.ClientID,
		ClientSecret: fake.ClientSecret,
		RedirectURI:  "http://127.0.0.1:8888" + basePath + "/api/auth/callback",
		AuthURL:      fake.AuthURL(),
		TokenURL:     fake.TokenURL(),
		APIURL:       fake.APIURL(),
		Timeout:      5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create spotify service: %v", err)
	}

	srv, err := New(Options{
		Auth:        spotify,
		Services:    spotify,
		FrontendURI: testFrontend,
		BasePath:    basePath,
		Logger:      log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	return &harness{server: srv, fake: fake}
}

type request struct {
	method  string
	path    string
	body    string
	token   string
	cookies []*http.Cookie
}

func (h *harness) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if req.body != "" {
		body = strings.NewReader(req.body)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}

	w := httptest.NewRecorder()
	h.server.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestServerBasics(t *testing.T) {
	h := newHarness(t, "")

	t.Run("Root", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/"})
		if w.Code != http.StatusOK || w.Body.String() != "Music Swiper API is running" {
			t.Errorf("unexpected root response %d %q", w.Code, w.Body.String())
		}
		if w.Header().Get(requestIDHeader) == "" {
			t.Error("expected a request id header")
		}
	})

	t.Run("Healthz", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/healthz"})
		if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"status":"ok"}` {
			t.Errorf("unexpected healthz response %d %q", w.Code, w.Body.String())
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/metrics"})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `swiper_http_requests_total{method="GET",route="/",status="200"}`) {
			t.Errorf("expected request counter for the root route, got:\n%s", w.Body.String())
		}
	})

	t.Run("Request ID Is Propagated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(requestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		h.server.ServeHTTP(w, r)
		if w.Header().Get(requestIDHeader) != "abc-123" {
			t.Errorf("expected propagated request id, got %q", w.Header().Get(requestIDHeader))
		}
	})

	t.Run("CORS Preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/api/playlists", nil)
		r.Header.Set("Origin", testFrontend)
		r.Header.Set("Access-Control-Request-Method", http.MethodGet)
		r.Header.Set("Access-Control-Request-Headers", "Authorization")
		w := httptest.NewRecorder()
		h.server.ServeHTTP(w, r)
		if w.Header().Get("Access-Control-Allow-Origin") != testFrontend {
			t.Errorf("expected frontend origin to be allowed, got %q", w.Header().Get("Access-Control-Allow-Origin"))
		}
	})
}

func TestAuthEndpoints(t *testing.T) {
	h := newHarness(t, "")
	alnum := regexp.MustCompile(`^[A-Za-z0-9]{16}$`)

	t.Run("Login", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/api/auth/login"})
		if w.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", w.Code)
		}

		var state *http.Cookie
		for _, c := range w.Result().Cookies() {
			if c.Name == StateCookie {
				state = c
			}
		}
		if state == nil {
			t.Fatal("expected state cookie")
		}
		if !alnum.MatchString(state.Value) {
			t.Errorf("expected 16 alphanumeric characters, got %q", state.Value)
		}
		if state.HttpOnly {
			t.Error("expected state cookie to be readable by the client")
		}

		loc, err := url.Parse(w.Header().Get("Location"))
		if err != nil {
			t.Fatalf("invalid location: %v", err)
		}
		if !strings.HasPrefix(loc.String(), h.fake.AuthURL()) {
			t.Errorf("expected redirect to authorize URL, got %s", loc)
		}
		q := loc.Query()
		if q.Get("state") != state.Value {
			t.Errorf("expected state %q in redirect, got %q", state.Value, q.Get("state"))
		}
		if q.Get("response_type") != "code" || q.Get("client_id") != h.fake.ClientID {
			t.Errorf("unexpected authorize query %v", q)
		}
		if !strings.Contains(q.Get("scope"), "playlist-modify-private") {
			t.Errorf("expected scopes, got %q", q.Get("scope"))
		}
	})

	t.Run("Login Uses Fresh State", func(t *testing.T) {
		a := h.do(t, request{method: http.MethodGet, path: "/api/auth/login"}).Result().Cookies()
		b := h.do(t, request{method: http.MethodGet, path: "/api/auth/login"}).Result().Cookies()
		if len(a) == 0 || len(b) == 0 || a[0].Value == b[0].Value {
			t.Error("expected a new nonce per login")
		}
	})

	t.Run("Callback State Mismatch", func(t *testing.T) {
		h.fake.AddCode("mismatch-code", "user-1")

		tests := []struct {
			name   string
			query  string
			cookie string
		}{
			{"missing state and cookie", "code=mismatch-code", ""},
			{"missing cookie", "code=mismatch-code&state=abc", ""},
			{"missing state", "code=mismatch-code", "abc"},
			{"different state", "code=mismatch-code&state=abd", "abc"},
			{"case differs", "code=mismatch-code&state=ABC", "abc"},
			{"empty state and cookie", "code=mismatch-code&state=", ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				before := h.fake.Calls("POST /api/token")

				req := request{method: http.MethodGet, path: "/api/auth/callback?" + tt.query}
				if tt.cookie != "" {
					req.cookies = []*http.Cookie{{Name: StateCookie, Value: tt.cookie}}
				}
				w := h.do(t, req)

				if w.Code != http.StatusFound {
					t.Fatalf("expected 302, got %d", w.Code)
				}
				if got := w.Header().Get("Location"); got != testFrontend+"/error?message=state_mismatch" {
					t.Errorf("unexpected redirect %s", got)
				}
				if h.fake.Calls("POST /api/token") != before {
					t.Error("expected no token exchange on state mismatch")
				}
			})
		}
	})

	t.Run("Callback Success", func(t *testing.T) {
		h.fake.AddCode("good-code", "user-1")

		w := h.do(t, request{
			method:  http.MethodGet,
			path:    "/api/auth/callback?code=good-code&state=s1",
			cookies: []*http.Cookie{{Name: StateCookie, Value: "s1"}},
		})
		if w.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", w.Code)
		}

		loc, _ := url.Parse(w.Header().Get("Location"))
		if !strings.HasPrefix(loc.String(), testFrontend+"/callback?") {
			t.Fatalf("unexpected redirect %s", loc)
		}
		q := loc.Query()
		if q.Get("access_token") == "" || q.Get("refresh_token") == "" {
			t.Errorf("expected both tokens, got %v", q)
		}
		if n, err := strconv.Atoi(q.Get("expires_in")); err != nil || n < 3590 || n > 3600 {
			t.Errorf("expected expires_in near 3600, got %q", q.Get("expires_in"))
		}

		cleared := false
		for _, c := range w.Result().Cookies() {
			if c.Name == StateCookie && c.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Error("expected state cookie to be cleared")
		}
	})

	t.Run("Callback Exchange Failure", func(t *testing.T) {
		w := h.do(t, request{
			method:  http.MethodGet,
			path:    "/api/auth/callback?code=unknown&state=s2",
			cookies: []*http.Cookie{{Name: StateCookie, Value: "s2"}},
		})
		if got := w.Header().Get("Location"); got != testFrontend+"/error?message=invalid_token" {
			t.Errorf("unexpected redirect %s", got)
		}
	})

	t.Run("Callback Provider Error Or Missing Code", func(t *testing.T) {
		for _, query := range []string{"error=access_denied&state=s3", "state=s3"} {
			before := h.fake.Calls("POST /api/token")
			w := h.do(t, request{
				method:  http.MethodGet,
				path:    "/api/auth/callback?" + query,
				cookies: []*http.Cookie{{Name: StateCookie, Value: "s3"}},
			})
			if got := w.Header().Get("Location"); got != testFrontend+"/error?message=invalid_token" {
				t.Errorf("%s: unexpected redirect %s", query, got)
			}
			if h.fake.Calls("POST /api/token") != before {
				t.Errorf("%s: expected no exchange", query)
			}
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		h.fake.AddUser("user-1", "old", "refresh-ok")

		w := h.do(t, request{method: http.MethodGet, path: "/api/auth/refresh_token?refresh_token=refresh-ok"})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decode[map[string]any](t, w)
		if body["access_token"] == "" || body["access_token"] == nil {
			t.Errorf("expected access token, got %v", body)
		}
		if _, ok := body["refresh_token"]; ok {
			t.Error("refresh token must not be echoed")
		}
		if n, ok := body["expires_in"].(float64); !ok || n < 3590 || n > 3600 {
			t.Errorf("expected expires_in near 3600, got %v", body["expires_in"])
		}
	})

	t.Run("Refresh Missing Token", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/api/auth/refresh_token"})
		if w.Code != http.StatusBadRequest || strings.TrimSpace(w.Body.String()) != `{"error":"Refresh token is required"}` {
			t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("Refresh Upstream Failure", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/api/auth/refresh_token?refresh_token=revoked"})
		if w.Code != http.StatusInternalServerError || strings.TrimSpace(w.Body.String()) != `{"error":"Failed to refresh token"}` {
			t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
		}
	})
}

func TestProtectedEndpointsRequireBearer(t *testing.T) {
	h := newHarness(t, "")

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/tracks/recommendations"},
		{http.MethodPost, "/api/tracks/like"},
		{http.MethodGet, "/api/playlists"},
		{http.MethodGet, "/api/playlists/abc"},
		{http.MethodPost, "/api/playlists"},
		{http.MethodGet, "/api/preferences"},
		{http.MethodPost, "/api/preferences"},
	}
	headers := []string{"", "Bearer", "Bearer    ", "Basic dXNlcjpwYXNz", "token-without-scheme"}

	for _, route := range routes {
		for _, header := range headers {
			t.Run(fmt.Sprintf("%s %s %q", route.method, route.path, header), func(t *testing.T) {
				r := httptest.NewRequest(route.method, route.path, strings.NewReader(`{"track_id":"t1","name":"x"}`))
				if header != "" {
					r.Header.Set("Authorization", header)
				}
				w := httptest.NewRecorder()
				h.server.ServeHTTP(w, r)

				if w.Code != http.StatusUnauthorized {
					t.Fatalf("expected 401, got %d", w.Code)
				}
				if strings.TrimSpace(w.Body.String()) != unauthorizedRaw {
					t.Errorf("unexpected body %s", w.Body.String())
				}
			})
		}
	}

	if h.fake.TotalCalls() != 0 {
		t.Errorf("expected no upstream calls, got %d", h.fake.TotalCalls())
	}
}

func TestTrackEndpoints(t *testing.T) {
	h := newHarness(t, "")
	h.fake.AddUser("alice", "alice-token", "")
	h.fake.AddUser("bob", "bob-token", "")
	for i := range 12 {
		h.fake.AddTracks(tu.FakeTrack{
			ID:         fmt.Sprintf("t%d", i),
			Name:       fmt.Sprintf("Track %d", i),
			Artists:    []string{"Artist A", "Artist B"},
			Album:      "Album",
			PreviewURL: "https://p.example/" + strconv.Itoa(i),
			ImageURL:   "https://i.example/" + strconv.Itoa(i),
		})
	}

	t.Run("Recommendations", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/api/tracks/recommendations?seed_genres=pop,rock&seed_tracks=t1", token: "alice-token"})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decode[models.RecommendationsResponse](t, w)
		if len(body.Tracks) != DefaultRecommendationLimit {
			t.Errorf("expected %d tracks, got %d", DefaultRecommendationLimit, len(body.Tracks))
		}
		first := body.Tracks[0]
		if first.Artist != "Artist A, Artist B" || first.Album != "Album" || first.ImageURL != "https://i.example/0" || first.PreviewURL != "https://p.example/0" {
			t.Errorf("unexpected track %+v", first)
		}

		q := h.fake.LastQuery("GET /v1/recommendations")
		if q.Get("limit") != "10" || q.Get("seed_genres") != "pop,rock" || q.Get("seed_tracks") != "t1" {
			t.Errorf("unexpected upstream query %v", q)
		}
	})

	t.Run("Recommendations Limit", func(t *testing.T) {
		tests := map[string]string{"3": "3", "abc": "10", "-1": "10", "1000": "100"}
		for in, want := range tests {
			h.do(t, request{method: http.MethodGet, path: "/api/tracks/recommendations?limit=" + in, token: "alice-token"})
			if got := h.fake.LastQuery("GET /v1/recommendations").Get("limit"); got != want {
				t.Errorf("limit %q: expected upstream limit %s, got %s", in, want, got)
			}
		}
	})

	t.Run("Like Creates Playlist Once", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodPost, path: "/api/tracks/like", body: `{"track_id":"t1"}`, token: "alice-token"})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if strings.TrimSpace(w.Body.String()) != `{"success":true,"message":"Track added to playlist"}` {
			t.Errorf("unexpected body %s", w.Body.String())
		}

		if got := h.fake.Calls("POST /v1/me/playlists"); got != 1 {
			t.Errorf("expected exactly one creation call, got %d", got)
		}

		playlists := h.fake.Playlists("alice")
		if len(playlists) != 1 {
			t.Fatalf("expected one playlist, got %d", len(playlists))
		}
		liked := playlists[0]
		if liked.Name != models.LikedPlaylistName || liked.Description != models.LikedPlaylistDescription || liked.Public {
			t.Errorf("unexpected liked playlist %+v", liked)
		}
		if got := h.fake.Calls("POST /v1/playlists/" + liked.ID + "/tracks"); got != 1 {
			t.Errorf("expected exactly one add call against %s, got %d", liked.ID, got)
		}
		if len(liked.TrackIDs) != 1 || liked.TrackIDs[0] != "t1" {
			t.Errorf("expected t1 in liked playlist, got %v", liked.TrackIDs)
		}
	})

	t.Run("Like Reuses Existing Playlist", func(t *testing.T) {
		h.fake.AddPlaylist("bob", tu.FakePlaylist{ID: "other", Name: "Road Trip"})
		h.fake.AddPlaylist("bob", tu.FakePlaylist{ID: "bobs-likes", Name: models.LikedPlaylistName})
		creates := h.fake.Calls("POST /v1/me/playlists")

		w := h.do(t, request{method: http.MethodPost, path: "/api/tracks/like", body: `{"track_id":"t2"}`, token: "bob-token"})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if h.fake.Calls("POST /v1/me/playlists") != creates {
			t.Error("expected zero creation calls")
		}
		if got := h.fake.Calls("POST /v1/playlists/bobs-likes/tracks"); got != 1 {
			t.Errorf("expected one add call, got %d", got)
		}
		if h.fake.Calls("POST /v1/playlists/other/tracks") != 0 {
			t.Error("expected other playlists to be untouched")
		}
	})

	t.Run("Like Validation", func(t *testing.T) {
		for _, body := range []string{"", `{}`, `{"track_id":""}`} {
			w := h.do(t, request{method: http.MethodPost, path: "/api/tracks/like", body: body, token: "alice-token"})
			if w.Code != http.StatusBadRequest || strings.TrimSpace(w.Body.String()) != `{"error":"Bad Request","message":"Missing required parameter: track_id"}` {
				t.Errorf("body %q: unexpected response %d %s", body, w.Code, w.Body.String())
			}
		}

		w := h.do(t, request{method: http.MethodPost, path: "/api/tracks/like", body: `{"track_id":`, token: "alice-token"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for malformed JSON, got %d", w.Code)
		}
	})

	t.Run("Like Upstream Failure", func(t *testing.T) {
		h.fake.Fail("GET /v1/me/playlists", http.StatusBadGateway)
		defer h.fake.Fail("GET /v1/me/playlists", 0)

		w := h.do(t, request{method: http.MethodPost, path: "/api/tracks/like", body: `{"track_id":"t3"}`, token: "alice-token"})
		if w.Code != http.StatusInternalServerError || strings.TrimSpace(w.Body.String()) != `{"error":"Failed to like track"}` {
			t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("Dislike Is A Stub", func(t *testing.T) {
		before := h.fake.TotalCalls()

		w := h.do(t, request{method: http.MethodPost, path: "/api/tracks/dislike", body: `{"track_id":"bogus"}`})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if strings.TrimSpace(w.Body.String()) != `{"success":true,"message":"Track marked as disliked"}` {
			t.Errorf("unexpected body %s", w.Body.String())
		}
		if h.fake.TotalCalls() != before {
			t.Error("expected no upstream calls")
		}

		w = h.do(t, request{method: http.MethodPost, path: "/api/tracks/dislike", body: `{}`})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 without track_id, got %d", w.Code)
		}
	})

	t.Run("Invalid Upstream Token", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/api/tracks/recommendations", token: "revoked"})
		if w.Code != http.StatusInternalServerError || strings.TrimSpace(w.Body.String()) != `{"error":"Failed to get recommendations"}` {
			t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
		}
	})
}

func TestPlaylistEndpoints(t *testing.T) {
	h := newHarness(t, "")
	h.fake.AddUser("alice", "alice-token", "")
	h.fake.AddTracks(tu.FakeTrack{ID: "t1", Name: "One", Artists: []string{"A"}, Album: "Al"})
	h.fake.AddPlaylist("alice", tu.FakePlaylist{ID: "p1", Name: "Mix", Description: "desc", TrackIDs: []string{"t1", "", "t1"}})

	t.Run("List", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/api/playlists", token: "alice-token"})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		body := decode[map[string][]map[string]any](t, w)
		list := body["playlists"]
		if len(list) != 1 {
			t.Fatalf("expected one playlist, got %v", list)
		}
		if list[0]["id"] != "p1" || list[0]["tracks_count"] != float64(3) || list[0]["image_url"] != "https://img.example/p1" {
			t.Errorf("unexpected summary %v", list[0])
		}
	})

	t.Run("Detail", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/api/playlists/p1", token: "alice-token"})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		body := decode[models.Playlist](t, w)
		if body.Description != "desc" || len(body.Tracks) != 2 {
			t.Errorf("unexpected detail %+v", body)
		}
		if h.fake.Calls("GET /v1/playlists/p1") != 1 || h.fake.Calls("GET /v1/playlists/p1/tracks") != 1 {
			t.Error("expected one metadata call and one tracks call")
		}
	})

	t.Run("Detail Not Found", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/api/playlists/missing", token: "alice-token"})
		if w.Code != http.StatusInternalServerError || strings.TrimSpace(w.Body.String()) != `{"error":"Failed to get playlist"}` {
			t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("Create With Defaults", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodPost, path: "/api/playlists", body: `{"name":"Fresh"}`, token: "alice-token"})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decode[map[string]any](t, w)
		if body["name"] != "Fresh" || body["public"] != false || body["tracks_count"] != float64(0) || body["description"] != "" {
			t.Errorf("unexpected created playlist %v", body)
		}
	})

	t.Run("Create Public", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodPost, path: "/api/playlists", body: `{"name":"Open","description":"d","public":true}`, token: "alice-token"})
		body := decode[map[string]any](t, w)
		if body["public"] != true || body["description"] != "d" {
			t.Errorf("unexpected created playlist %v", body)
		}
	})

	t.Run("Create Missing Name", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodPost, path: "/api/playlists", body: `{"description":"x"}`, token: "alice-token"})
		if w.Code != http.StatusBadRequest || strings.TrimSpace(w.Body.String()) != `{"error":"Bad Request","message":"Missing required parameter: name"}` {
			t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
		}
	})
}

func TestPreferenceEndpoints(t *testing.T) {
	h := newHarness(t, "")
	h.fake.AddUser("alice", "alice-token", "")
	h.fake.AddUser("alice", "alice-token-2", "")
	h.fake.AddUser("bob", "bob-token", "")

	t.Run("Defaults", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/api/preferences", token: "alice-token"})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		want := `{"artists":[],"audio_features":{"max_danceability":0.8,"max_energy":0.9,"min_danceability":0.3,"min_energy":0.4},"genres":["pop","rock","indie"],"tracks":[]}`
		if strings.TrimSpace(w.Body.String()) != want {
			t.Errorf("unexpected defaults %s", w.Body.String())
		}
	})

	t.Run("Update Merges And Is Keyed By User", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodPost, path: "/api/preferences", body: `{"genres":["jazz"]}`, token: "alice-token"})
		if strings.TrimSpace(w.Body.String()) != `{"success":true,"message":"Preferences updated successfully"}` {
			t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
		}

		// a second token for the same account sees the same preferences
		w = h.do(t, request{method: http.MethodGet, path: "/api/preferences", token: "alice-token-2"})
		prefs := decode[models.Preferences](t, w)
		if g := prefs.Genres(); len(g) != 1 || g[0] != "jazz" {
			t.Errorf("expected jazz, got %v", g)
		}
		if _, ok := prefs["audio_features"]; ok {
			t.Error("expected defaults to be dropped once the user saves preferences")
		}
		if len(prefs) != 1 {
			t.Errorf("expected only the saved key, got %v", prefs)
		}

		w = h.do(t, request{method: http.MethodGet, path: "/api/preferences", token: "bob-token"})
		if g := decode[models.Preferences](t, w).Genres(); len(g) != 3 {
			t.Errorf("expected bob to keep defaults, got %v", g)
		}
	})

	t.Run("Identity Is Cached Per Token", func(t *testing.T) {
		before := h.fake.Calls("GET /v1/me")
		for range 3 {
			h.do(t, request{method: http.MethodGet, path: "/api/preferences", token: "alice-token"})
		}
		if got := h.fake.Calls("GET /v1/me") - before; got != 0 {
			t.Errorf("expected cached identity, got %d profile calls", got)
		}
	})

	t.Run("Non Object Body", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodPost, path: "/api/preferences", body: `["jazz"]`, token: "alice-token"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("Identity Failure", func(t *testing.T) {
		w := h.do(t, request{method: http.MethodGet, path: "/api/preferences", token: "unknown-token"})
		if w.Code != http.StatusInternalServerError || strings.TrimSpace(w.Body.String()) != `{"error":"Failed to get preferences"}` {
			t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("Concurrent Users Stay Isolated", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 20 {
			user := fmt.Sprintf("user-%d", i)
			token := "token-" + user
			h.fake.AddUser(user, token, "")

			wg.Add(1)
			go func() {
				defer wg.Done()
				body := fmt.Sprintf(`{"genres":[%q]}`, user)
				if w := h.do(t, request{method: http.MethodPost, path: "/api/preferences", body: body, token: token}); w.Code != http.StatusOK {
					t.Errorf("%s: update failed with %d", user, w.Code)
					return
				}
				w := h.do(t, request{method: http.MethodGet, path: "/api/preferences", token: token})
				var prefs models.Preferences
				if err := json.Unmarshal(w.Body.Bytes(), &prefs); err != nil {
					t.Errorf("%s: %v", user, err)
					return
				}
				if g := prefs.Genres(); len(g) != 1 || g[0] != user {
					t.Errorf("%s: saw genres %v", user, g)
				}
			}()
		}
		wg.Wait()
	})
}

func TestBasePath(t *testing.T) {
	h := newHarness(t, "/swiper")
	h.fake.AddUser("alice", "alice-token", "")

	for _, path := range []string{"/swiper", "/swiper/"} {
		if w := h.do(t, request{method: http.MethodGet, path: path}); w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}

	if w := h.do(t, request{method: http.MethodGet, path: "/swiper/api/playlists", token: "alice-token"}); w.Code != http.StatusOK {
		t.Errorf("expected prefixed route to be served, got %d", w.Code)
	}
	if w := h.do(t, request{method: http.MethodGet, path: "/api/playlists", token: "alice-token"}); w.Code != http.StatusNotFound {
		t.Errorf("expected unprefixed route to 404, got %d", w.Code)
	}
	if w := h.do(t, request{method: http.MethodGet, path: "/metrics"}); w.Code != http.StatusOK {
		t.Errorf("expected metrics at the root, got %d", w.Code)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without authenticator and service factory")
	}
}
