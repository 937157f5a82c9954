package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/swiper/internal/services"
	tu "github.com/desertthunder/swiper/internal/testing"
)

func TestCallbackHandler(t *testing.T) {
	t.Run("Captures First Redirect", func(t *testing.T) {
		h := NewCallbackHandler()

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/callback?access_token=a&refresh_token=r&expires_in=3600", nil))
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Authorization Successful") {
			t.Error("expected success page")
		}

		result := <-h.Result()
		if result.Error() != nil {
			t.Fatalf("unexpected error: %v", result.Error())
		}
		if result.URL.Query().Get("access_token") != "a" {
			t.Errorf("unexpected captured URL %s", result.URL)
		}

		w = httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/callback?access_token=b", nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected second hit to be rejected, got %d", w.Code)
		}
	})

	t.Run("Error Page Escapes Message", func(t *testing.T) {
		h := NewCallbackHandler()

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/error?message=%3Cscript%3E", nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
		if strings.Contains(w.Body.String(), "<script>") {
			t.Error("expected message to be escaped")
		}

		result := <-h.Result()
		if result.URL.Path != "/error" {
			t.Errorf("expected /error, got %s", result.URL.Path)
		}
	})

	t.Run("Fail", func(t *testing.T) {
		h := NewCallbackHandler()
		h.Fail(errors.New("listener closed"))
		h.Fail(errors.New("ignored"))

		result := <-h.Result()
		if result.Error() == nil || result.Error().Error() != "listener closed" {
			t.Errorf("unexpected result error %v", result.Error())
		}
		if _, ok := <-h.Result(); ok {
			t.Error("expected channel to be closed after one result")
		}
	})

	t.Run("Routes Through ChiRouter", func(t *testing.T) {
		h := NewCallbackHandler()
		r := NewChiRouter()
		r.Handler(h)

		if !slices.Equal(h.Routes(), []string{"/callback", "/error"}) {
			t.Errorf("unexpected routes %v", h.Routes())
		}

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/callback?access_token=x", nil))
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})
}

func TestChiRouter(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	r := NewChiRouter()
	r.Use(mark("first"), mark("second"))
	r.Handle(http.MethodGet, "/open", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	r.With(RequireBearer).Handle(http.MethodGet, "/closed", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetToken(r.Context())))
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if !slices.Equal(order, []string{"first", "second"}) {
		t.Errorf("expected middleware in registration order, got %v", order)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/open", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/closed", nil)
	req.Header.Set("Authorization", "bearer abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc" {
		t.Errorf("expected token in context, got %q", w.Body.String())
	}
}

func TestCommonMiddleware(t *testing.T) {
	t.Run("Panics Are Logged And Counted As 500", func(t *testing.T) {
		var logs strings.Builder
		metrics := NewMetrics()

		r := NewChiRouter()
		r.Use(commonMiddleware(log.New(&logs), metrics)...)
		r.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("handler exploded")
		}))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
		if !strings.Contains(logs.String(), "status=500") {
			t.Errorf("expected request log with status 500, got %q", logs.String())
		}

		mw := httptest.NewRecorder()
		metrics.Handler().ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if !strings.Contains(mw.Body.String(), `swiper_http_requests_total{method="GET",route="/boom",status="500"}`) {
			t.Errorf("expected panic counted as 500, got:\n%s", mw.Body.String())
		}
	})
}

func TestIdentityCache(t *testing.T) {
	fake := tu.NewFakeSpotify(t)
	fake.AddUser("alice", "alice-token", "")
	fake.AddUser("bob", "bob-token", "")

	spotify, err := services.NewSpotifyService(services.SpotifyOpts{
		ClientID:     fake.ClientID,
		ClientSecret: fake.ClientSecret,
		RedirectURI:  "http://127.0.0.1:8888/api/auth/callback",
		AuthURL:      fake.AuthURL(),
		TokenURL:     fake.TokenURL(),
		APIURL:       fake.APIURL(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewIdentityCache(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	lookup := func(token string) string {
		t.Helper()
		id, err := cache.UserID(ctx, token, spotify.ForToken(token))
		if err != nil {
			t.Fatalf("lookup %s: %v", token, err)
		}
		return id
	}

	if lookup("alice-token") != "alice" || lookup("alice-token") != "alice" {
		t.Fatal("expected alice")
	}
	if got := fake.Calls("GET /v1/me"); got != 1 {
		t.Errorf("expected one profile call, got %d", got)
	}

	if lookup("bob-token") != "bob" {
		t.Fatal("expected bob")
	}
	if cache.Len() != 2 {
		t.Errorf("expected two entries, got %d", cache.Len())
	}

	now = now.Add(2 * time.Minute)
	if lookup("alice-token") != "alice" {
		t.Fatal("expected alice after expiry")
	}
	if got := fake.Calls("GET /v1/me"); got != 3 {
		t.Errorf("expected expired entry to be refetched, got %d calls", got)
	}
	if cache.Len() != 1 {
		t.Errorf("expected expired entries to be pruned, got %d", cache.Len())
	}

	if _, err := cache.UserID(ctx, "unknown", spotify.ForToken("unknown")); err == nil {
		t.Error("expected error for unknown token")
	}
	if cache.Len() != 1 {
		t.Error("failed lookups must not be cached")
	}

	if tokenKey("alice-token") == "alice-token" || len(tokenKey("x")) != 64 {
		t.Error("expected hashed token keys")
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", DefaultRecommendationLimit},
		{"5", 5},
		{" 7 ", 7},
		{"0", DefaultRecommendationLimit},
		{"-3", DefaultRecommendationLimit},
		{"ten", DefaultRecommendationLimit},
		{"100", 100},
		{"101", MaxRecommendationLimit},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.in); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(" pop, rock ,,indie "); !slices.Equal(got, []string{"pop", "rock", "indie"}) {
		t.Errorf("unexpected list %v", got)
	}
	if got := splitList(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestServe(t *testing.T) {
	h := newHarness(t, "")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	httpSrv := NewHTTPServer(ln.Addr().String(), h.server)
	if httpSrv.ReadHeaderTimeout != 5*time.Second {
		t.Errorf("expected read header timeout, got %v", httpSrv.ReadHeaderTimeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, httpSrv, ln, log.New(io.Discard)) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
