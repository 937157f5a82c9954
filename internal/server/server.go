// package server contains the gateway's HTTP routing, middleware and handlers
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/swiper/internal/repositories"
	"github.com/desertthunder/swiper/internal/services"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, metrics, etc.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the path patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

var _ Router = (*ChiRouter)(nil)

// Options configures the gateway.
type Options struct {
	Auth        services.Authenticator
	Services    services.ServiceFactory
	Preferences repositories.PreferenceStore
	FrontendURI string
	BasePath    string // "" or "/prefix"
	Logger      *log.Logger
	Metrics     *Metrics
	Identities  *IdentityCache
}

// Server is the gateway's root handler.
type Server struct {
	router *ChiRouter
}

// New wires every route under opts.BasePath. /metrics is always served at the root.
func New(opts Options) (*Server, error) {
	if opts.Auth == nil || opts.Services == nil {
		return nil, errors.New("server: authenticator and service factory are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Preferences == nil {
		opts.Preferences = repositories.NewMemoryPreferenceStore()
	}
	if opts.Identities == nil {
		opts.Identities = NewIdentityCache(IdentityTTL, nil)
	}

	auth := NewAuthHandler(opts.Auth, opts.FrontendURI, opts.Logger, opts.Metrics)
	api := NewAPIHandler(opts.Services, opts.Preferences, opts.Identities, opts.Logger, opts.Metrics)

	r := NewChiRouter()
	r.Use(commonMiddleware(opts.Logger, opts.Metrics)...)
	if opts.FrontendURI != "" {
		r.Use(CORS(opts.FrontendURI))
	}

	base := opts.BasePath
	r.Handle(http.MethodGet, "/metrics", opts.Metrics.Handler())

	r.Handle(http.MethodGet, base+"/", http.HandlerFunc(root))
	if base != "" {
		r.Handle(http.MethodGet, base, http.HandlerFunc(root))
	}
	r.Handle(http.MethodGet, base+"/healthz", http.HandlerFunc(healthz))

	r.Handle(http.MethodGet, base+"/api/auth/login", http.HandlerFunc(auth.Login))
	r.Handle(http.MethodGet, base+"/api/auth/callback", http.HandlerFunc(auth.Callback))
	r.Handle(http.MethodGet, base+"/api/auth/refresh_token", http.HandlerFunc(auth.RefreshToken))

	r.Handle(http.MethodPost, base+"/api/tracks/dislike", http.HandlerFunc(api.Dislike))

	protected := r.With(RequireBearer)
	protected.Handle(http.MethodGet, base+"/api/tracks/recommendations", http.HandlerFunc(api.Recommendations))
	protected.Handle(http.MethodPost, base+"/api/tracks/like", http.HandlerFunc(api.Like))
	protected.Handle(http.MethodGet, base+"/api/playlists", http.HandlerFunc(api.Playlists))
	protected.Handle(http.MethodPost, base+"/api/playlists", http.HandlerFunc(api.CreatePlaylist))
	protected.Handle(http.MethodGet, base+"/api/playlists/{id}", http.HandlerFunc(api.Playlist))
	protected.Handle(http.MethodGet, base+"/api/preferences", http.HandlerFunc(api.GetPreferences))
	protected.Handle(http.MethodPost, base+"/api/preferences", http.HandlerFunc(api.UpdatePreferences))

	return &Server{router: r}, nil
}

// commonMiddleware is the chain every route runs through. Recoverer sits innermost so a panic
// reaches the logger and metrics as a 500.
func commonMiddleware(logger *log.Logger, metrics *Metrics) []Middleware {
	return []Middleware{RequestID, Logger(logger), Instrument(metrics), Recoverer}
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Music Swiper API is running")
}

func healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewHTTPServer builds an HTTP server with a read header timeout.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve runs srv on ln until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down", "addr", ln.Addr().String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
