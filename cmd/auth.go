package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/desertthunder/swiper/internal/server"
	"github.com/desertthunder/swiper/internal/shared"
	"github.com/desertthunder/swiper/internal/tokens"
	"github.com/urfave/cli/v3"
)

// Login runs the browser login against the gateway.
//
// The CLI plays the frontend: it listens on the frontend URI's host for the gateway's
// /callback (or /error) redirect and stores the tokens carried in it.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	result, err := r.awaitCallback(ctx, timeout)
	if err != nil {
		return err
	}

	refreshed, err := r.api.TokensFromURL(result)
	if err != nil {
		return err
	}
	if err := r.store.Save(refreshed.AccessToken, refreshed.RefreshToken, refreshed.ExpiresIn); err != nil {
		return err
	}

	r.logger.Info("login complete", "expires_in", refreshed.ExpiresIn)
	return r.writePlain("✓ Logged in, token valid for %s\n", time.Duration(refreshed.ExpiresIn)*time.Second)
}

// awaitCallback serves the frontend routes, opens the login page and waits for one redirect.
func (r *Runner) awaitCallback(ctx context.Context, timeout time.Duration) (*url.URL, error) {
	frontend, err := url.Parse(r.config.Server.FrontendURI)
	if err != nil || frontend.Host == "" {
		return nil, fmt.Errorf("%w: frontend_uri %q", shared.ErrInvalidConfig, r.config.Server.FrontendURI)
	}

	callback := server.NewCallbackHandler()
	router := server.NewChiRouter()
	router.Handler(callback)

	ln, err := net.Listen("tcp", frontend.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", frontend.Host, err)
	}

	serveCtx, stop := context.WithCancel(ctx)
	defer stop()

	httpServer := server.NewHTTPServer(frontend.Host, router)
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("waiting for login callback at %v", frontend.Host)
		serverErrors <- server.Serve(serveCtx, httpServer, ln, r.logger)
	}()

	loginURL := r.api.LoginURL()
	r.writePlain("→ Opening browser for Spotify login...\n")
	if err := r.openBrowser(loginURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", loginURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.CallbackResult
	select {
	case result = <-callback.Result():
	case err := <-serverErrors:
		if err == nil {
			err = errors.New("callback server stopped")
		}
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	stop()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down callback server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.URL == nil {
		return nil, fmt.Errorf("%w: no callback received", shared.ErrAuthFailed)
	}
	return result.URL, nil
}

// Logout removes stored tokens.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	if err := r.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	r.logger.Info("tokens cleared")
	return r.writePlain("✓ Logged out\n")
}

type tokenStatus struct {
	State     string `json:"state"`
	ExpiresAt string `json:"expires_at,omitempty"`
	ExpiresIn int    `json:"expires_in"`
	Refresh   bool   `json:"has_refresh_token"`
}

// TokenStatus reports whether the stored access token is valid, expired or absent.
func (r *Runner) TokenStatus(ctx context.Context, cmd *cli.Command) error {
	pair, err := r.store.Pair()
	if err != nil {
		return fmt.Errorf("failed to read tokens: %w", err)
	}

	now := r.now()
	state := tokens.Evaluate(pair, now)
	status := tokenStatus{
		State:   state.Kind.String(),
		Refresh: pair.RefreshToken != "",
	}
	if !state.Until.IsZero() {
		status.ExpiresAt = state.Until.Format(time.RFC3339)
		if state.Kind == tokens.Valid {
			status.ExpiresIn = int(state.Until.Sub(now).Seconds())
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlainHeader("Token Status")
	r.writePlain("State: %s\n", status.State)
	if status.ExpiresAt != "" {
		r.writePlain("Expires: %s\n", status.ExpiresAt)
	}
	if state.Kind == tokens.Valid {
		r.writePlain("Remaining: %s\n", time.Duration(status.ExpiresIn)*time.Second)
	}
	r.writePlain("Refresh token: %v\n", status.Refresh)
	return nil
}

// TokenRefresh forces a refresh through the gateway.
func (r *Runner) TokenRefresh(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.store.Refresh(ctx); err != nil {
		return err
	}

	state, err := r.store.State()
	if err != nil {
		return err
	}
	return r.writePlain("✓ Token refreshed, valid until %s\n", state.Until.Format(time.RFC3339))
}
