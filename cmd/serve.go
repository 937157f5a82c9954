package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/desertthunder/swiper/internal/repositories"
	"github.com/desertthunder/swiper/internal/server"
	"github.com/desertthunder/swiper/internal/services"
	"github.com/desertthunder/swiper/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the gateway until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	spotify, err := services.NewSpotifyService(services.SpotifyOptsFromConfig(r.config))
	if err != nil {
		return err
	}

	prefs, closePrefs, err := repositories.OpenPreferenceStore(ctx, r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open preferences store: %w", err)
	}
	defer func() {
		if err := closePrefs(); err != nil {
			r.logger.Warn("failed to close preferences store", "error", err)
		}
	}()

	logger := shared.WithLogger(r.logger, "component", "gateway")
	srv, err := server.New(server.Options{
		Auth:        spotify,
		Services:    spotify,
		Preferences: prefs,
		FrontendURI: r.config.Server.FrontendURI,
		BasePath:    r.config.Server.BasePath,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("gateway listening",
		"addr", ln.Addr().String(),
		"base_path", r.config.Server.BasePath,
		"frontend", r.config.Server.FrontendURI,
		"database", r.config.Database.Path,
	)
	return server.Serve(ctx, server.NewHTTPServer(addr, srv), ln, logger)
}
