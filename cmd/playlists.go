package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/swiper/internal/formatter"
	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/shared"
	"github.com/desertthunder/swiper/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlaylistsList prints the user's playlists.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	playlists, err := r.api.Playlists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(models.PlaylistsResponse{Playlists: playlists}, true)
	}

	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(playlists)))
	for _, p := range playlists {
		r.writePlain("%-24s %s (%d tracks)\n", p.ID, p.Name, p.Count())
	}
	return nil
}

// PlaylistsShow prints or exports a playlist with its tracks.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	format := strings.ToLower(cmd.String("format"))
	output := cmd.String("output")

	playlist, err := r.api.Playlist(ctx, id)
	if err != nil {
		return err
	}

	if output == "" {
		data, err := formatter.Export(playlist, format)
		if err != nil {
			return err
		}
		r.output.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			r.output.Write([]byte("\n"))
		}
		return nil
	}

	path := output
	if format == formatter.FormatMarkdown || format == "md" {
		result, err := formatter.WriteMarkdownExport(playlist, output)
		if err != nil {
			return err
		}
		path = result.Directory
	} else if path, err = formatter.WriteExport(playlist, format, output); err != nil {
		return err
	}

	r.logger.Info("playlist exported", "id", playlist.ID, "path", path)
	return r.writePlain("✓ Exported %q to %s\n", playlist.Name, path)
}

// PlaylistsCreate creates a playlist.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	req := models.CreatePlaylistRequest{
		Name:        name,
		Description: cmd.String("description"),
	}
	if cmd.IsSet("public") {
		public := cmd.Bool("public")
		req.Public = &public
	}

	playlist, err := r.api.CreatePlaylist(ctx, req)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, true)
	}
	return r.writePlain("✓ Created %s playlist %q (%s)\n", shared.VisibilityString(playlist.IsPublic()), playlist.Name, playlist.ID)
}

// PlaylistsExport writes playlists to a directory with a manifest.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	opts := tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("dir"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  float64(cmd.Int("rate")),
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := tasks.NewExporter(r.api, r.logger).BulkExport(ctx, progress, cmd.Args().Slice(), opts)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlainln("✓ Exported %d of %d playlists to %s", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
	if result.FailedExports > 0 {
		r.writePlain("✗ %d failed, see %s\n", result.FailedExports, result.ManifestPath)
	}
	return nil
}
