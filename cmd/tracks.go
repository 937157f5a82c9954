package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/swiper/internal/services"
	"github.com/desertthunder/swiper/internal/shared"
	"github.com/urfave/cli/v3"
)

// TracksRecommend lists recommended tracks for the given seeds.
func (r *Runner) TracksRecommend(ctx context.Context, cmd *cli.Command) error {
	query := services.RecommendationQuery{
		Limit:   cmd.Int("limit"),
		Genres:  cmd.StringSlice("genre"),
		Artists: cmd.StringSlice("artist"),
		Tracks:  cmd.StringSlice("track"),
	}

	r.logger.Debug("fetching recommendations", "limit", query.Limit, "genres", query.Genres)
	tracks, err := r.api.Recommendations(ctx, query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"tracks": tracks}, true)
	}

	r.writePlainHeader(fmt.Sprintf("Recommendations (%d)", len(tracks)))
	for i, t := range tracks {
		r.writePlain("%2d. %s - %s\n", i+1, t.Artist, t.Name)
		r.writePlain("    id: %s  album: %s\n", t.ID, t.Album)
		if t.PreviewURL != "" {
			r.writePlain("    preview: %s\n", t.PreviewURL)
		}
	}
	return nil
}

// TracksLike adds a track to the liked playlist.
func (r *Runner) TracksLike(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	resp, err := r.api.LikeTrack(ctx, id)
	if err != nil {
		return err
	}
	return r.writePlain("✓ %s\n", resp.Message)
}

// TracksDislike records a pass on a track.
func (r *Runner) TracksDislike(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	resp, err := r.api.DislikeTrack(ctx, id)
	if err != nil {
		return err
	}
	return r.writePlain("✓ %s\n", resp.Message)
}
