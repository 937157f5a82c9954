package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/shared"
	"github.com/urfave/cli/v3"
)

// PrefsGet prints the stored preferences, or the defaults.
func (r *Runner) PrefsGet(ctx context.Context, cmd *cli.Command) error {
	prefs, err := r.api.Preferences(ctx)
	if err != nil {
		return err
	}
	return r.writeJSON(prefs, true)
}

// PrefsSet merges the given fields over the stored preferences.
//
// --data is applied first; list flags replace their keys afterwards.
func (r *Runner) PrefsSet(ctx context.Context, cmd *cli.Command) error {
	patch := models.Preferences{}

	if data := cmd.String("data"); data != "" {
		if err := json.Unmarshal([]byte(data), &patch); err != nil {
			return fmt.Errorf("%w: data must be a JSON object: %v", shared.ErrInvalidInput, err)
		}
	}

	for flag, key := range map[string]string{"genre": "genres", "artist": "artists", "track": "tracks"} {
		if cmd.IsSet(flag) {
			patch[key] = cmd.StringSlice(flag)
		}
	}

	if len(patch) == 0 {
		return fmt.Errorf("%w: pass --genre, --artist, --track or --data", shared.ErrMissingArgument)
	}

	resp, err := r.api.UpdatePreferences(ctx, patch)
	if err != nil {
		return err
	}
	return r.writePlain("✓ %s\n", resp.Message)
}
