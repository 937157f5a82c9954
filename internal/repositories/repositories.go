package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/shared"
)

// PreferenceStore reads and updates per-user preferences.
type PreferenceStore interface {
	// Get returns the user's preferences, or the defaults when none were saved.
	Get(ctx context.Context, userID string) (models.Preferences, error)
	// Merge applies patch over the user's preferences and returns the result.
	Merge(ctx context.Context, userID string, patch models.Preferences) (models.Preferences, error)
}

// OpenPreferenceStore returns the SQLite store when cfg names a database file and the memory store otherwise.
//
// The returned close function is never nil.
func OpenPreferenceStore(ctx context.Context, cfg shared.DatabaseConfig) (PreferenceStore, func() error, error) {
	if cfg.Path == "" {
		return NewMemoryPreferenceStore(), func() error { return nil }, nil
	}

	db, err := shared.OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewSQLitePreferenceStore(db), db.Close, nil
}

// clone deep-copies p through JSON so callers cannot mutate stored values.
func clone(p models.Preferences) (models.Preferences, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: preferences are not JSON: %v", shared.ErrInvalidInput, err)
	}
	return decode(data)
}

func decode(data []byte) (models.Preferences, error) {
	out := models.Preferences{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return out, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// load reads the stored preferences for userID. found is false when no row exists.
func load(ctx context.Context, q queryer, userID string) (prefs models.Preferences, found bool, err error) {
	var data string
	err = q.QueryRowContext(ctx, `SELECT data FROM preferences WHERE user_id = ?`, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query preferences: %w", err)
	}

	prefs, err = decode([]byte(data))
	if err != nil {
		return nil, false, err
	}
	return prefs, true, nil
}
