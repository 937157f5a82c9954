package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/shared"
)

// MemoryPreferenceStore keeps preferences for the lifetime of the process.
//
// Both stores serve [models.DefaultPreferences] only until a user saves something. The first
// Merge starts from an empty record, so defaults are never written back.
type MemoryPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]models.Preferences
}

// NewMemoryPreferenceStore creates an empty in-memory store.
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{prefs: make(map[string]models.Preferences)}
}

func (s *MemoryPreferenceStore) Get(ctx context.Context, userID string) (models.Preferences, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	s.mu.RLock()
	stored, ok := s.prefs[userID]
	s.mu.RUnlock()

	if !ok {
		return models.DefaultPreferences(), nil
	}
	return clone(stored)
}

func (s *MemoryPreferenceStore) Merge(ctx context.Context, userID string, patch models.Preferences) (models.Preferences, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	patch, err := clone(patch)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.prefs[userID].Merge(patch)
	s.prefs[userID] = merged

	return clone(merged)
}

// SQLitePreferenceStore persists preferences as JSON documents in the preferences table.
type SQLitePreferenceStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLitePreferenceStore creates a store on a migrated database.
func NewSQLitePreferenceStore(db *sql.DB) *SQLitePreferenceStore {
	return &SQLitePreferenceStore{db: db, now: time.Now}
}

func (s *SQLitePreferenceStore) Get(ctx context.Context, userID string) (models.Preferences, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	prefs, found, err := load(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return models.DefaultPreferences(), nil
	}
	return prefs, nil
}

func (s *SQLitePreferenceStore) Merge(ctx context.Context, userID string, patch models.Preferences) (models.Preferences, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	base, _, err := load(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	merged := base.Merge(patch)
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: preferences are not JSON: %v", shared.ErrInvalidInput, err)
	}

	now := s.now().UTC()
	query := `
		INSERT INTO preferences (user_id, data, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, userID, string(data), now, now); err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit preferences: %w", err)
	}

	return decode(data)
}
