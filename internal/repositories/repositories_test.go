package repositories

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func stores(t *testing.T) map[string]PreferenceStore {
	return map[string]PreferenceStore{
		"Memory": NewMemoryPreferenceStore(),
		"SQLite": NewSQLitePreferenceStore(setupTestDB(t)),
	}
}

func TestPreferenceStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("Get Returns Defaults", func(t *testing.T) {
				prefs, err := store.Get(ctx, "nobody")
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !reflect.DeepEqual(prefs.Genres(), []string{"pop", "rock", "indie"}) {
					t.Errorf("expected default genres, got %v", prefs.Genres())
				}
			})

			t.Run("Merge Is Shallow And Keyed By User", func(t *testing.T) {
				merged, err := store.Merge(ctx, "alice", models.Preferences{"genres": []string{"jazz"}, "theme": "dark"})
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !reflect.DeepEqual(merged.Genres(), []string{"jazz"}) {
					t.Errorf("expected merged genres, got %v", merged.Genres())
				}
				if len(merged) != 2 {
					t.Errorf("expected first merge to start from an empty record, got %v", merged)
				}

				_, err = store.Merge(ctx, "alice", models.Preferences{"audio_features": map[string]any{"min_energy": 0.1}})
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}

				got, err := store.Get(ctx, "alice")
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if got["theme"] != "dark" {
					t.Errorf("expected earlier key to persist, got %v", got["theme"])
				}
				af, ok := got["audio_features"].(map[string]any)
				if !ok || len(af) != 1 || af["min_energy"] != 0.1 {
					t.Errorf("expected audio_features replaced wholesale, got %v", got["audio_features"])
				}

				other, _ := store.Get(ctx, "bob")
				if !reflect.DeepEqual(other.Genres(), []string{"pop", "rock", "indie"}) {
					t.Errorf("expected bob to keep defaults, got %v", other.Genres())
				}
			})

			t.Run("Returned Values Are Copies", func(t *testing.T) {
				got, _ := store.Get(ctx, "alice")
				got["theme"] = "light"

				again, _ := store.Get(ctx, "alice")
				if again["theme"] != "dark" {
					t.Errorf("expected stored value to be unaffected, got %v", again["theme"])
				}
			})

			t.Run("Missing User ID", func(t *testing.T) {
				if _, err := store.Get(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
					t.Errorf("expected ErrMissingArgument, got %v", err)
				}
				if _, err := store.Merge(ctx, "", models.Preferences{}); !errors.Is(err, shared.ErrMissingArgument) {
					t.Errorf("expected ErrMissingArgument, got %v", err)
				}
			})

			t.Run("Concurrent Merges", func(t *testing.T) {
				var wg sync.WaitGroup
				for i := range 10 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						key := string(rune('a' + i))
						if _, err := store.Merge(ctx, "carol", models.Preferences{key: i}); err != nil {
							t.Errorf("merge %d: %v", i, err)
						}
					}()
				}
				wg.Wait()

				got, _ := store.Get(ctx, "carol")
				for i := range 10 {
					if _, ok := got[string(rune('a'+i))]; !ok {
						t.Errorf("expected key %q after concurrent merges", string(rune('a'+i)))
					}
				}
			})
		})
	}
}

func TestSQLitePreferenceStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Unsupported Values", func(t *testing.T) {
		store := NewSQLitePreferenceStore(setupTestDB(t))
		if _, err := store.Merge(ctx, "alice", models.Preferences{"bad": make(chan int)}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Corrupt Row", func(t *testing.T) {
		db := setupTestDB(t)
		if _, err := db.Exec(`INSERT INTO preferences (user_id, data) VALUES ('x', 'not json')`); err != nil {
			t.Fatal(err)
		}
		if _, err := NewSQLitePreferenceStore(db).Get(ctx, "x"); err == nil {
			t.Error("expected decode error")
		}
	})
}

func TestOpenPreferenceStore(t *testing.T) {
	t.Run("Memory When No Path", func(t *testing.T) {
		store, closeFn, err := OpenPreferenceStore(context.Background(), shared.DatabaseConfig{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := store.(*MemoryPreferenceStore); !ok {
			t.Errorf("expected memory store, got %T", store)
		}
		if err := closeFn(); err != nil {
			t.Errorf("expected no-op close, got %v", err)
		}
	})

	t.Run("SQLite Persists Across Opens", func(t *testing.T) {
		cfg := shared.DatabaseConfig{Path: filepath.Join(t.TempDir(), "swiper.db"), MaxOpenConns: 1, MaxIdleConns: 1}
		ctx := context.Background()

		store, closeFn, err := OpenPreferenceStore(ctx, cfg)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := store.(*SQLitePreferenceStore); !ok {
			t.Fatalf("expected sqlite store, got %T", store)
		}
		if _, err := store.Merge(ctx, "alice", models.Preferences{"genres": []string{"ambient"}}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		closeFn()

		store, closeFn, err = OpenPreferenceStore(ctx, cfg)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer closeFn()

		got, err := store.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(got.Genres(), []string{"ambient"}) {
			t.Errorf("expected persisted genres, got %v", got.Genres())
		}
	})
}
