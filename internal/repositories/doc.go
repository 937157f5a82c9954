// Package repositories implements persistence for user preferences.
//
// Preferences are keyed by the stable upstream user id, never by token bytes.
//
// Key Implementations:
//   - [MemoryPreferenceStore] : process-lifetime map guarded by a mutex (default)
//   - [SQLitePreferenceStore] : preferences table created by the embedded migrations in shared
//
// Both serve [models.DefaultPreferences] for users who never saved anything, and both apply updates as a
// shallow merge of top-level keys over the user's effective preferences.
package repositories
