// Package ui implements the swipe terminal interface using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [SwipeView] : one recommended track at a time, like (→/l) or dislike (←/h)
//  2. [PlaylistsView] : browse the user's playlists
//  3. [PlaylistView] : tracks of the selected playlist
//
// The [Model] implements bubbletea's Init/Update/View pattern, receiving messages via the [Msg] union type.
// Every gateway call runs as a [tea.Cmd]; failures land on the error line and the UI keeps going.
//
// The deck starts with [InitialDeckSize] tracks seeded with the user's preferred genres and is topped up
// with [RefillSize] more whenever fewer than [RefillThreshold] remain.
package ui
