package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/swiper/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgTracksFetched MsgKind = iota
	MsgSwiped
	MsgPlaylistsFetched
	MsgPlaylistFetched
)

type tracksFetched struct {
	tracks []models.Track
	genres []string
	reset  bool
	err    error
}

type swiped struct {
	track models.Track
	liked bool
	err   error
}

type playlistsFetched struct {
	playlists []models.Playlist
	err       error
}

type playlistFetched struct {
	playlist *models.Playlist
	err      error
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]. reset replaces the deck instead of appending.
func tracksFetchedMsg(tracks []models.Track, genres []string, reset bool, err error) Msg {
	return Msg{kind: MsgTracksFetched, data: tracksFetched{tracks, genres, reset, err}}
}

// swipedMsg is the constructor for [MsgSwiped]
func swipedMsg(track models.Track, liked bool, err error) Msg {
	return Msg{kind: MsgSwiped, data: swiped{track, liked, err}}
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// playlistFetchedMsg is the constructor for [MsgPlaylistFetched]
func playlistFetchedMsg(playlist *models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistFetched, data: playlistFetched{playlist, err}}
}
