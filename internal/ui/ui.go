package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/services"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SwipeView ViewState = iota
	PlaylistsView
	PlaylistView
)

// Gateway is the subset of [services.APIService] the TUI drives.
type Gateway interface {
	Recommendations(ctx context.Context, query services.RecommendationQuery) ([]models.Track, error)
	LikeTrack(ctx context.Context, trackID string) (*models.StatusResponse, error)
	DislikeTrack(ctx context.Context, trackID string) (*models.StatusResponse, error)
	Playlists(ctx context.Context) ([]models.Playlist, error)
	Playlist(ctx context.Context, id string) (*models.Playlist, error)
	Preferences(ctx context.Context) (models.Preferences, error)
}

var _ Gateway = (*services.APIService)(nil)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	gateway      Gateway
	logger       *log.Logger
	view         ViewState
	deck         *Deck
	genres       []string
	loading      bool
	busy         bool
	status       string
	err          error
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	playlist     *models.Playlist
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. A nil logger discards.
func NewModel(ctx context.Context, gateway Gateway, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	playlistList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	playlistList.Title = "Your Playlists"
	playlistList.SetShowHelp(false)

	trackList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	trackList.SetShowHelp(false)

	return &Model{
		ctx:          ctx,
		gateway:      gateway,
		logger:       logger,
		view:         SwipeView,
		deck:         NewDeck(),
		playlistList: playlistList,
		trackList:    trackList,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init fetches the initial deck.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	return m.fetchTracks(InitialDeckSize, true)
}

// ViewState returns the active view.
func (m *Model) ViewState() ViewState {
	return m.view
}

// Deck returns the swipe queue.
func (m *Model) Deck() *Deck {
	return m.deck
}

// Err returns the error currently shown on the error line.
func (m *Model) Err() error {
	return m.err
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SwipeView:
			return m.handleSwipeKeys(msg)
		case PlaylistsView:
			return m.handlePlaylistsKeys(msg)
		case PlaylistView:
			return m.handlePlaylistKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgTracksFetched:
		data := msg.data.(tracksFetched)
		m.loading = false
		if data.genres != nil {
			m.genres = data.genres
		}
		if data.err != nil {
			m.fail("failed to load recommendations", data.err)
			return m, nil
		}
		if data.reset {
			m.deck.Reset(data.tracks)
		} else {
			m.deck.Append(data.tracks)
		}
		return m, nil

	case MsgSwiped:
		data := msg.data.(swiped)
		m.busy = false
		if data.err != nil {
			verb := "dislike"
			if data.liked {
				verb = "like"
			}
			m.fail(fmt.Sprintf("failed to %s %q", verb, data.track.Name), data.err)
			return m, nil
		}

		m.err = nil
		if data.liked {
			m.status = fmt.Sprintf("♥ Liked %s", data.track.Name)
		} else {
			m.status = fmt.Sprintf("✗ Passed on %s", data.track.Name)
		}
		if current, ok := m.deck.Current(); ok && current.ID == data.track.ID {
			m.deck.Advance()
		}
		if m.deck.NeedsRefill() && !m.loading {
			m.loading = true
			return m, m.fetchTracks(RefillSize, false)
		}
		return m, nil

	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.fail("failed to load playlists", data.err)
			return m, nil
		}
		cmd := m.playlistList.SetItems(playlistItems(data.playlists))
		m.view = PlaylistsView
		return m, cmd

	case MsgPlaylistFetched:
		data := msg.data.(playlistFetched)
		if data.err != nil {
			m.fail("failed to load playlist", data.err)
			return m, nil
		}
		m.playlist = data.playlist
		m.trackList.Title = fmt.Sprintf("Tracks in '%s'", data.playlist.Name)
		cmd := m.trackList.SetItems(trackItems(data.playlist.Tracks))
		m.view = PlaylistView
		return m, cmd
	}
	return m, nil
}

// fail shows err on the error line and logs it.
func (m *Model) fail(action string, err error) {
	m.err = fmt.Errorf("%s: %w", action, err)
	m.logger.Error(action, "error", err)
}

func (m *Model) handleSwipeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.like):
		return m, m.swipe(true)
	case key.Matches(msg, m.keys.dislike):
		return m, m.swipe(false)
	case key.Matches(msg, m.keys.refill):
		if m.loading {
			return m, nil
		}
		m.loading = true
		m.err = nil
		return m, m.fetchTracks(InitialDeckSize, true)
	case key.Matches(msg, m.keys.playlists):
		return m, m.fetchPlaylists()
	}
	return m, nil
}

func (m *Model) handlePlaylistsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = SwipeView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.fetchPlaylist(item.playlist.ID)
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handlePlaylistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistsView
		m.playlist = nil
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistsView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case PlaylistView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

// swipe sends the verdict for the top card. The card only leaves the deck once the gateway accepts it.
func (m *Model) swipe(liked bool) tea.Cmd {
	track, ok := m.deck.Current()
	if !ok || m.busy {
		return nil
	}
	m.busy = true

	ctx, gateway := m.ctx, m.gateway
	return func() tea.Msg {
		var err error
		if liked {
			_, err = gateway.LikeTrack(ctx, track.ID)
		} else {
			_, err = gateway.DislikeTrack(ctx, track.ID)
		}
		return swipedMsg(track, liked, err)
	}
}

// fetchTracks asks for limit recommendations, loading the preferred genres first if they are not known yet.
func (m *Model) fetchTracks(limit int, reset bool) tea.Cmd {
	ctx, gateway, genres := m.ctx, m.gateway, m.genres
	return func() tea.Msg {
		if genres == nil {
			genres = preferredGenres(ctx, gateway)
		}
		tracks, err := gateway.Recommendations(ctx, services.RecommendationQuery{Limit: limit, Genres: genres})
		return tracksFetchedMsg(tracks, genres, reset, err)
	}
}

func (m *Model) fetchPlaylists() tea.Cmd {
	ctx, gateway := m.ctx, m.gateway
	return func() tea.Msg {
		playlists, err := gateway.Playlists(ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchPlaylist(id string) tea.Cmd {
	ctx, gateway := m.ctx, m.gateway
	return func() tea.Msg {
		playlist, err := gateway.Playlist(ctx, id)
		return playlistFetchedMsg(playlist, err)
	}
}

// preferredGenres returns the user's genres, falling back to the defaults when none are stored or the lookup fails.
func preferredGenres(ctx context.Context, gateway Gateway) []string {
	genres := models.DefaultPreferences().Genres()
	if prefs, err := gateway.Preferences(ctx); err == nil {
		if stored := prefs.Genres(); len(stored) > 0 {
			genres = stored
		}
	}
	if len(genres) > MaxSeedGenres {
		genres = genres[:MaxSeedGenres]
	}
	return genres
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case SwipeView:
		body = m.renderSwipe()
	case PlaylistsView:
		body = m.renderList(m.playlistList, m.keys.enter, m.keys.back, m.keys.quit)
	case PlaylistView:
		body = m.renderList(m.trackList, m.keys.back, m.keys.quit)
	}

	if m.err != nil {
		body += "\n" + styles.err.Render("Error: "+m.err.Error())
	}
	return body
}

func (m *Model) renderSwipe() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Music Swiper"))
	b.WriteString("\n")

	track, ok := m.deck.Current()
	switch {
	case ok:
		b.WriteString(renderCard(track))
		fmt.Fprintf(&b, "\n%s\n", styles.help.Render(fmt.Sprintf("%d more in the deck", m.deck.Len()-1)))
	case m.loading:
		b.WriteString("Loading tracks...\n")
	default:
		b.WriteString("No more tracks to discover\n")
		b.WriteString(styles.help.Render("press r to load more") + "\n")
	}

	if m.status != "" {
		b.WriteString(styles.ok.Render(m.status) + "\n")
	}

	helpKeys := []key.Binding{m.keys.like, m.keys.dislike, m.keys.playlists, m.keys.refill, m.keys.quit}
	b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}

func renderCard(track models.Track) string {
	lines := []string{
		styles.name.Render(track.Name),
		track.Artist,
	}
	if track.Album != "" {
		lines = append(lines, styles.help.Render(track.Album))
	}
	lines = append(lines, "")
	if track.PreviewURL != "" {
		lines = append(lines, "Preview: "+track.PreviewURL)
	} else {
		lines = append(lines, styles.warn.Render("No preview available"))
	}
	if track.ImageURL != "" {
		lines = append(lines, "Artwork: "+track.ImageURL)
	}
	return styles.card.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderList(l list.Model, keys ...key.Binding) string {
	return fmt.Sprintf("%s\n\n%s", l.View(), m.help.ShortHelpView(keys))
}
