package ui

import "github.com/desertthunder/swiper/internal/models"

const (
	InitialDeckSize = 10
	RefillSize      = 5
	RefillThreshold = 3
	// MaxSeedGenres is the most seeds the recommendations endpoint accepts.
	MaxSeedGenres = 5
)

// Deck is the queue of tracks waiting to be swiped. Tracks already in the deck or already swiped are not queued twice.
type Deck struct {
	tracks []models.Track
	seen   map[string]struct{}
}

func NewDeck() *Deck {
	return &Deck{seen: make(map[string]struct{})}
}

// Current returns the track on top of the deck.
func (d *Deck) Current() (models.Track, bool) {
	if len(d.tracks) == 0 {
		return models.Track{}, false
	}
	return d.tracks[0], true
}

// Advance drops the top track.
func (d *Deck) Advance() {
	if len(d.tracks) > 0 {
		d.tracks = d.tracks[1:]
	}
}

// Append queues tracks and returns how many were new.
func (d *Deck) Append(tracks []models.Track) int {
	added := 0
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		if _, ok := d.seen[t.ID]; ok {
			continue
		}
		d.seen[t.ID] = struct{}{}
		d.tracks = append(d.tracks, t)
		added++
	}
	return added
}

// Reset empties the queue and fills it with tracks. Swiped history is kept.
func (d *Deck) Reset(tracks []models.Track) int {
	for _, t := range d.tracks {
		delete(d.seen, t.ID)
	}
	d.tracks = nil
	return d.Append(tracks)
}

func (d *Deck) Len() int {
	return len(d.tracks)
}

// NeedsRefill reports whether fewer than [RefillThreshold] tracks remain.
func (d *Deck) NeedsRefill() bool {
	return len(d.tracks) < RefillThreshold
}
