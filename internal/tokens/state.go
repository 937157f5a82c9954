package tokens

import (
	"time"

	"github.com/desertthunder/swiper/internal/models"
)

// Kind tags a token [State].
type Kind int

const (
	Absent Kind = iota
	Valid
	Expired
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// State is the validity of a stored token pair at a point in time.
//
// Until is the expiry for Valid and Expired states and zero otherwise.
type State struct {
	Kind  Kind
	Until time.Time
}

// Evaluate computes the state of pair at now.
func Evaluate(pair models.TokenPair, now time.Time) State {
	switch {
	case pair.AccessToken == "":
		return State{Kind: Absent}
	case pair.ExpiresAt.IsZero():
		return State{Kind: Expired}
	case now.After(pair.ExpiresAt):
		return State{Kind: Expired, Until: pair.ExpiresAt}
	default:
		return State{Kind: Valid, Until: pair.ExpiresAt}
	}
}
