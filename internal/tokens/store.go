package tokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/shared"
	"golang.org/x/sync/singleflight"
)

// RefreshTimeout bounds a shared refresh once it no longer follows any caller's context.
const RefreshTimeout = 30 * time.Second

// ErrNoToken means no usable access token could be produced. It wraps [shared.ErrNotAuthenticated].
var ErrNoToken = fmt.Errorf("%w: no valid token", shared.ErrNotAuthenticated)

// Refreshed is the result of a refresh grant. RefreshToken is empty unless the provider rotated it.
type Refreshed struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*Refreshed, error)
}

// Store manages a single token pair on top of a [Backend].
type Store struct {
	backend   Backend
	refresher Refresher
	logger    *log.Logger
	now       func() time.Time
	group     singleflight.Group
}

// NewStore creates a token store. refresher may be set later with [Store.SetRefresher].
func NewStore(backend Backend, refresher Refresher, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		backend:   backend,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// SetRefresher sets the refresher used for expired tokens.
func (s *Store) SetRefresher(r Refresher) {
	s.refresher = r
}

// SetClock replaces the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Save stores a freshly issued token triple. An empty refreshToken keeps the stored one.
func (s *Store) Save(accessToken, refreshToken string, expiresIn int) error {
	if accessToken == "" {
		return fmt.Errorf("%w: access token", shared.ErrMissingArgument)
	}

	expiresAt := models.ExpiresAtFrom(s.now(), expiresIn)
	values := map[string]string{
		KeyAccessToken: accessToken,
		KeyTokenExpiry: strconv.FormatInt(expiresAt.UnixMilli(), 10),
	}
	if refreshToken != "" {
		values[KeyRefreshToken] = refreshToken
	}

	if err := s.backend.Set(values); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	return nil
}

// Pair reads the stored token pair. Missing values are zero.
func (s *Store) Pair() (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := s.backend.Get(KeyAccessToken)
	if err != nil {
		return pair, err
	}
	refresh, err := s.backend.Get(KeyRefreshToken)
	if err != nil {
		return pair, err
	}
	expiry, err := s.backend.Get(KeyTokenExpiry)
	if err != nil {
		return pair, err
	}

	pair.AccessToken = access
	pair.RefreshToken = refresh
	if expiry != "" {
		ms, err := strconv.ParseInt(expiry, 10, 64)
		if err != nil {
			s.logger.Warn("ignoring malformed token expiry", "value", expiry)
		} else {
			pair.ExpiresAt = time.UnixMilli(ms)
		}
	}
	return pair, nil
}

// State evaluates the stored pair at the store's current time.
func (s *Store) State() (State, error) {
	pair, err := s.Pair()
	if err != nil {
		return State{}, err
	}
	return Evaluate(pair, s.now()), nil
}

// Clear removes every stored token.
func (s *Store) Clear() error {
	return s.backend.Delete(KeyAccessToken, KeyRefreshToken, KeyTokenExpiry)
}

// ValidToken returns an access token that is not expired, refreshing it when needed.
//
// A valid stored token is returned without any network call. Failures return [ErrNoToken].
func (s *Store) ValidToken(ctx context.Context) (string, error) {
	pair, err := s.Pair()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoToken, err)
	}

	switch Evaluate(pair, s.now()).Kind {
	case Valid:
		return pair.AccessToken, nil
	case Expired:
		return s.do(ctx, false)
	default:
		return "", ErrNoToken
	}
}

// Refresh exchanges the stored refresh token for a new access token and stores it, even when the
// current one is still valid.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	return s.do(ctx, true)
}

// do runs one refresh shared by every concurrent caller.
//
// The shared refresh is detached from the caller that started it, so a cancelled caller stops
// waiting without failing the others.
func (s *Store) do(ctx context.Context, force bool) (string, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		return s.refresh(rctx, force)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrNoToken, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Store) refresh(ctx context.Context, force bool) (string, error) {
	pair, err := s.Pair()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoToken, err)
	}
	if !force && Evaluate(pair, s.now()).Kind == Valid {
		return pair.AccessToken, nil
	}
	if pair.RefreshToken == "" {
		return "", fmt.Errorf("%w: %w", ErrNoToken, shared.ErrNoRefreshToken)
	}
	if s.refresher == nil {
		return "", fmt.Errorf("%w: no refresher configured", ErrNoToken)
	}

	refreshed, err := s.refresher.RefreshToken(ctx, pair.RefreshToken)
	if err != nil {
		s.logger.Warn("token refresh failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrNoToken, err)
	}
	if refreshed == nil || refreshed.AccessToken == "" {
		return "", fmt.Errorf("%w: %w", ErrNoToken, errors.New("refresh returned no access token"))
	}

	if err := s.Save(refreshed.AccessToken, refreshed.RefreshToken, refreshed.ExpiresIn); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoToken, err)
	}
	s.logger.Debug("access token refreshed", "expires_in", refreshed.ExpiresIn)
	return refreshed.AccessToken, nil
}
