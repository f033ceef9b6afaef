package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/kiddiebus/kiddiebus-client/internal/errors"
	"github.com/kiddiebus/kiddiebus-client/internal/metrics"
	"github.com/kiddiebus/kiddiebus-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const flightKey = "refresh"

// Manager runs token refreshes so that at most one is in flight at a time. Every
// caller that asks for a refresh while one is running receives that refresh's outcome.
type Manager struct {
	store     token.Store
	exchanger Exchanger
	group     singleflight.Group
	timeout   time.Duration
	onFailure func(error)
	logger    zerolog.Logger
}

type ManagerOption func(*Manager)

// WithTimeout bounds the shared refresh call. It runs detached from the caller that
// started it, so one caller giving up does not fail the others.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithFailureHandler is called once per failed refresh, after the stored tokens are
// cleared and before any waiting caller sees the error.
func WithFailureHandler(fn func(error)) ManagerOption {
	return func(m *Manager) {
		m.onFailure = fn
	}
}

func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a new refresh coordinator
func NewManager(store token.Store, exchanger Exchanger, options ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		exchanger: exchanger,
		timeout:   10 * time.Second,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Refresh returns a pair whose access token is newer than stale. If the stored access
// token already differs from stale, another caller has refreshed and the stored pair is
// returned without a network call. An empty stale always refreshes (or joins the
// refresh in flight).
//
// Failures wrap errors.ErrRefreshFailure. ctx only bounds this caller's wait.
func (m *Manager) Refresh(ctx context.Context, stale string) (token.Pair, error) {
	ch := m.group.DoChan(flightKey, func() (interface{}, error) {
		return m.refresh(context.WithoutCancel(ctx), stale)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.RefreshShared.Inc()
		}
		if res.Err != nil {
			return token.Pair{}, res.Err
		}
		return res.Val.(token.Pair), nil
	case <-ctx.Done():
		return token.Pair{}, ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context, stale string) (token.Pair, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	current, err := m.store.Load(ctx)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%w: loading stored tokens: %w", errors.ErrRefreshFailure, err)
	}

	if current.RefreshToken == "" {
		if stale != "" {
			// The session already ended (logout or an earlier failed refresh)
			return token.Pair{}, fmt.Errorf("%w: %w", errors.ErrRefreshFailure, errors.ErrNoRefreshToken)
		}
		return token.Pair{}, m.fail(ctx, errors.ErrNoRefreshToken)
	}

	if stale != "" && current.AccessToken != stale {
		m.logger.Debug().Str("access_token", token.Redacted(current.AccessToken)).Msg("Access token already rotated, reusing it")
		metrics.RefreshShared.Inc()
		return current, nil
	}

	m.logger.Debug().Msg("Refreshing access token")
	access, err := m.exchanger.RefreshAccessToken(ctx, current.RefreshToken)
	metrics.RecordRefresh(err)
	if err != nil {
		return token.Pair{}, m.fail(ctx, err)
	}

	// A logout or a new login may have replaced the pair while the exchange was in flight
	latest, err := m.store.Load(ctx)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%w: reloading stored tokens: %w", errors.ErrRefreshFailure, err)
	}
	if latest.RefreshToken != current.RefreshToken {
		if latest.Empty() {
			return token.Pair{}, fmt.Errorf("%w: session ended during refresh", errors.ErrRefreshFailure)
		}
		m.logger.Debug().Msg("Tokens replaced during refresh, discarding refreshed access token")
		return latest, nil
	}

	next := current.WithAccessToken(access)
	if err := m.store.Save(ctx, next); err != nil {
		return token.Pair{}, fmt.Errorf("refresh.Manager Save: %w", err)
	}
	m.logger.Info().Str("access_token", token.Redacted(access)).Msg("Access token refreshed")
	return next, nil
}

func (m *Manager) fail(ctx context.Context, cause error) error {
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.logger.Err(err).Msg("Failed to clear tokens after refresh failure")
	}
	m.logger.Warn().Err(cause).Msg("Token refresh failed, session ended")

	if m.onFailure != nil {
		m.onFailure(cause)
	}
	return fmt.Errorf("%w: %w", errors.ErrRefreshFailure, cause)
}
