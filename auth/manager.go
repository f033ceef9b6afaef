// Package auth is the client session manager: it owns the token pair and the session
// state, and implements the refresh protocol for every API call.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/kiddiebus/kiddiebus-client/apiclient"
	"github.com/kiddiebus/kiddiebus-client/auth/identity"
	"github.com/kiddiebus/kiddiebus-client/internal/config"
	"github.com/kiddiebus/kiddiebus-client/internal/errors"
	"github.com/kiddiebus/kiddiebus-client/sessions"
	"github.com/kiddiebus/kiddiebus-client/token"
	"github.com/kiddiebus/kiddiebus-client/token/refresh"
	"github.com/kiddiebus/kiddiebus-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Navigator is implemented by the host UI. The manager calls ToLogin only when the
// session ends because a refresh failed.
type Navigator interface {
	ToLogin()
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func()

func (f NavigatorFunc) ToLogin() {
	f()
}

// IdentityVerifier checks a third-party credential before it is sent to the API
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*identity.Identity, error)
}

// Manager owns the token pair and the session state
type Manager struct {
	store     token.Store
	session   *sessions.Store
	api       *apiclient.Client // every call goes through Transport
	refresher *refresh.Manager
	verifier  IdentityVerifier
	navigator Navigator
	base      http.RoundTripper
	logger    zerolog.Logger

	initMu   sync.Mutex
	initDone bool
	initErr  error
}

// ManagerOption defines a function type to modify the Manager instance
type ManagerOption func(*Manager)

func WithNavigator(n Navigator) ManagerOption {
	return func(m *Manager) {
		m.navigator = n
	}
}

// WithIdentityVerifier enables local verification of external identity credentials
func WithIdentityVerifier(v IdentityVerifier) ManagerOption {
	return func(m *Manager) {
		m.verifier = v
	}
}

// WithSessionStore injects the session container, e.g. one shared with the UI
func WithSessionStore(s *sessions.Store) ManagerOption {
	return func(m *Manager) {
		m.session = s
	}
}

// WithBaseTransport sets the transport used underneath the token handling
func WithBaseTransport(rt http.RoundTripper) ManagerOption {
	return func(m *Manager) {
		m.base = rt
	}
}

func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager wires the API client, the refresh coordinator and the bearer transport
// around store. The session starts in the loading state until Initialize runs.
func NewManager(cfg config.Config, store token.Store, options ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		session:   sessions.NewStore(),
		navigator: NavigatorFunc(func() {}),
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}

	var limiter *rate.Limiter
	if rps := cfg.GetRequestsPerSecond(); rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), max(cfg.GetRequestBurst(), 1))
	}

	// The refresh call itself must not pass through the refreshing transport
	raw := apiclient.New(cfg.GetAPIBaseURL(),
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.GetRequestTimeout(), Transport: m.base}),
		apiclient.WithLimiter(limiter),
		apiclient.WithLogger(m.logger),
	)
	m.refresher = refresh.NewManager(store, raw,
		refresh.WithTimeout(cfg.GetRefreshTimeout()),
		refresh.WithFailureHandler(m.expire),
		refresh.WithLogger(m.logger),
	)

	transport := &Transport{Base: m.base, Store: store, Refresh: m.refresher.Refresh}
	m.api = apiclient.New(cfg.GetAPIBaseURL(),
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.GetRequestTimeout(), Transport: transport}),
		apiclient.WithLimiter(limiter),
		apiclient.WithLogger(m.logger),
	)
	return m
}

// API is the client for protected calls; expired tokens are refreshed transparently
func (m *Manager) API() *apiclient.Client {
	return m.api
}

func (m *Manager) Session() *sessions.Store {
	return m.session
}

func (m *Manager) Current() sessions.Session {
	return m.session.Get()
}

// Initialize restores the persisted session. Later calls return the first call's
// result without touching the network. When restoring fails the persisted tokens are
// cleared, the session is left unauthenticated and the cause is returned. If ctx ends
// first nothing is cleared or remembered and a later call tries again.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.initDone {
		return m.initErr
	}
	err := m.initialize(ctx)
	if err != nil && ctx.Err() != nil {
		return err
	}
	m.initDone, m.initErr = true, err
	return err
}

func (m *Manager) initialize(ctx context.Context) error {
	pair, err := m.store.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("auth.Manager Initialize: %w", err)
		}
		m.discard(ctx, "Failed to load persisted tokens", err)
		return fmt.Errorf("auth.Manager Initialize: %w", err)
	}
	if !pair.Valid() {
		err := fmt.Errorf("%w: persisted token pair is incomplete", errors.ErrAuthorization)
		m.discard(ctx, "Discarding incomplete token pair", err)
		return fmt.Errorf("auth.Manager Initialize: %w", err)
	}
	if pair.Empty() {
		m.session.Reset()
		return nil
	}

	u, err := m.api.Me(ctx)
	if err != nil {
		if ctx.Err() != nil {
			m.logger.Debug().Err(err).Msg("Session restore interrupted")
			return fmt.Errorf("auth.Manager Initialize: %w", err)
		}
		m.discard(ctx, "Failed to restore session", err)
		return fmt.Errorf("auth.Manager Initialize: %w", err)
	}
	m.session.Authenticate(u)
	m.logger.Info().Int("user_id", u.ID).Str("role", u.Role.String()).Msg("Session restored")
	return nil
}

func (m *Manager) discard(ctx context.Context, msg string, cause error) {
	m.logger.Warn().Err(cause).Msg(msg)
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.logger.Err(err).Msg("Failed to clear persisted tokens")
	}
	m.session.Reset()
}

// Login exchanges credentials for a token pair. Invalid credentials are an
// errors.ErrAuthentication and are never retried.
func (m *Manager) Login(ctx context.Context, email, password string) (*users.User, error) {
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, resp)
}

// Register creates an account and signs in as it
func (m *Manager) Register(ctx context.Context, reg users.Registration) (*users.User, error) {
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidRequest, err)
	}
	resp, err := m.api.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, resp)
}

// LoginWithExternalIdentity signs in with a Google credential. When a verifier is
// configured the credential is checked locally first and nothing is sent if it fails.
func (m *Manager) LoginWithExternalIdentity(ctx context.Context, credential string) (*users.User, error) {
	if m.verifier != nil {
		id, err := m.verifier.Verify(ctx, credential)
		if err != nil {
			return nil, err
		}
		m.logger.Debug().Str("subject", id.Subject).Msg("External identity verified")
	}
	resp, err := m.api.GoogleLogin(ctx, credential)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, resp)
}

func (m *Manager) establish(ctx context.Context, resp *apiclient.AuthResponse) (*users.User, error) {
	if err := m.store.Save(ctx, resp.Pair()); err != nil {
		return nil, fmt.Errorf("auth.Manager: persisting tokens: %w", err)
	}
	m.session.Authenticate(resp.User)
	m.logger.Info().Int("user_id", resp.User.ID).Str("role", resp.User.Role.String()).Msg("Signed in")
	return resp.User, nil
}

// Logout removes the persisted pair and resets the session. It never fails; storage
// errors are logged.
func (m *Manager) Logout() {
	if err := m.store.Clear(context.Background()); err != nil {
		m.logger.Err(err).Msg("Failed to clear persisted tokens on logout")
	}
	m.session.Reset()
	m.logger.Info().Msg("Signed out")
}

// Refresh exchanges the stored refresh token for a new access token, joining any
// refresh already in flight. On failure the session has ended and the host has been
// sent to login.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err := m.refresher.Refresh(ctx, "")
	return err
}

func (m *Manager) UpdateProfile(ctx context.Context, fields users.ProfileUpdate) (*users.User, error) {
	if !m.session.Get().IsAuthenticated {
		return nil, fmt.Errorf("auth.Manager UpdateProfile: %w", errors.ErrAuthorization)
	}
	if fields.Empty() {
		return nil, fmt.Errorf("%w: no profile fields to update", errors.ErrInvalidRequest)
	}
	u, err := m.api.UpdateMe(ctx, fields)
	if err != nil {
		return nil, err
	}
	m.session.SetUser(u)
	return u, nil
}

// IsOperator is true for operators and admins
func (m *Manager) IsOperator() bool {
	return m.session.Get().User.IsOperator()
}

func (m *Manager) IsParent() bool {
	return m.session.Get().User.IsParent()
}

func (m *Manager) IsAdmin() bool {
	return m.session.Get().User.IsAdmin()
}

// expire runs once per failed refresh, after the refresher has cleared the tokens
func (m *Manager) expire(cause error) {
	m.session.Reset()
	m.logger.Warn().Err(cause).Msg("Session expired, redirecting to login")
	m.navigator.ToLogin()
}
