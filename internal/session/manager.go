// Package session holds the client's authenticated identity.
//
// A Manager hydrates once from the credential store, writes credentials on login and
// clears them on logout. It subscribes to the request dispatcher so that a credential
// cleared after a 401 also resets the in-memory session.
package session

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/felixgeelhaar/vhub/internal/api"
	"github.com/felixgeelhaar/vhub/internal/credstore"
	"github.com/felixgeelhaar/vhub/internal/dispatch"
	"github.com/felixgeelhaar/vhub/internal/errors"
	"github.com/felixgeelhaar/vhub/internal/identity"
	"github.com/felixgeelhaar/vhub/internal/log"
	"github.com/felixgeelhaar/vhub/internal/metrics"
)

// Authenticator is the authentication transport.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Register(ctx context.Context, fields map[string]any) (map[string]any, error)
}

// ExpirySource publishes forced credential clears.
type ExpirySource interface {
	Subscribe(fn func(dispatch.Expiry)) (unsubscribe func())
}

// exclusiveRunner is implemented by expiry sources whose forced clears can be held off
// while credentials are written.
type exclusiveRunner interface {
	Exclusive(fn func() error) error
}

// Manager owns the in-memory session.
type Manager struct {
	store   credstore.Store
	auth    Authenticator
	expiry  ExpirySource
	logger  *log.Logger
	metrics *metrics.Metrics

	mu             sync.RWMutex
	state          State
	token          string
	user           *identity.User
	expiredLoading bool
	unsubscribe    func()
	listeners      []func(Transition)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l.WithComponent("session") }
}

// WithMetrics records transitions, login attempts and storage corruption.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithExpirySource subscribes the Manager to forced clears at Init.
func WithExpirySource(src ExpirySource) Option {
	return func(m *Manager) { m.expiry = src }
}

// NewManager creates a Manager in the UNINITIALIZED state.
func NewManager(store credstore.Store, auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		auth:   auth,
		logger: log.DefaultLogger().WithComponent("session"),
		state:  StateUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnChange registers fn to run after every state transition.
func (m *Manager) OnChange(fn func(Transition)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Init hydrates the session from the store. It never contacts the server and never
// fails: unreadable or malformed credentials leave the session anonymous. Only the
// first call has any effect.
func (m *Manager) Init(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return
	}
	loading := m.setStateLocked(StateLoading, ReasonHydrate)
	if m.expiry != nil {
		m.unsubscribe = m.expiry.Subscribe(m.handleExpiry)
	}
	m.mu.Unlock()
	m.publish(loading)

	token, user := m.hydrate(ctx)

	m.mu.Lock()
	if m.expiredLoading {
		token, user = "", nil
	}
	to := StateAnonymous
	if user != nil {
		to = StateAuthenticated
		m.token, m.user = token, user
	}
	done := m.setStateLocked(to, ReasonHydrate)
	m.mu.Unlock()
	m.publish(done)

	m.logger.Debug("session hydrated", "state", to.String(), "role", m.Role().String())
}

func (m *Manager) hydrate(ctx context.Context) (string, *identity.User) {
	token, hasToken, err := m.store.Get(ctx, credstore.KeyToken)
	if err != nil {
		m.logger.WithError(err).Warn("reading stored token failed; starting anonymous")
		return "", nil
	}
	raw, hasUser, err := m.store.Get(ctx, credstore.KeyUser)
	if err != nil {
		m.logger.WithError(err).Warn("reading stored user failed; starting anonymous")
		return "", nil
	}

	if !hasToken || !hasUser || token == "" {
		if hasToken != hasUser {
			m.logger.Warn("stored credentials incomplete; starting anonymous",
				"has_token", hasToken, "has_user", hasUser)
		}
		return "", nil
	}

	user, err := identity.Decode(raw)
	if err != nil {
		corrupt := errors.NewStorageCorruptionError(credstore.KeyUser, err)
		m.logger.LogError(corrupt)
		m.metrics.CorruptStorage()
		m.metrics.Error(string(corrupt.Code), "session")
		return "", nil
	}
	return token, user
}

// Login authenticates and persists the returned credentials. On any failure the
// session is left as it was. The store write and the state change run as one unit with
// respect to forced clears from the expiry source, so a clear lands either before both
// or after both.
func (m *Manager) Login(ctx context.Context, email, password string) (*identity.User, error) {
	resp, err := m.auth.Login(ctx, email, password)
	if err != nil {
		if stderrors.Is(err, errors.ErrInvalidCredentials) {
			m.metrics.LoginAttempt("rejected")
		} else {
			m.metrics.LoginAttempt("error")
		}
		m.metrics.Error(string(errors.CodeOf(err)), "session")
		return nil, err
	}

	user := resp.User
	encoded, err := identity.Encode(&user)
	if err != nil {
		m.metrics.LoginAttempt("error")
		return nil, errors.Wrap(errors.ErrCodeUnexpectedStatus, "login returned an unserializable user", err)
	}

	var t *Transition
	commit := func() error {
		if err := m.persist(ctx, resp.Token, encoded); err != nil {
			return err
		}
		m.mu.Lock()
		m.token, m.user = resp.Token, &user
		t = m.setStateLocked(StateAuthenticated, ReasonLogin)
		m.mu.Unlock()
		return nil
	}
	if ex, ok := m.expiry.(exclusiveRunner); ok {
		err = ex.Exclusive(commit)
	} else {
		err = commit()
	}
	if err != nil {
		m.metrics.LoginAttempt("error")
		return nil, err
	}
	m.publish(t)

	m.metrics.LoginAttempt("success")
	m.logger.InfoContext(ctx, "logged in", "user_id", user.ID, "role", user.Role().String())

	out := user
	return &out, nil
}

// persist writes user then token. A failed write clears both keys so the store is never
// left holding one without the other.
func (m *Manager) persist(ctx context.Context, token, encodedUser string) error {
	err := m.store.Set(ctx, credstore.KeyUser, encodedUser)
	if err == nil {
		err = m.store.Set(ctx, credstore.KeyToken, token)
	}
	if err == nil {
		return nil
	}

	if rbErr := credstore.ClearCredentials(ctx, m.store); rbErr != nil {
		m.logger.WithError(rbErr).ErrorContext(ctx, "rolling back partial credential write failed")
	}
	m.logger.WithError(err).ErrorContext(ctx, "persisting credentials failed")
	if errors.CodeOf(err) == "" {
		return errors.NewStoreUnavailableError("credential", err)
	}
	return err
}

// Register creates an account. It never changes the session.
func (m *Manager) Register(ctx context.Context, fields map[string]any) (map[string]any, error) {
	created, err := m.auth.Register(ctx, fields)
	if err != nil {
		m.metrics.Error(string(errors.CodeOf(err)), "session")
		return nil, err
	}
	m.logger.InfoContext(ctx, "account registered", "email", fields["email"])
	return created, nil
}

// Logout clears stored and in-memory credentials. Repeated calls are harmless; only a
// failing store backend produces an error.
func (m *Manager) Logout(ctx context.Context) error {
	err := credstore.ClearCredentials(ctx, m.store)
	if err != nil {
		m.logger.WithError(err).ErrorContext(ctx, "clearing stored credentials failed")
	}

	m.mu.Lock()
	m.token, m.user = "", nil
	var t *Transition
	if m.state == StateAuthenticated {
		t = m.setStateLocked(StateAnonymous, ReasonLogout)
	}
	m.mu.Unlock()
	m.publish(t)

	if t != nil {
		m.logger.InfoContext(ctx, "logged out")
	}
	return err
}

func (m *Manager) handleExpiry(e dispatch.Expiry) {
	m.mu.Lock()
	var t *Transition
	switch m.state {
	case StateLoading:
		m.expiredLoading = true
	case StateAuthenticated:
		m.token, m.user = "", nil
		t = m.setStateLocked(StateAnonymous, ReasonExpired)
	}
	m.mu.Unlock()
	m.publish(t)

	if t != nil {
		m.logger.Info("session expired", "path", e.Path)
	}
}

// Role is the access role of the current user, volunteer when anonymous.
func (m *Manager) Role() identity.Role {
	return m.Snapshot().Role()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns the session as the route guard sees it. Loading is true until
// hydration has finished.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Token:   m.token,
		User:    m.user,
		Loading: m.state == StateUninitialized || m.state == StateLoading,
	}
}

// Close unsubscribes from the expiry source. The session keeps its last state.
func (m *Manager) Close() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Manager) setStateLocked(to State, reason string) *Transition {
	from := m.state
	if from == to {
		return nil
	}
	m.state = to
	m.metrics.Transition(from.String(), to.String())
	return &Transition{From: from, To: to, Reason: reason}
}

func (m *Manager) publish(t *Transition) {
	if t == nil {
		return
	}
	m.mu.RLock()
	listeners := append([]func(Transition){}, m.listeners...)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(*t)
	}
}
