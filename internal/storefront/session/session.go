// Package session is the shopper client's source of truth for whether a user
// is signed in. It owns the stored token, adopts it on the API client and
// announces every transition on the event bus.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/liminara/storefront/internal/storefront/apiclient"
	"github.com/liminara/storefront/internal/storefront/events"
	"github.com/liminara/storefront/internal/storefront/localstore"
	"github.com/liminara/storefront/internal/storefront/migration"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/logger"
)

// Storage keys.
const (
	TokenKey        = "token"
	RefreshTokenKey = "refreshToken"
)

// Source tags events published by the session.
const Source = "session"

// State is the authentication state.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Snapshot is a copy of the session at one point in time.
type Snapshot struct {
	State State
	User  *apiclient.User
}

// API is the auth surface the session drives.
type API interface {
	RequestOTP(ctx context.Context, identifier string) (*apiclient.OTPIssued, error)
	VerifyOTP(ctx context.Context, identifier, code string) (*apiclient.Login, error)
	Me(ctx context.Context) (*apiclient.User, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context, refreshToken string) (*apiclient.Tokens, error)
	SetToken(token string)
}

// Migrator drains guest state after a login.
type Migrator interface {
	Run(ctx context.Context) migration.Result
}

// Params groups the session dependencies. Migrator, Bus and Logger are
// optional; without a Bus the manager keeps a private one.
type Params struct {
	API      API
	Store    localstore.Storage
	Migrator Migrator
	Bus      *events.Bus
	Logger   *logger.Logger
}

// LoginResult is returned by VerifyOTP.
type LoginResult struct {
	Session   Snapshot
	Created   bool
	Migration migration.Result
}

// Manager runs the Anonymous/Authenticated state machine. Transitions are
// serialized; Current and Token may be read at any time.
type Manager struct {
	api      API
	store    localstore.Storage
	migrator Migrator
	bus      *events.Bus
	logg     *logger.Logger

	opMu sync.Mutex

	mu      sync.RWMutex
	current Snapshot
	token   string
}

// New builds a manager in the Anonymous state. Call Check to restore a
// stored session.
func New(p Params) (*Manager, error) {
	if p.API == nil {
		return nil, errors.New("session: api is required")
	}
	if p.Store == nil {
		return nil, errors.New("session: storage is required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	bus := p.Bus
	if bus == nil {
		bus = events.New(0)
	}
	return &Manager{
		api:      p.API,
		store:    p.Store,
		migrator: p.Migrator,
		bus:      bus,
		logg:     logg,
	}, nil
}

// Current returns the session snapshot.
func (m *Manager) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Token returns the adopted bearer token, empty when anonymous.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Authenticated is shorthand for Current().State == Authenticated.
func (m *Manager) Authenticated() bool {
	return m.Current().State == Authenticated
}

// Subscribe delivers a signal on every transition.
func (m *Manager) Subscribe() *events.Subscription {
	return m.bus.Subscribe(events.SessionChanged)
}

// RequestOTP asks for a passcode. It does not change state.
func (m *Manager) RequestOTP(ctx context.Context, identifier string) (*apiclient.OTPIssued, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identifier is required")
	}
	return m.api.RequestOTP(ctx, identifier)
}

// VerifyOTP signs in. On success the token is persisted and adopted, the
// profile is fetched, guest state is migrated and the transition is
// broadcast. Migration failures are reported in the result and never fail
// the login.
func (m *Manager) VerifyOTP(ctx context.Context, identifier, code string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	code = strings.TrimSpace(code)
	if identifier == "" || code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identifier and code are required")
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	login, err := m.api.VerifyOTP(ctx, identifier, code)
	if err != nil {
		return nil, err
	}
	if err := m.persistTokens(ctx, login.Token, login.RefreshToken); err != nil {
		return nil, err
	}
	m.api.SetToken(login.Token)

	user, err := m.api.Me(ctx)
	if err != nil {
		m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "session.profile_fetch_failed")
		user = login.User
	}
	m.set(Snapshot{State: Authenticated, User: user}, login.Token)

	result := &LoginResult{Created: login.Created}
	if m.migrator != nil {
		result.Migration = m.migrator.Run(ctx)
		if err := result.Migration.Err(); err != nil {
			m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "session.migration_incomplete")
		}
	}

	m.logg.Info(m.userCtx(ctx, user), "session.authenticated")
	m.bus.Publish(events.SessionChanged, Source)
	result.Session = m.Current()
	return result, nil
}

// Logout signs out. The server call is best effort; the local token is
// always discarded. The guest store is left alone.
func (m *Manager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.Token() != "" {
		if err := m.api.Logout(ctx); err != nil {
			m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "session.logout_remote_failed")
		}
	}
	return m.becomeAnonymous(ctx, "logout")
}

// Check restores or re-validates the stored session. A rejected token moves
// to Anonymous after one refresh attempt. Transport failures keep the current
// state and are returned.
func (m *Manager) Check(ctx context.Context) (Snapshot, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	token, err := m.readKey(ctx, TokenKey)
	if err != nil {
		return m.Current(), err
	}
	if token == "" {
		if m.Authenticated() {
			return m.Current(), m.becomeAnonymous(ctx, "token_missing")
		}
		return m.Current(), nil
	}

	m.api.SetToken(token)
	user, err := m.api.Me(ctx)
	if refreshable(err) {
		token, user, err = m.tryRefresh(ctx)
	}
	switch {
	case rejected(err):
		m.logg.Info(m.logg.WithField(ctx, "reason", string(pkgerrors.As(err).Code())), "session.token_rejected")
		if stateErr := m.becomeAnonymous(ctx, "token_rejected"); stateErr != nil {
			return m.Current(), stateErr
		}
		return m.Current(), nil
	case err != nil:
		if !m.Authenticated() {
			m.api.SetToken("")
		}
		return m.Current(), err
	}

	prev := m.Current()
	m.set(Snapshot{State: Authenticated, User: user}, token)
	if prev.State != Authenticated || prev.User == nil || prev.User.ID != user.ID {
		m.logg.Info(m.userCtx(ctx, user), "session.restored")
		m.bus.Publish(events.SessionChanged, Source)
	}
	return m.Current(), nil
}

func (m *Manager) tryRefresh(ctx context.Context) (string, *apiclient.User, error) {
	refreshToken, err := m.readKey(ctx, RefreshTokenKey)
	if err != nil {
		return "", nil, err
	}
	if refreshToken == "" {
		return "", nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
	}
	tokens, err := m.api.Refresh(ctx, refreshToken)
	if err != nil {
		return "", nil, err
	}
	if err := m.persistTokens(ctx, tokens.Token, tokens.RefreshToken); err != nil {
		return "", nil, err
	}
	m.api.SetToken(tokens.Token)
	user, err := m.api.Me(ctx)
	if err != nil {
		return "", nil, err
	}
	m.logg.Debug(ctx, "session.refreshed")
	return tokens.Token, user, nil
}

func (m *Manager) becomeAnonymous(ctx context.Context, reason string) error {
	wasAuthenticated := m.Authenticated()
	m.api.SetToken("")
	m.set(Snapshot{State: Anonymous}, "")

	err := multierr.Combine(
		m.store.Delete(ctx, TokenKey),
		m.store.Delete(ctx, RefreshTokenKey),
	)
	if wasAuthenticated {
		m.logg.Info(m.logg.WithField(ctx, "reason", reason), "session.anonymous")
		m.bus.Publish(events.SessionChanged, Source)
	}
	return err
}

func (m *Manager) persistTokens(ctx context.Context, token, refreshToken string) error {
	if err := m.store.Set(ctx, TokenKey, []byte(token)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist token")
	}
	if refreshToken == "" {
		return m.store.Delete(ctx, RefreshTokenKey)
	}
	if err := m.store.Set(ctx, RefreshTokenKey, []byte(refreshToken)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist refresh token")
	}
	return nil
}

func (m *Manager) readKey(ctx context.Context, key string) (string, error) {
	raw, ok, err := m.store.Get(ctx, key)
	if err != nil || !ok {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (m *Manager) set(s Snapshot, token string) {
	m.mu.Lock()
	m.current = s
	m.token = token
	m.mu.Unlock()
}

func (m *Manager) userCtx(ctx context.Context, user *apiclient.User) context.Context {
	if user == nil {
		return ctx
	}
	return m.logg.WithUserID(ctx, user.ID)
}

// refreshable reports whether a refresh token may still recover the session.
func refreshable(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) || pkgerrors.IsCode(err, pkgerrors.CodeExpired)
}

// rejected reports whether the server refused the credentials. A disabled
// account answers forbidden and is not worth a refresh.
func rejected(err error) bool {
	return refreshable(err) || pkgerrors.IsCode(err, pkgerrors.CodeForbidden)
}
