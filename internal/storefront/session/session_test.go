package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/liminara/storefront/internal/storefront/apiclient"
	"github.com/liminara/storefront/internal/storefront/events"
	"github.com/liminara/storefront/internal/storefront/guest"
	"github.com/liminara/storefront/internal/storefront/localstore"
	"github.com/liminara/storefront/internal/storefront/migration"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
)

// stubServer plays the auth and cart endpoints. Tokens listed in valid are
// accepted by Me.
type stubServer struct {
	mu         sync.Mutex
	token      string
	valid      map[string]string
	meErr      error
	refreshErr error
	logouts    int
	cartAdds   []apiclient.AddCartItem
}

func newStubServer() *stubServer {
	return &stubServer{valid: map[string]string{}}
}

func (s *stubServer) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *stubServer) RequestOTP(context.Context, string) (*apiclient.OTPIssued, error) {
	return &apiclient.OTPIssued{Channel: "email", ExpiresIn: 300}, nil
}

func (s *stubServer) VerifyOTP(_ context.Context, identifier, code string) (*apiclient.Login, error) {
	if code != "123456" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid code")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid["tok-"+identifier] = "user-" + identifier
	return &apiclient.Login{
		Token:        "tok-" + identifier,
		RefreshToken: "ref-" + identifier,
		User:         &apiclient.User{ID: "user-" + identifier},
	}, nil
}

func (s *stubServer) Me(context.Context) (*apiclient.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meErr != nil {
		return nil, s.meErr
	}
	if s.token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not signed in")
	}
	id, ok := s.valid[s.token]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	return &apiclient.User{ID: id, Name: "Shopper"}, nil
}

func (s *stubServer) Logout(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logouts++
	delete(s.valid, s.token)
	return nil
}

func (s *stubServer) Refresh(_ context.Context, refreshToken string) (*apiclient.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	s.valid["tok-new"] = "user-refreshed"
	return &apiclient.Tokens{Token: "tok-new", RefreshToken: refreshToken + "-2"}, nil
}

func (s *stubServer) AddCartItem(_ context.Context, item apiclient.AddCartItem, _ string) (*apiclient.AddedCartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.valid[s.token]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	s.cartAdds = append(s.cartAdds, item)
	return &apiclient.AddedCartItem{Created: true}, nil
}

func (s *stubServer) AddWishlistItem(context.Context, string, string) (*apiclient.WishlistItem, error) {
	return &apiclient.WishlistItem{}, nil
}

type harness struct {
	server  *stubServer
	store   *localstore.Memory
	bus     *events.Bus
	cart    *guest.Cart
	manager *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	server := newStubServer()
	store := localstore.NewMemory()
	bus := events.New(32)
	t.Cleanup(bus.Close)
	cart := guest.NewCart(store, bus, nil)
	migrator, err := migration.New(migration.Params{
		API:      server,
		Cart:     cart,
		Wishlist: guest.NewWishlist(store, bus, nil),
		Bus:      bus,
	})
	require.NoError(t, err)
	manager, err := New(Params{API: server, Store: store, Migrator: migrator, Bus: bus})
	require.NoError(t, err)
	return &harness{server: server, store: store, bus: bus, cart: cart, manager: manager}
}

func drainSessionEvents(sub *events.Subscription) int {
	n := 0
	for len(sub.C) > 0 {
		<-sub.C
		n++
	}
	return n
}

func TestGuestToAccountScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.manager.Subscribe()

	p1 := guest.ProductSnapshot{ID: "p1", Name: "Tea", Price: decimal.NewFromInt(4)}
	require.NoError(t, h.cart.AddItem(ctx, "p1", p1))
	require.NoError(t, h.cart.AddItem(ctx, "p1", p1))
	require.False(t, h.manager.Authenticated())

	_, err := h.manager.RequestOTP(ctx, "ana@example.com")
	require.NoError(t, err)

	res, err := h.manager.VerifyOTP(ctx, "ana@example.com", "123456")
	require.NoError(t, err)
	require.Equal(t, Authenticated, res.Session.State)
	require.Equal(t, "user-ana@example.com", res.Session.User.ID)
	require.NoError(t, res.Migration.Err())

	require.Equal(t, []apiclient.AddCartItem{{ProductID: "p1", Quantity: 2}}, h.server.cartAdds)
	left, err := h.cart.ReadAll(ctx)
	require.NoError(t, err)
	require.Empty(t, left)

	stored, ok, err := h.store.Get(ctx, TokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-ana@example.com", string(stored))
	require.Equal(t, 1, drainSessionEvents(sub))

	// Anonymous again: token gone, guest store untouched.
	require.NoError(t, h.cart.AddItem(ctx, "p9", p1))
	require.NoError(t, h.manager.Logout(ctx))
	require.False(t, h.manager.Authenticated())
	require.Empty(t, h.manager.Token())
	require.Equal(t, 1, h.server.logouts)
	_, ok, err = h.store.Get(ctx, TokenKey)
	require.NoError(t, err)
	require.False(t, ok)
	count, err := h.cart.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 1, drainSessionEvents(sub))
}

func TestVerifyFailureStaysAnonymous(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.VerifyOTP(context.Background(), "ana@example.com", "000000")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	require.False(t, h.manager.Authenticated())

	_, err = h.manager.VerifyOTP(context.Background(), "", "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCheckRestoresStoredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.server.valid["tok-saved"] = "user-saved"
	require.NoError(t, h.store.Set(ctx, TokenKey, []byte("tok-saved")))
	sub := h.manager.Subscribe()

	snap, err := h.manager.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, Authenticated, snap.State)
	require.Equal(t, "user-saved", snap.User.ID)
	require.Equal(t, "tok-saved", h.manager.Token())
	require.Equal(t, 1, drainSessionEvents(sub))

	_, err = h.manager.Check(ctx)
	require.NoError(t, err)
	require.Zero(t, drainSessionEvents(sub), "unchanged session should not re-broadcast")
}

func TestCheckRejectedTokenGoesAnonymous(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.manager.VerifyOTP(ctx, "ana@example.com", "123456")
	require.NoError(t, err)

	h.server.mu.Lock()
	h.server.valid = map[string]string{}
	h.server.refreshErr = pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh revoked")
	h.server.mu.Unlock()

	snap, err := h.manager.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, Anonymous, snap.State)
	_, ok, err := h.store.Get(ctx, TokenKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckDisabledAccountGoesAnonymous(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.manager.VerifyOTP(ctx, "ana@example.com", "123456")
	require.NoError(t, err)
	sub := h.manager.Subscribe()

	h.server.mu.Lock()
	h.server.meErr = pkgerrors.New(pkgerrors.CodeForbidden, "account disabled")
	h.server.mu.Unlock()

	snap, err := h.manager.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, Anonymous, snap.State)
	require.Empty(t, h.manager.Token())
	require.Equal(t, 1, drainSessionEvents(sub))
	_, ok, err := h.store.Get(ctx, RefreshTokenKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckRefreshesExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, TokenKey, []byte("tok-expired")))
	require.NoError(t, h.store.Set(ctx, RefreshTokenKey, []byte("ref-1")))

	snap, err := h.manager.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, Authenticated, snap.State)
	require.Equal(t, "user-refreshed", snap.User.ID)
	require.Equal(t, "tok-new", h.manager.Token())

	stored, _, err := h.store.Get(ctx, RefreshTokenKey)
	require.NoError(t, err)
	require.Equal(t, "ref-1-2", string(stored))
}

func TestCheckTransportErrorKeepsState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.manager.VerifyOTP(ctx, "ana@example.com", "123456")
	require.NoError(t, err)

	h.server.mu.Lock()
	h.server.meErr = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp: refused"), "GET /api/auth/me failed")
	h.server.mu.Unlock()

	snap, err := h.manager.Check(ctx)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Equal(t, Authenticated, snap.State)
	require.Equal(t, "tok-ana@example.com", h.manager.Token())
}

func TestCheckWithoutTokenIsAnonymous(t *testing.T) {
	h := newHarness(t)
	snap, err := h.manager.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, Anonymous, snap.State)
}

func TestLogoutWhenAnonymousSkipsServer(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.Logout(context.Background()))
	require.Zero(t, h.server.logouts)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Params{})
	require.Error(t, err)
	_, err = New(Params{API: newStubServer()})
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "anonymous", Anonymous.String())
	require.Equal(t, "authenticated", Authenticated.String())
}
