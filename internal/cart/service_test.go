package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	product "github.com/liminara/storefront/internal/products"
	"github.com/liminara/storefront/pkg/db/dbtest"
	"github.com/liminara/storefront/pkg/db/models"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/metrics"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*CartDTO
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[uuid.UUID]*CartDTO{}}
}

func (m *memoryCache) Get(_ context.Context, userID uuid.UUID) (*CartDTO, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.entries[userID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return cart, nil
}

func (m *memoryCache) Set(_ context.Context, userID uuid.UUID, cart *CartDTO) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = cart
	return nil
}

func (m *memoryCache) Delete(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	m.deletes++
	return nil
}

type fixture struct {
	svc   Service
	cache *memoryCache
	user  *models.User
	lamp  *models.Product
	rug   *models.Product
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	cache := newMemoryCache()
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Products: product.NewRepository(conn),
		Cache:    cache,
		Metrics:  metrics.NewStorefront(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return fixture{
		svc:   svc,
		cache: cache,
		user:  dbtest.MustCreateUser(t, conn),
		lamp:  dbtest.MustCreateProduct(t, conn, "Lamp", 2599),
		rug:   dbtest.MustCreateProduct(t, conn, "Rug", 8900),
	}
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, created, err := f.svc.AddItem(ctx, f.user.ID, f.lamp.ID, 1)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 1, item.Quantity)
	require.True(t, item.Product.Price.Equal(decimal.RequireFromString("25.99")))

	item, created, err = f.svc.AddItem(ctx, f.user.ID, f.lamp.ID, 2)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 3, item.Quantity)
	require.True(t, item.LineTotal.Equal(decimal.RequireFromString("77.97")))
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.AddItem(ctx, f.user.ID, f.lamp.ID, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, _, err = f.svc.AddItem(ctx, f.user.ID, f.lamp.ID, MaxQuantity+1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, _, err = f.svc.AddItem(ctx, uuid.Nil, f.lamp.ID, 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, _, err = f.svc.AddItem(ctx, f.user.ID, uuid.New(), 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetCartReadsThroughCacheAndInvalidatesOnWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.AddItem(ctx, f.user.ID, f.lamp.ID, 2)
	require.NoError(t, err)
	_, _, err = f.svc.AddItem(ctx, f.user.ID, f.rug.ID, 1)
	require.NoError(t, err)

	cart, err := f.svc.GetCart(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	require.Equal(t, 3, cart.ItemCount)
	require.True(t, cart.Subtotal.Equal(decimal.RequireFromString("140.98")))

	cached, err := f.cache.Get(ctx, f.user.ID)
	require.NoError(t, err)
	require.Same(t, cart, cached)

	deletesBefore := f.cache.deletes
	require.NoError(t, f.svc.RemoveItem(ctx, f.user.ID, cart.Items[1].ID))
	require.Equal(t, deletesBefore+1, f.cache.deletes)

	_, err = f.cache.Get(ctx, f.user.ID)
	require.ErrorIs(t, err, ErrCacheMiss)

	cart, err = f.svc.GetCart(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, f.lamp.ID, cart.Items[0].ProductID)
}

func TestSetQuantityOverwritesOrRemoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, _, err := f.svc.AddItem(ctx, f.user.ID, f.lamp.ID, 1)
	require.NoError(t, err)

	updated, err := f.svc.SetQuantity(ctx, f.user.ID, item.ID, 5)
	require.NoError(t, err)
	require.Equal(t, 5, updated.Quantity)

	removed, err := f.svc.SetQuantity(ctx, f.user.ID, item.ID, 0)
	require.NoError(t, err)
	require.Nil(t, removed)

	_, err = f.svc.SetQuantity(ctx, f.user.ID, item.ID, 2)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = f.svc.RemoveItem(ctx, f.user.ID, item.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetCartEmpty(t *testing.T) {
	f := newFixture(t)

	cart, err := f.svc.GetCart(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
	require.Zero(t, cart.ItemCount)
	require.True(t, cart.Subtotal.IsZero())
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

// listGate blocks the first ListByUser call until released.
type listGate struct {
	*Repository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *listGate) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	items, err := g.Repository.ListByUser(ctx, userID)
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return items, err
}

func TestGetCartDoesNotCacheListingOverlappingWrite(t *testing.T) {
	conn := dbtest.Open(t)
	cache := newMemoryCache()
	gate := &listGate{
		Repository: NewRepository(conn),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	svc, err := NewService(ServiceParams{
		Repo:     gate,
		Products: product.NewRepository(conn),
		Cache:    cache,
	})
	require.NoError(t, err)
	user := dbtest.MustCreateUser(t, conn)
	lamp := dbtest.MustCreateProduct(t, conn, "Lamp", 2599)
	ctx := context.Background()

	done := make(chan *CartDTO, 1)
	go func() {
		cart, err := svc.GetCart(ctx, user.ID)
		if err != nil {
			done <- nil
			return
		}
		done <- cart
	}()

	<-gate.entered
	_, _, err = svc.AddItem(ctx, user.ID, lamp.ID, 1)
	require.NoError(t, err)
	close(gate.release)

	stale := <-done
	require.NotNil(t, stale)
	require.Empty(t, stale.Items)

	_, err = cache.Get(ctx, user.ID)
	require.ErrorIs(t, err, ErrCacheMiss)

	cart, err := svc.GetCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, lamp.ID, cart.Items[0].ProductID)
}
