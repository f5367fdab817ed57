package cart

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	product "github.com/liminara/storefront/internal/products"
	"github.com/liminara/storefront/pkg/db/models"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/logger"
	"github.com/liminara/storefront/pkg/metrics"
)

type cartRepository interface {
	AddQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.CartItem, bool, error)
	FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.CartItem, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	UpdateQuantity(ctx context.Context, id, userID uuid.UUID, qty int) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) (int64, error)
}

type productLoader interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes the authenticated cart operations.
type Service interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*ItemDTO, bool, error)
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	SetQuantity(ctx context.Context, userID, itemID uuid.UUID, qty int) (*ItemDTO, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
}

// ServiceParams groups dependencies for the cart service.
type ServiceParams struct {
	Repo     cartRepository
	Products productLoader
	Cache    Cache
	Logger   *logger.Logger
	Metrics  *metrics.Storefront
}

type service struct {
	repo     cartRepository
	products productLoader
	cache    Cache
	logg     *logger.Logger
	metrics  *metrics.Storefront
	sfg      singleflight.Group

	// genMu guards gens and is held across a cache fill, so a write that
	// commits after the fill's read either bumps first (the fill is skipped)
	// or invalidates after the fill lands.
	genMu sync.Mutex
	gens  [generationStripes]uint64
}

// Users share a stripe by uuid hash. A collision only skips a cache fill.
const generationStripes = 256

// NewService builds a cart service. Cache, Logger and Metrics are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repository is required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product loader is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		cache:    params.Cache,
		logg:     logg,
		metrics:  params.Metrics,
	}, nil
}

// AddItem creates the line or increments it by qty. The bool is true when a
// new line was created.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*ItemDTO, bool, error) {
	if userID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if productID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty < 1 || qty > MaxQuantity {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be between 1 and 999")
	}
	if _, err := s.products.FindActiveByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	item, created, err := s.repo.AddQuantity(ctx, userID, productID, qty)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
	}
	s.invalidate(ctx, userID)
	s.metrics.IncCartWrite("add")

	dto := newItemDTO(item)
	return &dto, created, nil
}

// GetCart reads through the cache. Concurrent misses for one user share a
// single database read.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			s.metrics.IncCartCache(true)
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart.cache_get_failed")
		}
		s.metrics.IncCartCache(false)
	}

	v, err, _ := s.sfg.Do(userID.String(), func() (any, error) {
		gen := s.generation(userID)
		items, err := s.repo.ListByUser(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
		}
		cart := newCartDTO(items)
		s.fill(ctx, userID, gen, cart)
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CartDTO), nil
}

// SetQuantity overwrites a line's quantity. A quantity of zero or less
// removes the line and returns a nil item.
func (s *service) SetQuantity(ctx context.Context, userID, itemID uuid.UUID, qty int) (*ItemDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if qty <= 0 {
		return nil, s.RemoveItem(ctx, userID, itemID)
	}
	if qty > MaxQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at most 999")
	}

	affected, err := s.repo.UpdateQuantity(ctx, itemID, userID, qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	s.invalidate(ctx, userID)
	s.metrics.IncCartWrite("set")

	item, err := s.repo.FindByIDAndUser(ctx, itemID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart item")
	}
	dto := newItemDTO(item)
	return &dto, nil
}

// RemoveItem deletes a line. Removing a missing line reports not found.
func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	affected, err := s.repo.Delete(ctx, itemID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	s.invalidate(ctx, userID)
	s.metrics.IncCartWrite("remove")
	return nil
}

func genIndex(userID uuid.UUID) int {
	return int(binary.BigEndian.Uint64(userID[8:]) % generationStripes)
}

func (s *service) generation(userID uuid.UUID) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[genIndex(userID)]
}

// fill caches cart only when no write for the user committed since gen was
// read.
func (s *service) fill(ctx context.Context, userID uuid.UUID, gen uint64, cart *CartDTO) {
	if s.cache == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[genIndex(userID)] != gen {
		s.logg.Debug(s.logg.WithField(ctx, "user_id", userID.String()), "cart.cache_fill_skipped")
		return
	}
	if err := s.cache.Set(context.WithoutCancel(ctx), userID, cart); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart.cache_set_failed")
	}
}

func (s *service) invalidate(ctx context.Context, userID uuid.UUID) {
	s.genMu.Lock()
	s.gens[genIndex(userID)]++
	s.genMu.Unlock()
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), userID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart.cache_invalidate_failed")
	}
}

var _ productLoader = (*product.Repository)(nil)
var _ cartRepository = (*Repository)(nil)
