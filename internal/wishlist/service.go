package wishlist

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	product "github.com/liminara/storefront/internal/products"
	"github.com/liminara/storefront/pkg/db/models"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/metrics"
	"github.com/liminara/storefront/pkg/pagination"
)

type wishlistRepository interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	ListItems(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.WishlistItem], error)
}

type productLoader interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	WishlistRepo wishlistRepository
	ProductRepo  productLoader
	Metrics      *metrics.Storefront
}

// Service exposes business rules for wishlist management.
type Service interface {
	GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[ItemDTO], error)
	AddItem(ctx context.Context, userID, productID uuid.UUID) (*ItemDTO, bool, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
}

type service struct {
	wishlistRepo wishlistRepository
	productRepo  productLoader
	metrics      *metrics.Storefront
}

// NewService builds a wishlist service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.WishlistRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist repo is required")
	}
	if params.ProductRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product repo is required")
	}
	return &service{
		wishlistRepo: params.WishlistRepo,
		productRepo:  params.ProductRepo,
		metrics:      params.Metrics,
	}, nil
}

// GetWishlist returns the paginated wishlist for a user.
func (s *service) GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[ItemDTO], error) {
	if userID == uuid.Nil {
		return pagination.Page[ItemDTO]{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[ItemDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.wishlistRepo.ListItems(ctx, userID, params)
	if err != nil {
		return pagination.Page[ItemDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist")
	}
	items := make([]ItemDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, newItemDTO(&page.Items[i]))
	}
	return pagination.Page[ItemDTO]{Items: items, NextCursor: page.NextCursor}, nil
}

// AddItem ensures the product exists and adds it to the wishlist. Adding a
// product twice succeeds and reports created=false.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID) (*ItemDTO, bool, error) {
	if userID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if productID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	p, err := s.productRepo.FindActiveByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	created, err := s.wishlistRepo.AddItem(ctx, userID, productID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add wishlist item")
	}
	if created {
		s.metrics.IncWishlistWrite("add")
	}
	return &ItemDTO{ProductID: p.ID, Product: product.NewSnapshot(p)}, created, nil
}

// RemoveItem drops the wishlist entry regardless of prior state.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	removed, err := s.wishlistRepo.RemoveItem(ctx, userID, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove wishlist item")
	}
	if removed {
		s.metrics.IncWishlistWrite("remove")
	}
	return nil
}
