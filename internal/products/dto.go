package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/liminara/storefront/pkg/db/models"
)

// ProductDTO is the catalog payload returned to shoppers. Price is the
// decimal rendering of PriceCents so clients can build snapshots without
// doing their own currency math.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	PriceCents  int             `json:"priceCents"`
	Price       decimal.Decimal `json:"price"`
	Image       *string         `json:"image,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	return &ProductDTO{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Price:       PriceFromCents(p.PriceCents),
		Image:       p.ImageURL,
		CreatedAt:   p.CreatedAt,
	}
}

// PriceFromCents converts integer cents into a two-place decimal amount.
func PriceFromCents(cents int) decimal.Decimal {
	return decimal.New(int64(cents), -2)
}

// Snapshot is the denormalized product copy carried on cart and wishlist
// rows so clients can render them without a second lookup.
type Snapshot struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image *string         `json:"image,omitempty"`
}

// NewSnapshot builds a snapshot from the persisted model. A missing product
// yields the zero snapshot.
func NewSnapshot(p *models.Product) Snapshot {
	if p == nil {
		return Snapshot{}
	}
	return Snapshot{
		ID:    p.ID,
		Name:  p.Name,
		Price: PriceFromCents(p.PriceCents),
		Image: p.ImageURL,
	}
}
