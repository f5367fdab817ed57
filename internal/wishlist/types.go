package wishlist

import (
	"time"

	"github.com/google/uuid"

	product "github.com/liminara/storefront/internal/products"
	"github.com/liminara/storefront/pkg/db/models"
)

// ItemDTO is one liked product in the wishlist view.
type ItemDTO struct {
	ProductID uuid.UUID        `json:"productId"`
	Product   product.Snapshot `json:"product"`
	AddedAt   time.Time        `json:"addedAt"`
}

func newItemDTO(item *models.WishlistItem) ItemDTO {
	return ItemDTO{
		ProductID: item.ProductID,
		Product:   product.NewSnapshot(item.Product),
		AddedAt:   item.CreatedAt,
	}
}
