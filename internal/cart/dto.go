package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	product "github.com/liminara/storefront/internal/products"
	"github.com/liminara/storefront/pkg/db/models"
)

// ItemDTO is one cart line as returned by the API.
type ItemDTO struct {
	ID        uuid.UUID        `json:"id"`
	ProductID uuid.UUID        `json:"productId"`
	Quantity  int              `json:"quantity"`
	Product   product.Snapshot `json:"product"`
	LineTotal decimal.Decimal  `json:"lineTotal"`
}

// CartDTO is the full cart listing.
type CartDTO struct {
	Items     []ItemDTO       `json:"items"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func newItemDTO(item *models.CartItem) ItemDTO {
	snap := product.NewSnapshot(item.Product)
	return ItemDTO{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Product:   snap,
		LineTotal: snap.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
	}
}

func newCartDTO(items []models.CartItem) *CartDTO {
	dto := &CartDTO{Items: make([]ItemDTO, 0, len(items)), Subtotal: decimal.Zero}
	for i := range items {
		line := newItemDTO(&items[i])
		dto.Items = append(dto.Items, line)
		dto.ItemCount += line.Quantity
		dto.Subtotal = dto.Subtotal.Add(line.LineTotal)
	}
	return dto
}
