// Package guest keeps the cart and wishlist of a visitor who has not signed
// in. Entries live in local storage so they survive restarts and are drained
// into the account by the migration routine after login.
package guest

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Storage keys.
const (
	CartKey       = "localCart"
	LegacyCartKey = "guestCart"
	WishlistKey   = "localWishlist"
)

// Source tags events published by the guest stores.
const Source = "guest"

// normalizeID is applied to every product id entering a store operation so
// that an id accepted by an add is matched by the later remove.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

// ProductSnapshot is the denormalized product copy kept on each entry so the
// cart can be rendered without a network round trip.
type ProductSnapshot struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image,omitempty"`
}

// CartEntry is one guest cart line.
type CartEntry struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Product   ProductSnapshot `json:"product"`
}

// LineTotal is price times quantity.
func (e CartEntry) LineTotal() decimal.Decimal {
	return e.Product.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// WishlistEntry is one liked product. Entries are unique by ProductID.
type WishlistEntry struct {
	ProductID string          `json:"productId"`
	Product   ProductSnapshot `json:"product"`
}

// Subtotal sums the line totals of entries.
func Subtotal(entries []CartEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.LineTotal())
	}
	return total
}
