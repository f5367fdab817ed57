// Package checkout records what the shopper is about to pay for: the whole
// cart or a single buy-now item. Payment itself happens elsewhere.
package checkout

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/liminara/storefront/internal/storefront/guest"
	"github.com/liminara/storefront/internal/storefront/localstore"
	"github.com/liminara/storefront/pkg/enums"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/logger"
)

// Storage keys.
const (
	TypeKey   = "checkoutType"
	BuyNowKey = "buyNowItem"
	maxBuyNow = guest.MaxQuantity
)

// BuyNowItem is the single product checked out directly from its page.
type BuyNowItem struct {
	ProductID string                `json:"productId"`
	Quantity  int                   `json:"quantity"`
	Product   guest.ProductSnapshot `json:"product"`
}

// Pending describes a checkout in progress. Item is set only for a buy-now
// checkout.
type Pending struct {
	Type enums.CheckoutType
	Item *BuyNowItem
}

// Handoff reads and writes the checkout keys.
type Handoff struct {
	store localstore.Storage
	logg  *logger.Logger
}

// New builds a hand-off over store.
func New(store localstore.Storage, logg *logger.Logger) *Handoff {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Handoff{store: store, logg: logg}
}

// StartCartCheckout marks the whole cart for checkout and drops any pending
// buy-now item.
func (h *Handoff) StartCartCheckout(ctx context.Context) error {
	if err := h.store.Set(ctx, TypeKey, []byte(enums.CheckoutTypeCart)); err != nil {
		return err
	}
	return h.store.Delete(ctx, BuyNowKey)
}

// StartBuyNow marks a single product for checkout, bypassing the cart.
func (h *Handoff) StartBuyNow(ctx context.Context, product guest.ProductSnapshot, qty int) error {
	if strings.TrimSpace(product.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty < 1 || qty > maxBuyNow {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be between 1 and %d", maxBuyNow)
	}
	raw, err := json.Marshal(BuyNowItem{ProductID: product.ID, Quantity: qty, Product: product})
	if err != nil {
		return err
	}
	if err := h.store.Set(ctx, BuyNowKey, raw); err != nil {
		return err
	}
	return h.store.Set(ctx, TypeKey, []byte(enums.CheckoutTypeBuyNow))
}

// Pending returns the checkout in progress, or nil. Unknown types and a
// buy-now checkout without a readable item both read as nothing pending.
func (h *Handoff) Pending(ctx context.Context) (*Pending, error) {
	rawType, ok, err := h.store.Get(ctx, TypeKey)
	if err != nil || !ok {
		return nil, err
	}
	kind := enums.CheckoutType(strings.TrimSpace(string(rawType)))
	if !kind.IsValid() {
		return nil, nil
	}
	switch kind {
	case enums.CheckoutTypeCart:
		return &Pending{Type: kind}, nil
	case enums.CheckoutTypeBuyNow:
		rawItem, ok, err := h.store.Get(ctx, BuyNowKey)
		if err != nil || !ok {
			return nil, err
		}
		var item BuyNowItem
		if err := json.Unmarshal(rawItem, &item); err != nil || item.ProductID == "" || item.Quantity < 1 {
			h.logg.Warn(ctx, "checkout.buy_now.malformed")
			return nil, nil
		}
		return &Pending{Type: kind, Item: &item}, nil
	}
	return nil, nil
}

// Clear forgets the checkout in progress.
func (h *Handoff) Clear(ctx context.Context) error {
	if err := h.store.Delete(ctx, TypeKey); err != nil {
		return err
	}
	return h.store.Delete(ctx, BuyNowKey)
}
