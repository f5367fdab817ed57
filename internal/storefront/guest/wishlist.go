package guest

import (
	"context"
	"sync"

	"github.com/liminara/storefront/internal/storefront/events"
	"github.com/liminara/storefront/internal/storefront/localstore"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/logger"
)

// Wishlist is the guest wishlist. Membership is boolean per product.
type Wishlist struct {
	mu    sync.Mutex
	store localstore.Storage
	bus   *events.Bus
	logg  *logger.Logger
}

// NewWishlist builds a guest wishlist over store. bus and logg may be nil.
func NewWishlist(store localstore.Storage, bus *events.Bus, logg *logger.Logger) *Wishlist {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Wishlist{store: store, bus: bus, logg: logg}
}

// AddItem appends the product unless it is already present.
func (w *Wishlist) AddItem(ctx context.Context, productID string, product ProductSnapshot) error {
	productID = normalizeID(productID)
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if product.ID == "" {
		product.ID = productID
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := w.readLocked(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ProductID == productID {
			return nil
		}
	}
	return w.writeLocked(ctx, append(entries, WishlistEntry{ProductID: productID, Product: product}))
}

// RemoveItem drops the product. Removing an absent product is a no-op.
func (w *Wishlist) RemoveItem(ctx context.Context, productID string) error {
	productID = normalizeID(productID)
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := w.readLocked(ctx)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ProductID != productID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return w.writeLocked(ctx, kept)
}

// Contains reports whether the product is on the wishlist.
func (w *Wishlist) Contains(ctx context.Context, productID string) (bool, error) {
	productID = normalizeID(productID)
	entries, err := w.ReadAll(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

// ReadAll returns the entries in insertion order.
func (w *Wishlist) ReadAll(ctx context.Context) ([]WishlistEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.readLocked(ctx)
}

// Count is the number of liked products.
func (w *Wishlist) Count(ctx context.Context) (int, error) {
	entries, err := w.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear empties the wishlist.
func (w *Wishlist) Clear(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.store.Delete(ctx, WishlistKey); err != nil {
		return err
	}
	w.bus.Publish(events.WishlistChanged, Source)
	return nil
}

func (w *Wishlist) readLocked(ctx context.Context) ([]WishlistEntry, error) {
	raw, _, err := loadList[WishlistEntry](ctx, w.store, w.logg, WishlistKey)
	if err != nil {
		return nil, err
	}
	out := make([]WishlistEntry, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, e := range raw {
		e.ProductID = normalizeID(e.ProductID)
		if e.ProductID == "" {
			continue
		}
		if _, dup := seen[e.ProductID]; dup {
			continue
		}
		seen[e.ProductID] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

func (w *Wishlist) writeLocked(ctx context.Context, entries []WishlistEntry) error {
	if err := saveList(ctx, w.store, WishlistKey, entries); err != nil {
		return err
	}
	w.bus.Publish(events.WishlistChanged, Source)
	return nil
}
