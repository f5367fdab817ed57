package guest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/liminara/storefront/internal/storefront/events"
	"github.com/liminara/storefront/internal/storefront/localstore"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/logger"
)

// MaxQuantity caps a single guest line, matching the server limit.
const MaxQuantity = 999

// Cart is the guest cart. Read-modify-write cycles are serialized within the
// process; other processes sharing the storage are last-writer-wins.
type Cart struct {
	mu    sync.Mutex
	store localstore.Storage
	bus   *events.Bus
	logg  *logger.Logger
	newID func() string
}

// NewCart builds a guest cart over store. bus and logg may be nil.
func NewCart(store localstore.Storage, bus *events.Bus, logg *logger.Logger) *Cart {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Cart{store: store, bus: bus, logg: logg, newID: uuid.NewString}
}

// AddItem adds one unit of the product, incrementing an existing line.
func (c *Cart) AddItem(ctx context.Context, productID string, product ProductSnapshot) error {
	return c.AddItemQuantity(ctx, productID, product, 1)
}

// AddItemQuantity adds qty units of the product. An existing line keeps its
// id and position and has its quantity increased; its snapshot is refreshed.
func (c *Cart) AddItemQuantity(ctx context.Context, productID string, product ProductSnapshot, qty int) error {
	productID = normalizeID(productID)
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if product.ID == "" {
		product.ID = productID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.readLocked(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range entries {
		if entries[i].ProductID == productID {
			entries[i].Quantity = min(entries[i].Quantity+qty, MaxQuantity)
			entries[i].Product = product
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, CartEntry{
			ID:        c.newID(),
			ProductID: productID,
			Quantity:  min(qty, MaxQuantity),
			Product:   product,
		})
	}
	return c.writeLocked(ctx, entries)
}

// SetQuantity replaces the quantity of an existing line. qty <= 0 removes
// the line. Unknown products are ignored.
func (c *Cart) SetQuantity(ctx context.Context, productID string, qty int) error {
	productID = normalizeID(productID)
	if qty <= 0 {
		return c.RemoveItem(ctx, productID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.readLocked(ctx)
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].ProductID == productID {
			if entries[i].Quantity == min(qty, MaxQuantity) {
				return nil
			}
			entries[i].Quantity = min(qty, MaxQuantity)
			return c.writeLocked(ctx, entries)
		}
	}
	return nil
}

// RemoveItem drops the product's line. Removing an absent product is a no-op.
func (c *Cart) RemoveItem(ctx context.Context, productID string) error {
	productID = normalizeID(productID)
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.readLocked(ctx)
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
	return c.writeLocked(ctx, kept)
}

// ReadAll returns the lines in insertion order. Missing or malformed storage
// reads as an empty cart.
func (c *Cart) ReadAll(ctx context.Context) ([]CartEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readLocked(ctx)
}

// Count is the total number of units, as shown on a cart badge.
func (c *Cart) Count(ctx context.Context) (int, error) {
	entries, err := c.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, e := range entries {
		total += e.Quantity
	}
	return total, nil
}

// Clear removes the cart, including any legacy copy.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, CartKey); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, LegacyCartKey); err != nil {
		return err
	}
	c.bus.Publish(events.CartChanged, Source)
	return nil
}

func (c *Cart) readLocked(ctx context.Context) ([]CartEntry, error) {
	raw, present, err := loadList[CartEntry](ctx, c.store, c.logg, CartKey)
	if err != nil {
		return nil, err
	}
	if !present {
		raw, _, err = loadList[CartEntry](ctx, c.store, c.logg, LegacyCartKey)
		if err != nil {
			return nil, err
		}
	}
	return normalizeCart(raw), nil
}

func (c *Cart) writeLocked(ctx context.Context, entries []CartEntry) error {
	if err := saveList(ctx, c.store, CartKey, entries); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, LegacyCartKey); err != nil {
		return err
	}
	c.logg.Debug(c.logg.WithField(ctx, "entries", len(entries)), "guest.cart.saved")
	c.bus.Publish(events.CartChanged, Source)
	return nil
}

// normalizeCart drops lines without a product, merges duplicate products,
// clamps quantities and gives id-less legacy lines a stable id.
func normalizeCart(raw []CartEntry) []CartEntry {
	out := make([]CartEntry, 0, len(raw))
	index := make(map[string]int, len(raw))
	for _, e := range raw {
		e.ProductID = normalizeID(e.ProductID)
		if e.ProductID == "" {
			continue
		}
		if e.Quantity < 1 {
			e.Quantity = 1
		}
		if e.ID == "" {
			e.ID = "legacy-" + e.ProductID
		}
		if i, ok := index[e.ProductID]; ok {
			out[i].Quantity = min(out[i].Quantity+e.Quantity, MaxQuantity)
			continue
		}
		e.Quantity = min(e.Quantity, MaxQuantity)
		index[e.ProductID] = len(out)
		out = append(out, e)
	}
	return out
}
