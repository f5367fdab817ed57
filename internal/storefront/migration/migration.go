// Package migration drains the guest cart and wishlist into the signed-in
// account. Entries are replayed one at a time in insertion order; a store is
// cleared only when every one of its entries was accepted.
package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/liminara/storefront/internal/storefront/apiclient"
	"github.com/liminara/storefront/internal/storefront/events"
	"github.com/liminara/storefront/internal/storefront/guest"
	"github.com/liminara/storefront/pkg/logger"
)

// Source tags events published after a migration.
const Source = "migration"

// API is the authenticated surface the routine replays into.
type API interface {
	AddCartItem(ctx context.Context, item apiclient.AddCartItem, idempotencyKey string) (*apiclient.AddedCartItem, error)
	AddWishlistItem(ctx context.Context, productID, idempotencyKey string) (*apiclient.WishlistItem, error)
}

// CartSource is the guest cart being drained.
type CartSource interface {
	ReadAll(ctx context.Context) ([]guest.CartEntry, error)
	Clear(ctx context.Context) error
}

// WishlistSource is the guest wishlist being drained.
type WishlistSource interface {
	ReadAll(ctx context.Context) ([]guest.WishlistEntry, error)
	Clear(ctx context.Context) error
}

// Params groups the routine's dependencies. Wishlist, Bus and Logger are
// optional.
type Params struct {
	API      API
	Cart     CartSource
	Wishlist WishlistSource
	Bus      *events.Bus
	Logger   *logger.Logger
	// ItemTimeout bounds each replayed request. Zero applies no extra bound.
	ItemTimeout time.Duration
}

// Outcome reports one store's drain.
type Outcome struct {
	Attempted int
	Succeeded int
	Cleared   bool
	// Err aggregates every failure of the drain.
	Err error
}

// Failed reports whether any entry or the final clear failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Result reports a full run.
type Result struct {
	Cart     Outcome
	Wishlist Outcome
}

// Err combines the failures of both stores.
func (r Result) Err() error {
	return multierr.Combine(r.Cart.Err, r.Wishlist.Err)
}

// Migrator runs the drain. Concurrent calls to Run share a single execution.
type Migrator struct {
	api         API
	cart        CartSource
	wishlist    WishlistSource
	bus         *events.Bus
	logg        *logger.Logger
	itemTimeout time.Duration
	group       singleflight.Group
}

// New validates params and builds a Migrator.
func New(p Params) (*Migrator, error) {
	if p.API == nil {
		return nil, errors.New("migration: api is required")
	}
	if p.Cart == nil {
		return nil, errors.New("migration: guest cart is required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Migrator{
		api:         p.API,
		cart:        p.Cart,
		wishlist:    p.Wishlist,
		bus:         p.Bus,
		logg:        logg,
		itemTimeout: p.ItemTimeout,
	}, nil
}

// Run drains the cart, then the wishlist. Failures never stop the batch; they
// are logged and reported in the result.
func (m *Migrator) Run(ctx context.Context) Result {
	v, _, _ := m.group.Do("run", func() (any, error) {
		runCtx := m.logg.WithComponent(ctx, "migration")
		res := Result{Cart: m.drainCart(runCtx)}
		if m.wishlist != nil {
			res.Wishlist = m.drainWishlist(runCtx)
		}
		m.logg.Info(m.logg.WithFields(runCtx, map[string]any{
			"cart_attempted":     res.Cart.Attempted,
			"cart_succeeded":     res.Cart.Succeeded,
			"cart_cleared":       res.Cart.Cleared,
			"wishlist_attempted": res.Wishlist.Attempted,
			"wishlist_succeeded": res.Wishlist.Succeeded,
			"wishlist_cleared":   res.Wishlist.Cleared,
		}), "migration.complete")
		return res, nil
	})
	return v.(Result)
}

// IdempotencyKey is sent with each cart replay. It changes when the guest
// quantity changes so a later retry of an edited line is a new request.
func IdempotencyKey(entry guest.CartEntry) string {
	return fmt.Sprintf("%s:%d", entry.ID, entry.Quantity)
}

// WishlistIdempotencyKey is sent with each wishlist replay.
func WishlistIdempotencyKey(entry guest.WishlistEntry) string {
	return "wishlist:" + entry.ProductID
}

func (m *Migrator) drainCart(ctx context.Context) (out Outcome) {
	defer m.bus.Publish(events.CartChanged, Source)

	entries, err := m.cart.ReadAll(ctx)
	if err != nil {
		out.Err = fmt.Errorf("read guest cart: %w", err)
		m.logg.Error(ctx, "migration.cart.read_failed", err)
		return out
	}
	if len(entries) == 0 {
		return out
	}

	ok := true
	for _, entry := range entries {
		out.Attempted++
		err := m.withItemTimeout(ctx, func(itemCtx context.Context) error {
			added, err := m.api.AddCartItem(itemCtx, apiclient.AddCartItem{
				ProductID: entry.ProductID,
				Quantity:  entry.Quantity,
			}, IdempotencyKey(entry))
			if err == nil && added.Replayed {
				m.logg.Debug(m.logg.WithField(ctx, "product_id", entry.ProductID), "migration.cart.replayed")
			}
			return err
		})
		if err != nil {
			ok = false
			out.Err = multierr.Append(out.Err, fmt.Errorf("cart item %s: %w", entry.ProductID, err))
			m.logg.Error(m.logg.WithFields(ctx, map[string]any{
				"product_id": entry.ProductID,
				"quantity":   entry.Quantity,
			}), "migration.cart.item_failed", err)
			continue
		}
		out.Succeeded++
	}

	if !ok {
		return out
	}
	if err := m.cart.Clear(ctx); err != nil {
		out.Err = multierr.Append(out.Err, fmt.Errorf("clear guest cart: %w", err))
		m.logg.Error(ctx, "migration.cart.clear_failed", err)
		return out
	}
	out.Cleared = true
	return out
}

func (m *Migrator) drainWishlist(ctx context.Context) (out Outcome) {
	defer m.bus.Publish(events.WishlistChanged, Source)

	entries, err := m.wishlist.ReadAll(ctx)
	if err != nil {
		out.Err = fmt.Errorf("read guest wishlist: %w", err)
		m.logg.Error(ctx, "migration.wishlist.read_failed", err)
		return out
	}
	if len(entries) == 0 {
		return out
	}

	ok := true
	for _, entry := range entries {
		out.Attempted++
		err := m.withItemTimeout(ctx, func(itemCtx context.Context) error {
			_, err := m.api.AddWishlistItem(itemCtx, entry.ProductID, WishlistIdempotencyKey(entry))
			return err
		})
		if err != nil {
			ok = false
			out.Err = multierr.Append(out.Err, fmt.Errorf("wishlist item %s: %w", entry.ProductID, err))
			m.logg.Error(m.logg.WithField(ctx, "product_id", entry.ProductID), "migration.wishlist.item_failed", err)
			continue
		}
		out.Succeeded++
	}

	if !ok {
		return out
	}
	if err := m.wishlist.Clear(ctx); err != nil {
		out.Err = multierr.Append(out.Err, fmt.Errorf("clear guest wishlist: %w", err))
		m.logg.Error(ctx, "migration.wishlist.clear_failed", err)
		return out
	}
	out.Cleared = true
	return out
}

func (m *Migrator) withItemTimeout(ctx context.Context, fn func(context.Context) error) error {
	if m.itemTimeout <= 0 {
		return fn(ctx)
	}
	itemCtx, cancel := context.WithTimeout(ctx, m.itemTimeout)
	defer cancel()
	return fn(itemCtx)
}
