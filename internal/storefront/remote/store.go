// Package remote caches the signed-in user's server cart and wishlist. Reads
// are refused without a session, so the server is never queried for an
// anonymous visitor. The cache is dropped on any change signal.
package remote

import (
	"context"
	"errors"
	"sync"

	"github.com/liminara/storefront/internal/storefront/apiclient"
	"github.com/liminara/storefront/internal/storefront/events"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/logger"
)

// Source tags events published after remote mutations.
const Source = "remote"

// maxWishlistPages bounds how far Wishlist follows cursors. Stopping with a
// cursor still pending is logged as a truncation.
const maxWishlistPages = 20

// ErrNotAuthenticated is returned by every read or write without a session.
var ErrNotAuthenticated = pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to use your account cart")

// API is the server surface the store reads and writes.
type API interface {
	Cart(ctx context.Context) (*apiclient.Cart, error)
	AddCartItem(ctx context.Context, item apiclient.AddCartItem, idempotencyKey string) (*apiclient.AddedCartItem, error)
	SetCartQuantity(ctx context.Context, itemID string, quantity int) (*apiclient.CartItem, error)
	RemoveCartItem(ctx context.Context, itemID string) error
	Wishlist(ctx context.Context, page apiclient.PageRequest) (*apiclient.Page[apiclient.WishlistItem], error)
	AddWishlistItem(ctx context.Context, productID, idempotencyKey string) (*apiclient.WishlistItem, error)
	RemoveWishlistItem(ctx context.Context, productID string) error
}

// Gate reports whether a session is active and which token it holds.
type Gate interface {
	Authenticated() bool
	Token() string
}

// Params groups the store dependencies. Bus and Logger are optional.
type Params struct {
	API    API
	Gate   Gate
	Bus    *events.Bus
	Logger *logger.Logger
}

// Store is safe for concurrent use.
type Store struct {
	api  API
	gate Gate
	bus  *events.Bus
	logg *logger.Logger

	mu       sync.Mutex
	owner    string
	cart     *apiclient.Cart
	wishlist []apiclient.WishlistItem
	loaded   bool

	stateMu sync.Mutex
	sub     *events.Subscription
	doneCh  chan struct{}
}

// New builds a store.
func New(p Params) (*Store, error) {
	if p.API == nil {
		return nil, errors.New("remote: api is required")
	}
	if p.Gate == nil {
		return nil, errors.New("remote: session gate is required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{api: p.API, gate: p.Gate, bus: p.Bus, logg: logg}, nil
}

// Start invalidates the cache whenever a cart, wishlist or session signal is
// published. It is a no-op without a bus or when already started.
func (s *Store) Start(ctx context.Context) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.bus == nil || s.sub != nil {
		return
	}
	s.sub = s.bus.Subscribe(events.CartChanged, events.WishlistChanged, events.SessionChanged)
	s.doneCh = make(chan struct{})
	go s.listen(ctx, s.sub, s.doneCh)
}

// Stop ends the listener started by Start.
func (s *Store) Stop() {
	s.stateMu.Lock()
	sub, done := s.sub, s.doneCh
	s.sub, s.doneCh = nil, nil
	s.stateMu.Unlock()

	if sub == nil {
		return
	}
	sub.Unsubscribe()
	<-done
}

func (s *Store) listen(ctx context.Context, sub *events.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			s.invalidate(evt.Topic)
		}
	}
}

func (s *Store) invalidate(topic events.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch topic {
	case events.CartChanged:
		s.cart = nil
	case events.WishlistChanged:
		s.wishlist, s.loaded = nil, false
	default:
		s.cart = nil
		s.wishlist, s.loaded = nil, false
	}
}

// Cart returns the cached server cart, fetching it when needed.
func (s *Store) Cart(ctx context.Context) (*apiclient.Cart, error) {
	if !s.gate.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownedByLocked(s.gate.Token())
	if s.cart != nil {
		return s.cart, nil
	}
	cart, err := s.api.Cart(ctx)
	if err != nil {
		return nil, err
	}
	s.cart = cart
	return cart, nil
}

// Wishlist returns every server wishlist entry, following cursors.
func (s *Store) Wishlist(ctx context.Context) ([]apiclient.WishlistItem, error) {
	if !s.gate.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownedByLocked(s.gate.Token())
	if s.loaded {
		return s.wishlist, nil
	}

	var items []apiclient.WishlistItem
	cursor := ""
	for pages := 0; ; pages++ {
		if pages == maxWishlistPages {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"pages": pages,
				"items": len(items),
			}), "remote.wishlist.truncated")
			break
		}
		page, err := s.api.Wishlist(ctx, apiclient.PageRequest{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	s.wishlist, s.loaded = items, true
	return items, nil
}

// ownedByLocked drops everything cached for a different session.
func (s *Store) ownedByLocked(token string) {
	if s.owner == token {
		return
	}
	s.owner = token
	s.cart = nil
	s.wishlist, s.loaded = nil, false
}

// AddToCart adds qty units of the product to the server cart.
func (s *Store) AddToCart(ctx context.Context, productID string, qty int) (*apiclient.CartItem, error) {
	if !s.gate.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	added, err := s.api.AddCartItem(ctx, apiclient.AddCartItem{ProductID: productID, Quantity: qty}, "")
	if err != nil {
		return nil, err
	}
	s.changed(events.CartChanged)
	return &added.Item, nil
}

// SetQuantity changes the quantity of the product's line. Zero removes it.
func (s *Store) SetQuantity(ctx context.Context, productID string, qty int) error {
	itemID, err := s.cartItemID(ctx, productID)
	if err != nil {
		return err
	}
	if _, err := s.api.SetCartQuantity(ctx, itemID, qty); err != nil {
		return err
	}
	s.changed(events.CartChanged)
	return nil
}

// RemoveFromCart deletes the product's line.
func (s *Store) RemoveFromCart(ctx context.Context, productID string) error {
	itemID, err := s.cartItemID(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.api.RemoveCartItem(ctx, itemID); err != nil {
		return err
	}
	s.changed(events.CartChanged)
	return nil
}

// AddToWishlist likes a product.
func (s *Store) AddToWishlist(ctx context.Context, productID string) error {
	if !s.gate.Authenticated() {
		return ErrNotAuthenticated
	}
	if _, err := s.api.AddWishlistItem(ctx, productID, ""); err != nil {
		return err
	}
	s.changed(events.WishlistChanged)
	return nil
}

// RemoveFromWishlist unlikes a product.
func (s *Store) RemoveFromWishlist(ctx context.Context, productID string) error {
	if !s.gate.Authenticated() {
		return ErrNotAuthenticated
	}
	if err := s.api.RemoveWishlistItem(ctx, productID); err != nil {
		return err
	}
	s.changed(events.WishlistChanged)
	return nil
}

func (s *Store) cartItemID(ctx context.Context, productID string) (string, error) {
	cart, err := s.Cart(ctx)
	if err != nil {
		return "", err
	}
	for _, item := range cart.Items {
		if item.ProductID == productID || item.ID == productID {
			return item.ID, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
}

// changed drops the cache synchronously and tells other listeners.
func (s *Store) changed(topic events.Topic) {
	s.invalidate(topic)
	s.bus.Publish(topic, Source)
}
