// Package storefront assembles the shopper client: local storage, the event
// bus, the API client, the guest stores, the session and the remote cache.
// The App is passed explicitly to whatever drives it; there is no global
// state.
package storefront

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/liminara/storefront/internal/storefront/apiclient"
	"github.com/liminara/storefront/internal/storefront/checkout"
	"github.com/liminara/storefront/internal/storefront/events"
	"github.com/liminara/storefront/internal/storefront/guest"
	"github.com/liminara/storefront/internal/storefront/localstore"
	"github.com/liminara/storefront/internal/storefront/migration"
	"github.com/liminara/storefront/internal/storefront/remote"
	"github.com/liminara/storefront/internal/storefront/session"
	"github.com/liminara/storefront/pkg/config"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/logger"
)

// App owns every client component. Build it with New and release it with
// Close.
type App struct {
	Bus      *events.Bus
	Storage  localstore.Storage
	API      *apiclient.Client
	Cart     *guest.Cart
	Wishlist *guest.Wishlist
	Session  *session.Manager
	Remote   *remote.Store
	Checkout *checkout.Handoff
	Migrator *migration.Migrator

	logg    *logger.Logger
	watcher *localstore.Watcher
}

// Option customizes New, mostly for tests.
type Option func(*options)

type options struct {
	storage    localstore.Storage
	httpClient *http.Client
}

// WithStorage replaces the directory store.
func WithStorage(s localstore.Storage) Option {
	return func(o *options) { o.storage = s }
}

// WithHTTPClient replaces the API client's transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New wires the components and restores any stored session. A session
// check that fails on transport leaves the app anonymous-or-cached and is
// only logged.
func New(ctx context.Context, cfg *config.ClientConfig, logg *logger.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client config is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Bus: events.New(0), logg: logg}

	if o.storage != nil {
		app.Storage = o.storage
	} else {
		dir, err := localstore.OpenDir(cfg.StorageDir)
		if err != nil {
			return nil, err
		}
		app.Storage = dir
		if cfg.WatchStorage {
			watcher, err := localstore.NewWatcher(dir, localstore.WatcherOptions{
				Topics: map[string]events.Topic{
					guest.CartKey:       events.CartChanged,
					guest.LegacyCartKey: events.CartChanged,
					guest.WishlistKey:   events.WishlistChanged,
					session.TokenKey:    events.SessionChanged,
				},
				Bus:    app.Bus,
				Logger: logg,
			})
			if err != nil {
				return nil, err
			}
			if err := watcher.Start(ctx); err != nil {
				watcher.Stop()
				return nil, err
			}
			app.watcher = watcher
		}
	}

	clientOpts := []apiclient.Option{apiclient.WithTimeout(cfg.HTTPTimeout), apiclient.WithLogger(logg)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(o.httpClient))
	}
	api, err := apiclient.New(cfg.APIBaseURL, clientOpts...)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.API = api

	app.Cart = guest.NewCart(app.Storage, app.Bus, logg)
	app.Wishlist = guest.NewWishlist(app.Storage, app.Bus, logg)
	app.Checkout = checkout.New(app.Storage, logg)

	app.Migrator, err = migration.New(migration.Params{
		API:         api,
		Cart:        app.Cart,
		Wishlist:    app.Wishlist,
		Bus:         app.Bus,
		Logger:      logg,
		ItemTimeout: cfg.ItemTimeout,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Session, err = session.New(session.Params{
		API:      api,
		Store:    app.Storage,
		Migrator: app.Migrator,
		Bus:      app.Bus,
		Logger:   logg,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Remote, err = remote.New(remote.Params{API: api, Gate: app.Session, Bus: app.Bus, Logger: logg})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Remote.Start(ctx)

	if _, err := app.Session.Check(ctx); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "storefront.session_check_failed")
	}
	return app, nil
}

// Close stops background listeners and the bus.
func (a *App) Close() {
	if a.Remote != nil {
		a.Remote.Stop()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.Bus.Close()
}

// CartLine is one row of the cart as shown to the shopper, from whichever
// store is active.
type CartLine struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
	LineTotal decimal.Decimal
}

// CartView is the active cart.
type CartView struct {
	Remote   bool
	Lines    []CartLine
	Count    int
	Subtotal decimal.Decimal
}

// Snapshot loads the catalog entry for productID as a guest snapshot.
func (a *App) Snapshot(ctx context.Context, productID string) (guest.ProductSnapshot, error) {
	product, err := a.API.Product(ctx, strings.TrimSpace(productID))
	if err != nil {
		return guest.ProductSnapshot{}, err
	}
	return product.Snapshot(), nil
}

// AddToCart adds qty units to the account cart when signed in, otherwise to
// the guest cart.
func (a *App) AddToCart(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if a.Session.Authenticated() {
		_, err := a.Remote.AddToCart(ctx, productID, qty)
		return err
	}
	snap, err := a.Snapshot(ctx, productID)
	if err != nil {
		return err
	}
	return a.Cart.AddItemQuantity(ctx, snap.ID, snap, qty)
}

// SetCartQuantity changes a line in the active cart. Zero removes it.
func (a *App) SetCartQuantity(ctx context.Context, productID string, qty int) error {
	if a.Session.Authenticated() {
		return a.Remote.SetQuantity(ctx, productID, qty)
	}
	return a.Cart.SetQuantity(ctx, productID, qty)
}

// RemoveFromCart drops a line from the active cart.
func (a *App) RemoveFromCart(ctx context.Context, productID string) error {
	if a.Session.Authenticated() {
		return a.Remote.RemoveFromCart(ctx, productID)
	}
	return a.Cart.RemoveItem(ctx, productID)
}

// ViewCart reads the active cart.
func (a *App) ViewCart(ctx context.Context) (*CartView, error) {
	if a.Session.Authenticated() {
		cart, err := a.Remote.Cart(ctx)
		if err != nil {
			return nil, err
		}
		view := &CartView{Remote: true, Count: cart.ItemCount, Subtotal: cart.Subtotal}
		for _, item := range cart.Items {
			view.Lines = append(view.Lines, CartLine{
				ProductID: item.ProductID,
				Name:      item.Product.Name,
				Quantity:  item.Quantity,
				Price:     item.Product.Price,
				LineTotal: item.LineTotal,
			})
		}
		return view, nil
	}

	entries, err := a.Cart.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	view := &CartView{Subtotal: guest.Subtotal(entries)}
	for _, e := range entries {
		view.Count += e.Quantity
		view.Lines = append(view.Lines, CartLine{
			ProductID: e.ProductID,
			Name:      e.Product.Name,
			Quantity:  e.Quantity,
			Price:     e.Product.Price,
			LineTotal: e.LineTotal(),
		})
	}
	return view, nil
}

// WishlistLine is one liked product.
type WishlistLine struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
}

// ViewWishlist reads the active wishlist.
func (a *App) ViewWishlist(ctx context.Context) ([]WishlistLine, bool, error) {
	if a.Session.Authenticated() {
		items, err := a.Remote.Wishlist(ctx)
		if err != nil {
			return nil, true, err
		}
		lines := make([]WishlistLine, 0, len(items))
		for _, item := range items {
			lines = append(lines, WishlistLine{ProductID: item.ProductID, Name: item.Product.Name, Price: item.Product.Price})
		}
		return lines, true, nil
	}
	entries, err := a.Wishlist.ReadAll(ctx)
	if err != nil {
		return nil, false, err
	}
	lines := make([]WishlistLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, WishlistLine{ProductID: e.ProductID, Name: e.Product.Name, Price: e.Product.Price})
	}
	return lines, false, nil
}

// AddToWishlist likes a product in the active wishlist.
func (a *App) AddToWishlist(ctx context.Context, productID string) error {
	if a.Session.Authenticated() {
		return a.Remote.AddToWishlist(ctx, productID)
	}
	snap, err := a.Snapshot(ctx, productID)
	if err != nil {
		return err
	}
	return a.Wishlist.AddItem(ctx, snap.ID, snap)
}

// RemoveFromWishlist unlikes a product in the active wishlist.
func (a *App) RemoveFromWishlist(ctx context.Context, productID string) error {
	if a.Session.Authenticated() {
		return a.Remote.RemoveFromWishlist(ctx, productID)
	}
	return a.Wishlist.RemoveItem(ctx, productID)
}

// Sync retries the guest migration for the signed-in user.
func (a *App) Sync(ctx context.Context) (migration.Result, error) {
	if !a.Session.Authenticated() {
		return migration.Result{}, remote.ErrNotAuthenticated
	}
	return a.Migrator.Run(ctx), nil
}

// BuyNow hands a single product to checkout.
func (a *App) BuyNow(ctx context.Context, productID string, qty int) error {
	snap, err := a.Snapshot(ctx, productID)
	if err != nil {
		return err
	}
	return a.Checkout.StartBuyNow(ctx, snap, qty)
}
