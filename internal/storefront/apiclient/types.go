package apiclient

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/liminara/storefront/internal/storefront/guest"
)

// User is the profile returned by /api/auth/me.
type User struct {
	ID          string     `json:"id"`
	Email       *string    `json:"email,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Label is the best human identifier for the user.
func (u *User) Label() string {
	switch {
	case u == nil:
		return ""
	case u.Name != "":
		return u.Name
	case u.Email != nil && *u.Email != "":
		return *u.Email
	case u.Phone != nil:
		return *u.Phone
	}
	return u.ID
}

// OTPIssued acknowledges a passcode request.
type OTPIssued struct {
	Channel   string `json:"channel"`
	ExpiresIn int    `json:"expiresIn"`
}

// Login is the result of a successful passcode verification.
type Login struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
	Created      bool   `json:"created"`
}

// Tokens is the result of a refresh.
type Tokens struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// AddCartItem is the body of POST /api/cart.
type AddCartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CartItem is one server cart line.
type CartItem struct {
	ID        string                `json:"id"`
	ProductID string                `json:"productId"`
	Quantity  int                   `json:"quantity"`
	Product   guest.ProductSnapshot `json:"product"`
	LineTotal decimal.Decimal       `json:"lineTotal"`
}

// AddedCartItem is the outcome of AddCartItem.
type AddedCartItem struct {
	Item     CartItem
	Created  bool
	Replayed bool
}

// Cart is the server cart listing.
type Cart struct {
	Items     []CartItem      `json:"items"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// WishlistItem is one server wishlist entry.
type WishlistItem struct {
	ProductID string                `json:"productId"`
	Product   guest.ProductSnapshot `json:"product"`
	AddedAt   time.Time             `json:"addedAt"`
}

// Product is a catalog entry.
type Product struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	PriceCents  int             `json:"priceCents"`
	Price       decimal.Decimal `json:"price"`
	Image       *string         `json:"image,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Snapshot is the denormalized copy stored on guest entries.
func (p *Product) Snapshot() guest.ProductSnapshot {
	snap := guest.ProductSnapshot{ID: p.ID, Name: p.Name, Price: p.Price}
	if p.Image != nil {
		snap.Image = *p.Image
	}
	return snap
}

// Page is one cursor page.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// PageRequest selects a page. Zero values use the server defaults.
type PageRequest struct {
	Limit  int
	Cursor string
}
