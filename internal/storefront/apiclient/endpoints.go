package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/liminara/storefront/pkg/errors"
)

// RequestOTP asks the server to send a passcode to an email or phone.
func (c *Client) RequestOTP(ctx context.Context, identifier string) (*OTPIssued, error) {
	var out envelope[OTPIssued]
	body := map[string]string{"identifier": identifier}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/request-otp", requestOptions{body: body}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// VerifyOTP exchanges the passcode for tokens. The client token is not
// changed; the session decides when to adopt it.
func (c *Client) VerifyOTP(ctx context.Context, identifier, code string) (*Login, error) {
	var out envelope[Login]
	body := map[string]string{"identifier": identifier, "code": code}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/verify-otp", requestOptions{body: body}, &out); err != nil {
		return nil, err
	}
	if out.Data.Token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "verify response carried no token")
	}
	return &out.Data, nil
}

// Me returns the profile behind the current token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out envelope[User]
	if _, err := c.do(ctx, http.MethodGet, "/api/auth/me", requestOptions{auth: true}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Logout revokes the server session for the current token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", requestOptions{auth: true}, nil)
	return err
}

// Refresh rotates the token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	var out envelope[Tokens]
	body := map[string]string{"refreshToken": refreshToken}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/refresh", requestOptions{auth: true, body: body}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// AddCartItem creates or increments a server cart line. A non-empty
// idempotencyKey makes retries of the same logical add safe; Replayed reports
// that the server answered from its stored response.
func (c *Client) AddCartItem(ctx context.Context, item AddCartItem, idempotencyKey string) (*AddedCartItem, error) {
	var out envelope[CartItem]
	opts := requestOptions{auth: true, body: item, idempotencyKey: idempotencyKey}
	resp, err := c.do(ctx, http.MethodPost, "/api/cart", opts, &out)
	if err != nil {
		return nil, err
	}
	return &AddedCartItem{
		Item:     out.Data,
		Created:  resp.status == http.StatusCreated,
		Replayed: resp.replayed,
	}, nil
}

// Cart lists the server cart.
func (c *Client) Cart(ctx context.Context) (*Cart, error) {
	var out envelope[Cart]
	if _, err := c.do(ctx, http.MethodGet, "/api/cart", requestOptions{auth: true}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// SetCartQuantity changes a line's quantity. Zero removes the line, in which
// case the returned item is nil.
func (c *Client) SetCartQuantity(ctx context.Context, itemID string, quantity int) (*CartItem, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required")
	}
	var out envelope[*CartItem]
	body := map[string]int{"quantity": quantity}
	if _, err := c.do(ctx, http.MethodPatch, "/api/cart/"+url.PathEscape(itemID), requestOptions{auth: true, body: body}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// RemoveCartItem deletes a server cart line.
func (c *Client) RemoveCartItem(ctx context.Context, itemID string) error {
	if strings.TrimSpace(itemID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required")
	}
	_, err := c.do(ctx, http.MethodDelete, "/api/cart/"+url.PathEscape(itemID), requestOptions{auth: true}, nil)
	return err
}

// Wishlist returns one page of the server wishlist.
func (c *Client) Wishlist(ctx context.Context, page PageRequest) (*Page[WishlistItem], error) {
	var out envelope[Page[WishlistItem]]
	opts := requestOptions{auth: true, query: pageQuery(page)}
	if _, err := c.do(ctx, http.MethodGet, "/api/wishlist", opts, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// AddWishlistItem likes a product. Adding a liked product succeeds.
func (c *Client) AddWishlistItem(ctx context.Context, productID, idempotencyKey string) (*WishlistItem, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	var out envelope[WishlistItem]
	opts := requestOptions{auth: true, idempotencyKey: idempotencyKey}
	if _, err := c.do(ctx, http.MethodPost, "/api/wishlist/"+url.PathEscape(productID), opts, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// RemoveWishlistItem unlikes a product.
func (c *Client) RemoveWishlistItem(ctx context.Context, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	_, err := c.do(ctx, http.MethodDelete, "/api/wishlist/"+url.PathEscape(productID), requestOptions{auth: true}, nil)
	return err
}

// Products searches the public catalog.
func (c *Client) Products(ctx context.Context, search string, page PageRequest) (*Page[Product], error) {
	query := pageQuery(page)
	if s := strings.TrimSpace(search); s != "" {
		query.Set("q", s)
	}
	var out envelope[Page[Product]]
	if _, err := c.do(ctx, http.MethodGet, "/api/products", requestOptions{query: query}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Product loads one catalog entry.
func (c *Client) Product(ctx context.Context, productID string) (*Product, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	var out envelope[Product]
	if _, err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(productID), requestOptions{}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func pageQuery(page PageRequest) url.Values {
	query := url.Values{}
	if page.Limit > 0 {
		query.Set("limit", strconv.Itoa(page.Limit))
	}
	if page.Cursor != "" {
		query.Set("cursor", page.Cursor)
	}
	return query
}
