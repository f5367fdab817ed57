package enums

// CheckoutType records how the shopper entered checkout.
type CheckoutType string

const (
	CheckoutTypeCart   CheckoutType = "cart"
	CheckoutTypeBuyNow CheckoutType = "buyNow"
)

// IsValid reports whether the value is a known CheckoutType.
func (c CheckoutType) IsValid() bool {
	return c == CheckoutTypeCart || c == CheckoutTypeBuyNow
}
