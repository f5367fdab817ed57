package cart

// AddItemRequest creates or increments a cart line. Quantity defaults to 1.
type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  *int   `json:"quantity" validate:"omitempty,gte=1,lte=999"`
}

func (r AddItemRequest) quantity() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

// SetQuantityRequest overwrites a line's quantity; zero removes the line.
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=999"`
}
