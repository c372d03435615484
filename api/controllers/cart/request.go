package cart

import (
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
)

type addItemRequest struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity *int   `json:"quantity"`
}

// quantity defaults to 1. An explicit value must lie in [1, MaxLineQuantity].
func (r addItemRequest) quantity() (int, error) {
	if r.Quantity == nil {
		return 1, nil
	}
	if err := validators.RequireIntRange("quantity", r.Quantity, 1, cartsvc.MaxLineQuantity); err != nil {
		return 0, err
	}
	return *r.Quantity, nil
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type mergeRequest struct {
	Items     []cartsvc.Line `json:"items"`
	UpdatedAt int64          `json:"updatedAt"`
}

type mergeResponse struct {
	Cart             *cartsvc.Cart `json:"cart"`
	GuestCartCleared bool          `json:"guestCartCleared"`
}
