package items

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/shopspring/decimal"
)

// ItemDTO is the catalog item payload returned to clients. Price is in cents
// and timestamps are epoch milliseconds.
type ItemDTO struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Price          int64  `json:"price"`
	PriceFormatted string `json:"priceFormatted"`
	Category       string `json:"category"`
	Image          string `json:"image"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// ListResult is one page of catalog items.
type ListResult struct {
	Items      []ItemDTO `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// NewItemDTO maps the persisted model to its wire shape.
func NewItemDTO(item *models.Item) ItemDTO {
	return ItemDTO{
		ID:             item.ID,
		Title:          item.Title,
		Description:    item.Description,
		Price:          item.PriceCents,
		PriceFormatted: FormatCents(item.PriceCents),
		Category:       item.Category,
		Image:          item.Image,
		CreatedAt:      item.CreatedAt.UnixMilli(),
		UpdatedAt:      item.UpdatedAt.UnixMilli(),
	}
}

// FormatCents renders minor units as a two-decimal major-unit string.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
