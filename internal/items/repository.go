package items

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"gorm.io/gorm"
)

// ListFilters describe the supported filter knobs for the catalog listing.
type ListFilters struct {
	Query         string
	Categories    []string
	MinPriceCents *int64
	MaxPriceCents *int64
	Sort          enums.ItemSort
}

// Repository persists catalog items.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads an item or returns gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// Exists reports whether an item with id is in the catalog.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) Update(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// Delete removes an item. It returns gorm.ErrRecordNotFound when nothing matched.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Item{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns up to limit items matching filters, starting after cursor.
func (r *Repository) List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.Item, error) {
	q := r.db.WithContext(ctx).Model(&models.Item{})

	if term := strings.ToLower(strings.TrimSpace(filters.Query)); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\')", like, like)
	}
	if len(filters.Categories) > 0 {
		q = q.Where("LOWER(category) IN ?", filters.Categories)
	}
	if filters.MinPriceCents != nil {
		q = q.Where("price_cents >= ?", *filters.MinPriceCents)
	}
	if filters.MaxPriceCents != nil {
		q = q.Where("price_cents <= ?", *filters.MaxPriceCents)
	}

	switch filters.Sort {
	case enums.ItemSortPriceAsc:
		if cursor != nil {
			q = q.Where("(price_cents > ?) OR (price_cents = ? AND id > ?)", cursor.PriceCents, cursor.PriceCents, cursor.ID)
		}
		q = q.Order("price_cents ASC").Order("id ASC")
	case enums.ItemSortPriceDesc:
		if cursor != nil {
			q = q.Where("(price_cents < ?) OR (price_cents = ? AND id > ?)", cursor.PriceCents, cursor.PriceCents, cursor.ID)
		}
		q = q.Order("price_cents DESC").Order("id ASC")
	default:
		if cursor != nil {
			q = q.Where("(created_at < ?) OR (created_at = ? AND id > ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
		q = q.Order("created_at DESC").Order("id ASC")
	}

	var rows []models.Item
	if err := q.Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
