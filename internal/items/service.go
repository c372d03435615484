package items

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
)

// MaxPriceCents bounds an item price so a full cart line stays far inside int64.
const MaxPriceCents int64 = 1_000_000_000

// Service exposes catalog browsing and admin management.
type Service interface {
	List(ctx context.Context, filters ListFilters, page pagination.Params) (*ListResult, error)
	Get(ctx context.Context, id string) (*ItemDTO, error)
	Create(ctx context.Context, actor Actor, input CreateInput) (*ItemDTO, error)
	Update(ctx context.Context, actor Actor, id string, input UpdateInput) (*ItemDTO, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

// Actor is the authenticated caller of a catalog mutation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// CreateInput holds the validated payload to create an item.
type CreateInput struct {
	Title       string
	Description string
	PriceCents  int64
	Category    string
	Image       string
}

// UpdateInput holds optional mutation values for an item.
type UpdateInput struct {
	Title       *string
	Description *string
	PriceCents  *int64
	Category    *string
	Image       *string
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService constructs the catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, page pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filters.Categories = normalizeCategories(filters.Categories)
	if filters.Sort == "" {
		filters.Sort = enums.ItemSortNewest
	}
	if filters.MinPriceCents != nil && filters.MaxPriceCents != nil && *filters.MinPriceCents > *filters.MaxPriceCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minPrice cannot exceed maxPrice")
	}

	limit := pagination.NormalizeLimit(page.Limit)
	rows, err := s.repo.List(ctx, filters, cursor, pagination.LimitWithBuffer(page.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}

	result := &ListResult{Items: make([]ItemDTO, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt:  last.CreatedAt,
			PriceCents: last.PriceCents,
			ID:         last.ID,
		})
		rows = rows[:limit]
	}
	for i := range rows {
		result.Items = append(result.Items, NewItemDTO(&rows[i]))
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id string) (*ItemDTO, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := NewItemDTO(item)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*ItemDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if err := validatePrice(input.PriceCents); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	item := &models.Item{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		PriceCents:  input.PriceCents,
		Category:    strings.TrimSpace(input.Category),
		Image:       strings.TrimSpace(input.Image),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "item already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
	}
	dto := NewItemDTO(item)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, actor Actor, id string, input UpdateInput) (*ItemDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyUpdate(item, input); err != nil {
		return nil, err
	}
	item.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
	}
	dto := NewItemDTO(item)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, actor Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
	}
	return nil
}

func (s *service) load(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}

func requireAdmin(actor Actor) error {
	if actor.Role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func applyUpdate(item *models.Item, input UpdateInput) error {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		item.Title = title
	}
	if input.Description != nil {
		item.Description = strings.TrimSpace(*input.Description)
	}
	if input.PriceCents != nil {
		if err := validatePrice(*input.PriceCents); err != nil {
			return err
		}
		item.PriceCents = *input.PriceCents
	}
	if input.Category != nil {
		item.Category = strings.TrimSpace(*input.Category)
	}
	if input.Image != nil {
		item.Image = strings.TrimSpace(*input.Image)
	}
	return nil
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func validatePrice(cents int64) error {
	switch {
	case cents < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be zero or greater")
	case cents > MaxPriceCents:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("price must be at most %d", MaxPriceCents))
	}
	return nil
}
