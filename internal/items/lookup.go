package items

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Lookup answers the cart's existence and price questions against the catalog.
// Concurrent calls for the same item share one query.
type Lookup struct {
	repo  *Repository
	group singleflight.Group
}

func NewLookup(repo *Repository) *Lookup {
	return &Lookup{repo: repo}
}

func (l *Lookup) Exists(ctx context.Context, itemID string) (bool, error) {
	v, err, _ := l.group.Do("exists:"+itemID, func() (any, error) {
		return l.repo.Exists(ctx, itemID)
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "item lookup")
	}
	return v.(bool), nil
}

// PriceOf returns the item's price in cents, or a NOT_FOUND error.
func (l *Lookup) PriceOf(ctx context.Context, itemID string) (int64, error) {
	v, err, _ := l.group.Do("price:"+itemID, func() (any, error) {
		item, err := l.repo.FindByID(ctx, itemID)
		if err != nil {
			return int64(0), err
		}
		return item.PriceCents, nil
	})
	if err != nil {
		if db.IsNotFound(err) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("item %s not found", itemID))
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "item lookup")
	}
	return v.(int64), nil
}
