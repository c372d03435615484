package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogSeed is the starter catalog. The items migration inserts the same rows.
func CatalogSeed() []models.Item {
	at := func(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
	return []models.Item{
		{
			ID:          "p1",
			Title:       "Aurora Wireless Headphones",
			Description: "Premium over-ear wireless headphones with noise cancellation and 30-hour battery.",
			PriceCents:  14900,
			Category:    "Audio",
			Image:       "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?q=80&w=1200&auto=format&fit=crop",
			CreatedAt:   at(1700000000000),
			UpdatedAt:   at(1700000000000),
		},
		{
			ID:          "p2",
			Title:       "Nimbus Mechanical Keyboard",
			Description: "Hot-swappable 75% mechanical keyboard with RGB and PBT keycaps.",
			PriceCents:  9900,
			Category:    "Peripherals",
			Image:       "https://images.unsplash.com/photo-1517336714731-489689fd1ca8?q=80&w=1200&auto=format&fit=crop",
			CreatedAt:   at(1700000001000),
			UpdatedAt:   at(1700000001000),
		},
		{
			ID:          "p3",
			Title:       "Solaris Smartwatch",
			Description: "AMOLED display, GPS, heart-rate and sleep tracking with 10-day battery.",
			PriceCents:  12900,
			Category:    "Wearables",
			Image:       "https://images.unsplash.com/photo-1516574187841-cb9cc2ca948b?q=80&w=1200&auto=format&fit=crop",
			CreatedAt:   at(1700000002000),
			UpdatedAt:   at(1700000002000),
		},
		{
			ID:          "p4",
			Title:       "Pulse Bluetooth Speaker",
			Description: "Portable IPX7 speaker with deep bass and 12-hour playtime.",
			PriceCents:  7900,
			Category:    "Audio",
			Image:       "https://images.unsplash.com/photo-1618384887924-3b70b1d54a88?q=80&w=1200&auto=format&fit=crop",
			CreatedAt:   at(1700000003000),
			UpdatedAt:   at(1700000003000),
		},
		{
			ID:          "p5",
			Title:       "Flux USB-C Hub",
			Description: "8-in-1 aluminum hub with HDMI 4K, PD 100W, USB-A and SD card.",
			PriceCents:  5900,
			Category:    "Accessories",
			Image:       "https://images.unsplash.com/photo-1593010351488-e4a54735a55a?q=80&w=1200&auto=format&fit=crop",
			CreatedAt:   at(1700000004000),
			UpdatedAt:   at(1700000004000),
		},
	}
}

// SeedCatalog inserts the starter catalog, leaving existing ids untouched.
func SeedCatalog(ctx context.Context, conn *gorm.DB) (int64, error) {
	if conn == nil {
		return 0, fmt.Errorf("db is required")
	}
	items := CatalogSeed()
	res := conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&items)
	if res.Error != nil {
		return 0, fmt.Errorf("seeding catalog: %w", res.Error)
	}
	return res.RowsAffected, nil
}
