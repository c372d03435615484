package models

import "time"

// Item is a catalog entry. Prices are stored in minor units (cents).
type Item struct {
	ID          string    `gorm:"column:id;type:text;primaryKey"`
	Title       string    `gorm:"column:title;not null"`
	Description string    `gorm:"column:description;not null;default:''"`
	PriceCents  int64     `gorm:"column:price_cents;not null"`
	Category    string    `gorm:"column:category;not null;default:'';index"`
	Image       string    `gorm:"column:image;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string { return "items" }
