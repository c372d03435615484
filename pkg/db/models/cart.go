package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the persisted server cart header, one per user.
type Cart struct {
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	Lines     []CartLine `gorm:"foreignKey:UserID;references:UserID"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	// UpdatedAt mirrors the aggregate's lastModified and is written explicitly.
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (Cart) TableName() string { return "carts" }

// CartLine is one (item, quantity) row of a server cart.
type CartLine struct {
	UserID   uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	ItemID   string    `gorm:"column:item_id;type:text;primaryKey"`
	Quantity int       `gorm:"column:quantity;not null"`
	Position int       `gorm:"column:position;not null;default:0"`
}

func (CartLine) TableName() string { return "cart_lines" }
