package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartLine is one {product, quantity, unit price} tuple of a cart.
type CartLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CustomerSnapshot is the customer as the terminal knew it when the cart was held.
type CustomerSnapshot struct {
	ID    *uuid.UUID `json:"id,omitempty"`
	Name  string     `json:"name,omitempty"`
	Phone string     `json:"phone,omitempty"`
	Email string     `json:"email,omitempty"`
}

// HeldCart is a parked, not yet checked out cart. Rows past ExpiresAt are
// treated as absent by every reader even though nothing deletes them.
type HeldCart struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	HoldCode  string            `gorm:"type:varchar(50);uniqueIndex;not null" json:"hold_code"`
	UserID    uuid.UUID         `gorm:"type:uuid;not null;index:idx_held_user_expiry,priority:1" json:"user_id"`
	BranchID  uuid.UUID         `gorm:"type:uuid;not null" json:"branch_id"`
	Lines     []CartLine        `gorm:"type:text;serializer:json;not null" json:"cart"`
	Customer  *CustomerSnapshot `gorm:"type:text;serializer:json" json:"customer,omitempty"`
	Notes     string            `gorm:"type:text" json:"notes"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `gorm:"not null;index:idx_held_user_expiry,priority:2" json:"expires_at"`
}

func (HeldCart) TableName() string { return "held_carts" }

func (h *HeldCart) BeforeCreate(tx *gorm.DB) error {
	assignID(&h.ID)
	return nil
}
