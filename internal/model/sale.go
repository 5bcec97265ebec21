package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
	SaleStatusRefunded  = "refunded"
)

const DefaultPaymentMethod = "cash"

// SaleTransaction is the immutable header of a completed sale.
type SaleTransaction struct {
	ID             uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionNo  string                `gorm:"type:varchar(50);uniqueIndex;not null" json:"transaction_no"`
	CustomerID     *uuid.UUID            `gorm:"type:uuid;index" json:"customer_id"`
	UserID         uuid.UUID             `gorm:"type:uuid;not null;index" json:"user_id"`
	BranchID       uuid.UUID             `gorm:"type:uuid;not null;index" json:"branch_id"`
	Subtotal       decimal.Decimal       `gorm:"type:decimal(18,4);not null" json:"subtotal"`
	TaxAmount      decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0" json:"tax_amount"`
	DiscountAmount decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0" json:"discount_amount"`
	TotalAmount    decimal.Decimal       `gorm:"type:decimal(18,4);not null" json:"total_amount"` // subtotal + tax - discount
	PaymentMethod  string                `gorm:"type:varchar(50);not null" json:"payment_method"`
	Status         string                `gorm:"type:varchar(20);not null;default:'completed'" json:"status"`
	Notes          string                `gorm:"type:text" json:"notes"`
	Items          []SaleTransactionItem `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt      time.Time             `gorm:"index" json:"created_at"`
}

func (SaleTransaction) TableName() string { return "sale_transactions" }

func (s *SaleTransaction) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// SaleTransactionItem is one line of a sale; owned by its header.
type SaleTransactionItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Quantity      int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	Discount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"discount"`
	Total         decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total"`
}

func (SaleTransactionItem) TableName() string { return "sale_transaction_items" }

func (i *SaleTransactionItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}
