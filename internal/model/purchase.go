package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusCompleted = "completed"
	InvoiceStatusCancelled = "cancelled"
)

// PurchaseInvoice records stock received from a supplier.
type PurchaseInvoice struct {
	ID             uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNumber  string                `gorm:"type:varchar(50);uniqueIndex;not null" json:"invoice_number"`
	SupplierID     uuid.UUID             `gorm:"type:uuid;not null;index" json:"supplier_id"`
	UserID         uuid.UUID             `gorm:"type:uuid;not null;index" json:"user_id"`
	BranchID       uuid.UUID             `gorm:"type:uuid;not null;index" json:"branch_id"`
	InvoiceDate    time.Time             `gorm:"not null" json:"invoice_date"`
	Subtotal       decimal.Decimal       `gorm:"type:decimal(18,4);not null" json:"subtotal"`
	TaxAmount      decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0" json:"tax_amount"`
	DiscountAmount decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0" json:"discount_amount"`
	TotalAmount    decimal.Decimal       `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	Notes          string                `gorm:"type:text" json:"notes"`
	Status         string                `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Items          []PurchaseInvoiceItem `gorm:"foreignKey:PurchaseInvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt      time.Time             `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func (p *PurchaseInvoice) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// PurchaseInvoiceItem is one received line; owned by its invoice.
type PurchaseInvoiceItem struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseInvoiceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_invoice_id"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Quantity          int             `gorm:"type:int;not null" json:"quantity"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_cost"`
	Total             decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total"`
}

func (i *PurchaseInvoiceItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}
