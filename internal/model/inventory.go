package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry. The core only writes its stock thresholds.
type Product struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SKU            string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku"`
	Name           string           `gorm:"type:varchar(200);not null;index" json:"name"`
	Description    string           `gorm:"type:text" json:"description"`
	CategoryID     *uuid.UUID       `gorm:"type:uuid;index" json:"category_id"`
	Price          decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"price"`
	CostPrice      decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"cost_price"`
	MinStock       int              `gorm:"type:int;not null;default:0" json:"min_stock"`
	MaxStock       *int             `gorm:"type:int" json:"max_stock"`
	TrackInventory bool             `gorm:"not null;default:true" json:"track_inventory"`
	IsActive       bool             `gorm:"not null;default:true;index" json:"is_active"`
	Barcodes       []ProductBarcode `gorm:"foreignKey:ProductID" json:"barcodes"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// BarcodeList returns the product's barcodes in their stored order.
func (p *Product) BarcodeList() []string {
	codes := make([]string, len(p.Barcodes))
	for i, b := range p.Barcodes {
		codes[i] = b.Code
	}
	return codes
}

// ProductBarcode is one alternate barcode; Code is unique across the catalog
// so lookups are exact matches.
type ProductBarcode struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Code      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Position  int       `gorm:"type:int;not null;default:0" json:"position"`
}

func (b *ProductBarcode) BeforeCreate(tx *gorm.DB) error {
	assignID(&b.ID)
	return nil
}

// Branch is a physical store location.
type Branch struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	Phone     string    `gorm:"type:varchar(20)" json:"phone"`
	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (b *Branch) BeforeCreate(tx *gorm.DB) error {
	assignID(&b.ID)
	return nil
}

// StockLevel is the on-hand quantity of one product at one branch.
// Exactly one row exists per (product, branch).
type StockLevel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_branch,priority:1" json:"product_id"`
	BranchID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_branch,priority:2;index" json:"branch_id"`
	Quantity         int       `gorm:"type:int;not null;default:0" json:"quantity"`
	ReservedQuantity int       `gorm:"type:int;not null;default:0" json:"reserved_quantity"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (StockLevel) TableName() string { return "stock_levels" }

func (s *StockLevel) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// MovementType enum simulation
const (
	MovementPurchase   = "purchase"
	MovementSale       = "sale"
	MovementReturn     = "return"
	MovementTransfer   = "transfer"
	MovementAdjustment = "adjustment"
)

// ValidMovementType reports whether t is one of the known movement types.
func ValidMovementType(t string) bool {
	switch t {
	case MovementPurchase, MovementSale, MovementReturn, MovementTransfer, MovementAdjustment:
		return true
	}
	return false
}

// Reference types linking a movement to its cause
const (
	RefTypeSale            = "SALE"
	RefTypePurchaseInvoice = "PURCHASE_INVOICE"
	RefTypeTransfer        = "TRANSFER"
	RefTypeManual          = "MANUAL"
)

var ErrMovementImmutable = errors.New("product movements are append-only")

// ProductMovement records one signed quantity change of a StockLevel.
// Rows are never updated or deleted.
type ProductMovement struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID     uuid.UUID `gorm:"type:uuid;not null;index:idx_movement_product_branch,priority:1" json:"product_id"`
	BranchID      uuid.UUID `gorm:"type:uuid;not null;index:idx_movement_product_branch,priority:2" json:"branch_id"`
	MovementType  string    `gorm:"type:varchar(20);not null;index" json:"movement_type"`
	Quantity      int       `gorm:"type:int;not null" json:"quantity"`       // signed delta
	QuantityAfter int       `gorm:"type:int;not null" json:"quantity_after"` // ledger value produced by this delta
	UserID        uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Reason        string    `gorm:"type:text" json:"reason"`
	Notes         string    `gorm:"type:text" json:"notes"`
	ReferenceType string    `gorm:"type:varchar(30)" json:"reference_type,omitempty"`
	ReferenceNo   string    `gorm:"type:varchar(50);index" json:"reference_no,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (m *ProductMovement) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *ProductMovement) BeforeUpdate(tx *gorm.DB) error {
	return ErrMovementImmutable
}

func (m *ProductMovement) BeforeDelete(tx *gorm.DB) error {
	return ErrMovementImmutable
}

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// LowStockItem is a read projection of a stock row at or below its product's minimum.
type LowStockItem struct {
	ProductID uuid.UUID `json:"product_id"`
	BranchID  uuid.UUID `json:"branch_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	MinStock  int       `json:"min_stock"`
	MaxStock  *int      `json:"max_stock"`
}

// StockLevelItem is a stock row joined with its product and branch.
type StockLevelItem struct {
	ProductID  uuid.UUID `json:"product_id"`
	BranchID   uuid.UUID `json:"branch_id"`
	BranchName string    `json:"branch_name"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	MinStock   int       `json:"min_stock"`
	MaxStock   *int      `json:"max_stock"`
}

// ProductStockTotal is one product's quantity summed across branches.
type ProductStockTotal struct {
	ProductID  uuid.UUID `json:"product_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	MinStock   int       `json:"min_stock"`
	TotalStock int       `json:"total_stock"`
	Branches   int       `json:"branches"`
}
