package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCompleteSale     = "COMPLETE_SALE"
	ActionReceiveInvoice   = "RECEIVE_PURCHASE_INVOICE"
	ActionManualMovement   = "MANUAL_STOCK_MOVEMENT"
	ActionTransferStock    = "TRANSFER_STOCK"
	ActionHoldCart         = "HOLD_CART"
	ActionResumeCart       = "RESUME_CART"
	ActionDiscardCart      = "DISCARD_CART"
	ActionCreateProduct    = "CREATE_PRODUCT"
	ActionCreateBranch     = "CREATE_BRANCH"
	ActionUpdateThresholds = "UPDATE_STOCK_THRESHOLDS"
)

// AuditLog tracks Who, What, and When for every core write
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	BranchID   *uuid.UUID `gorm:"type:uuid;index" json:"branch_id"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:text" json:"details"` // serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// Actor is the authenticated caller supplied by the HTTP layer for every core operation.
type Actor struct {
	UserID   uuid.UUID
	BranchID uuid.UUID
	Role     string
}

// Staff roles
const (
	RoleAdmin            = "admin"
	RoleManager          = "manager"
	RoleCashier          = "cashier"
	RoleInventoryManager = "inventory_manager"
)
