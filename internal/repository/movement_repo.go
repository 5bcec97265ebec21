package repository

import (
	"context"

	"retailpos/internal/apperr"
	"retailpos/internal/model"
	"retailpos/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementRepository appends and reads product movements. There is no update
// or delete path.
type MovementRepository interface {
	Create(ctx context.Context, movement *model.ProductMovement) error
	ListByProduct(ctx context.Context, productID uuid.UUID, branchID *uuid.UUID, p pagination.Params) ([]model.ProductMovement, int64, error)
	ListByReference(ctx context.Context, refType, refNo string) ([]model.ProductMovement, error)
	SumDeltas(ctx context.Context, productID, branchID uuid.UUID) (int, error)
}

type movementRepository struct {
	db *gorm.DB
}

func NewMovementRepository(db *gorm.DB) MovementRepository {
	return &movementRepository{db: db}
}

func (r *movementRepository) Create(ctx context.Context, movement *model.ProductMovement) error {
	return apperr.Storage("record movement", GetDB(ctx, r.db).Create(movement).Error)
}

// ListByProduct returns movement history newest first.
func (r *movementRepository) ListByProduct(ctx context.Context, productID uuid.UUID, branchID *uuid.UUID, p pagination.Params) ([]model.ProductMovement, int64, error) {
	var movements []model.ProductMovement
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		q = q.Where("product_id = ?", productID)
		if branchID != nil {
			q = q.Where("branch_id = ?", *branchID)
		}
		return q
	}

	if err := db.Model(&model.ProductMovement{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, apperr.Storage("count movements", err)
	}

	if err := db.Scopes(scope, pagination.Scope(p)).Order("created_at DESC").Find(&movements).Error; err != nil {
		return nil, 0, apperr.Storage("list movements", err)
	}

	return movements, total, nil
}

func (r *movementRepository) ListByReference(ctx context.Context, refType, refNo string) ([]model.ProductMovement, error) {
	var movements []model.ProductMovement
	if err := GetDB(ctx, r.db).
		Where("reference_type = ? AND reference_no = ?", refType, refNo).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, apperr.Storage("list movements by reference", err)
	}
	return movements, nil
}

// SumDeltas replays the movement history of one stock row.
func (r *movementRepository) SumDeltas(ctx context.Context, productID, branchID uuid.UUID) (int, error) {
	var sum int
	if err := GetDB(ctx, r.db).Model(&model.ProductMovement{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		Scan(&sum).Error; err != nil {
		return 0, apperr.Storage("sum movements", err)
	}
	return sum, nil
}
