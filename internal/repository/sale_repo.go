package repository

import (
	"context"

	"retailpos/internal/apperr"
	"retailpos/internal/model"
	"retailpos/pkg/pagination"

	"gorm.io/gorm"
)

type SaleRepository interface {
	Create(ctx context.Context, sale *model.SaleTransaction) error
	FindByNo(ctx context.Context, transactionNo string) (*model.SaleTransaction, error)
	List(ctx context.Context, branchID string, p pagination.Params) ([]model.SaleTransaction, int64, error)
}

type saleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

// Create inserts the header and its items in one statement batch.
func (r *saleRepository) Create(ctx context.Context, sale *model.SaleTransaction) error {
	return translate("create sale", GetDB(ctx, r.db).Create(sale).Error, nil)
}

func (r *saleRepository) FindByNo(ctx context.Context, transactionNo string) (*model.SaleTransaction, error) {
	var sale model.SaleTransaction
	if err := GetDB(ctx, r.db).Preload("Items").
		Where("transaction_no = ?", transactionNo).
		First(&sale).Error; err != nil {
		return nil, translate("find sale", err, apperr.ErrNotFound)
	}
	return &sale, nil
}

func (r *saleRepository) List(ctx context.Context, branchID string, p pagination.Params) ([]model.SaleTransaction, int64, error) {
	var sales []model.SaleTransaction
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.SaleTransaction{})
	if branchID != "" {
		query = query.Where("branch_id = ?", branchID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Storage("count sales", err)
	}

	fetchQuery := db.Preload("Items")
	if branchID != "" {
		fetchQuery = fetchQuery.Where("branch_id = ?", branchID)
	}
	if err := fetchQuery.Order("created_at DESC").Scopes(pagination.Scope(p)).Find(&sales).Error; err != nil {
		return nil, 0, apperr.Storage("list sales", err)
	}

	return sales, total, nil
}
