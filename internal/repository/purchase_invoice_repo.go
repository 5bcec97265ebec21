package repository

import (
	"context"

	"retailpos/internal/apperr"
	"retailpos/internal/model"
	"retailpos/pkg/pagination"

	"gorm.io/gorm"
)

type PurchaseInvoiceRepository interface {
	Create(ctx context.Context, invoice *model.PurchaseInvoice) error
	FindByNumber(ctx context.Context, number string) (*model.PurchaseInvoice, error)
	List(ctx context.Context, status string, p pagination.Params) ([]model.PurchaseInvoice, int64, error)
}

type purchaseInvoiceRepository struct {
	db *gorm.DB
}

func NewPurchaseInvoiceRepository(db *gorm.DB) PurchaseInvoiceRepository {
	return &purchaseInvoiceRepository{db: db}
}

func (r *purchaseInvoiceRepository) Create(ctx context.Context, invoice *model.PurchaseInvoice) error {
	return translate("create purchase invoice", GetDB(ctx, r.db).Create(invoice).Error, nil)
}

func (r *purchaseInvoiceRepository) FindByNumber(ctx context.Context, number string) (*model.PurchaseInvoice, error) {
	var invoice model.PurchaseInvoice
	if err := GetDB(ctx, r.db).Preload("Items").
		Where("invoice_number = ?", number).
		First(&invoice).Error; err != nil {
		return nil, translate("find purchase invoice", err, apperr.ErrNotFound)
	}
	return &invoice, nil
}

func (r *purchaseInvoiceRepository) List(ctx context.Context, status string, p pagination.Params) ([]model.PurchaseInvoice, int64, error) {
	var invoices []model.PurchaseInvoice
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.PurchaseInvoice{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Storage("count purchase invoices", err)
	}

	fetchQuery := db.Preload("Items")
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if err := fetchQuery.Order("created_at desc").Scopes(pagination.Scope(p)).Find(&invoices).Error; err != nil {
		return nil, 0, apperr.Storage("list purchase invoices", err)
	}

	return invoices, total, nil
}
