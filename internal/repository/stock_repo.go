package repository

import (
	"context"
	"errors"
	"strings"

	"retailpos/internal/apperr"
	"retailpos/internal/model"
	"retailpos/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockRepository is the only writer of stock_levels rows.
type StockRepository interface {
	EnsureRow(ctx context.Context, productID, branchID uuid.UUID) error
	GetQuantity(ctx context.Context, productID, branchID uuid.UUID) (int, error)
	ApplyDelta(ctx context.Context, productID, branchID uuid.UUID, delta int, allowNegative bool) (int, error)
	ListLowStock(ctx context.Context, branchID *uuid.UUID) ([]model.LowStockItem, error)
	ListLevels(ctx context.Context, search string, branchID *uuid.UUID, p pagination.Params) ([]model.StockLevelItem, int64, error)
	ListTotals(ctx context.Context, search string, p pagination.Params) ([]model.ProductStockTotal, int64, error)
}

type stockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

// EnsureRow inserts a zero row for (product, branch) unless one exists.
func (r *stockRepository) EnsureRow(ctx context.Context, productID, branchID uuid.UUID) error {
	level := model.StockLevel{ProductID: productID, BranchID: branchID}
	err := GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "branch_id"}},
		DoNothing: true,
	}).Create(&level).Error
	return apperr.Storage("ensure stock row", err)
}

// GetQuantity reads the current quantity; a missing row reads as zero.
// Outside a locked transaction the value is advisory only.
func (r *stockRepository) GetQuantity(ctx context.Context, productID, branchID uuid.UUID) (int, error) {
	var level model.StockLevel
	err := GetDB(ctx, r.db).Select("quantity").
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		First(&level).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Storage("get stock quantity", err)
	}
	return level.Quantity, nil
}

// ApplyDelta adds delta to the (product, branch) row with one conditional
// UPDATE. Unless allowNegative is set, the row only changes when the result
// stays >= 0; zero affected rows is reported as insufficient stock.
// The row must exist (see EnsureRow).
func (r *stockRepository) ApplyDelta(ctx context.Context, productID, branchID uuid.UUID, delta int, allowNegative bool) (int, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.StockLevel{}).Where("product_id = ? AND branch_id = ?", productID, branchID)
	if !allowNegative {
		query = query.Where("quantity + ? >= 0", delta)
	}
	res := query.Updates(map[string]interface{}{
		"quantity":   gorm.Expr("quantity + ?", delta),
		"updated_at": db.NowFunc(),
	})
	if res.Error != nil {
		return 0, apperr.Storage("apply stock delta", res.Error)
	}

	var level model.StockLevel
	err := GetDB(ctx, r.db).Select("quantity").
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		First(&level).Error
	if err != nil {
		return 0, translate("read stock quantity", err, apperr.ErrNotFound)
	}

	if res.RowsAffected == 0 {
		return level.Quantity, &apperr.InsufficientStockError{
			ProductID: productID,
			BranchID:  branchID,
			Requested: -delta,
			Available: level.Quantity,
		}
	}
	return level.Quantity, nil
}

func (r *stockRepository) ListLowStock(ctx context.Context, branchID *uuid.UUID) ([]model.LowStockItem, error) {
	items := []model.LowStockItem{}
	query := GetDB(ctx, r.db).Table("stock_levels AS s").
		Select("s.product_id, s.branch_id, p.sku, p.name, s.quantity, p.min_stock, p.max_stock").
		Joins("JOIN products p ON p.id = s.product_id").
		Where("p.is_active = ? AND p.track_inventory = ? AND s.quantity <= p.min_stock", true, true)
	if branchID != nil {
		query = query.Where("s.branch_id = ?", *branchID)
	}
	if err := query.Order("s.quantity ASC, p.name ASC").Scan(&items).Error; err != nil {
		return nil, apperr.Storage("list low stock", err)
	}
	return items, nil
}

// ListLevels pages through the stock rows of active products, optionally
// narrowed to one branch and to products matching search.
func (r *stockRepository) ListLevels(ctx context.Context, search string, branchID *uuid.UUID, p pagination.Params) ([]model.StockLevelItem, int64, error) {
	items := []model.StockLevelItem{}
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		q = q.Table("stock_levels AS s").
			Joins("JOIN products p ON p.id = s.product_id").
			Joins("JOIN branches b ON b.id = s.branch_id").
			Where("p.is_active = ?", true)
		q = matchProduct(q, search)
		if branchID != nil {
			q = q.Where("s.branch_id = ?", *branchID)
		}
		return q
	}

	if err := db.Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, apperr.Storage("count stock levels", err)
	}

	err := db.Scopes(scope, pagination.Scope(p)).
		Select("s.product_id, s.branch_id, b.name AS branch_name, p.sku, p.name, s.quantity, p.min_stock, p.max_stock").
		Order("p.name ASC, b.name ASC").
		Scan(&items).Error
	if err != nil {
		return nil, 0, apperr.Storage("list stock levels", err)
	}
	return items, total, nil
}

// ListTotals sums each active product's quantity over all branches.
func (r *stockRepository) ListTotals(ctx context.Context, search string, p pagination.Params) ([]model.ProductStockTotal, int64, error) {
	items := []model.ProductStockTotal{}
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		return matchProduct(q.Table("products AS p").Where("p.is_active = ?", true), search)
	}

	if err := db.Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, apperr.Storage("count stock totals", err)
	}

	err := db.Scopes(scope, pagination.Scope(p)).
		Select("p.id AS product_id, p.sku, p.name, p.min_stock, COALESCE(SUM(s.quantity), 0) AS total_stock, COUNT(s.branch_id) AS branches").
		Joins("LEFT JOIN stock_levels s ON s.product_id = p.id").
		Group("p.id, p.sku, p.name, p.min_stock").
		Order("p.name ASC").
		Scan(&items).Error
	if err != nil {
		return nil, 0, apperr.Storage("list stock totals", err)
	}
	return items, total, nil
}

// matchProduct narrows a query aliasing products as p the same way product
// search does: name or SKU substring, or an exact barcode.
func matchProduct(q *gorm.DB, search string) *gorm.DB {
	search = strings.TrimSpace(search)
	if search == "" {
		return q
	}
	like := "%" + strings.ToLower(search) + "%"
	return q.Where("(LOWER(p.name) LIKE ? OR LOWER(p.sku) LIKE ? OR p.id IN (SELECT product_id FROM product_barcodes WHERE code = ?))",
		like, like, search)
}
