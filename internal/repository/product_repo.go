package repository

import (
	"context"
	"strings"

	"retailpos/internal/apperr"
	"retailpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Product, error)
	FindByBarcode(ctx context.Context, code string) (*model.Product, error)
	Search(ctx context.Context, query string, limit int) ([]model.Product, error)
	UpdateThresholds(ctx context.Context, id uuid.UUID, minStock int, maxStock *int) error
	SetTrackInventory(ctx context.Context, id uuid.UUID, track bool) error
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return translate("create product", GetDB(ctx, r.db).Create(product).Error, nil)
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := GetDB(ctx, r.db).Preload("Barcodes", orderByPosition).First(&product, "id = ?", id).Error
	if err != nil {
		return nil, translate("find product", err, apperr.ErrProductNotFound)
	}
	return &product, nil
}

func (r *productRepository) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Product, error) {
	result := make(map[uuid.UUID]model.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var products []model.Product
	if err := GetDB(ctx, r.db).Where("id IN ? AND is_active = ?", ids, true).Find(&products).Error; err != nil {
		return nil, apperr.Storage("find products", err)
	}
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

// FindByBarcode is an exact match against the barcode index.
func (r *productRepository) FindByBarcode(ctx context.Context, code string) (*model.Product, error) {
	var product model.Product
	err := GetDB(ctx, r.db).Preload("Barcodes", orderByPosition).
		Where("is_active = ? AND id IN (?)", true,
			GetDB(ctx, r.db).Model(&model.ProductBarcode{}).Select("product_id").Where("code = ?", code)).
		First(&product).Error
	if err != nil {
		return nil, translate("find product by barcode", err, apperr.ErrProductNotFound)
	}
	return &product, nil
}

// Search matches name and SKU by case-insensitive substring and barcodes exactly.
func (r *productRepository) Search(ctx context.Context, query string, limit int) ([]model.Product, error) {
	var products []model.Product
	like := "%" + strings.ToLower(query) + "%"

	db := GetDB(ctx, r.db)
	err := db.Preload("Barcodes", orderByPosition).
		Where("is_active = ?", true).
		Where(db.Where("LOWER(name) LIKE ?", like).
			Or("LOWER(sku) LIKE ?", like).
			Or("id IN (?)", db.Model(&model.ProductBarcode{}).Select("product_id").Where("code = ?", query))).
		Order("name").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, apperr.Storage("search products", err)
	}
	return products, nil
}

func (r *productRepository) UpdateThresholds(ctx context.Context, id uuid.UUID, minStock int, maxStock *int) error {
	res := GetDB(ctx, r.db).Model(&model.Product{}).Where("id = ?", id).
		Updates(map[string]interface{}{"min_stock": minStock, "max_stock": maxStock})
	if res.Error != nil {
		return apperr.Storage("update stock thresholds", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) SetTrackInventory(ctx context.Context, id uuid.UUID, track bool) error {
	res := GetDB(ctx, r.db).Model(&model.Product{}).Where("id = ?", id).Update("track_inventory", track)
	if res.Error != nil {
		return apperr.Storage("update track inventory", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := GetDB(ctx, r.db).Model(&model.Product{}).Where("is_active = ?", true).Pluck("id", &ids).Error; err != nil {
		return nil, apperr.Storage("list active products", err)
	}
	return ids, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}
