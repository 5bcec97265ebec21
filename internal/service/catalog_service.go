package service

import (
	"context"
	"fmt"
	"strings"

	"retailpos/internal/apperr"
	"retailpos/internal/model"
	"retailpos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

type CreateProductRequest struct {
	SKU            string          `json:"sku" binding:"required"`
	Name           string          `json:"name" binding:"required"`
	Description    string          `json:"description"`
	CategoryID     *uuid.UUID      `json:"category_id"`
	Price          decimal.Decimal `json:"price"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	MinStock       int             `json:"min_stock"`
	MaxStock       *int            `json:"max_stock"`
	TrackInventory *bool           `json:"track_inventory"`
	Barcodes       []string        `json:"barcodes"`
}

type CreateBranchRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type UpdateThresholdsRequest struct {
	MinStock int  `json:"min_stock"`
	MaxStock *int `json:"max_stock"`
}

// CatalogService holds the catalog writes the stock core depends on:
// introducing products and branches creates their stock rows.
type CatalogService interface {
	CreateProduct(ctx context.Context, actor model.Actor, req CreateProductRequest) (*model.Product, error)
	CreateBranch(ctx context.Context, actor model.Actor, req CreateBranchRequest) (*model.Branch, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByBarcode(ctx context.Context, code string) (*model.Product, error)
	Search(ctx context.Context, query string, limit int) ([]model.Product, error)
	UpdateStockThresholds(ctx context.Context, actor model.Actor, productID uuid.UUID, req UpdateThresholdsRequest) (*model.Product, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
	branchRepo  repository.BranchRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	ledger      StockLedger
	log         *zap.Logger
}

func NewCatalogService(
	productRepo repository.ProductRepository,
	branchRepo repository.BranchRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	ledger StockLedger,
	log *zap.Logger,
) CatalogService {
	return &catalogService{
		productRepo: productRepo,
		branchRepo:  branchRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		ledger:      ledger,
		log:         log,
	}
}

func (s *catalogService) CreateProduct(ctx context.Context, actor model.Actor, req CreateProductRequest) (*model.Product, error) {
	req.SKU = strings.TrimSpace(req.SKU)
	req.Name = strings.TrimSpace(req.Name)
	if req.SKU == "" || req.Name == "" {
		return nil, fmt.Errorf("%w: sku and name are required", apperr.ErrInvalidInput)
	}
	if req.Price.IsNegative() || req.CostPrice.IsNegative() {
		return nil, fmt.Errorf("%w: prices must not be negative", apperr.ErrInvalidInput)
	}
	if err := validateThresholds(req.MinStock, req.MaxStock); err != nil {
		return nil, err
	}
	barcodes, err := normalizeBarcodes(req.Barcodes)
	if err != nil {
		return nil, err
	}

	product := &model.Product{
		SKU:            req.SKU,
		Name:           req.Name,
		Description:    req.Description,
		CategoryID:     req.CategoryID,
		Price:          req.Price,
		CostPrice:      req.CostPrice,
		MinStock:       req.MinStock,
		MaxStock:       req.MaxStock,
		TrackInventory: true,
		IsActive:       true,
		Barcodes:       barcodes,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Create(txCtx, product); err != nil {
			return err
		}
		// track_inventory has a column default, so false is written separately.
		if req.TrackInventory != nil && !*req.TrackInventory {
			if err := s.productRepo.SetTrackInventory(txCtx, product.ID, false); err != nil {
				return err
			}
			product.TrackInventory = false
		}

		branchIDs, err := s.branchRepo.ListActiveIDs(txCtx)
		if err != nil {
			return err
		}
		for _, branchID := range branchIDs {
			if err := s.ledger.EnsureRow(txCtx, product.ID, branchID); err != nil {
				return err
			}
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionCreateProduct, product.ID.String(), product.Name, map[string]interface{}{
			"sku":      product.SKU,
			"price":    product.Price,
			"barcodes": product.BarcodeList(),
			"branches": len(branchIDs),
		}))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("product created", zap.String("product_id", product.ID.String()), zap.String("sku", product.SKU))
	return product, nil
}

func (s *catalogService) CreateBranch(ctx context.Context, actor model.Actor, req CreateBranchRequest) (*model.Branch, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: branch name is required", apperr.ErrInvalidInput)
	}

	branch := &model.Branch{
		Name:     req.Name,
		Address:  req.Address,
		Phone:    req.Phone,
		IsActive: true,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.branchRepo.Create(txCtx, branch); err != nil {
			return err
		}

		productIDs, err := s.productRepo.ListActiveIDs(txCtx)
		if err != nil {
			return err
		}
		for _, productID := range productIDs {
			if err := s.ledger.EnsureRow(txCtx, productID, branch.ID); err != nil {
				return err
			}
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionCreateBranch, branch.ID.String(), branch.Name, map[string]interface{}{
			"products": len(productIDs),
		}))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("branch created", zap.String("branch_id", branch.ID.String()), zap.String("name", branch.Name))
	return branch, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// FindByBarcode matches one barcode exactly; "123" never matches "41235".
func (s *catalogService) FindByBarcode(ctx context.Context, code string) (*model.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: barcode is required", apperr.ErrInvalidInput)
	}
	return s.productRepo.FindByBarcode(ctx, code)
}

func (s *catalogService) Search(ctx context.Context, query string, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return s.productRepo.Search(ctx, strings.TrimSpace(query), limit)
}

func (s *catalogService) UpdateStockThresholds(ctx context.Context, actor model.Actor, productID uuid.UUID, req UpdateThresholdsRequest) (*model.Product, error) {
	if err := validateThresholds(req.MinStock, req.MaxStock); err != nil {
		return nil, err
	}

	var product *model.Product
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.UpdateThresholds(txCtx, productID, req.MinStock, req.MaxStock); err != nil {
			return err
		}

		var err error
		if product, err = s.productRepo.FindByID(txCtx, productID); err != nil {
			return err
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionUpdateThresholds, product.ID.String(), product.Name, req))
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func validateThresholds(minStock int, maxStock *int) error {
	if minStock < 0 {
		return fmt.Errorf("%w: min_stock must not be negative", apperr.ErrInvalidInput)
	}
	if maxStock != nil && *maxStock < minStock {
		return fmt.Errorf("%w: max_stock must not be below min_stock", apperr.ErrInvalidInput)
	}
	return nil
}

// normalizeBarcodes trims codes, drops blanks and keeps the given order.
func normalizeBarcodes(codes []string) ([]model.ProductBarcode, error) {
	seen := make(map[string]bool, len(codes))
	out := make([]model.ProductBarcode, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if seen[code] {
			return nil, fmt.Errorf("%w: barcode %s listed twice", apperr.ErrInvalidInput, code)
		}
		seen[code] = true
		out = append(out, model.ProductBarcode{Code: code, Position: len(out)})
	}
	return out, nil
}
