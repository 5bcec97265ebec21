package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"retailpos/internal/apperr"
	"retailpos/internal/model"
	"retailpos/internal/repository"
	"retailpos/pkg/docno"
	"retailpos/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxDocNoAttempts bounds retries after a document number collision.
const maxDocNoAttempts = 3

type CompleteSaleRequest struct {
	Lines         []model.CartLine `json:"lines"`
	CustomerID    *uuid.UUID       `json:"customer_id"`
	PaymentMethod string           `json:"payment_method"`
	Notes         string           `json:"notes"`
}

type CompleteHeldSaleRequest struct {
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
}

type SaleService interface {
	CompleteSale(ctx context.Context, actor model.Actor, req CompleteSaleRequest) (*model.SaleTransaction, error)
	// CompleteHeldSale resumes a held cart and checks it out in one
	// transaction; a failed sale leaves the held cart in place.
	CompleteHeldSale(ctx context.Context, actor model.Actor, heldCartID uuid.UUID, req CompleteHeldSaleRequest) (*model.SaleTransaction, error)
	GetByNo(ctx context.Context, transactionNo string) (*model.SaleTransaction, error)
	List(ctx context.Context, branchID string, page, limit int) ([]model.SaleTransaction, int64, error)
}

type saleService struct {
	saleRepo    repository.SaleRepository
	productRepo repository.ProductRepository
	branchRepo  repository.BranchRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	ledger      StockLedger
	heldCarts   HeldCartService
	notifier    Notifier
	log         *zap.Logger
	newDocNo    docno.Generator
	now         func() time.Time
}

func NewSaleService(
	saleRepo repository.SaleRepository,
	productRepo repository.ProductRepository,
	branchRepo repository.BranchRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	ledger StockLedger,
	heldCarts HeldCartService,
	notifier Notifier,
	log *zap.Logger,
) SaleService {
	return &saleService{
		saleRepo:    saleRepo,
		productRepo: productRepo,
		branchRepo:  branchRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		ledger:      ledger,
		heldCarts:   heldCarts,
		notifier:    notifier,
		log:         log,
		newDocNo:    docno.New,
		now:         utcNow,
	}
}

func (s *saleService) CompleteSale(ctx context.Context, actor model.Actor, req CompleteSaleRequest) (*model.SaleTransaction, error) {
	if err := validateCartLines(req.Lines); err != nil {
		return nil, err
	}

	var movements []model.ProductMovement
	sale, err := s.withDocNo(ctx, func(txCtx context.Context, transactionNo string) (*model.SaleTransaction, error) {
		var (
			sale *model.SaleTransaction
			err  error
		)
		sale, movements, err = s.checkout(txCtx, actor, transactionNo, req)
		return sale, err
	})
	if err != nil {
		s.log.Warn("sale rejected",
			zap.String("branch_id", actor.BranchID.String()),
			zap.String("user_id", actor.UserID.String()),
			zap.Int("lines", len(req.Lines)),
			zap.Error(err))
		return nil, err
	}

	s.committed(sale, movements)
	return sale, nil
}

func (s *saleService) CompleteHeldSale(ctx context.Context, actor model.Actor, heldCartID uuid.UUID, req CompleteHeldSaleRequest) (*model.SaleTransaction, error) {
	var movements []model.ProductMovement
	sale, err := s.withDocNo(ctx, func(txCtx context.Context, transactionNo string) (*model.SaleTransaction, error) {
		resumed, err := s.heldCarts.Resume(txCtx, actor, heldCartID)
		if err != nil {
			return nil, err
		}

		notes := req.Notes
		if notes == "" {
			notes = resumed.Notes
		}
		checkoutReq := CompleteSaleRequest{
			Lines:         resumed.Lines,
			PaymentMethod: req.PaymentMethod,
			Notes:         notes,
		}
		if resumed.Customer != nil {
			checkoutReq.CustomerID = resumed.Customer.ID
		}
		if err := validateCartLines(checkoutReq.Lines); err != nil {
			return nil, err
		}

		var sale *model.SaleTransaction
		sale, movements, err = s.checkout(txCtx, actor, transactionNo, checkoutReq)
		return sale, err
	})
	if err != nil {
		s.log.Warn("held sale rejected",
			zap.String("held_cart_id", heldCartID.String()),
			zap.String("user_id", actor.UserID.String()),
			zap.Error(err))
		return nil, err
	}

	s.heldCarts.Invalidate(ctx, actor.UserID)
	s.committed(sale, movements)
	return sale, nil
}

func (s *saleService) GetByNo(ctx context.Context, transactionNo string) (*model.SaleTransaction, error) {
	return s.saleRepo.FindByNo(ctx, transactionNo)
}

func (s *saleService) List(ctx context.Context, branchID string, page, limit int) ([]model.SaleTransaction, int64, error) {
	return s.saleRepo.List(ctx, branchID, pagination.Normalize(page, limit))
}

// withDocNo runs fn in a fresh transaction with a new transaction number,
// retrying the whole unit when the number collides.
func (s *saleService) withDocNo(ctx context.Context, fn func(txCtx context.Context, transactionNo string) (*model.SaleTransaction, error)) (*model.SaleTransaction, error) {
	var (
		sale *model.SaleTransaction
		err  error
	)
	for attempt := 1; attempt <= maxDocNoAttempts; attempt++ {
		transactionNo := s.newDocNo(docno.PrefixSale, s.now())
		err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			var fnErr error
			sale, fnErr = fn(txCtx, transactionNo)
			return fnErr
		})
		if !errors.Is(err, apperr.ErrDuplicateIdentifier) || repository.InTx(ctx) {
			break
		}
		s.log.Warn("transaction number collision, retrying",
			zap.String("transaction_no", transactionNo),
			zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// checkout applies every line and persists the sale. It must run inside a
// transaction: any error rolls back every earlier line.
func (s *saleService) checkout(ctx context.Context, actor model.Actor, transactionNo string, req CompleteSaleRequest) (*model.SaleTransaction, []model.ProductMovement, error) {
	if _, err := s.branchRepo.FindByID(ctx, actor.BranchID); err != nil {
		return nil, nil, err
	}

	ids := make([]uuid.UUID, len(req.Lines))
	for i, line := range req.Lines {
		ids[i] = line.ProductID
	}
	products, err := s.productRepo.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", apperr.ErrProductNotFound, id)
		}
	}

	movements := make([]model.ProductMovement, 0, len(req.Lines))
	for _, i := range byProductID(ids) {
		line := req.Lines[i]
		movement, err := s.ledger.Post(ctx, MovementInput{
			ProductID:     line.ProductID,
			BranchID:      actor.BranchID,
			Delta:         -line.Quantity,
			Type:          model.MovementSale,
			UserID:        actor.UserID,
			Reason:        "Sale",
			Notes:         "Sold in transaction " + transactionNo,
			ReferenceType: model.RefTypeSale,
			ReferenceNo:   transactionNo,
			Untracked:     !products[line.ProductID].TrackInventory,
		})
		if err != nil {
			return nil, nil, err
		}
		movements = append(movements, *movement)
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = model.DefaultPaymentMethod
	}

	sale := &model.SaleTransaction{
		TransactionNo:  transactionNo,
		CustomerID:     req.CustomerID,
		UserID:         actor.UserID,
		BranchID:       actor.BranchID,
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
		PaymentMethod:  paymentMethod,
		Status:         model.SaleStatusCompleted,
		Notes:          req.Notes,
		Items:          make([]model.SaleTransactionItem, 0, len(req.Lines)),
	}
	subtotal := decimal.Zero
	for _, line := range req.Lines {
		total := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(total)
		sale.Items = append(sale.Items, model.SaleTransactionItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  decimal.Zero,
			Total:     total,
		})
	}
	// Tax and discount are not computed yet.
	sale.Subtotal = subtotal
	sale.TotalAmount = subtotal.Add(sale.TaxAmount).Sub(sale.DiscountAmount)

	if err := s.saleRepo.Create(ctx, sale); err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		names = append(names, products[line.ProductID].Name)
	}
	if err := s.auditRepo.Log(ctx, auditEntry(actor, model.ActionCompleteSale, sale.ID.String(), transactionNo, map[string]interface{}{
		"transaction_no": transactionNo,
		"total_amount":   sale.TotalAmount,
		"payment_method": paymentMethod,
		"products":       names,
		"lines":          req.Lines,
	})); err != nil {
		return nil, nil, err
	}

	return sale, movements, nil
}

func (s *saleService) committed(sale *model.SaleTransaction, movements []model.ProductMovement) {
	s.log.Info("sale completed",
		zap.String("transaction_no", sale.TransactionNo),
		zap.String("branch_id", sale.BranchID.String()),
		zap.String("user_id", sale.UserID.String()),
		zap.String("total_amount", sale.TotalAmount.String()),
		zap.Int("lines", len(sale.Items)))

	publishMovements(s.notifier, movements)
	s.notifier.Publish(EventSaleCompleted, map[string]interface{}{
		"transaction_no": sale.TransactionNo,
		"branch_id":      sale.BranchID,
		"total_amount":   sale.TotalAmount,
	})
}

// validateCartLines rejects carts before any write.
func validateCartLines(lines []model.CartLine) error {
	if len(lines) == 0 {
		return apperr.ErrEmptyCart
	}
	for i, line := range lines {
		if line.ProductID == uuid.Nil {
			return fmt.Errorf("%w: line %d has no product", apperr.ErrInvalidInput, i+1)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity %d", apperr.ErrInvalidQuantity, i+1, line.Quantity)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d has a negative price", apperr.ErrInvalidInput, i+1)
		}
	}
	return nil
}
