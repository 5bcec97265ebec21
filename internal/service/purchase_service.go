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

type InvoiceLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type ReceiveInvoiceRequest struct {
	SupplierID  uuid.UUID     `json:"supplier_id"`
	BranchID    *uuid.UUID    `json:"branch_id"`    // defaults to the caller's branch
	InvoiceDate *time.Time    `json:"invoice_date"` // defaults to now
	Lines       []InvoiceLine `json:"lines"`
	Notes       string        `json:"notes"`
}

type PurchaseService interface {
	ReceiveInvoice(ctx context.Context, actor model.Actor, req ReceiveInvoiceRequest) (*model.PurchaseInvoice, error)
	GetByNumber(ctx context.Context, number string) (*model.PurchaseInvoice, error)
	List(ctx context.Context, status string, page, limit int) ([]model.PurchaseInvoice, int64, error)
}

type purchaseService struct {
	invoiceRepo repository.PurchaseInvoiceRepository
	productRepo repository.ProductRepository
	branchRepo  repository.BranchRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	ledger      StockLedger
	notifier    Notifier
	log         *zap.Logger
	newDocNo    docno.Generator
	now         func() time.Time
}

func NewPurchaseService(
	invoiceRepo repository.PurchaseInvoiceRepository,
	productRepo repository.ProductRepository,
	branchRepo repository.BranchRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	ledger StockLedger,
	notifier Notifier,
	log *zap.Logger,
) PurchaseService {
	return &purchaseService{
		invoiceRepo: invoiceRepo,
		productRepo: productRepo,
		branchRepo:  branchRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		ledger:      ledger,
		notifier:    notifier,
		log:         log,
		newDocNo:    docno.New,
		now:         utcNow,
	}
}

// ReceiveInvoice books supplier stock into a branch. Deltas are positive so
// the stock policy never rejects them.
func (s *purchaseService) ReceiveInvoice(ctx context.Context, actor model.Actor, req ReceiveInvoiceRequest) (*model.PurchaseInvoice, error) {
	if err := validateInvoiceLines(req); err != nil {
		return nil, err
	}

	branchID := actor.BranchID
	if req.BranchID != nil {
		branchID = *req.BranchID
	}

	var (
		invoice   *model.PurchaseInvoice
		movements []model.ProductMovement
		err       error
	)
	for attempt := 1; attempt <= maxDocNoAttempts; attempt++ {
		number := s.newDocNo(docno.PrefixPurchaseInvoice, s.now())
		err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			var rxErr error
			invoice, movements, rxErr = s.receive(txCtx, actor, branchID, number, req)
			return rxErr
		})
		if !errors.Is(err, apperr.ErrDuplicateIdentifier) || repository.InTx(ctx) {
			break
		}
		s.log.Warn("invoice number collision, retrying",
			zap.String("invoice_number", number),
			zap.Int("attempt", attempt))
	}
	if err != nil {
		s.log.Warn("purchase invoice rejected",
			zap.String("branch_id", branchID.String()),
			zap.String("supplier_id", req.SupplierID.String()),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("purchase invoice received",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("branch_id", invoice.BranchID.String()),
		zap.String("total_amount", invoice.TotalAmount.String()),
		zap.Int("lines", len(invoice.Items)))
	publishMovements(s.notifier, movements)
	s.notifier.Publish(EventInvoiceReceived, map[string]interface{}{
		"invoice_number": invoice.InvoiceNumber,
		"branch_id":      invoice.BranchID,
		"total_amount":   invoice.TotalAmount,
	})
	return invoice, nil
}

func (s *purchaseService) receive(ctx context.Context, actor model.Actor, branchID uuid.UUID, number string, req ReceiveInvoiceRequest) (*model.PurchaseInvoice, []model.ProductMovement, error) {
	if _, err := s.branchRepo.FindByID(ctx, branchID); err != nil {
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
			BranchID:      branchID,
			Delta:         line.Quantity,
			Type:          model.MovementPurchase,
			UserID:        actor.UserID,
			Reason:        "Purchase",
			Notes:         "Received on invoice " + number,
			ReferenceType: model.RefTypePurchaseInvoice,
			ReferenceNo:   number,
		})
		if err != nil {
			return nil, nil, err
		}
		movements = append(movements, *movement)
	}

	invoiceDate := s.now()
	if req.InvoiceDate != nil {
		invoiceDate = req.InvoiceDate.UTC()
	}

	invoice := &model.PurchaseInvoice{
		InvoiceNumber:  number,
		SupplierID:     req.SupplierID,
		UserID:         actor.UserID,
		BranchID:       branchID,
		InvoiceDate:    invoiceDate,
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
		Notes:          req.Notes,
		Status:         model.InvoiceStatusCompleted,
		Items:          make([]model.PurchaseInvoiceItem, 0, len(req.Lines)),
	}
	subtotal := decimal.Zero
	for _, line := range req.Lines {
		total := line.UnitCost.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(total)
		invoice.Items = append(invoice.Items, model.PurchaseInvoiceItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitCost:  line.UnitCost,
			Total:     total,
		})
	}
	invoice.Subtotal = subtotal
	invoice.TotalAmount = subtotal.Add(invoice.TaxAmount).Sub(invoice.DiscountAmount)

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, nil, err
	}

	if err := s.auditRepo.Log(ctx, auditEntry(actor, model.ActionReceiveInvoice, invoice.ID.String(), number, map[string]interface{}{
		"invoice_number": number,
		"supplier_id":    req.SupplierID,
		"branch_id":      branchID,
		"total_amount":   invoice.TotalAmount,
		"lines":          req.Lines,
	})); err != nil {
		return nil, nil, err
	}

	return invoice, movements, nil
}

func (s *purchaseService) GetByNumber(ctx context.Context, number string) (*model.PurchaseInvoice, error) {
	return s.invoiceRepo.FindByNumber(ctx, number)
}

func (s *purchaseService) List(ctx context.Context, status string, page, limit int) ([]model.PurchaseInvoice, int64, error) {
	return s.invoiceRepo.List(ctx, status, pagination.Normalize(page, limit))
}

func validateInvoiceLines(req ReceiveInvoiceRequest) error {
	if req.SupplierID == uuid.Nil {
		return fmt.Errorf("%w: supplier is required", apperr.ErrInvalidInput)
	}
	if len(req.Lines) == 0 {
		return apperr.ErrEmptyCart
	}
	for i, line := range req.Lines {
		if line.ProductID == uuid.Nil {
			return fmt.Errorf("%w: line %d has no product", apperr.ErrInvalidInput, i+1)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity %d", apperr.ErrInvalidQuantity, i+1, line.Quantity)
		}
		if line.UnitCost.IsNegative() {
			return fmt.Errorf("%w: line %d has a negative cost", apperr.ErrInvalidInput, i+1)
		}
	}
	return nil
}
