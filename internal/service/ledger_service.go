package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"retailpos/internal/apperr"
	"retailpos/internal/model"
	"retailpos/internal/repository"
	"retailpos/pkg/docno"
	"retailpos/pkg/pagination"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MovementInput is one signed change of a (product, branch) stock row.
type MovementInput struct {
	ProductID     uuid.UUID
	BranchID      uuid.UUID
	Delta         int
	Type          string
	UserID        uuid.UUID
	Reason        string
	Notes         string
	ReferenceType string
	ReferenceNo   string

	// Untracked products never block on stock; the movement is still booked.
	Untracked bool
}

type ManualMovementRequest struct {
	ProductID uuid.UUID  `json:"product_id" binding:"required"`
	BranchID  *uuid.UUID `json:"branch_id"` // defaults to the caller's branch
	Type      string     `json:"movement_type" binding:"required"`
	Quantity  int        `json:"quantity" binding:"required"` // signed
	Reason    string     `json:"reason"`
	Notes     string     `json:"notes"`
}

type TransferRequest struct {
	ProductID    uuid.UUID `json:"product_id" binding:"required"`
	FromBranchID uuid.UUID `json:"from_branch_id" binding:"required"`
	ToBranchID   uuid.UUID `json:"to_branch_id" binding:"required"`
	Quantity     int       `json:"quantity" binding:"required"`
	Notes        string    `json:"notes"`
}

type TransferResult struct {
	ReferenceNo string                `json:"reference_no"`
	Outgoing    model.ProductMovement `json:"outgoing"`
	Incoming    model.ProductMovement `json:"incoming"`
}

// Reconciliation compares a stock row with the replay of its movements.
type Reconciliation struct {
	ProductID   uuid.UUID `json:"product_id"`
	BranchID    uuid.UUID `json:"branch_id"`
	Quantity    int       `json:"quantity"`
	MovementSum int       `json:"movement_sum"`
	Consistent  bool      `json:"consistent"`
}

// StockLedger is the single mutation point for on-hand quantity. Every
// change goes through Post, which applies the delta and appends the matching
// movement in one transaction.
type StockLedger interface {
	Post(ctx context.Context, in MovementInput) (*model.ProductMovement, error)
	GetQuantity(ctx context.Context, productID, branchID uuid.UUID) (int, error)
	EnsureRow(ctx context.Context, productID, branchID uuid.UUID) error
	IsStrict(movementType string) bool

	RecordManualMovement(ctx context.Context, actor model.Actor, req ManualMovementRequest) (*model.ProductMovement, error)
	Transfer(ctx context.Context, actor model.Actor, req TransferRequest) (*TransferResult, error)

	LowStock(ctx context.Context, branchID *uuid.UUID) ([]model.LowStockItem, error)
	StockLevels(ctx context.Context, search string, branchID *uuid.UUID, page, limit int) ([]model.StockLevelItem, int64, error)
	StockTotals(ctx context.Context, search string, page, limit int) ([]model.ProductStockTotal, int64, error)
	Movements(ctx context.Context, productID uuid.UUID, branchID *uuid.UUID, page, limit int) ([]model.ProductMovement, int64, error)
	ReferenceMovements(ctx context.Context, referenceType, referenceNo string) ([]model.ProductMovement, error)
	Reconcile(ctx context.Context, productID, branchID uuid.UUID) (*Reconciliation, error)
}

type stockLedger struct {
	stockRepo    repository.StockRepository
	movementRepo repository.MovementRepository
	productRepo  repository.ProductRepository
	branchRepo   repository.BranchRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	notifier     Notifier
	log          *zap.Logger
	strict       map[string]bool
	newDocNo     docno.Generator
	now          func() time.Time
}

func NewStockLedger(
	stockRepo repository.StockRepository,
	movementRepo repository.MovementRepository,
	productRepo repository.ProductRepository,
	branchRepo repository.BranchRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
	strictTypes []string,
	log *zap.Logger,
) StockLedger {
	strict := make(map[string]bool, len(strictTypes))
	for _, t := range strictTypes {
		strict[t] = true
	}
	return &stockLedger{
		stockRepo:    stockRepo,
		movementRepo: movementRepo,
		productRepo:  productRepo,
		branchRepo:   branchRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		notifier:     notifier,
		log:          log,
		strict:       strict,
		newDocNo:     docno.New,
		now:          utcNow,
	}
}

// IsStrict reports whether movements of this type may not drive stock negative.
func (s *stockLedger) IsStrict(movementType string) bool {
	return s.strict[movementType]
}

func (s *stockLedger) GetQuantity(ctx context.Context, productID, branchID uuid.UUID) (int, error) {
	return s.stockRepo.GetQuantity(ctx, productID, branchID)
}

func (s *stockLedger) EnsureRow(ctx context.Context, productID, branchID uuid.UUID) error {
	return s.stockRepo.EnsureRow(ctx, productID, branchID)
}

// Post joins the caller's transaction when there is one. Positive deltas are
// never rejected, so receiving stock can always bring a negative row back up.
func (s *stockLedger) Post(ctx context.Context, in MovementInput) (*model.ProductMovement, error) {
	if !model.ValidMovementType(in.Type) {
		return nil, fmt.Errorf("%w: unknown movement type %q", apperr.ErrInvalidInput, in.Type)
	}
	if in.Delta == 0 {
		return nil, apperr.ErrInvalidQuantity
	}

	var movement *model.ProductMovement
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.stockRepo.EnsureRow(txCtx, in.ProductID, in.BranchID); err != nil {
			return err
		}

		allowNegative := in.Delta > 0 || in.Untracked || !s.IsStrict(in.Type)
		qty, err := s.stockRepo.ApplyDelta(txCtx, in.ProductID, in.BranchID, in.Delta, allowNegative)
		if err != nil {
			return err
		}

		movement = &model.ProductMovement{
			ProductID:     in.ProductID,
			BranchID:      in.BranchID,
			MovementType:  in.Type,
			Quantity:      in.Delta,
			QuantityAfter: qty,
			UserID:        in.UserID,
			Reason:        in.Reason,
			Notes:         in.Notes,
			ReferenceType: in.ReferenceType,
			ReferenceNo:   in.ReferenceNo,
		}
		return s.movementRepo.Create(txCtx, movement)
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *stockLedger) RecordManualMovement(ctx context.Context, actor model.Actor, req ManualMovementRequest) (*model.ProductMovement, error) {
	switch req.Type {
	case model.MovementAdjustment:
		if req.Quantity == 0 {
			return nil, apperr.ErrInvalidQuantity
		}
	case model.MovementReturn:
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("%w: returns add stock", apperr.ErrInvalidQuantity)
		}
	default:
		return nil, fmt.Errorf("%w: manual movements must be %s or %s", apperr.ErrInvalidInput, model.MovementAdjustment, model.MovementReturn)
	}

	branchID := actor.BranchID
	if req.BranchID != nil {
		branchID = *req.BranchID
	}

	var movement *model.ProductMovement
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.activeProduct(txCtx, req.ProductID)
		if err != nil {
			return err
		}
		if _, err := s.branchRepo.FindByID(txCtx, branchID); err != nil {
			return err
		}

		movement, err = s.Post(txCtx, MovementInput{
			ProductID:     product.ID,
			BranchID:      branchID,
			Delta:         req.Quantity,
			Type:          req.Type,
			UserID:        actor.UserID,
			Reason:        req.Reason,
			Notes:         req.Notes,
			ReferenceType: model.RefTypeManual,
		})
		if err != nil {
			return err
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionManualMovement, movement.ID.String(), product.Name, map[string]interface{}{
			"product_id":     product.ID,
			"branch_id":      branchID,
			"movement_type":  req.Type,
			"quantity":       req.Quantity,
			"quantity_after": movement.QuantityAfter,
			"reason":         req.Reason,
		}))
	})
	if err != nil {
		s.log.Warn("manual movement rejected",
			zap.String("product_id", req.ProductID.String()),
			zap.String("branch_id", branchID.String()),
			zap.Int("delta", req.Quantity),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("manual movement recorded",
		zap.String("movement_id", movement.ID.String()),
		zap.String("product_id", movement.ProductID.String()),
		zap.String("branch_id", movement.BranchID.String()),
		zap.String("movement_type", movement.MovementType),
		zap.Int("delta", movement.Quantity))
	s.publish(*movement)
	return movement, nil
}

// Transfer moves stock between two branches as a pair of transfer movements.
func (s *stockLedger) Transfer(ctx context.Context, actor model.Actor, req TransferRequest) (*TransferResult, error) {
	if req.Quantity <= 0 {
		return nil, apperr.ErrInvalidQuantity
	}
	if req.FromBranchID == req.ToBranchID {
		return nil, fmt.Errorf("%w: source and destination branch are the same", apperr.ErrInvalidInput)
	}

	result := &TransferResult{ReferenceNo: s.newDocNo(docno.PrefixTransfer, s.now())}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.activeProduct(txCtx, req.ProductID)
		if err != nil {
			return err
		}
		for _, id := range []uuid.UUID{req.FromBranchID, req.ToBranchID} {
			if _, err := s.branchRepo.FindByID(txCtx, id); err != nil {
				return err
			}
		}

		legs := []MovementInput{
			{BranchID: req.FromBranchID, Delta: -req.Quantity, Notes: "Transfer to " + req.ToBranchID.String()},
			{BranchID: req.ToBranchID, Delta: req.Quantity, Notes: "Transfer from " + req.FromBranchID.String()},
		}
		// Rows are always locked in branch order.
		order := []int{0, 1}
		if bytes.Compare(req.ToBranchID[:], req.FromBranchID[:]) < 0 {
			order = []int{1, 0}
		}

		posted := make([]*model.ProductMovement, 2)
		for _, i := range order {
			leg := legs[i]
			leg.ProductID = product.ID
			leg.Type = model.MovementTransfer
			leg.UserID = actor.UserID
			leg.Reason = "Transfer"
			if req.Notes != "" {
				leg.Notes += ": " + req.Notes
			}
			leg.ReferenceType = model.RefTypeTransfer
			leg.ReferenceNo = result.ReferenceNo

			if posted[i], err = s.Post(txCtx, leg); err != nil {
				return err
			}
		}
		result.Outgoing, result.Incoming = *posted[0], *posted[1]

		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionTransferStock, result.ReferenceNo, product.Name, map[string]interface{}{
			"product_id":     product.ID,
			"from_branch_id": req.FromBranchID,
			"to_branch_id":   req.ToBranchID,
			"quantity":       req.Quantity,
		}))
	})
	if err != nil {
		s.log.Warn("stock transfer rejected",
			zap.String("product_id", req.ProductID.String()),
			zap.String("from_branch_id", req.FromBranchID.String()),
			zap.String("to_branch_id", req.ToBranchID.String()),
			zap.Int("quantity", req.Quantity),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("stock transferred",
		zap.String("reference_no", result.ReferenceNo),
		zap.String("product_id", req.ProductID.String()),
		zap.Int("quantity", req.Quantity))
	s.publish(result.Outgoing, result.Incoming)
	return result, nil
}

func (s *stockLedger) LowStock(ctx context.Context, branchID *uuid.UUID) ([]model.LowStockItem, error) {
	return s.stockRepo.ListLowStock(ctx, branchID)
}

func (s *stockLedger) StockLevels(ctx context.Context, search string, branchID *uuid.UUID, page, limit int) ([]model.StockLevelItem, int64, error) {
	return s.stockRepo.ListLevels(ctx, search, branchID, pagination.Normalize(page, limit))
}

// StockTotals includes active products that have no stock rows yet, at zero.
func (s *stockLedger) StockTotals(ctx context.Context, search string, page, limit int) ([]model.ProductStockTotal, int64, error) {
	return s.stockRepo.ListTotals(ctx, search, pagination.Normalize(page, limit))
}

func (s *stockLedger) Movements(ctx context.Context, productID uuid.UUID, branchID *uuid.UUID, page, limit int) ([]model.ProductMovement, int64, error) {
	return s.movementRepo.ListByProduct(ctx, productID, branchID, pagination.Normalize(page, limit))
}

// ReferenceMovements lists the movements booked by one sale, invoice or transfer.
func (s *stockLedger) ReferenceMovements(ctx context.Context, referenceType, referenceNo string) ([]model.ProductMovement, error) {
	if referenceType == "" || referenceNo == "" {
		return nil, fmt.Errorf("%w: reference type and number are required", apperr.ErrInvalidInput)
	}
	return s.movementRepo.ListByReference(ctx, referenceType, referenceNo)
}

// Reconcile reads the row and the movement sum in one transaction so both
// describe the same committed state.
func (s *stockLedger) Reconcile(ctx context.Context, productID, branchID uuid.UUID) (*Reconciliation, error) {
	rec := &Reconciliation{ProductID: productID, BranchID: branchID}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if rec.Quantity, err = s.stockRepo.GetQuantity(txCtx, productID, branchID); err != nil {
			return err
		}
		rec.MovementSum, err = s.movementRepo.SumDeltas(txCtx, productID, branchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	rec.Consistent = rec.Quantity == rec.MovementSum
	return rec, nil
}

func (s *stockLedger) activeProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperr.ErrProductNotFound
	}
	return product, nil
}

func (s *stockLedger) publish(movements ...model.ProductMovement) {
	publishMovements(s.notifier, movements)
}

func publishMovements(n Notifier, movements []model.ProductMovement) {
	for _, m := range movements {
		n.Publish(EventStockUpdated, StockChange{
			ProductID:    m.ProductID.String(),
			BranchID:     m.BranchID.String(),
			MovementType: m.MovementType,
			Delta:        m.Quantity,
			Quantity:     m.QuantityAfter,
			ReferenceNo:  m.ReferenceNo,
		})
	}
}

// byProductID returns line indexes ordered by product id; lines of the same
// product keep their cart order.
func byProductID(ids []uuid.UUID) []int {
	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return bytes.Compare(ids[order[a]][:], ids[order[b]][:]) < 0
	})
	return order
}

func utcNow() time.Time {
	return time.Now().UTC()
}
