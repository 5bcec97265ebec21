package service

import (
	"context"
	"errors"
	"time"

	"retailpos/internal/apperr"
	"retailpos/internal/cache"
	"retailpos/internal/model"
	"retailpos/internal/repository"
	"retailpos/pkg/docno"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type HoldCartRequest struct {
	Lines    []model.CartLine        `json:"lines"`
	Customer *model.CustomerSnapshot `json:"customer"`
	Notes    string                  `json:"notes"`
}

// HeldCartService parks carts per user. Expired carts stay in storage but
// are invisible to every operation.
type HeldCartService interface {
	Hold(ctx context.Context, actor model.Actor, req HoldCartRequest) (*model.HeldCart, error)
	// Resume returns the cart and deletes it. A cart is resumed at most once.
	Resume(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.HeldCart, error)
	Discard(ctx context.Context, actor model.Actor, id uuid.UUID) error
	CountActive(ctx context.Context, userID uuid.UUID) (int64, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]model.HeldCart, error)
	// Invalidate drops the cached count after a change committed elsewhere.
	Invalidate(ctx context.Context, userID uuid.UUID)
}

type heldCartService struct {
	heldCartRepo repository.HeldCartRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	counts       cache.HeldCountCache
	ttl          time.Duration
	countTTL     time.Duration
	log          *zap.Logger
	newDocNo     docno.Generator
	now          func() time.Time
}

func NewHeldCartService(
	heldCartRepo repository.HeldCartRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	counts cache.HeldCountCache,
	ttl time.Duration,
	countTTL time.Duration,
	log *zap.Logger,
) HeldCartService {
	return &heldCartService{
		heldCartRepo: heldCartRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		counts:       counts,
		ttl:          ttl,
		countTTL:     countTTL,
		log:          log,
		newDocNo:     docno.New,
		now:          utcNow,
	}
}

func (s *heldCartService) Hold(ctx context.Context, actor model.Actor, req HoldCartRequest) (*model.HeldCart, error) {
	if err := validateCartLines(req.Lines); err != nil {
		return nil, err
	}

	var (
		cart *model.HeldCart
		err  error
	)
	for attempt := 1; attempt <= maxDocNoAttempts; attempt++ {
		now := s.now()
		cart = &model.HeldCart{
			HoldCode:  s.newDocNo(docno.PrefixHeldCart, now),
			UserID:    actor.UserID,
			BranchID:  actor.BranchID,
			Lines:     req.Lines,
			Customer:  req.Customer,
			Notes:     req.Notes,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}

		err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.heldCartRepo.Create(txCtx, cart); err != nil {
				return err
			}
			return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionHoldCart, cart.ID.String(), cart.HoldCode, map[string]interface{}{
				"hold_code":  cart.HoldCode,
				"lines":      len(cart.Lines),
				"expires_at": cart.ExpiresAt,
			}))
		})
		if !errors.Is(err, apperr.ErrDuplicateIdentifier) || repository.InTx(ctx) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, actor.UserID)
	s.log.Info("cart held",
		zap.String("hold_code", cart.HoldCode),
		zap.String("user_id", actor.UserID.String()),
		zap.Time("expires_at", cart.ExpiresAt))
	return cart, nil
}

func (s *heldCartService) Resume(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.HeldCart, error) {
	var cart *model.HeldCart
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if cart, err = s.heldCartRepo.Take(txCtx, id, actor.UserID, s.now()); err != nil {
			return err
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionResumeCart, cart.ID.String(), cart.HoldCode, map[string]interface{}{
			"hold_code": cart.HoldCode,
			"lines":     len(cart.Lines),
		}))
	})
	if err != nil {
		return nil, err
	}

	// Inside a caller's transaction the caller invalidates after commit.
	if !repository.InTx(ctx) {
		s.Invalidate(ctx, actor.UserID)
	}
	s.log.Info("cart resumed",
		zap.String("hold_code", cart.HoldCode),
		zap.String("user_id", actor.UserID.String()))
	return cart, nil
}

func (s *heldCartService) Discard(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.heldCartRepo.Delete(txCtx, id, actor.UserID, s.now()); err != nil {
			return err
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionDiscardCart, id.String(), "", nil))
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, actor.UserID)
	return nil
}

// CountActive serves the badge count from cache when possible. Cache errors
// are logged and fall through to the database. A cached count never outlives
// the earliest expiry it includes.
func (s *heldCartService) CountActive(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, ok, err := s.counts.Get(ctx, userID)
	if err != nil {
		s.log.Warn("held cart count cache read failed", zap.Error(err))
	}
	if ok {
		return count, nil
	}

	version, err := s.counts.Version(ctx, userID)
	cacheable := err == nil
	if err != nil {
		s.log.Warn("held cart count cache version read failed", zap.Error(err))
	}

	now := s.now()
	active, err := s.heldCartRepo.CountActive(ctx, userID, now)
	if err != nil {
		return 0, err
	}

	ttl := s.countTTL
	if active.NextExpiry != nil {
		if untilExpiry := active.NextExpiry.Sub(now); untilExpiry < ttl {
			ttl = untilExpiry
		}
	}
	if cacheable && ttl > 0 {
		if err := s.counts.SetIfVersion(ctx, userID, version, active.Count, ttl); err != nil {
			s.log.Warn("held cart count cache write failed", zap.Error(err))
		}
	}
	return active.Count, nil
}

func (s *heldCartService) ListActive(ctx context.Context, userID uuid.UUID) ([]model.HeldCart, error) {
	return s.heldCartRepo.ListActive(ctx, userID, s.now())
}

func (s *heldCartService) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := s.counts.Invalidate(ctx, userID); err != nil {
		s.log.Warn("held cart count cache invalidation failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
