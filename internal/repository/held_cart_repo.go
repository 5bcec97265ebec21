package repository

import (
	"context"
	"time"

	"retailpos/internal/apperr"
	"retailpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HeldCartRepository filters expired rows on every read; nothing reaps them.
type HeldCartRepository interface {
	Create(ctx context.Context, cart *model.HeldCart) error
	Take(ctx context.Context, id, userID uuid.UUID, now time.Time) (*model.HeldCart, error)
	Delete(ctx context.Context, id, userID uuid.UUID, now time.Time) error
	CountActive(ctx context.Context, userID uuid.UUID, now time.Time) (ActiveCarts, error)
	ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.HeldCart, error)
}

// ActiveCarts is a user's visible cart count and the earliest expiry among
// those carts, nil when there are none.
type ActiveCarts struct {
	Count      int64
	NextExpiry *time.Time
}

type heldCartRepository struct {
	db *gorm.DB
}

func NewHeldCartRepository(db *gorm.DB) HeldCartRepository {
	return &heldCartRepository{db: db}
}

func (r *heldCartRepository) Create(ctx context.Context, cart *model.HeldCart) error {
	return translate("hold cart", GetDB(ctx, r.db).Create(cart).Error, nil)
}

// Take reads and deletes a visible held cart. Only the caller whose DELETE
// affects the row gets it back, so a cart is taken at most once.
// Call it inside a transaction so the read and delete commit together.
func (r *heldCartRepository) Take(ctx context.Context, id, userID uuid.UUID, now time.Time) (*model.HeldCart, error) {
	db := GetDB(ctx, r.db)

	var cart model.HeldCart
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ? AND user_id = ? AND expires_at > ?", id, userID, now).
		First(&cart).Error; err != nil {
		return nil, translate("find held cart", err, apperr.ErrNotFound)
	}

	res := db.Where("id = ? AND user_id = ? AND expires_at > ?", id, userID, now).Delete(&model.HeldCart{})
	if res.Error != nil {
		return nil, apperr.Storage("take held cart", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrNotFound
	}
	return &cart, nil
}

func (r *heldCartRepository) Delete(ctx context.Context, id, userID uuid.UUID, now time.Time) error {
	res := GetDB(ctx, r.db).Where("id = ? AND user_id = ? AND expires_at > ?", id, userID, now).Delete(&model.HeldCart{})
	if res.Error != nil {
		return apperr.Storage("discard held cart", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// CountActive reads the expiries of the visible carts in one statement so
// the count and the earliest expiry agree.
func (r *heldCartRepository) CountActive(ctx context.Context, userID uuid.UUID, now time.Time) (ActiveCarts, error) {
	var expiries []time.Time
	if err := GetDB(ctx, r.db).Model(&model.HeldCart{}).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("expires_at ASC").
		Pluck("expires_at", &expiries).Error; err != nil {
		return ActiveCarts{}, apperr.Storage("count held carts", err)
	}

	active := ActiveCarts{Count: int64(len(expiries))}
	if len(expiries) > 0 {
		active.NextExpiry = &expiries[0]
	}
	return active, nil
}

func (r *heldCartRepository) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.HeldCart, error) {
	carts := []model.HeldCart{}
	if err := GetDB(ctx, r.db).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("created_at DESC").
		Find(&carts).Error; err != nil {
		return nil, apperr.Storage("list held carts", err)
	}
	return carts, nil
}
