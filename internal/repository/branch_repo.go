package repository

import (
	"context"

	"retailpos/internal/apperr"
	"retailpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BranchRepository interface {
	Create(ctx context.Context, branch *model.Branch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Branch, error)
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

type branchRepository struct {
	db *gorm.DB
}

func NewBranchRepository(db *gorm.DB) BranchRepository {
	return &branchRepository{db: db}
}

func (r *branchRepository) Create(ctx context.Context, branch *model.Branch) error {
	return translate("create branch", GetDB(ctx, r.db).Create(branch).Error, nil)
}

func (r *branchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Branch, error) {
	var branch model.Branch
	if err := GetDB(ctx, r.db).First(&branch, "id = ?", id).Error; err != nil {
		return nil, translate("find branch", err, apperr.ErrNotFound)
	}
	return &branch, nil
}

func (r *branchRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := GetDB(ctx, r.db).Model(&model.Branch{}).Where("is_active = ?", true).Pluck("id", &ids).Error; err != nil {
		return nil, apperr.Storage("list active branches", err)
	}
	return ids, nil
}
