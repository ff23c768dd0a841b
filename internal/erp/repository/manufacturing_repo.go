package repository

import (
	"context"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ManufacturingRepository struct {
	db *gorm.DB
}

func NewManufacturingRepository(db *gorm.DB) *ManufacturingRepository {
	return &ManufacturingRepository{db: db}
}

func (r *ManufacturingRepository) WithTx(tx *gorm.DB) *ManufacturingRepository {
	return &ManufacturingRepository{db: tx}
}

func (r *ManufacturingRepository) Create(ctx context.Context, mo *entity.ManufacturingOrder) error {
	return r.db.WithContext(ctx).Create(mo).Error
}

func (r *ManufacturingRepository) GetByID(ctx context.Context, id string) (*entity.ManufacturingOrder, error) {
	var mo entity.ManufacturingOrder
	err := r.db.WithContext(ctx).
		Preload("Inputs", itemsByOrder).Preload("Outputs", itemsByOrder).
		Where("id = ?", id).First(&mo).Error
	if err != nil {
		return nil, err
	}
	return &mo, nil
}

func (r *ManufacturingRepository) Lock(ctx context.Context, id string) (*entity.ManufacturingOrder, error) {
	var mo entity.ManufacturingOrder
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&mo).Error
	if err != nil {
		return nil, err
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("mo_id = ?", id).Scopes(itemsByOrder).Find(&mo.Inputs).Error; err != nil {
		return nil, err
	}
	if err := db.Where("mo_id = ?", id).Scopes(itemsByOrder).Find(&mo.Outputs).Error; err != nil {
		return nil, err
	}
	return &mo, nil
}

func (r *ManufacturingRepository) Update(ctx context.Context, mo *entity.ManufacturingOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(mo).Error
}

func (r *ManufacturingRepository) UpdateInput(ctx context.Context, in *entity.MOInput) error {
	return r.db.WithContext(ctx).Save(in).Error
}

func (r *ManufacturingRepository) UpdateOutput(ctx context.Context, out *entity.MOOutput) error {
	return r.db.WithContext(ctx).Save(out).Error
}

type MOListParams struct {
	BranchID  string
	KarigarID string
	Status    string
	Keyword   string
	Page
}

func (r *ManufacturingRepository) List(ctx context.Context, params MOListParams) ([]entity.ManufacturingOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.ManufacturingOrder{})
	if params.BranchID != "" {
		query = query.Where("branch_id = ?", params.BranchID)
	}
	if params.KarigarID != "" {
		query = query.Where("karigar_id = ?", params.KarigarID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	query = query.Scopes(keywordScope(params.Keyword, "mo_number"))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.ManufacturingOrder
	err := query.Order("created_at DESC, mo_number DESC").
		Offset(params.Offset()).Limit(params.Limit()).Find(&list).Error
	return list, total, err
}
