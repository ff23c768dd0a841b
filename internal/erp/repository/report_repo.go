package repository

import (
	"context"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) GetByKey(ctx context.Context, key string) (*entity.ReportCache, error) {
	var rc entity.ReportCache
	if err := r.db.WithContext(ctx).Where("cache_key = ?", key).First(&rc).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

// Upsert 按 cache_key 覆盖
func (r *ReportRepository) Upsert(ctx context.Context, rc *entity.ReportCache) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "params", "generated_by", "generated_at"}),
	}).Create(rc).Error
}
