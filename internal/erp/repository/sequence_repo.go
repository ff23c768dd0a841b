package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

func (r *SequenceRepository) WithTx(tx *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: tx}
}

// Next 原子递增并返回计数器的新值（首次为1）
func (r *SequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO erp_sequences (name, value, updated_at) VALUES (?, 1, ?)
		ON CONFLICT (name) DO UPDATE SET value = erp_sequences.value + 1, updated_at = excluded.updated_at
		RETURNING value
	`, name, time.Now()).Scan(&value).Error
	return value, err
}
