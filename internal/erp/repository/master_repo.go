package repository

import (
	"context"

	"gorm.io/gorm"
)

// MasterRepository 基础数据通用仓库
type MasterRepository[T any] struct {
	db         *gorm.DB
	searchCols []string
}

func NewMasterRepository[T any](db *gorm.DB, searchCols ...string) *MasterRepository[T] {
	return &MasterRepository[T]{db: db, searchCols: searchCols}
}

func (r *MasterRepository[T]) Create(ctx context.Context, rec *T) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *MasterRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var rec T
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *MasterRepository[T]) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// Update 覆盖全部业务字段，保留 created_at 和 image_path
func (r *MasterRepository[T]) Update(ctx context.Context, id string, rec *T) error {
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).
		Select("*").Omit("id", "created_at", "image_path").Updates(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *MasterRepository[T]) SetColumn(ctx context.Context, id, column string, value interface{}) error {
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete returns gorm.ErrRecordNotFound when no row matched.
func (r *MasterRepository[T]) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type MasterListParams struct {
	Keyword string
	Filters map[string]string
	Page
}

func (r *MasterRepository[T]) List(ctx context.Context, params MasterListParams) ([]T, int64, error) {
	query := r.db.WithContext(ctx).Model(new(T)).Scopes(keywordScope(params.Keyword, r.searchCols...))
	for col, v := range params.Filters {
		if v != "" {
			query = query.Where(col+" = ?", v)
		}
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []T
	err := query.Order("created_at DESC, id").
		Offset(params.Offset()).Limit(params.Limit()).Find(&list).Error
	return list, total, err
}
