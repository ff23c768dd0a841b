package repository

import (
	"context"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) WithTx(tx *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: tx}
}

// --- Purchase Order ---

// CreatePO 同时写入订单行
func (r *PurchaseRepository) CreatePO(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

func (r *PurchaseRepository) GetPOByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Supplier").Preload("Branch").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Where("id = ?", id).First(&po).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// LockPO 行锁读取订单（sqlite 忽略 FOR UPDATE）
func (r *PurchaseRepository) LockPO(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&po).Error
	if err != nil {
		return nil, err
	}
	var items []entity.POItem
	if err := r.db.WithContext(ctx).Where("po_id = ?", id).Order("sort_order, id").Find(&items).Error; err != nil {
		return nil, err
	}
	po.Items = items
	return &po, nil
}

// UpdatePO 只更新订单头
func (r *PurchaseRepository) UpdatePO(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(po).Error
}

func (r *PurchaseRepository) UpdatePOItem(ctx context.Context, item *entity.POItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error
}

// ReplacePOItems 删除旧行并写入新行
func (r *PurchaseRepository) ReplacePOItems(ctx context.Context, poID string, items []entity.POItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("po_id = ?", poID).Delete(&entity.POItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.Omit(clause.Associations).Create(&items).Error
}

// DeletePO 删除订单及其行
func (r *PurchaseRepository) DeletePO(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("po_id = ?", id).Delete(&entity.POItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&entity.PurchaseOrder{}).Error
}

type POListParams struct {
	Status     string
	SupplierID string
	BranchID   string
	Keyword    string
	Page
}

func (r *PurchaseRepository) ListPOs(ctx context.Context, params POListParams) ([]entity.PurchaseOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.SupplierID != "" {
		query = query.Where("supplier_id = ?", params.SupplierID)
	}
	if params.BranchID != "" {
		query = query.Where("branch_id = ?", params.BranchID)
	}
	query = query.Scopes(keywordScope(params.Keyword, "po_number"))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var pos []entity.PurchaseOrder
	err := query.Preload("Supplier").Order("created_at DESC, po_number DESC").
		Offset(params.Offset()).Limit(params.Limit()).Find(&pos).Error
	return pos, total, err
}

// --- GRN ---

func (r *PurchaseRepository) CreateGRN(ctx context.Context, grn *entity.GRN) error {
	return r.db.WithContext(ctx).Omit("PurchaseOrder").Create(grn).Error
}

func (r *PurchaseRepository) GetGRNByID(ctx context.Context, id string) (*entity.GRN, error) {
	var grn entity.GRN
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Where("id = ?", id).First(&grn).Error
	if err != nil {
		return nil, err
	}
	return &grn, nil
}

func (r *PurchaseRepository) LockGRN(ctx context.Context, id string) (*entity.GRN, error) {
	var grn entity.GRN
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&grn).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("grn_id = ?", id).Order("sort_order, id").Find(&grn.Items).Error; err != nil {
		return nil, err
	}
	return &grn, nil
}

func (r *PurchaseRepository) UpdateGRN(ctx context.Context, grn *entity.GRN) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(grn).Error
}

func (r *PurchaseRepository) CountGRNsByPO(ctx context.Context, poID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.GRN{}).Where("po_id = ?", poID).Count(&count).Error
	return count, err
}

// ActiveGRNItems 订单下所有未取消 GRN 的明细
func (r *PurchaseRepository) ActiveGRNItems(ctx context.Context, poID string) ([]entity.GRNItem, error) {
	var items []entity.GRNItem
	err := r.db.WithContext(ctx).
		Joins("JOIN erp_grns ON erp_grns.id = erp_grn_items.grn_id").
		Where("erp_grns.po_id = ? AND erp_grns.status <> ?", poID, entity.GRNStatusCancelled).
		Find(&items).Error
	return items, err
}

type GRNListParams struct {
	POID       string
	SupplierID string
	Status     string
	Keyword    string
	Page
}

func (r *PurchaseRepository) ListGRNs(ctx context.Context, params GRNListParams) ([]entity.GRN, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.GRN{})
	if params.POID != "" {
		query = query.Where("po_id = ?", params.POID)
	}
	if params.SupplierID != "" {
		query = query.Where("supplier_id = ?", params.SupplierID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	query = query.Scopes(keywordScope(params.Keyword, "grn_number"))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var grns []entity.GRN
	err := query.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Order("created_at DESC, grn_number DESC").
		Offset(params.Offset()).Limit(params.Limit()).Find(&grns).Error
	return grns, total, err
}
