package repository

import (
	"context"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

func (r *StockRepository) WithTx(tx *gorm.DB) *StockRepository {
	return &StockRepository{db: tx}
}

// LockStock 行锁读取 (商品, 门店) 的库存余额
func (r *StockRepository) LockStock(ctx context.Context, itemID, branchID string) (*entity.Stock, error) {
	var stock entity.Stock
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("inventory_item_id = ? AND branch_id = ?", itemID, branchID).
		First(&stock).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *StockRepository) GetStock(ctx context.Context, itemID, branchID string) (*entity.Stock, error) {
	var stock entity.Stock
	err := r.db.WithContext(ctx).Preload("InventoryItem").Preload("Branch").
		Where("inventory_item_id = ? AND branch_id = ?", itemID, branchID).
		First(&stock).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// EnsureStock 首次变动时建立零余额行；已存在则不做任何事
func (r *StockRepository) EnsureStock(ctx context.Context, itemID, branchID string) error {
	stock := &entity.Stock{ID: entity.NewID(), InventoryItemID: itemID, BranchID: branchID}
	return r.db.WithContext(ctx).Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).Create(stock).Error
}

func (r *StockRepository) SaveStock(ctx context.Context, stock *entity.Stock) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(stock).Error
}

type StockListParams struct {
	InventoryItemID string
	BranchID        string
	Page
}

func (r *StockRepository) ListStock(ctx context.Context, params StockListParams) ([]entity.Stock, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Stock{})
	if params.InventoryItemID != "" {
		query = query.Where("inventory_item_id = ?", params.InventoryItemID)
	}
	if params.BranchID != "" {
		query = query.Where("branch_id = ?", params.BranchID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.Stock
	err := query.Preload("InventoryItem").Preload("Branch").
		Order("branch_id, inventory_item_id").
		Offset(params.Offset()).Limit(params.Limit()).Find(&list).Error
	return list, total, err
}

// AllStock 报表用，不分页
func (r *StockRepository) AllStock(ctx context.Context, branchID string) ([]entity.Stock, error) {
	query := r.db.WithContext(ctx).Preload("InventoryItem").Preload("Branch")
	if branchID != "" {
		query = query.Where("branch_id = ?", branchID)
	}
	var list []entity.Stock
	err := query.Order("branch_id, inventory_item_id").Find(&list).Error
	return list, err
}

func (r *StockRepository) CreateMovement(ctx context.Context, m *entity.StockMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

type MovementListParams struct {
	InventoryItemID string
	BranchID        string
	Type            string
	ReferenceID     string
	Page
}

// ListMovements 最新的在前
func (r *StockRepository) ListMovements(ctx context.Context, params MovementListParams) ([]entity.StockMovement, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.StockMovement{})
	if params.InventoryItemID != "" {
		query = query.Where("inventory_item_id = ?", params.InventoryItemID)
	}
	if params.BranchID != "" {
		query = query.Where("branch_id = ?", params.BranchID)
	}
	if params.Type != "" {
		query = query.Where("type = ?", params.Type)
	}
	if params.ReferenceID != "" {
		query = query.Where("reference_id = ?", params.ReferenceID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.StockMovement
	err := query.Order("created_at DESC, sequence DESC, id").
		Offset(params.Offset()).Limit(params.Limit()).Find(&list).Error
	return list, total, err
}

// MovementChain 按序号升序返回 (商品, 门店) 的全部流水
func (r *StockRepository) MovementChain(ctx context.Context, itemID, branchID string) ([]entity.StockMovement, error) {
	var list []entity.StockMovement
	err := r.db.WithContext(ctx).
		Where("inventory_item_id = ? AND branch_id = ?", itemID, branchID).
		Order("sequence ASC").Find(&list).Error
	return list, err
}
