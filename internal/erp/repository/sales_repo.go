package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SalesRepository struct {
	db *gorm.DB
}

func NewSalesRepository(db *gorm.DB) *SalesRepository {
	return &SalesRepository{db: db}
}

func (r *SalesRepository) WithTx(tx *gorm.DB) *SalesRepository {
	return &SalesRepository{db: tx}
}

func itemsByOrder(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }

// --- Sales Order ---

func (r *SalesRepository) CreateSO(ctx context.Context, so *entity.SalesOrder) error {
	return r.db.WithContext(ctx).Omit("Customer", "Branch").Create(so).Error
}

func (r *SalesRepository) GetSOByID(ctx context.Context, id string) (*entity.SalesOrder, error) {
	var so entity.SalesOrder
	err := r.db.WithContext(ctx).Preload("Customer").Preload("Branch").
		Preload("Items", itemsByOrder).
		Where("id = ?", id).First(&so).Error
	if err != nil {
		return nil, err
	}
	return &so, nil
}

func (r *SalesRepository) LockSO(ctx context.Context, id string) (*entity.SalesOrder, error) {
	var so entity.SalesOrder
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&so).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("so_id = ?", id).Scopes(itemsByOrder).Find(&so.Items).Error; err != nil {
		return nil, err
	}
	return &so, nil
}

func (r *SalesRepository) UpdateSO(ctx context.Context, so *entity.SalesOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(so).Error
}

func (r *SalesRepository) UpdateSOItem(ctx context.Context, item *entity.SOItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error
}

type SOListParams struct {
	CustomerID    string
	BranchID      string
	SaleStatus    string
	PaymentStatus string
	Keyword       string
	Page
}

func (r *SalesRepository) ListSOs(ctx context.Context, params SOListParams) ([]entity.SalesOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.SalesOrder{})
	if params.CustomerID != "" {
		query = query.Where("customer_id = ?", params.CustomerID)
	}
	if params.BranchID != "" {
		query = query.Where("branch_id = ?", params.BranchID)
	}
	if params.SaleStatus != "" {
		query = query.Where("sale_status = ?", params.SaleStatus)
	}
	if params.PaymentStatus != "" {
		query = query.Where("payment_status = ?", params.PaymentStatus)
	}
	query = query.Scopes(keywordScope(params.Keyword, "so_number"))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.SalesOrder
	err := query.Preload("Customer").Order("created_at DESC, so_number DESC").
		Offset(params.Offset()).Limit(params.Limit()).Find(&list).Error
	return list, total, err
}

// SOsBetween 报表用：时间区间内未取消的销售单
func (r *SalesRepository) SOsBetween(ctx context.Context, branchID string, from, to time.Time) ([]entity.SalesOrder, error) {
	query := r.db.WithContext(ctx).Where("sale_status <> ?", entity.SaleStatusCancelled)
	if !from.IsZero() {
		query = query.Where("order_date >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("order_date < ?", to)
	}
	if branchID != "" {
		query = query.Where("branch_id = ?", branchID)
	}
	var list []entity.SalesOrder
	err := query.Order("branch_id, so_number").Find(&list).Error
	return list, err
}

// --- Invoice ---

func (r *SalesRepository) CreateInvoice(ctx context.Context, inv *entity.Invoice) error {
	return r.db.WithContext(ctx).Omit("Customer").Create(inv).Error
}

func (r *SalesRepository) GetInvoiceByID(ctx context.Context, id string) (*entity.Invoice, error) {
	var inv entity.Invoice
	err := r.db.WithContext(ctx).Preload("Customer").Preload("Items", itemsByOrder).
		Where("id = ?", id).First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *SalesRepository) GetInvoiceBySaleID(ctx context.Context, saleID string) (*entity.Invoice, error) {
	var inv entity.Invoice
	err := r.db.WithContext(ctx).Preload("Customer").Preload("Items", itemsByOrder).
		Where("sale_id = ?", saleID).First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *SalesRepository) CountInvoicesBySale(ctx context.Context, saleID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Invoice{}).Where("sale_id = ?", saleID).Count(&count).Error
	return count, err
}

type InvoiceListParams struct {
	CustomerID string
	BranchID   string
	Keyword    string
	Page
}

func (r *SalesRepository) ListInvoices(ctx context.Context, params InvoiceListParams) ([]entity.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Invoice{})
	if params.CustomerID != "" {
		query = query.Where("customer_id = ?", params.CustomerID)
	}
	if params.BranchID != "" {
		query = query.Where("branch_id = ?", params.BranchID)
	}
	query = query.Scopes(keywordScope(params.Keyword, "invoice_number"))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.Invoice
	err := query.Preload("Customer").Order("created_at DESC, invoice_number DESC").
		Offset(params.Offset()).Limit(params.Limit()).Find(&list).Error
	return list, total, err
}
