package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PO状态
const (
	POStatusDraft     = "draft"
	POStatusPending   = "pending"
	POStatusApproved  = "approved"
	POStatusCompleted = "completed"
	POStatusCancelled = "cancelled"
)

// PurchaseOrder 采购订单
type PurchaseOrder struct {
	ID           string          `json:"id" gorm:"primaryKey;size:36"`
	PONumber     string          `json:"po_number" gorm:"size:32;not null;uniqueIndex:idx_po_number"`
	SupplierID   string          `json:"supplier_id" gorm:"size:36;not null;index"`
	BranchID     string          `json:"branch_id" gorm:"size:36;not null;index"`
	OrderDate    time.Time       `json:"order_date"`
	ExpectedDate *time.Time      `json:"expected_date"`
	Status       string          `json:"status" gorm:"size:20;not null;default:draft;index"`
	TotalAmount  decimal.Decimal `json:"total_amount" gorm:"type:decimal(20,2);default:0"`
	TaxAmount    decimal.Decimal `json:"tax_amount" gorm:"type:decimal(20,2);default:0"`
	GrandTotal   decimal.Decimal `json:"grand_total" gorm:"type:decimal(20,2);default:0"`
	Notes        string          `json:"notes" gorm:"type:text"`
	CreatedBy    string          `json:"created_by" gorm:"size:64"`
	ApprovedBy   string          `json:"approved_by" gorm:"size:64"`
	ApprovedAt   *time.Time      `json:"approved_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Supplier *Supplier `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
	Branch   *Branch   `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
	Items    []POItem  `json:"items,omitempty" gorm:"foreignKey:POID"`
}

func (PurchaseOrder) TableName() string { return "erp_purchase_orders" }

// POItem 采购订单行
type POItem struct {
	ID               string          `json:"id" gorm:"primaryKey;size:36"`
	POID             string          `json:"po_id" gorm:"size:36;not null;index"`
	InventoryItemID  string          `json:"inventory_item_id" gorm:"size:36;not null"`
	MetalPurityID    string          `json:"metal_purity_id" gorm:"size:36"`
	StonePurityID    string          `json:"stone_purity_id" gorm:"size:36"`
	Quantity         decimal.Decimal `json:"quantity" gorm:"type:decimal(20,4);not null"`
	Weight           decimal.Decimal `json:"weight" gorm:"type:decimal(20,4);default:0"`
	Rate             decimal.Decimal `json:"rate" gorm:"type:decimal(20,4);default:0"`
	Discount         decimal.Decimal `json:"discount" gorm:"type:decimal(8,4);default:0"`
	Tax              decimal.Decimal `json:"tax" gorm:"type:decimal(20,2);default:0"`
	LineTotal        decimal.Decimal `json:"line_total" gorm:"type:decimal(20,2);default:0"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity" gorm:"type:decimal(20,4);default:0"`
	ReceivedWeight   decimal.Decimal `json:"received_weight" gorm:"type:decimal(20,4);default:0"`
	SortOrder        int             `json:"sort_order" gorm:"default:0"`
	CreatedAt        time.Time       `json:"created_at"`

	InventoryItem *InventoryItem `json:"inventory_item,omitempty" gorm:"foreignKey:InventoryItemID"`
}

func (POItem) TableName() string { return "erp_po_items" }

// PendingQuantity 未收数量
func (i POItem) PendingQuantity() decimal.Decimal {
	return i.Quantity.Sub(i.ReceivedQuantity)
}

// GRN状态
const (
	GRNStatusDraft     = "draft"
	GRNStatusReceived  = "received"
	GRNStatusVerified  = "verified"
	GRNStatusCancelled = "cancelled"
)

// GRN 收货单 (Goods Received Note)
type GRN struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	GRNNumber     string          `json:"grn_number" gorm:"size:32;not null;uniqueIndex:idx_grn_number"`
	POID          string          `json:"po_id" gorm:"size:36;not null;index"`
	SupplierID    string          `json:"supplier_id" gorm:"size:36;not null;index"`
	BranchID      string          `json:"branch_id" gorm:"size:36;not null"`
	ReceivedDate  time.Time       `json:"received_date"`
	Status        string          `json:"status" gorm:"size:20;not null;default:draft;index"`
	TotalQuantity decimal.Decimal `json:"total_quantity" gorm:"type:decimal(20,4);default:0"`
	TotalWeight   decimal.Decimal `json:"total_weight" gorm:"type:decimal(20,4);default:0"`
	MetalCost     decimal.Decimal `json:"metal_cost" gorm:"type:decimal(20,2);default:0"`
	StoneCost     decimal.Decimal `json:"stone_cost" gorm:"type:decimal(20,2);default:0"`
	TotalCost     decimal.Decimal `json:"total_cost" gorm:"type:decimal(20,2);default:0"`
	Notes         string          `json:"notes" gorm:"type:text"`
	CreatedBy     string          `json:"created_by" gorm:"size:64"`
	ReceivedBy    string          `json:"received_by" gorm:"size:64"`
	ReceivedAt    *time.Time      `json:"received_at"`
	VerifiedBy    string          `json:"verified_by" gorm:"size:64"`
	VerifiedAt    *time.Time      `json:"verified_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	PurchaseOrder *PurchaseOrder `json:"purchase_order,omitempty" gorm:"foreignKey:POID"`
	Items         []GRNItem      `json:"items,omitempty" gorm:"foreignKey:GRNID"`
}

func (GRN) TableName() string { return "erp_grns" }

// GRNItem 收货明细
type GRNItem struct {
	ID               string          `json:"id" gorm:"primaryKey;size:36"`
	GRNID            string          `json:"grn_id" gorm:"size:36;not null;index"`
	POItemID         string          `json:"po_item_id" gorm:"size:36;not null;index"`
	InventoryItemID  string          `json:"inventory_item_id" gorm:"size:36;not null"`
	OrderedQuantity  decimal.Decimal `json:"ordered_quantity" gorm:"type:decimal(20,4);default:0"`
	OrderedWeight    decimal.Decimal `json:"ordered_weight" gorm:"type:decimal(20,4);default:0"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity" gorm:"type:decimal(20,4);not null"`
	ReceivedWeight   decimal.Decimal `json:"received_weight" gorm:"type:decimal(20,4);default:0"`
	Rate             decimal.Decimal `json:"rate" gorm:"type:decimal(20,4);default:0"`
	MetalCost        decimal.Decimal `json:"metal_cost" gorm:"type:decimal(20,2);default:0"`
	StoneCost        decimal.Decimal `json:"stone_cost" gorm:"type:decimal(20,2);default:0"`
	TotalCost        decimal.Decimal `json:"total_cost" gorm:"type:decimal(20,2);default:0"`
	SortOrder        int             `json:"sort_order" gorm:"default:0"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (GRNItem) TableName() string { return "erp_grn_items" }

// Sequence 单据编号计数器
type Sequence struct {
	Name      string    `json:"name" gorm:"primaryKey;size:32"`
	Value     int64     `json:"value" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Sequence) TableName() string { return "erp_sequences" }
