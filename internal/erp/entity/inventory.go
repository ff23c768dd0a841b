package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 库存变动类型
const (
	MovementPurchase    = "PURCHASE"
	MovementSale        = "SALE"
	MovementTransfer    = "TRANSFER"
	MovementAdjustment  = "ADJUSTMENT"
	MovementManufacture = "MANUFACTURE"
	MovementWastage     = "WASTAGE"
)

// 单据引用类型
const (
	RefGRN           = "GRN"
	RefSalesOrder    = "SALES_ORDER"
	RefInvoice       = "INVOICE"
	RefAdjustment    = "ADJUSTMENT"
	RefTransfer      = "TRANSFER"
	RefManufacturing = "MANUFACTURING_ORDER"
	RefVoucher       = "VOUCHER"
)

// Stock 库存余额，每个 (商品, 门店) 一行
type Stock struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	InventoryItemID string          `json:"inventory_item_id" gorm:"size:36;not null;uniqueIndex:idx_stock_item_branch"`
	BranchID        string          `json:"branch_id" gorm:"size:36;not null;uniqueIndex:idx_stock_item_branch"`
	Quantity        decimal.Decimal `json:"quantity" gorm:"type:decimal(20,4);default:0"`
	Weight          decimal.Decimal `json:"weight" gorm:"type:decimal(20,4);default:0"`
	AvgRate         decimal.Decimal `json:"avg_rate" gorm:"type:decimal(20,4);default:0"`
	Value           decimal.Decimal `json:"value" gorm:"type:decimal(20,4);default:0"`
	MovementSeq     int64           `json:"movement_seq" gorm:"not null;default:0"`
	LastMovedAt     *time.Time      `json:"last_moved_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	InventoryItem *InventoryItem `json:"inventory_item,omitempty" gorm:"foreignKey:InventoryItemID"`
	Branch        *Branch        `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
}

func (Stock) TableName() string { return "erp_stocks" }

// StockMovement 库存流水，只追加
type StockMovement struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	InventoryItemID string          `json:"inventory_item_id" gorm:"size:36;not null;uniqueIndex:idx_movement_seq"`
	BranchID        string          `json:"branch_id" gorm:"size:36;not null;uniqueIndex:idx_movement_seq"`
	Sequence        int64           `json:"sequence" gorm:"not null;uniqueIndex:idx_movement_seq"`
	Type            string          `json:"type" gorm:"size:20;not null;index"`
	Quantity        decimal.Decimal `json:"quantity" gorm:"type:decimal(20,4);default:0"`
	Weight          decimal.Decimal `json:"weight" gorm:"type:decimal(20,4);default:0"`
	Rate            decimal.Decimal `json:"rate" gorm:"type:decimal(20,4);default:0"`
	Value           decimal.Decimal `json:"value" gorm:"type:decimal(20,4);default:0"`
	ReferenceType   string          `json:"reference_type" gorm:"size:32"`
	ReferenceID     string          `json:"reference_id" gorm:"size:36;index"`
	ReferenceNumber string          `json:"reference_number" gorm:"size:32"`
	BalanceQuantity decimal.Decimal `json:"balance_quantity" gorm:"type:decimal(20,4);default:0"`
	BalanceWeight   decimal.Decimal `json:"balance_weight" gorm:"type:decimal(20,4);default:0"`
	BalanceValue    decimal.Decimal `json:"balance_value" gorm:"type:decimal(20,4);default:0"`
	Notes           string          `json:"notes" gorm:"size:500"`
	CreatedBy       string          `json:"created_by" gorm:"size:64"`
	CreatedAt       time.Time       `json:"created_at" gorm:"index"`
}

func (StockMovement) TableName() string { return "erp_stock_movements" }
