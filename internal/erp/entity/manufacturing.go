package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 生产单状态
const (
	MOStatusDraft      = "draft"
	MOStatusInProgress = "in_progress"
	MOStatusCompleted  = "completed"
	MOStatusCancelled  = "cancelled"
)

// ManufacturingOrder 生产工单：投入原料，产出成品，记录损耗
type ManufacturingOrder struct {
	ID                  string          `json:"id" gorm:"primaryKey;size:36"`
	MONumber            string          `json:"mo_number" gorm:"size:32;not null;uniqueIndex:idx_mo_number"`
	BranchID            string          `json:"branch_id" gorm:"size:36;not null;index"`
	KarigarID           string          `json:"karigar_id" gorm:"size:36;index"`
	MakingStageID       string          `json:"making_stage_id" gorm:"size:36"`
	Status              string          `json:"status" gorm:"size:20;not null;default:draft;index"`
	OrderDate           time.Time       `json:"order_date"`
	StartedAt           *time.Time      `json:"started_at"`
	CompletedAt         *time.Time      `json:"completed_at"`
	TotalInputWeight    decimal.Decimal `json:"total_input_weight" gorm:"type:decimal(20,4);default:0"`
	TotalInputValue     decimal.Decimal `json:"total_input_value" gorm:"type:decimal(20,4);default:0"`
	TotalExpectedWeight decimal.Decimal `json:"total_expected_weight" gorm:"type:decimal(20,4);default:0"`
	TotalActualWeight   decimal.Decimal `json:"total_actual_weight" gorm:"type:decimal(20,4);default:0"`
	TotalWastage        decimal.Decimal `json:"total_wastage" gorm:"type:decimal(20,4);default:0"`
	Notes               string          `json:"notes" gorm:"type:text"`
	CreatedBy           string          `json:"created_by" gorm:"size:64"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	Inputs  []MOInput  `json:"inputs,omitempty" gorm:"foreignKey:MOID"`
	Outputs []MOOutput `json:"outputs,omitempty" gorm:"foreignKey:MOID"`
}

func (ManufacturingOrder) TableName() string { return "erp_manufacturing_orders" }

// MOInput 投入原料
type MOInput struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	MOID            string          `json:"mo_id" gorm:"size:36;not null;index"`
	InventoryItemID string          `json:"inventory_item_id" gorm:"size:36;not null"`
	Quantity        decimal.Decimal `json:"quantity" gorm:"type:decimal(20,4);not null"`
	Weight          decimal.Decimal `json:"weight" gorm:"type:decimal(20,4);default:0"`
	Rate            decimal.Decimal `json:"rate" gorm:"type:decimal(20,4);default:0"`
	Value           decimal.Decimal `json:"value" gorm:"type:decimal(20,4);default:0"`
	SortOrder       int             `json:"sort_order" gorm:"default:0"`
}

func (MOInput) TableName() string { return "erp_mo_inputs" }

// MOOutput 产出成品；Wastage = ExpectedWeight - ActualWeight，可为负
type MOOutput struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	MOID            string          `json:"mo_id" gorm:"size:36;not null;index"`
	InventoryItemID string          `json:"inventory_item_id" gorm:"size:36;not null"`
	Quantity        decimal.Decimal `json:"quantity" gorm:"type:decimal(20,4);not null"`
	ExpectedWeight  decimal.Decimal `json:"expected_weight" gorm:"type:decimal(20,4);not null"`
	ActualWeight    decimal.Decimal `json:"actual_weight" gorm:"type:decimal(20,4);default:0"`
	Wastage         decimal.Decimal `json:"wastage" gorm:"type:decimal(20,4);default:0"`
	Rate            decimal.Decimal `json:"rate" gorm:"type:decimal(20,4);default:0"`
	Value           decimal.Decimal `json:"value" gorm:"type:decimal(20,4);default:0"`
	SortOrder       int             `json:"sort_order" gorm:"default:0"`
}

func (MOOutput) TableName() string { return "erp_mo_outputs" }

// 报表类型
const (
	ReportStockSummary      = "stock-summary"
	ReportSalesSummary      = "sales-summary"
	ReportLedgerOutstanding = "ledger-outstanding"
)

// ReportCache 报表缓存：同一 key 重复读取返回同一份 payload，直到重新生成
type ReportCache struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	CacheKey    string    `json:"cache_key" gorm:"size:255;not null;uniqueIndex:idx_report_key"`
	ReportType  string    `json:"report_type" gorm:"size:32;not null;index"`
	Params      string    `json:"params" gorm:"type:text"`
	Payload     string    `json:"payload" gorm:"type:text;not null"`
	GeneratedBy string    `json:"generated_by" gorm:"size:64"`
	GeneratedAt time.Time `json:"generated_at"`
}

func (ReportCache) TableName() string { return "erp_report_caches" }
