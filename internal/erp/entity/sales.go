package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 销售单状态
const (
	SaleStatusPending   = "pending"
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
)

// 付款状态
const (
	PaymentUnpaid  = "unpaid"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
)

// 销售行状态
const (
	LineStatusPending            = "pending"
	LineStatusPartiallyDelivered = "partially_delivered"
	LineStatusDelivered          = "delivered"
	LineStatusCompleted          = "completed"
	LineStatusCancelled          = "cancelled"
)

// SalesOrder 销售订单
type SalesOrder struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	SONumber      string          `json:"so_number" gorm:"size:32;not null;uniqueIndex:idx_so_number"`
	CustomerID    string          `json:"customer_id" gorm:"size:36;not null;index"`
	BranchID      string          `json:"branch_id" gorm:"size:36;not null;index"`
	OrderDate     time.Time       `json:"order_date"`
	SubTotal      decimal.Decimal `json:"sub_total" gorm:"type:decimal(20,2);default:0"`
	TaxAmount     decimal.Decimal `json:"tax_amount" gorm:"type:decimal(20,2);default:0"`
	OrderDiscount decimal.Decimal `json:"order_discount" gorm:"type:decimal(20,2);default:0"`
	OrderTax      decimal.Decimal `json:"order_tax" gorm:"type:decimal(20,2);default:0"`
	ShippingCost  decimal.Decimal `json:"shipping_cost" gorm:"type:decimal(20,2);default:0"`
	GrandTotal    decimal.Decimal `json:"grand_total" gorm:"type:decimal(20,2);default:0"`
	PaidAmount    decimal.Decimal `json:"paid_amount" gorm:"type:decimal(20,2);default:0"`
	BalanceDue    decimal.Decimal `json:"balance_due" gorm:"type:decimal(20,2);default:0"`
	PaymentStatus string          `json:"payment_status" gorm:"size:20;not null;default:unpaid;index"`
	SaleStatus    string          `json:"sale_status" gorm:"size:20;not null;default:pending;index"`
	Notes         string          `json:"notes" gorm:"type:text"`
	CreatedBy     string          `json:"created_by" gorm:"size:64"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Customer *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Branch   *Branch   `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
	Items    []SOItem  `json:"items,omitempty" gorm:"foreignKey:SOID"`
}

func (SalesOrder) TableName() string { return "erp_sales_orders" }

// SOItem 销售订单行
type SOItem struct {
	ID                string          `json:"id" gorm:"primaryKey;size:36"`
	SOID              string          `json:"so_id" gorm:"size:36;not null;index"`
	InventoryItemID   string          `json:"inventory_item_id" gorm:"size:36;not null"`
	Quantity          decimal.Decimal `json:"quantity" gorm:"type:decimal(20,4);not null"`
	Weight            decimal.Decimal `json:"weight" gorm:"type:decimal(20,4);default:0"`
	Rate              decimal.Decimal `json:"rate" gorm:"type:decimal(20,4);default:0"`
	Discount          decimal.Decimal `json:"discount" gorm:"type:decimal(8,4);default:0"`
	Tax               decimal.Decimal `json:"tax" gorm:"type:decimal(20,2);default:0"`
	LineTotal         decimal.Decimal `json:"line_total" gorm:"type:decimal(20,2);default:0"`
	DeliveredQuantity decimal.Decimal `json:"delivered_quantity" gorm:"type:decimal(20,4);default:0"`
	DeliveredWeight   decimal.Decimal `json:"delivered_weight" gorm:"type:decimal(20,4);default:0"`
	Status            string          `json:"status" gorm:"size:20;not null;default:pending"`
	SortOrder         int             `json:"sort_order" gorm:"default:0"`
	CreatedAt         time.Time       `json:"created_at"`

	InventoryItem *InventoryItem `json:"inventory_item,omitempty" gorm:"foreignKey:InventoryItemID"`
}

func (SOItem) TableName() string { return "erp_so_items" }

// Invoice 发票，每张销售单最多一张
type Invoice struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	InvoiceNumber string          `json:"invoice_number" gorm:"size:32;not null;uniqueIndex:idx_invoice_number"`
	SaleID        string          `json:"sale_id" gorm:"size:36;not null;uniqueIndex:idx_invoice_sale"`
	CustomerID    string          `json:"customer_id" gorm:"size:36;not null;index"`
	BranchID      string          `json:"branch_id" gorm:"size:36;not null"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	SubTotal      decimal.Decimal `json:"sub_total" gorm:"type:decimal(20,2);default:0"`
	TaxAmount     decimal.Decimal `json:"tax_amount" gorm:"type:decimal(20,2);default:0"`
	OrderDiscount decimal.Decimal `json:"order_discount" gorm:"type:decimal(20,2);default:0"`
	OrderTax      decimal.Decimal `json:"order_tax" gorm:"type:decimal(20,2);default:0"`
	ShippingCost  decimal.Decimal `json:"shipping_cost" gorm:"type:decimal(20,2);default:0"`
	GrandTotal    decimal.Decimal `json:"grand_total" gorm:"type:decimal(20,2);default:0"`
	GeneratedBy   string          `json:"generated_by" gorm:"size:64"`
	CreatedAt     time.Time       `json:"created_at"`

	Customer *Customer     `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Items    []InvoiceItem `json:"items,omitempty" gorm:"foreignKey:InvoiceID"`
}

func (Invoice) TableName() string { return "erp_invoices" }

// InvoiceItem 发票明细（生成时从销售行拷贝）
type InvoiceItem struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	InvoiceID       string          `json:"invoice_id" gorm:"size:36;not null;index"`
	SOItemID        string          `json:"so_item_id" gorm:"size:36;not null"`
	InventoryItemID string          `json:"inventory_item_id" gorm:"size:36;not null"`
	Quantity        decimal.Decimal `json:"quantity" gorm:"type:decimal(20,4);not null"`
	Weight          decimal.Decimal `json:"weight" gorm:"type:decimal(20,4);default:0"`
	Rate            decimal.Decimal `json:"rate" gorm:"type:decimal(20,4);default:0"`
	Discount        decimal.Decimal `json:"discount" gorm:"type:decimal(8,4);default:0"`
	Tax             decimal.Decimal `json:"tax" gorm:"type:decimal(20,2);default:0"`
	LineTotal       decimal.Decimal `json:"line_total" gorm:"type:decimal(20,2);default:0"`
	SortOrder       int             `json:"sort_order" gorm:"default:0"`
}

func (InvoiceItem) TableName() string { return "erp_invoice_items" }

// 账簿
const (
	PartyCustomer = "CUSTOMER"
	PartySupplier = "SUPPLIER"

	EntryDebit  = "DEBIT"
	EntryCredit = "CREDIT"
)

// Ledger 往来账簿，每个 (类型, 对象) 一本
type Ledger struct {
	ID         string          `json:"id" gorm:"primaryKey;size:36"`
	PartyType  string          `json:"party_type" gorm:"size:16;not null;uniqueIndex:idx_ledger_party"`
	PartyID    string          `json:"party_id" gorm:"size:36;not null;uniqueIndex:idx_ledger_party"`
	Balance    decimal.Decimal `json:"balance" gorm:"type:decimal(20,2);default:0"`
	EntryCount int64           `json:"entry_count" gorm:"not null;default:0"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Ledger) TableName() string { return "erp_ledgers" }

// LedgerEntry 账簿分录，balance_after 为过账后余额
type LedgerEntry struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	LedgerID        string          `json:"ledger_id" gorm:"size:36;not null;uniqueIndex:idx_ledger_entry_seq"`
	Sequence        int64           `json:"sequence" gorm:"not null;uniqueIndex:idx_ledger_entry_seq"`
	EntryType       string          `json:"entry_type" gorm:"size:8;not null"`
	Debit           decimal.Decimal `json:"debit" gorm:"type:decimal(20,2);default:0"`
	Credit          decimal.Decimal `json:"credit" gorm:"type:decimal(20,2);default:0"`
	BalanceAfter    decimal.Decimal `json:"balance_after" gorm:"type:decimal(20,2);default:0"`
	ReferenceType   string          `json:"reference_type" gorm:"size:32"`
	ReferenceID     string          `json:"reference_id" gorm:"size:36;index"`
	ReferenceNumber string          `json:"reference_number" gorm:"size:32"`
	Narration       string          `json:"narration" gorm:"size:500"`
	CreatedBy       string          `json:"created_by" gorm:"size:64"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (LedgerEntry) TableName() string { return "erp_ledger_entries" }
