package entity

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutoMigrate 自动迁移所有表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 基础数据
		&Unit{},
		&Purity{},
		&Stone{},
		&MaterialType{},
		&MakingStage{},
		&MakingSubStage{},
		&Branch{},
		&Location{},
		&Karigar{},
		&Customer{},
		&Supplier{},
		&InventoryItem{},

		// 编号
		&Sequence{},

		// 采购
		&PurchaseOrder{},
		&POItem{},
		&GRN{},
		&GRNItem{},

		// 库存
		&Stock{},
		&StockMovement{},

		// 销售
		&SalesOrder{},
		&SOItem{},
		&Invoice{},
		&InvoiceItem{},

		// 账簿
		&Ledger{},
		&LedgerEntry{},

		// 生产
		&ManufacturingOrder{},
		&MOInput{},
		&MOOutput{},

		// 报表
		&ReportCache{},
	)
}

// NewID returns a fresh primary key.
func NewID() string {
	return uuid.New().String()
}
