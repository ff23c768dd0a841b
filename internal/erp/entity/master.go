package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is implemented by every master-data entity so the CRUD layer can stay generic.
type Record interface {
	TableName() string
	GetID() string
	SetID(id string)
}

// ImageHolder is implemented by entities that accept an uploaded image.
type ImageHolder interface {
	SetImagePath(path string)
}

// Unit 计量单位
type Unit struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Code        string    `json:"code" gorm:"size:20;not null;uniqueIndex:idx_unit_code" binding:"required"`
	Name        string    `json:"name" gorm:"size:64;not null" binding:"required"`
	Description string    `json:"description" gorm:"size:255"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Unit) TableName() string { return "erp_units" }
func (u *Unit) GetID() string { return u.ID }
func (u *Unit) SetID(id string) { u.ID = id }

// Metal types for Purity.
const (
	MetalGold     = "gold"
	MetalSilver   = "silver"
	MetalPlatinum = "platinum"
	MetalDiamond  = "diamond"
)

// Purity 成色 (22K gold, VVS clarity ...)
type Purity struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	Name        string          `json:"name" gorm:"size:64;not null;uniqueIndex:idx_purity_name" binding:"required"`
	MetalType   string          `json:"metal_type" gorm:"size:20;not null" binding:"required"`
	Fineness    decimal.Decimal `json:"fineness" gorm:"type:decimal(8,4);default:0"`
	ImagePath   string          `json:"image_path" gorm:"size:255"`
	Description string          `json:"description" gorm:"size:255"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Purity) TableName() string { return "erp_purities" }
func (p *Purity) GetID() string { return p.ID }
func (p *Purity) SetID(id string) { p.ID = id }
func (p *Purity) SetImagePath(path string) { p.ImagePath = path }

// Stone 宝石
type Stone struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"size:100;not null;uniqueIndex:idx_stone_name" binding:"required"`
	StoneType   string    `json:"stone_type" gorm:"size:50"`
	Color       string    `json:"color" gorm:"size:50"`
	Clarity     string    `json:"clarity" gorm:"size:50"`
	Cut         string    `json:"cut" gorm:"size:50"`
	ImagePath   string    `json:"image_path" gorm:"size:255"`
	Description string    `json:"description" gorm:"size:255"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Stone) TableName() string { return "erp_stones" }
func (s *Stone) GetID() string { return s.ID }
func (s *Stone) SetID(id string) { s.ID = id }
func (s *Stone) SetImagePath(path string) { s.ImagePath = path }

// MaterialType 物料类型
type MaterialType struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"size:64;not null;uniqueIndex:idx_material_type_name" binding:"required"`
	Description string    `json:"description" gorm:"size:255"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (MaterialType) TableName() string { return "erp_material_types" }
func (m *MaterialType) GetID() string { return m.ID }
func (m *MaterialType) SetID(id string) { m.ID = id }

// MakingStage 制作工序
type MakingStage struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	Name        string          `json:"name" gorm:"size:64;not null;uniqueIndex:idx_making_stage_name" binding:"required"`
	SortOrder   int             `json:"sort_order" gorm:"default:0"`
	LaborCost   decimal.Decimal `json:"labor_cost" gorm:"type:decimal(20,2);default:0"`
	Description string          `json:"description" gorm:"size:255"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (MakingStage) TableName() string { return "erp_making_stages" }
func (m *MakingStage) GetID() string { return m.ID }
func (m *MakingStage) SetID(id string) { m.ID = id }

// MakingSubStage 制作子工序
type MakingSubStage struct {
	ID        string          `json:"id" gorm:"primaryKey;size:36"`
	StageID   string          `json:"stage_id" gorm:"size:36;not null;uniqueIndex:idx_sub_stage_name" binding:"required"`
	Name      string          `json:"name" gorm:"size:64;not null;uniqueIndex:idx_sub_stage_name" binding:"required"`
	SortOrder int             `json:"sort_order" gorm:"default:0"`
	LaborCost decimal.Decimal `json:"labor_cost" gorm:"type:decimal(20,2);default:0"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (MakingSubStage) TableName() string { return "erp_making_sub_stages" }
func (m *MakingSubStage) GetID() string { return m.ID }
func (m *MakingSubStage) SetID(id string) { m.ID = id }

// Branch 门店/分支
type Branch struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Code      string    `json:"code" gorm:"size:20;not null;uniqueIndex:idx_branch_code" binding:"required"`
	Name      string    `json:"name" gorm:"size:100;not null" binding:"required"`
	Address   string    `json:"address" gorm:"size:500"`
	Phone     string    `json:"phone" gorm:"size:20"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Branch) TableName() string { return "erp_branches" }
func (b *Branch) GetID() string { return b.ID }
func (b *Branch) SetID(id string) { b.ID = id }

// Location 库位（所属门店）
type Location struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	BranchID  string    `json:"branch_id" gorm:"size:36;not null;uniqueIndex:idx_location_code" binding:"required"`
	Code      string    `json:"code" gorm:"size:20;not null;uniqueIndex:idx_location_code" binding:"required"`
	Name      string    `json:"name" gorm:"size:100"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Location) TableName() string { return "erp_locations" }
func (l *Location) GetID() string { return l.ID }
func (l *Location) SetID(id string) { l.ID = id }

// Karigar 工匠
type Karigar struct {
	ID             string          `json:"id" gorm:"primaryKey;size:36"`
	Code           string          `json:"code" gorm:"size:20;not null;uniqueIndex:idx_karigar_code" binding:"required"`
	Name           string          `json:"name" gorm:"size:100;not null" binding:"required"`
	Phone          string          `json:"phone" gorm:"size:20"`
	Specialization string          `json:"specialization" gorm:"size:100"`
	WageRate       decimal.Decimal `json:"wage_rate" gorm:"type:decimal(20,2);default:0"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Karigar) TableName() string { return "erp_karigars" }
func (k *Karigar) GetID() string { return k.ID }
func (k *Karigar) SetID(id string) { k.ID = id }

// Customer 客户
type Customer struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Code      string    `json:"code" gorm:"size:32;not null;uniqueIndex:idx_customer_code" binding:"required"`
	Name      string    `json:"name" gorm:"size:200;not null" binding:"required"`
	Phone     string    `json:"phone" gorm:"size:20"`
	Email     string    `json:"email" gorm:"size:100"`
	Address   string    `json:"address" gorm:"size:500"`
	TaxNumber string    `json:"tax_number" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Customer) TableName() string { return "erp_customers" }
func (c *Customer) GetID() string { return c.ID }
func (c *Customer) SetID(id string) { c.ID = id }

// Supplier 供应商
type Supplier struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Code        string    `json:"code" gorm:"size:32;not null;uniqueIndex:idx_supplier_code" binding:"required"`
	Name        string    `json:"name" gorm:"size:200;not null" binding:"required"`
	ContactName string    `json:"contact_name" gorm:"size:100"`
	Phone       string    `json:"phone" gorm:"size:20"`
	Email       string    `json:"email" gorm:"size:100"`
	Address     string    `json:"address" gorm:"size:500"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Supplier) TableName() string { return "erp_suppliers" }
func (s *Supplier) GetID() string { return s.ID }
func (s *Supplier) SetID(id string) { s.ID = id }

// InventoryItem 库存商品
type InventoryItem struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	SKU            string    `json:"sku" gorm:"size:64;not null;uniqueIndex:idx_item_sku" binding:"required"`
	Name           string    `json:"name" gorm:"size:200;not null" binding:"required"`
	Category       string    `json:"category" gorm:"size:64"`
	MaterialTypeID string    `json:"material_type_id" gorm:"size:36"`
	PurityID       string    `json:"purity_id" gorm:"size:36"`
	StoneID        string    `json:"stone_id" gorm:"size:36"`
	UnitID         string    `json:"unit_id" gorm:"size:36"`
	ImagePath      string    `json:"image_path" gorm:"size:255"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (InventoryItem) TableName() string { return "erp_inventory_items" }
func (i *InventoryItem) GetID() string { return i.ID }
func (i *InventoryItem) SetID(id string) { i.ID = id }
func (i *InventoryItem) SetImagePath(path string) { i.ImagePath = path }
