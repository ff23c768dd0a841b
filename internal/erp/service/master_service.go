package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MasterService 基础数据通用 CRUD。PT 为 *T，用于设置主键。
type MasterService[T any, PT interface {
	*T
	entity.Record
}] struct {
	name        string
	repo        *repository.MasterRepository[T]
	db          *gorm.DB
	imageFolder string
	store       storage.ObjectStore
	logger      *zap.Logger
	check       func(ctx context.Context, db *gorm.DB, rec PT) error
	usages      []usage
}

// usage 引用基础数据的业务单据；有引用时不能删除
type usage struct {
	model any
	query string
	args  []any
	what  string
}

func usedBy(model any, column, what string) usage {
	return usage{model: model, query: column + " = ?", what: what}
}

func usedByLedger(partyType string) usage {
	return usage{model: &entity.Ledger{}, query: "party_type = ? AND party_id = ?", args: []any{partyType}, what: "ledger"}
}

func newMasterService[T any, PT interface {
	*T
	entity.Record
}](db *gorm.DB, logger *zap.Logger, name string, searchCols ...string) *MasterService[T, PT] {
	return &MasterService[T, PT]{
		name:   name,
		repo:   repository.NewMasterRepository[T](db, searchCols...),
		db:     db,
		logger: logger,
	}
}

// withImages 允许上传图片到 folder
func (s *MasterService[T, PT]) withImages(folder string, store storage.ObjectStore) *MasterService[T, PT] {
	s.imageFolder = folder
	s.store = store
	return s
}

func (s *MasterService[T, PT]) withUsages(usages ...usage) *MasterService[T, PT] {
	s.usages = append(s.usages, usages...)
	return s
}

func (s *MasterService[T, PT]) withCheck(check func(ctx context.Context, db *gorm.DB, rec PT) error) *MasterService[T, PT] {
	s.check = check
	return s
}

// Name 资源名
func (s *MasterService[T, PT]) Name() string { return s.name }

// SupportsImages 是否允许上传图片
func (s *MasterService[T, PT]) SupportsImages() bool { return s.imageFolder != "" }

func (s *MasterService[T, PT]) validate(ctx context.Context, rec PT) error {
	if err := validateStruct(rec); err != nil {
		return err
	}
	if s.check != nil {
		return s.check(ctx, s.db, rec)
	}
	return nil
}

func (s *MasterService[T, PT]) Create(ctx context.Context, rec PT) (*T, error) {
	rec.SetID(entity.NewID())
	if err := s.validate(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, (*T)(rec)); err != nil {
		return nil, errs.FromDB(err, s.name)
	}
	return (*T)(rec), nil
}

func (s *MasterService[T, PT]) Get(ctx context.Context, id string) (*T, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errs.FromDB(err, s.name)
	}
	return rec, nil
}

// Update 全量更新（图片路径只能通过上传接口修改）
func (s *MasterService[T, PT]) Update(ctx context.Context, id string, rec PT) (*T, error) {
	rec.SetID(id)
	if err := s.validate(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, (*T)(rec)); err != nil {
		return nil, errs.FromDB(err, s.name)
	}
	return s.Get(ctx, id)
}

func (s *MasterService[T, PT]) Delete(ctx context.Context, id string) error {
	for _, u := range s.usages {
		var n int64
		args := append(append([]any{}, u.args...), id)
		if err := s.db.WithContext(ctx).Model(u.model).Where(u.query, args...).Count(&n).Error; err != nil {
			return errs.FromDB(err, u.what)
		}
		if n > 0 {
			return errs.Conflict("%s %s is referenced by %d %s record(s) and cannot be deleted", s.name, id, n, u.what)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errs.FromDB(err, s.name)
	}
	return nil
}

func (s *MasterService[T, PT]) List(ctx context.Context, params repository.MasterListParams) ([]T, int64, error) {
	list, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, errs.FromDB(err, s.name)
	}
	return list, total, nil
}

// Upload 上传的图片文件
type Upload struct {
	FileName    string
	Size        int64
	ContentType string
	Body        io.Reader
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// UploadImage 存入对象存储，并把路径写回实体
func (s *MasterService[T, PT]) UploadImage(ctx context.Context, id string, up Upload) (*T, error) {
	if s.imageFolder == "" {
		return nil, errs.Validation("%s does not accept images", s.name)
	}
	if !imageExts[strings.ToLower(filepath.Ext(up.FileName))] {
		return nil, errs.Validation("file must be an image (jpg, png, webp, gif)")
	}
	if up.Size <= 0 {
		return nil, errs.Validation("file is empty")
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errs.FromDB(err, s.name)
	}
	path, err := s.store.Put(ctx, s.imageFolder, up.FileName, up.Body, up.Size, up.ContentType)
	if err != nil {
		return nil, errs.Internal("store image", err)
	}
	if err := s.repo.SetColumn(ctx, id, "image_path", path); err != nil {
		return nil, errs.FromDB(err, s.name)
	}
	if holder, ok := any(rec).(entity.ImageHolder); ok {
		holder.SetImagePath(path)
	}
	s.logger.Info("Image uploaded", zap.String("resource", s.name), zap.String("id", id), zap.String("path", path))
	return rec, nil
}

// MasterData 基础数据服务集合
type MasterData struct {
	Units           *MasterService[entity.Unit, *entity.Unit]
	Purities        *MasterService[entity.Purity, *entity.Purity]
	Stones          *MasterService[entity.Stone, *entity.Stone]
	MaterialTypes   *MasterService[entity.MaterialType, *entity.MaterialType]
	MakingStages    *MasterService[entity.MakingStage, *entity.MakingStage]
	MakingSubStages *MasterService[entity.MakingSubStage, *entity.MakingSubStage]
	Locations       *MasterService[entity.Location, *entity.Location]
	Branches        *MasterService[entity.Branch, *entity.Branch]
	Karigars        *MasterService[entity.Karigar, *entity.Karigar]
	Customers       *MasterService[entity.Customer, *entity.Customer]
	Suppliers       *MasterService[entity.Supplier, *entity.Supplier]
	InventoryItems  *MasterService[entity.InventoryItem, *entity.InventoryItem]
}

func NewMasterData(db *gorm.DB, store storage.ObjectStore, logger *zap.Logger) *MasterData {
	return &MasterData{
		Units: newMasterService[entity.Unit](db, logger, "unit", "code", "name"),
		Purities: newMasterService[entity.Purity](db, logger, "purity", "name", "metal_type").
			withImages("purities", store).
			withCheck(checkPurity),
		Stones: newMasterService[entity.Stone](db, logger, "stone", "name", "stone_type").
			withImages("stones", store),
		MaterialTypes: newMasterService[entity.MaterialType](db, logger, "material type", "name"),
		MakingStages: newMasterService[entity.MakingStage](db, logger, "making stage", "name").
			withCheck(checkMakingStage),
		MakingSubStages: newMasterService[entity.MakingSubStage](db, logger, "making sub-stage", "name").
			withCheck(checkMakingSubStage),
		Locations: newMasterService[entity.Location](db, logger, "location", "code", "name").
			withCheck(func(ctx context.Context, db *gorm.DB, l *entity.Location) error {
				return requireRef(ctx, db, &entity.Branch{}, l.BranchID, "branch")
			}),
		Branches: newMasterService[entity.Branch](db, logger, "branch", "code", "name").
			withUsages(
				usedBy(&entity.Stock{}, "branch_id", "stock"),
				usedBy(&entity.StockMovement{}, "branch_id", "stock movement"),
				usedBy(&entity.PurchaseOrder{}, "branch_id", "purchase order"),
				usedBy(&entity.SalesOrder{}, "branch_id", "sales order"),
				usedBy(&entity.ManufacturingOrder{}, "branch_id", "manufacturing order"),
				usedBy(&entity.Location{}, "branch_id", "location"),
			),
		Karigars: newMasterService[entity.Karigar](db, logger, "karigar", "code", "name").
			withCheck(checkKarigar).
			withUsages(usedBy(&entity.ManufacturingOrder{}, "karigar_id", "manufacturing order")),
		Customers: newMasterService[entity.Customer](db, logger, "customer", "code", "name", "phone").
			withUsages(
				usedBy(&entity.SalesOrder{}, "customer_id", "sales order"),
				usedBy(&entity.Invoice{}, "customer_id", "invoice"),
				usedByLedger(entity.PartyCustomer),
			),
		Suppliers: newMasterService[entity.Supplier](db, logger, "supplier", "code", "name", "contact_name").
			withUsages(
				usedBy(&entity.PurchaseOrder{}, "supplier_id", "purchase order"),
				usedBy(&entity.GRN{}, "supplier_id", "grn"),
				usedByLedger(entity.PartySupplier),
			),
		InventoryItems: newMasterService[entity.InventoryItem](db, logger, "inventory item", "sku", "name").
			withImages("items", store).
			withCheck(checkInventoryItem).
			withUsages(
				usedBy(&entity.Stock{}, "inventory_item_id", "stock"),
				usedBy(&entity.StockMovement{}, "inventory_item_id", "stock movement"),
				usedBy(&entity.POItem{}, "inventory_item_id", "purchase order item"),
				usedBy(&entity.SOItem{}, "inventory_item_id", "sales order item"),
				usedBy(&entity.MOInput{}, "inventory_item_id", "manufacturing input"),
				usedBy(&entity.MOOutput{}, "inventory_item_id", "manufacturing output"),
			),
	}
}

func checkPurity(_ context.Context, _ *gorm.DB, p *entity.Purity) error {
	if !oneOf(p.MetalType, entity.MetalGold, entity.MetalSilver, entity.MetalPlatinum, entity.MetalDiamond) {
		return errs.Validation("metal_type must be one of gold, silver, platinum, diamond")
	}
	if p.Fineness.IsNegative() || p.Fineness.GreaterThan(hundred.Mul(hundred)) {
		return errs.Validation("fineness is out of range")
	}
	return nil
}

func checkMakingStage(_ context.Context, _ *gorm.DB, m *entity.MakingStage) error {
	if m.LaborCost.IsNegative() {
		return errs.Validation("labor_cost must not be negative")
	}
	return nil
}

func checkMakingSubStage(ctx context.Context, db *gorm.DB, m *entity.MakingSubStage) error {
	if m.LaborCost.IsNegative() {
		return errs.Validation("labor_cost must not be negative")
	}
	return requireRef(ctx, db, &entity.MakingStage{}, m.StageID, "making stage")
}

func checkKarigar(_ context.Context, _ *gorm.DB, k *entity.Karigar) error {
	if k.WageRate.IsNegative() {
		return errs.Validation("wage_rate must not be negative")
	}
	return nil
}

func checkInventoryItem(ctx context.Context, db *gorm.DB, i *entity.InventoryItem) error {
	if err := optionalRef(ctx, db, &entity.MaterialType{}, i.MaterialTypeID, "material type"); err != nil {
		return err
	}
	if err := optionalRef(ctx, db, &entity.Purity{}, i.PurityID, "purity"); err != nil {
		return err
	}
	if err := optionalRef(ctx, db, &entity.Stone{}, i.StoneID, "stone"); err != nil {
		return err
	}
	return optionalRef(ctx, db, &entity.Unit{}, i.UnitID, "unit")
}
