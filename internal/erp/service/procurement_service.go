package service

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProcurementService struct {
	repos   *repository.Repositories
	numbers *Numberer
	stock   *StockService
	ledger  *LedgerService
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    Options
}

func NewProcurementService(repos *repository.Repositories, numbers *Numberer, stock *StockService, ledger *LedgerService, m *metrics.Metrics, logger *zap.Logger, opts Options) *ProcurementService {
	return &ProcurementService{repos: repos, numbers: numbers, stock: stock, ledger: ledger, metrics: m, logger: logger, opts: opts}
}

// --- Purchase Order ---

type CreatePORequest struct {
	SupplierID   string        `json:"supplier_id" binding:"required"`
	BranchID     string        `json:"branch_id" binding:"required"`
	OrderDate    string        `json:"order_date"`
	ExpectedDate string        `json:"expected_date"`
	Notes        string        `json:"notes"`
	Items        []POItemInput `json:"items" binding:"required,min=1,dive"`
}

type POItemInput struct {
	InventoryItemID string          `json:"inventory_item_id" binding:"required"`
	MetalPurityID   string          `json:"metal_purity_id"`
	StonePurityID   string          `json:"stone_purity_id"`
	Quantity        decimal.Decimal `json:"quantity" binding:"gt=0"`
	Weight          decimal.Decimal `json:"weight" binding:"gte=0"`
	Rate            decimal.Decimal `json:"rate" binding:"gte=0"`
	Discount        decimal.Decimal `json:"discount" binding:"gte=0,lte=100"`
	Tax             decimal.Decimal `json:"tax" binding:"gte=0"`
}

func (s *ProcurementService) checkPOItems(ctx context.Context, items []POItemInput) error {
	db := s.repos.DB()
	for _, it := range items {
		if err := requireRef(ctx, db, &entity.InventoryItem{}, it.InventoryItemID, "inventory item"); err != nil {
			return err
		}
		if err := optionalRef(ctx, db, &entity.Purity{}, it.MetalPurityID, "metal purity"); err != nil {
			return err
		}
		if err := optionalRef(ctx, db, &entity.Purity{}, it.StonePurityID, "stone purity"); err != nil {
			return err
		}
	}
	return nil
}

// buildPOItems 计算行合计，返回 (行, 不含税合计, 税额)
func buildPOItems(poID string, inputs []POItemInput) ([]entity.POItem, decimal.Decimal, decimal.Decimal) {
	items := make([]entity.POItem, 0, len(inputs))
	sub, tax := decimal.Zero, decimal.Zero
	for i, in := range inputs {
		base, total := lineAmounts(in.Quantity, in.Rate, in.Discount, in.Tax)
		items = append(items, entity.POItem{
			ID:              entity.NewID(),
			POID:            poID,
			InventoryItemID: in.InventoryItemID,
			MetalPurityID:   in.MetalPurityID,
			StonePurityID:   in.StonePurityID,
			Quantity:        measure(in.Quantity),
			Weight:          measure(in.Weight),
			Rate:            measure(in.Rate),
			Discount:        in.Discount,
			Tax:             money(in.Tax),
			LineTotal:       total,
			SortOrder:       i + 1,
		})
		sub = sub.Add(base)
		tax = tax.Add(money(in.Tax))
	}
	return items, sub, tax
}

func (s *ProcurementService) CreatePO(ctx context.Context, req CreatePORequest, userID string) (*entity.PurchaseOrder, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	orderDate, err := parseDate(req.OrderDate, "order_date", time.Now())
	if err != nil {
		return nil, err
	}
	var expected *time.Time
	if req.ExpectedDate != "" {
		t, err := parseDate(req.ExpectedDate, "expected_date", time.Time{})
		if err != nil {
			return nil, err
		}
		expected = &t
	}
	db := s.repos.DB()
	if err := requireRef(ctx, db, &entity.Supplier{}, req.SupplierID, "supplier"); err != nil {
		return nil, err
	}
	if err := requireRef(ctx, db, &entity.Branch{}, req.BranchID, "branch"); err != nil {
		return nil, err
	}
	if err := s.checkPOItems(ctx, req.Items); err != nil {
		return nil, err
	}

	po := &entity.PurchaseOrder{
		ID:           entity.NewID(),
		SupplierID:   req.SupplierID,
		BranchID:     req.BranchID,
		OrderDate:    orderDate,
		ExpectedDate: expected,
		Status:       entity.POStatusDraft,
		Notes:        req.Notes,
		CreatedBy:    userID,
	}
	items, sub, tax := buildPOItems(po.ID, req.Items)
	po.Items = items
	po.TotalAmount = sub
	po.TaxAmount = tax
	po.GrandTotal = sub.Add(tax)

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		number, err := s.numbers.Next(ctx, tx, SeqPurchaseOrder)
		if err != nil {
			return err
		}
		po.PONumber = number
		if err := s.repos.Purchase.WithTx(tx).CreatePO(ctx, po); err != nil {
			return errs.FromDB(err, "purchase order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.DocumentCreated("PO")
	s.logger.Info("Purchase order created", zap.String("po_number", po.PONumber), zap.String("grand_total", po.GrandTotal.String()))
	return s.GetPO(ctx, po.ID)
}

func (s *ProcurementService) GetPO(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	po, err := s.repos.Purchase.GetPOByID(ctx, id)
	if err != nil {
		return nil, errs.FromDB(err, "purchase order")
	}
	return po, nil
}

func (s *ProcurementService) ListPOs(ctx context.Context, params repository.POListParams) ([]entity.PurchaseOrder, int64, error) {
	list, total, err := s.repos.Purchase.ListPOs(ctx, params)
	if err != nil {
		return nil, 0, errs.FromDB(err, "purchase order")
	}
	return list, total, nil
}

type ReplacePOItemsRequest struct {
	Items []POItemInput `json:"items" binding:"required,min=1,dive"`
}

// ReplaceItems 审批后订单行不可修改
func (s *ProcurementService) ReplaceItems(ctx context.Context, id string, req ReplacePOItemsRequest) (*entity.PurchaseOrder, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.checkPOItems(ctx, req.Items); err != nil {
		return nil, err
	}
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repos.Purchase.WithTx(tx)
		po, err := repo.LockPO(ctx, id)
		if err != nil {
			return errs.FromDB(err, "purchase order")
		}
		if !oneOf(po.Status, entity.POStatusDraft, entity.POStatusPending) {
			return errs.Conflict("purchase order %s is %s, items can no longer change", po.PONumber, po.Status)
		}
		items, sub, tax := buildPOItems(po.ID, req.Items)
		if err := repo.ReplacePOItems(ctx, po.ID, items); err != nil {
			return errs.FromDB(err, "purchase order item")
		}
		po.Items = nil
		po.TotalAmount = sub
		po.TaxAmount = tax
		po.GrandTotal = sub.Add(tax)
		return errs.FromDB(repo.UpdatePO(ctx, po), "purchase order")
	})
	if err != nil {
		return nil, err
	}
	return s.GetPO(ctx, id)
}

// PO 动作
const (
	POActionSubmit   = "submit"
	POActionApprove  = "approve"
	POActionComplete = "complete"
	POActionCancel   = "cancel"
)

// 状态只能前进
var poTransitions = map[string]struct {
	from []string
	to   string
}{
	POActionSubmit:   {[]string{entity.POStatusDraft}, entity.POStatusPending},
	POActionApprove:  {[]string{entity.POStatusPending}, entity.POStatusApproved},
	POActionComplete: {[]string{entity.POStatusApproved}, entity.POStatusCompleted},
	POActionCancel:   {[]string{entity.POStatusDraft, entity.POStatusPending, entity.POStatusApproved}, entity.POStatusCancelled},
}

func (s *ProcurementService) TransitionPO(ctx context.Context, id, action, userID string) (*entity.PurchaseOrder, error) {
	t, ok := poTransitions[action]
	if !ok {
		return nil, errs.Validation("unknown purchase order action %q", action)
	}
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repos.Purchase.WithTx(tx)
		po, err := repo.LockPO(ctx, id)
		if err != nil {
			return errs.FromDB(err, "purchase order")
		}
		if !oneOf(po.Status, t.from...) {
			s.metrics.Conflict("po_" + action)
			return transitionConflict("purchase order", po.PONumber, po.Status, action)
		}
		po.Status = t.to
		if action == POActionApprove {
			now := time.Now()
			po.ApprovedBy = userID
			po.ApprovedAt = &now
		}
		po.Items = nil
		return errs.FromDB(repo.UpdatePO(ctx, po), "purchase order")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Purchase order transition", zap.String("po_id", id), zap.String("action", action), zap.String("user_id", userID))
	return s.GetPO(ctx, id)
}

// DeletePO 已有收货单的订单不能删除
func (s *ProcurementService) DeletePO(ctx context.Context, id string) error {
	return s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repos.Purchase.WithTx(tx)
		po, err := repo.LockPO(ctx, id)
		if err != nil {
			return errs.FromDB(err, "purchase order")
		}
		n, err := repo.CountGRNsByPO(ctx, id)
		if err != nil {
			return errs.FromDB(err, "grn")
		}
		if n > 0 {
			return errs.Conflict("purchase order %s has %d goods received notes and cannot be deleted", po.PONumber, n)
		}
		return errs.FromDB(repo.DeletePO(ctx, id), "purchase order")
	})
}

// --- GRN ---

type CreateGRNRequest struct {
	ReceivedDate string         `json:"received_date"`
	Notes        string         `json:"notes"`
	Items        []GRNItemInput `json:"items" binding:"required,min=1,dive"`
}

// GRNItemInput Rate 为0时取订单行单价；MetalCost 为0时按 数量 × 单价 计算
type GRNItemInput struct {
	POItemID         string          `json:"po_item_id" binding:"required"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity" binding:"gt=0"`
	ReceivedWeight   decimal.Decimal `json:"received_weight" binding:"gte=0"`
	Rate             decimal.Decimal `json:"rate" binding:"gte=0"`
	MetalCost        decimal.Decimal `json:"metal_cost" binding:"gte=0"`
	StoneCost        decimal.Decimal `json:"stone_cost" binding:"gte=0"`
}

// CreateGRN 针对已审批订单收货。编号由原子计数器生成。
func (s *ProcurementService) CreateGRN(ctx context.Context, poID string, req CreateGRNRequest, userID string) (*entity.GRN, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	receivedDate, err := parseDate(req.ReceivedDate, "received_date", time.Now())
	if err != nil {
		return nil, err
	}

	var grn *entity.GRN
	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repos.Purchase.WithTx(tx)
		po, err := repo.LockPO(ctx, poID)
		if err != nil {
			return errs.FromDB(err, "purchase order")
		}
		if po.Status != entity.POStatusApproved {
			return errs.Conflict("purchase order %s is %s, goods can only be received against an approved order", po.PONumber, po.Status)
		}
		poItems := make(map[string]entity.POItem, len(po.Items))
		for _, it := range po.Items {
			poItems[it.ID] = it
		}

		received, err := s.receivedSoFar(ctx, repo, poID)
		if err != nil {
			return err
		}

		grn = &entity.GRN{
			ID:           entity.NewID(),
			POID:         po.ID,
			SupplierID:   po.SupplierID,
			BranchID:     po.BranchID,
			ReceivedDate: receivedDate,
			Status:       entity.GRNStatusDraft,
			Notes:        req.Notes,
			CreatedBy:    userID,
		}
		for i, in := range req.Items {
			poItem, ok := poItems[in.POItemID]
			if !ok {
				return errs.Validation("items[%d].po_item_id %s does not belong to purchase order %s", i, in.POItemID, po.PONumber)
			}
			qty := measure(in.ReceivedQuantity)
			received[poItem.ID] = received[poItem.ID].Add(qty)
			if err := s.checkOverReceipt(poItem, received[poItem.ID]); err != nil {
				return err
			}

			rate := in.Rate
			if rate.IsZero() {
				rate = poItem.Rate
			}
			metal := money(in.MetalCost)
			if metal.IsZero() {
				metal = money(qty.Mul(rate))
			}
			stone := money(in.StoneCost)
			item := entity.GRNItem{
				ID:               entity.NewID(),
				GRNID:            grn.ID,
				POItemID:         poItem.ID,
				InventoryItemID:  poItem.InventoryItemID,
				OrderedQuantity:  poItem.Quantity,
				OrderedWeight:    poItem.Weight,
				ReceivedQuantity: qty,
				ReceivedWeight:   measure(in.ReceivedWeight),
				Rate:             measure(rate),
				MetalCost:        metal,
				StoneCost:        stone,
				TotalCost:        metal.Add(stone),
				SortOrder:        i + 1,
			}
			grn.Items = append(grn.Items, item)
			grn.TotalQuantity = grn.TotalQuantity.Add(item.ReceivedQuantity)
			grn.TotalWeight = grn.TotalWeight.Add(item.ReceivedWeight)
			grn.MetalCost = grn.MetalCost.Add(metal)
			grn.StoneCost = grn.StoneCost.Add(stone)
			grn.TotalCost = grn.TotalCost.Add(item.TotalCost)
		}

		number, err := s.numbers.Next(ctx, tx, SeqGRN)
		if err != nil {
			return err
		}
		grn.GRNNumber = number
		return errs.FromDB(repo.CreateGRN(ctx, grn), "grn")
	})
	if err != nil {
		return nil, err
	}
	s.metrics.DocumentCreated("GRN")
	s.logger.Info("GRN created", zap.String("grn_number", grn.GRNNumber), zap.String("po_id", poID))
	return s.GetGRN(ctx, grn.ID)
}

func (s *ProcurementService) receivedSoFar(ctx context.Context, repo *repository.PurchaseRepository, poID string) (map[string]decimal.Decimal, error) {
	items, err := repo.ActiveGRNItems(ctx, poID)
	if err != nil {
		return nil, errs.FromDB(err, "grn item")
	}
	out := make(map[string]decimal.Decimal)
	for _, it := range items {
		out[it.POItemID] = out[it.POItemID].Add(it.ReceivedQuantity)
	}
	return out, nil
}

// checkOverReceipt 按配置策略校验累计收货数量
func (s *ProcurementService) checkOverReceipt(item entity.POItem, cumulative decimal.Decimal) error {
	limit := item.Quantity
	switch s.opts.OverReceiptPolicy {
	case OverReceiptReject:
	case OverReceiptTolerance:
		limit = item.Quantity.Mul(decimal.NewFromInt(1).Add(s.opts.OverReceiptTolerancePct.Div(hundred)))
	default:
		return nil
	}
	if cumulative.GreaterThan(limit) {
		return errs.Validation("received quantity %s exceeds the allowed %s for purchase order item %s",
			cumulative, limit, item.ID)
	}
	return nil
}

func (s *ProcurementService) GetGRN(ctx context.Context, id string) (*entity.GRN, error) {
	grn, err := s.repos.Purchase.GetGRNByID(ctx, id)
	if err != nil {
		return nil, errs.FromDB(err, "grn")
	}
	return grn, nil
}

func (s *ProcurementService) ListGRNs(ctx context.Context, params repository.GRNListParams) ([]entity.GRN, int64, error) {
	list, total, err := s.repos.Purchase.ListGRNs(ctx, params)
	if err != nil {
		return nil, 0, errs.FromDB(err, "grn")
	}
	return list, total, nil
}

// ListGRNsByPO 订单不存在时返回 NotFound
func (s *ProcurementService) ListGRNsByPO(ctx context.Context, poID string, page repository.Page) ([]entity.GRN, int64, error) {
	if _, err := s.GetPO(ctx, poID); err != nil {
		return nil, 0, err
	}
	return s.ListGRNs(ctx, repository.GRNListParams{POID: poID, Page: page})
}

// ReceiveGRN draft → received
func (s *ProcurementService) ReceiveGRN(ctx context.Context, id, userID string) (*entity.GRN, error) {
	return s.transitionGRN(ctx, id, "receive", []string{entity.GRNStatusDraft}, func(tx *gorm.DB, grn *entity.GRN) error {
		grn.Status = entity.GRNStatusReceived
		grn.ReceivedBy = userID
		grn.ReceivedAt = ptrTime(time.Now())
		return nil
	})
}

// CancelGRN draft|received → cancelled
func (s *ProcurementService) CancelGRN(ctx context.Context, id, userID string) (*entity.GRN, error) {
	return s.transitionGRN(ctx, id, "cancel", []string{entity.GRNStatusDraft, entity.GRNStatusReceived}, func(tx *gorm.DB, grn *entity.GRN) error {
		grn.Status = entity.GRNStatusCancelled
		return nil
	})
}

// VerifyGRN draft|received → verified：入库、回写订单收货数量、贷记供应商，同一事务
func (s *ProcurementService) VerifyGRN(ctx context.Context, id, userID string) (*entity.GRN, error) {
	return s.transitionGRN(ctx, id, "verify", []string{entity.GRNStatusDraft, entity.GRNStatusReceived}, func(tx *gorm.DB, grn *entity.GRN) error {
		repo := s.repos.Purchase.WithTx(tx)
		po, err := repo.LockPO(ctx, grn.POID)
		if err != nil {
			return errs.FromDB(err, "purchase order")
		}
		if !oneOf(po.Status, entity.POStatusApproved, entity.POStatusCompleted) {
			return errs.Conflict("purchase order %s is %s, goods cannot be verified", po.PONumber, po.Status)
		}
		poItems := make(map[string]*entity.POItem, len(po.Items))
		for i := range po.Items {
			poItems[po.Items[i].ID] = &po.Items[i]
		}

		keys := []string{ledgerKey(entity.PartySupplier, grn.SupplierID)}
		for _, line := range grn.Items {
			keys = append(keys, stockKey(line.InventoryItemID, grn.BranchID))
		}
		if err := holdKeys(ctx, tx, keys...); err != nil {
			return lockError(err, "stock")
		}

		for _, line := range grn.Items {
			rate := decimal.Zero
			if line.ReceivedQuantity.IsPositive() {
				rate = measure(line.TotalCost.Div(line.ReceivedQuantity))
			}
			if _, err := s.stock.Post(ctx, tx, Movement{
				InventoryItemID: line.InventoryItemID,
				BranchID:        grn.BranchID,
				Type:            entity.MovementPurchase,
				Quantity:        line.ReceivedQuantity,
				Weight:          line.ReceivedWeight,
				Rate:            decimal.NewNullDecimal(rate),
				ReferenceType:   entity.RefGRN,
				ReferenceID:     grn.ID,
				ReferenceNumber: grn.GRNNumber,
				CreatedBy:       userID,
			}); err != nil {
				return err
			}
			poItem, ok := poItems[line.POItemID]
			if !ok {
				return errs.Validation("grn line references unknown purchase order item %s", line.POItemID)
			}
			poItem.ReceivedQuantity = poItem.ReceivedQuantity.Add(line.ReceivedQuantity)
			poItem.ReceivedWeight = poItem.ReceivedWeight.Add(line.ReceivedWeight)
			if err := repo.UpdatePOItem(ctx, poItem); err != nil {
				return errs.FromDB(err, "purchase order item")
			}
		}

		if grn.TotalCost.IsPositive() {
			if _, err := s.ledger.Post(ctx, tx, Posting{
				PartyType:       entity.PartySupplier,
				PartyID:         grn.SupplierID,
				EntryType:       entity.EntryCredit,
				Amount:          grn.TotalCost,
				ReferenceType:   entity.RefGRN,
				ReferenceID:     grn.ID,
				ReferenceNumber: grn.GRNNumber,
				Narration:       "goods received against " + po.PONumber,
				CreatedBy:       userID,
			}); err != nil {
				return err
			}
		}

		if po.Status == entity.POStatusApproved && fullyReceived(po.Items) {
			po.Status = entity.POStatusCompleted
			po.Items = nil
			if err := repo.UpdatePO(ctx, po); err != nil {
				return errs.FromDB(err, "purchase order")
			}
		}

		grn.Status = entity.GRNStatusVerified
		grn.VerifiedBy = userID
		grn.VerifiedAt = ptrTime(time.Now())
		return nil
	})
}

func fullyReceived(items []entity.POItem) bool {
	for _, it := range items {
		if it.ReceivedQuantity.LessThan(it.Quantity) {
			return false
		}
	}
	return true
}

func (s *ProcurementService) transitionGRN(ctx context.Context, id, action string, from []string, apply func(tx *gorm.DB, grn *entity.GRN) error) (*entity.GRN, error) {
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repos.Purchase.WithTx(tx)
		grn, err := repo.LockGRN(ctx, id)
		if err != nil {
			return errs.FromDB(err, "grn")
		}
		if !oneOf(grn.Status, from...) {
			s.metrics.Conflict("grn_" + action)
			return transitionConflict("grn", grn.GRNNumber, grn.Status, action)
		}
		if err := apply(tx, grn); err != nil {
			return err
		}
		grn.Items = nil
		return errs.FromDB(repo.UpdateGRN(ctx, grn), "grn")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("GRN transition", zap.String("grn_id", id), zap.String("action", action))
	return s.GetGRN(ctx, id)
}
