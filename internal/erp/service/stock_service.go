package service

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/lock"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StockService 库存过账：所有库存余额变化只经过 Post
type StockService struct {
	repos         *repository.Repositories
	metrics       *metrics.Metrics
	logger        *zap.Logger
	allowNegative bool
}

func NewStockService(repos *repository.Repositories, m *metrics.Metrics, logger *zap.Logger, allowNegative bool) *StockService {
	return &StockService{repos: repos, metrics: m, logger: logger, allowNegative: allowNegative}
}

// Movement 一次库存变动。Quantity/Weight 带符号：正数入库，负数出库。
// Rate 仅对带成本的入库有效；其余按当前加权平均价计价。
type Movement struct {
	InventoryItemID string
	BranchID        string
	Type            string
	Quantity        decimal.Decimal
	Weight          decimal.Decimal
	Rate            decimal.NullDecimal
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	Notes           string
	CreatedBy       string
}

// Post 在调用方事务 tx 内追加一条流水并更新库存余额。
func (s *StockService) Post(ctx context.Context, tx *gorm.DB, mv Movement) (*entity.StockMovement, error) {
	if mv.InventoryItemID == "" || mv.BranchID == "" {
		return nil, errs.Validation("stock movement needs an item and a branch")
	}
	if !oneOf(mv.Type, entity.MovementPurchase, entity.MovementSale, entity.MovementTransfer,
		entity.MovementAdjustment, entity.MovementManufacture, entity.MovementWastage) {
		return nil, errs.Validation("unknown movement type %q", mv.Type)
	}

	if err := holdKeys(ctx, tx, stockKey(mv.InventoryItemID, mv.BranchID)); err != nil {
		return nil, lockError(err, "stock")
	}

	repo := s.repos.Stock.WithTx(tx)
	if err := repo.EnsureStock(ctx, mv.InventoryItemID, mv.BranchID); err != nil {
		return nil, errs.FromDB(err, "stock")
	}
	stock, err := repo.LockStock(ctx, mv.InventoryItemID, mv.BranchID)
	if err != nil {
		return nil, errs.FromDB(err, "stock")
	}

	qty := measure(mv.Quantity)
	weight := measure(mv.Weight)
	newQty := stock.Quantity.Add(qty)
	newWeight := stock.Weight.Add(weight)
	if !s.allowNegative && (newQty.IsNegative() || newWeight.IsNegative()) {
		return nil, errs.Validation("insufficient stock for item %s at branch %s: have %s (%s wt), change %s (%s wt)",
			mv.InventoryItemID, mv.BranchID, stock.Quantity, stock.Weight, qty, weight)
	}

	rate, value, avg := costMovement(stock, mv.Type, qty, mv.Rate)

	now := time.Now()
	record := &entity.StockMovement{
		ID:              entity.NewID(),
		InventoryItemID: mv.InventoryItemID,
		BranchID:        mv.BranchID,
		Sequence:        stock.MovementSeq + 1,
		Type:            mv.Type,
		Quantity:        qty,
		Weight:          weight,
		Rate:            rate,
		Value:           value,
		ReferenceType:   mv.ReferenceType,
		ReferenceID:     mv.ReferenceID,
		ReferenceNumber: mv.ReferenceNumber,
		BalanceQuantity: newQty,
		BalanceWeight:   newWeight,
		BalanceValue:    stock.Value.Add(value),
		Notes:           mv.Notes,
		CreatedBy:       mv.CreatedBy,
		CreatedAt:       now,
	}
	if err := repo.CreateMovement(ctx, record); err != nil {
		return nil, errs.FromDB(err, "stock movement")
	}

	stock.Quantity = record.BalanceQuantity
	stock.Weight = record.BalanceWeight
	stock.Value = record.BalanceValue
	stock.AvgRate = avg
	stock.MovementSeq = record.Sequence
	stock.LastMovedAt = &now
	if err := repo.SaveStock(ctx, stock); err != nil {
		return nil, errs.FromDB(err, "stock")
	}

	s.metrics.MovementPosted(mv.Type)
	s.logger.Info("Stock movement posted",
		zap.String("type", mv.Type),
		zap.String("item_id", mv.InventoryItemID),
		zap.String("branch_id", mv.BranchID),
		zap.Int64("sequence", record.Sequence),
		zap.String("quantity", qty.String()),
		zap.String("balance_quantity", record.BalanceQuantity.String()),
		zap.String("reference", record.ReferenceNumber),
	)
	return record, nil
}

// costMovement 返回 (单价, 金额变化, 新加权平均价)
//   - 损耗：金额为0
//   - 带成本入库：金额 = 数量 × 单价，均价按加权平均重算；分母为0时保留原均价
//   - 其余：按当前均价计价，均价不变
func costMovement(stock *entity.Stock, movementType string, qty decimal.Decimal, rate decimal.NullDecimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	avg := stock.AvgRate
	switch {
	case movementType == entity.MovementWastage || qty.IsZero():
		return decimal.Zero, decimal.Zero, avg
	case qty.IsPositive() && rate.Valid:
		r := measure(rate.Decimal)
		value := measure(qty.Mul(r))
		denom := stock.Quantity.Add(qty)
		if !denom.IsZero() {
			avg = measure(stock.Quantity.Mul(stock.AvgRate).Add(qty.Mul(r)).Div(denom))
		}
		return r, value, avg
	default:
		return avg, measure(qty.Mul(avg)), avg
	}
}

func lockError(err error, what string) error {
	if errors.Is(err, lock.ErrBusy) {
		return errs.Wrap(errs.KindConflict, what+" is being updated by another request, try again", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.KindConflict, what+" lock wait cancelled", err)
	}
	return errs.Internal("obtain "+what+" lock", err)
}

// --- 查询 ---

func (s *StockService) GetStock(ctx context.Context, itemID, branchID string) (*entity.Stock, error) {
	stock, err := s.repos.Stock.GetStock(ctx, itemID, branchID)
	if err != nil {
		return nil, errs.FromDB(err, "stock")
	}
	return stock, nil
}

func (s *StockService) ListStock(ctx context.Context, params repository.StockListParams) ([]entity.Stock, int64, error) {
	list, total, err := s.repos.Stock.ListStock(ctx, params)
	if err != nil {
		return nil, 0, errs.FromDB(err, "stock")
	}
	return list, total, nil
}

// ListMovements 过滤条件为空时不过滤，最新的在前
func (s *StockService) ListMovements(ctx context.Context, params repository.MovementListParams) ([]entity.StockMovement, int64, error) {
	list, total, err := s.repos.Stock.ListMovements(ctx, params)
	if err != nil {
		return nil, 0, errs.FromDB(err, "stock movement")
	}
	return list, total, nil
}

// ChainReport 流水链校验结果
type ChainReport struct {
	InventoryItemID string          `json:"inventory_item_id"`
	BranchID        string          `json:"branch_id"`
	Movements       int             `json:"movements"`
	Valid           bool            `json:"valid"`
	BrokenAt        int64           `json:"broken_at,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	Weight          decimal.Decimal `json:"weight"`
	Value           decimal.Decimal `json:"value"`
}

// VerifyChain 从0开始重放流水：每条快照 = 上一条快照 + 本条变动，库存行 = 最后一条快照
func (s *StockService) VerifyChain(ctx context.Context, itemID, branchID string) (*ChainReport, error) {
	if itemID == "" || branchID == "" {
		return nil, errs.Validation("inventory_item_id and branch are required")
	}
	chain, err := s.repos.Stock.MovementChain(ctx, itemID, branchID)
	if err != nil {
		return nil, errs.FromDB(err, "stock movement")
	}
	report := &ChainReport{InventoryItemID: itemID, BranchID: branchID, Movements: len(chain), Valid: true}

	q, w, v := decimal.Zero, decimal.Zero, decimal.Zero
	for i, m := range chain {
		q, w, v = q.Add(m.Quantity), w.Add(m.Weight), v.Add(m.Value)
		switch {
		case m.Sequence != int64(i+1):
			report.fail(m.Sequence, "sequence gap")
		case !m.BalanceQuantity.Equal(q):
			report.fail(m.Sequence, "balance_quantity "+m.BalanceQuantity.String()+" != "+q.String())
		case !m.BalanceWeight.Equal(w):
			report.fail(m.Sequence, "balance_weight "+m.BalanceWeight.String()+" != "+w.String())
		case !m.BalanceValue.Equal(v):
			report.fail(m.Sequence, "balance_value "+m.BalanceValue.String()+" != "+v.String())
		}
		if !report.Valid {
			return report, nil
		}
	}
	report.Quantity, report.Weight, report.Value = q, w, v

	stock, err := s.repos.Stock.GetStock(ctx, itemID, branchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if len(chain) > 0 {
			report.fail(0, "stock row missing")
		}
		return report, nil
	}
	if err != nil {
		return nil, errs.FromDB(err, "stock")
	}
	if !stock.Quantity.Equal(q) || !stock.Weight.Equal(w) || !stock.Value.Equal(v) || stock.MovementSeq != int64(len(chain)) {
		report.fail(stock.MovementSeq, "stock balance does not match last movement")
	}
	return report, nil
}

func (r *ChainReport) fail(seq int64, reason string) {
	r.Valid = false
	r.BrokenAt = seq
	r.Reason = reason
}

// --- 调整 / 调拨 ---

type AdjustmentRequest struct {
	InventoryItemID string              `json:"inventory_item_id" binding:"required"`
	BranchID        string              `json:"branch_id" binding:"required"`
	Quantity        decimal.Decimal     `json:"quantity"`
	Weight          decimal.Decimal     `json:"weight"`
	Rate            decimal.NullDecimal `json:"rate"`
	Reason          string              `json:"reason" binding:"required"`
}

// Adjust 盘点调整，数量/重量带符号
func (s *StockService) Adjust(ctx context.Context, req AdjustmentRequest, userID string) (*entity.StockMovement, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Quantity.IsZero() && req.Weight.IsZero() {
		return nil, errs.Validation("quantity or weight must be non-zero")
	}
	if req.Rate.Valid && req.Rate.Decimal.IsNegative() {
		return nil, errs.Validation("rate must not be negative")
	}
	db := s.repos.DB()
	if err := requireRef(ctx, db, &entity.InventoryItem{}, req.InventoryItemID, "inventory item"); err != nil {
		return nil, err
	}
	if err := requireRef(ctx, db, &entity.Branch{}, req.BranchID, "branch"); err != nil {
		return nil, err
	}

	var out *entity.StockMovement
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		number, err := NewNumberer(s.repos.Sequence).Next(ctx, tx, SeqAdjustment)
		if err != nil {
			return err
		}
		out, err = s.Post(ctx, tx, Movement{
			InventoryItemID: req.InventoryItemID,
			BranchID:        req.BranchID,
			Type:            entity.MovementAdjustment,
			Quantity:        req.Quantity,
			Weight:          req.Weight,
			Rate:            req.Rate,
			ReferenceType:   entity.RefAdjustment,
			ReferenceNumber: number,
			Notes:           req.Reason,
			CreatedBy:       userID,
		})
		return err
	})
	return out, err
}

type TransferRequest struct {
	InventoryItemID string          `json:"inventory_item_id" binding:"required"`
	FromBranchID    string          `json:"from_branch_id" binding:"required"`
	ToBranchID      string          `json:"to_branch_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"gt=0"`
	Weight          decimal.Decimal `json:"weight" binding:"gte=0"`
	Notes           string          `json:"notes"`
}

// TransferResult 调拨出入两条流水
type TransferResult struct {
	Number string               `json:"number"`
	Out    *entity.StockMovement `json:"out"`
	In     *entity.StockMovement `json:"in"`
}

// Transfer 按调出门店的均价调拨，出入库在同一事务
func (s *StockService) Transfer(ctx context.Context, req TransferRequest, userID string) (*TransferResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.FromBranchID == req.ToBranchID {
		return nil, errs.Validation("from_branch_id and to_branch_id must differ")
	}
	db := s.repos.DB()
	if err := requireRef(ctx, db, &entity.InventoryItem{}, req.InventoryItemID, "inventory item"); err != nil {
		return nil, err
	}
	if err := requireRef(ctx, db, &entity.Branch{}, req.FromBranchID, "branch"); err != nil {
		return nil, err
	}
	if err := requireRef(ctx, db, &entity.Branch{}, req.ToBranchID, "branch"); err != nil {
		return nil, err
	}

	result := &TransferResult{}
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		number, err := NewNumberer(s.repos.Sequence).Next(ctx, tx, SeqTransfer)
		if err != nil {
			return err
		}
		result.Number = number
		if err := holdKeys(ctx, tx, stockKey(req.InventoryItemID, req.FromBranchID), stockKey(req.InventoryItemID, req.ToBranchID)); err != nil {
			return lockError(err, "stock")
		}
		result.Out, err = s.Post(ctx, tx, Movement{
			InventoryItemID: req.InventoryItemID,
			BranchID:        req.FromBranchID,
			Type:            entity.MovementTransfer,
			Quantity:        req.Quantity.Neg(),
			Weight:          req.Weight.Neg(),
			ReferenceType:   entity.RefTransfer,
			ReferenceNumber: number,
			Notes:           req.Notes,
			CreatedBy:       userID,
		})
		if err != nil {
			return err
		}
		result.In, err = s.Post(ctx, tx, Movement{
			InventoryItemID: req.InventoryItemID,
			BranchID:        req.ToBranchID,
			Type:            entity.MovementTransfer,
			Quantity:        req.Quantity,
			Weight:          req.Weight,
			Rate:            decimal.NewNullDecimal(result.Out.Rate),
			ReferenceType:   entity.RefTransfer,
			ReferenceNumber: number,
			Notes:           req.Notes,
			CreatedBy:       userID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
