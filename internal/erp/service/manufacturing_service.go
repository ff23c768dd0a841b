package service

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ManufacturingService struct {
	repos   *repository.Repositories
	numbers *Numberer
	stock   *StockService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewManufacturingService(repos *repository.Repositories, numbers *Numberer, stock *StockService, m *metrics.Metrics, logger *zap.Logger) *ManufacturingService {
	return &ManufacturingService{repos: repos, numbers: numbers, stock: stock, metrics: m, logger: logger}
}

type CreateMORequest struct {
	BranchID      string          `json:"branch_id" binding:"required"`
	KarigarID     string          `json:"karigar_id"`
	MakingStageID string          `json:"making_stage_id"`
	OrderDate     string          `json:"order_date"`
	Notes         string          `json:"notes"`
	Inputs        []MOInputInput  `json:"inputs" binding:"required,min=1,dive"`
	Outputs       []MOOutputInput `json:"outputs" binding:"required,min=1,dive"`
}

// MOInputInput Rate 为0时取当前加权平均价
type MOInputInput struct {
	InventoryItemID string          `json:"inventory_item_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"gt=0"`
	Weight          decimal.Decimal `json:"weight" binding:"gte=0"`
	Rate            decimal.Decimal `json:"rate" binding:"gte=0"`
}

type MOOutputInput struct {
	InventoryItemID string          `json:"inventory_item_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"gt=0"`
	ExpectedWeight  decimal.Decimal `json:"expected_weight" binding:"gte=0"`
}

func (s *ManufacturingService) Create(ctx context.Context, req CreateMORequest, userID string) (*entity.ManufacturingOrder, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	orderDate, err := parseDate(req.OrderDate, "order_date", time.Now())
	if err != nil {
		return nil, err
	}
	db := s.repos.DB()
	if err := requireRef(ctx, db, &entity.Branch{}, req.BranchID, "branch"); err != nil {
		return nil, err
	}
	if err := optionalRef(ctx, db, &entity.Karigar{}, req.KarigarID, "karigar"); err != nil {
		return nil, err
	}
	if err := optionalRef(ctx, db, &entity.MakingStage{}, req.MakingStageID, "making stage"); err != nil {
		return nil, err
	}

	mo := &entity.ManufacturingOrder{
		ID:            entity.NewID(),
		BranchID:      req.BranchID,
		KarigarID:     req.KarigarID,
		MakingStageID: req.MakingStageID,
		Status:        entity.MOStatusDraft,
		OrderDate:     orderDate,
		Notes:         req.Notes,
		CreatedBy:     userID,
	}
	for i, in := range req.Inputs {
		if err := requireRef(ctx, db, &entity.InventoryItem{}, in.InventoryItemID, "inventory item"); err != nil {
			return nil, err
		}
		rate := measure(in.Rate)
		if rate.IsZero() {
			if rate, err = s.currentAvg(ctx, in.InventoryItemID, req.BranchID); err != nil {
				return nil, err
			}
		}
		input := entity.MOInput{
			ID:              entity.NewID(),
			MOID:            mo.ID,
			InventoryItemID: in.InventoryItemID,
			Quantity:        measure(in.Quantity),
			Weight:          measure(in.Weight),
			Rate:            rate,
			Value:           measure(in.Quantity.Mul(rate)),
			SortOrder:       i + 1,
		}
		mo.Inputs = append(mo.Inputs, input)
		mo.TotalInputWeight = mo.TotalInputWeight.Add(input.Weight)
		mo.TotalInputValue = mo.TotalInputValue.Add(input.Value)
	}
	for i, out := range req.Outputs {
		if err := requireRef(ctx, db, &entity.InventoryItem{}, out.InventoryItemID, "inventory item"); err != nil {
			return nil, err
		}
		output := entity.MOOutput{
			ID:              entity.NewID(),
			MOID:            mo.ID,
			InventoryItemID: out.InventoryItemID,
			Quantity:        measure(out.Quantity),
			ExpectedWeight:  measure(out.ExpectedWeight),
			SortOrder:       i + 1,
		}
		mo.Outputs = append(mo.Outputs, output)
		mo.TotalExpectedWeight = mo.TotalExpectedWeight.Add(output.ExpectedWeight)
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		number, err := s.numbers.Next(ctx, tx, SeqManufacturing)
		if err != nil {
			return err
		}
		mo.MONumber = number
		return errs.FromDB(s.repos.Manufacturing.WithTx(tx).Create(ctx, mo), "manufacturing order")
	})
	if err != nil {
		return nil, err
	}
	s.metrics.DocumentCreated("MO")
	s.logger.Info("Manufacturing order created", zap.String("mo_number", mo.MONumber))
	return s.Get(ctx, mo.ID)
}

func (s *ManufacturingService) currentAvg(ctx context.Context, itemID, branchID string) (decimal.Decimal, error) {
	stock, err := s.repos.Stock.GetStock(ctx, itemID, branchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, errs.FromDB(err, "stock")
	}
	return stock.AvgRate, nil
}

func (s *ManufacturingService) Get(ctx context.Context, id string) (*entity.ManufacturingOrder, error) {
	mo, err := s.repos.Manufacturing.GetByID(ctx, id)
	if err != nil {
		return nil, errs.FromDB(err, "manufacturing order")
	}
	return mo, nil
}

func (s *ManufacturingService) List(ctx context.Context, params repository.MOListParams) ([]entity.ManufacturingOrder, int64, error) {
	list, total, err := s.repos.Manufacturing.List(ctx, params)
	if err != nil {
		return nil, 0, errs.FromDB(err, "manufacturing order")
	}
	return list, total, nil
}

// Start draft → in_progress
func (s *ManufacturingService) Start(ctx context.Context, id, userID string) (*entity.ManufacturingOrder, error) {
	return s.transition(ctx, id, "start", []string{entity.MOStatusDraft}, func(tx *gorm.DB, mo *entity.ManufacturingOrder) error {
		mo.Status = entity.MOStatusInProgress
		mo.StartedAt = ptrTime(time.Now())
		return nil
	})
}

// Cancel 完工前不产生库存流水，取消无需冲销
func (s *ManufacturingService) Cancel(ctx context.Context, id, userID string) (*entity.ManufacturingOrder, error) {
	return s.transition(ctx, id, "cancel", []string{entity.MOStatusDraft, entity.MOStatusInProgress}, func(tx *gorm.DB, mo *entity.ManufacturingOrder) error {
		mo.Status = entity.MOStatusCancelled
		return nil
	})
}

type CompleteMORequest struct {
	Outputs []OutputActual `json:"outputs" binding:"required,min=1,dive"`
}

type OutputActual struct {
	OutputID     string          `json:"output_id" binding:"required"`
	ActualWeight decimal.Decimal `json:"actual_weight" binding:"gte=0"`
}

// Complete 投入按均价出库，成品按预计重量入库并分摊投入成本，损耗单独记 WASTAGE
func (s *ManufacturingService) Complete(ctx context.Context, id string, req CompleteMORequest, userID string) (*entity.ManufacturingOrder, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	actuals := make(map[string]decimal.Decimal, len(req.Outputs))
	for _, o := range req.Outputs {
		actuals[o.OutputID] = measure(o.ActualWeight)
	}

	mo, err := s.transition(ctx, id, "complete", []string{entity.MOStatusInProgress}, func(tx *gorm.DB, mo *entity.ManufacturingOrder) error {
		if len(actuals) != len(mo.Outputs) {
			return errs.Validation("actual weight is required for each of the %d outputs", len(mo.Outputs))
		}
		for _, out := range mo.Outputs {
			if _, ok := actuals[out.ID]; !ok {
				return errs.Validation("actual weight missing for output %s", out.ID)
			}
		}
		repo := s.repos.Manufacturing.WithTx(tx)
		ref := func(mv Movement) Movement {
			mv.BranchID = mo.BranchID
			mv.ReferenceType = entity.RefManufacturing
			mv.ReferenceID = mo.ID
			mv.ReferenceNumber = mo.MONumber
			mv.CreatedBy = userID
			return mv
		}

		keys := make([]string, 0, len(mo.Inputs)+len(mo.Outputs))
		for _, in := range mo.Inputs {
			keys = append(keys, stockKey(in.InventoryItemID, mo.BranchID))
		}
		for _, out := range mo.Outputs {
			keys = append(keys, stockKey(out.InventoryItemID, mo.BranchID))
		}
		if err := holdKeys(ctx, tx, keys...); err != nil {
			return lockError(err, "stock")
		}

		inputValue := decimal.Zero
		for i := range mo.Inputs {
			in := &mo.Inputs[i]
			mv, err := s.stock.Post(ctx, tx, ref(Movement{
				InventoryItemID: in.InventoryItemID,
				Type:            entity.MovementManufacture,
				Quantity:        in.Quantity.Neg(),
				Weight:          in.Weight.Neg(),
			}))
			if err != nil {
				return err
			}
			in.Rate = mv.Rate
			in.Value = mv.Value.Neg()
			inputValue = inputValue.Add(in.Value)
			if err := repo.UpdateInput(ctx, in); err != nil {
				return errs.FromDB(err, "manufacturing input")
			}
		}

		shares := make([]decimal.Decimal, len(mo.Outputs))
		for i, out := range mo.Outputs {
			shares[i] = out.ExpectedWeight
		}
		allocated := allocate(inputValue, shares, mo.Outputs)

		actualTotal, wastageTotal := decimal.Zero, decimal.Zero
		for i := range mo.Outputs {
			out := &mo.Outputs[i]
			out.ActualWeight = actuals[out.ID]
			out.Wastage = out.ExpectedWeight.Sub(out.ActualWeight)
			out.Rate = measure(allocated[i].Div(out.Quantity))
			mv, err := s.stock.Post(ctx, tx, ref(Movement{
				InventoryItemID: out.InventoryItemID,
				Type:            entity.MovementManufacture,
				Quantity:        out.Quantity,
				Weight:          out.ExpectedWeight,
				Rate:            decimal.NewNullDecimal(out.Rate),
			}))
			if err != nil {
				return err
			}
			out.Value = mv.Value
			if !out.Wastage.IsZero() {
				if _, err := s.stock.Post(ctx, tx, ref(Movement{
					InventoryItemID: out.InventoryItemID,
					Type:            entity.MovementWastage,
					Weight:          out.Wastage.Neg(),
					Notes:           "wastage " + out.Wastage.String(),
				})); err != nil {
					return err
				}
			}
			if err := repo.UpdateOutput(ctx, out); err != nil {
				return errs.FromDB(err, "manufacturing output")
			}
			actualTotal = actualTotal.Add(out.ActualWeight)
			wastageTotal = wastageTotal.Add(out.Wastage)
		}

		mo.TotalInputValue = inputValue
		mo.TotalActualWeight = actualTotal
		mo.TotalWastage = wastageTotal
		mo.Status = entity.MOStatusCompleted
		mo.CompletedAt = ptrTime(time.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Manufacturing order completed",
		zap.String("mo_number", mo.MONumber),
		zap.String("input_value", mo.TotalInputValue.String()),
		zap.String("wastage", mo.TotalWastage.String()),
	)
	return mo, nil
}

// allocate 按份额分摊 total，尾差计入最后一项；份额全为0时按数量分摊
func allocate(total decimal.Decimal, shares []decimal.Decimal, outputs []entity.MOOutput) []decimal.Decimal {
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s)
	}
	if sum.IsZero() {
		for i, out := range outputs {
			shares[i] = out.Quantity
			sum = sum.Add(out.Quantity)
		}
	}
	result := make([]decimal.Decimal, len(shares))
	rest := total
	for i := range shares {
		if i == len(shares)-1 {
			result[i] = rest
			break
		}
		result[i] = measure(total.Mul(shares[i]).Div(sum))
		rest = rest.Sub(result[i])
	}
	return result
}

func (s *ManufacturingService) transition(ctx context.Context, id, action string, from []string, apply func(tx *gorm.DB, mo *entity.ManufacturingOrder) error) (*entity.ManufacturingOrder, error) {
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repos.Manufacturing.WithTx(tx)
		mo, err := repo.Lock(ctx, id)
		if err != nil {
			return errs.FromDB(err, "manufacturing order")
		}
		if !oneOf(mo.Status, from...) {
			s.metrics.Conflict("mo_" + action)
			return transitionConflict("manufacturing order", mo.MONumber, mo.Status, action)
		}
		if err := apply(tx, mo); err != nil {
			return err
		}
		return errs.FromDB(repo.Update(ctx, mo), "manufacturing order")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
