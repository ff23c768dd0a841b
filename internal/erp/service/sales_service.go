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

type SalesService struct {
	repos   *repository.Repositories
	numbers *Numberer
	stock   *StockService
	ledger  *LedgerService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewSalesService(repos *repository.Repositories, numbers *Numberer, stock *StockService, ledger *LedgerService, m *metrics.Metrics, logger *zap.Logger) *SalesService {
	return &SalesService{repos: repos, numbers: numbers, stock: stock, ledger: ledger, metrics: m, logger: logger}
}

type CreateSORequest struct {
	CustomerID    string          `json:"customer_id" binding:"required"`
	BranchID      string          `json:"branch_id" binding:"required"`
	OrderDate     string          `json:"order_date"`
	OrderDiscount decimal.Decimal `json:"order_discount" binding:"gte=0"`
	OrderTax      decimal.Decimal `json:"order_tax" binding:"gte=0"`
	ShippingCost  decimal.Decimal `json:"shipping_cost" binding:"gte=0"`
	Notes         string          `json:"notes"`
	Items         []SOItemInput   `json:"items" binding:"required,min=1,dive"`
}

type SOItemInput struct {
	InventoryItemID string          `json:"inventory_item_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"gt=0"`
	Weight          decimal.Decimal `json:"weight" binding:"gte=0"`
	Rate            decimal.Decimal `json:"rate" binding:"gte=0"`
	Discount        decimal.Decimal `json:"discount" binding:"gte=0,lte=100"`
	Tax             decimal.Decimal `json:"tax" binding:"gte=0"`
}

// CreateSO grand_total = Σ行合计 − 整单折扣 + 整单税 + 运费
func (s *SalesService) CreateSO(ctx context.Context, req CreateSORequest, userID string) (*entity.SalesOrder, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	orderDate, err := parseDate(req.OrderDate, "order_date", time.Now())
	if err != nil {
		return nil, err
	}
	db := s.repos.DB()
	if err := requireRef(ctx, db, &entity.Customer{}, req.CustomerID, "customer"); err != nil {
		return nil, err
	}
	if err := requireRef(ctx, db, &entity.Branch{}, req.BranchID, "branch"); err != nil {
		return nil, err
	}
	for _, it := range req.Items {
		if err := requireRef(ctx, db, &entity.InventoryItem{}, it.InventoryItemID, "inventory item"); err != nil {
			return nil, err
		}
	}

	so := &entity.SalesOrder{
		ID:            entity.NewID(),
		CustomerID:    req.CustomerID,
		BranchID:      req.BranchID,
		OrderDate:     orderDate,
		OrderDiscount: money(req.OrderDiscount),
		OrderTax:      money(req.OrderTax),
		ShippingCost:  money(req.ShippingCost),
		PaymentStatus: entity.PaymentUnpaid,
		SaleStatus:    entity.SaleStatusPending,
		Notes:         req.Notes,
		CreatedBy:     userID,
	}
	linesTotal := decimal.Zero
	for i, in := range req.Items {
		base, total := lineAmounts(in.Quantity, in.Rate, in.Discount, in.Tax)
		so.Items = append(so.Items, entity.SOItem{
			ID:              entity.NewID(),
			SOID:            so.ID,
			InventoryItemID: in.InventoryItemID,
			Quantity:        measure(in.Quantity),
			Weight:          measure(in.Weight),
			Rate:            measure(in.Rate),
			Discount:        in.Discount,
			Tax:             money(in.Tax),
			LineTotal:       total,
			Status:          entity.LineStatusPending,
			SortOrder:       i + 1,
		})
		so.SubTotal = so.SubTotal.Add(base)
		so.TaxAmount = so.TaxAmount.Add(money(in.Tax))
		linesTotal = linesTotal.Add(total)
	}
	so.GrandTotal = linesTotal.Sub(so.OrderDiscount).Add(so.OrderTax).Add(so.ShippingCost)
	if so.GrandTotal.IsNegative() {
		return nil, errs.Validation("order_discount %s exceeds the order value", so.OrderDiscount)
	}
	so.BalanceDue = so.GrandTotal

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		number, err := s.numbers.Next(ctx, tx, SeqSalesOrder)
		if err != nil {
			return err
		}
		so.SONumber = number
		return errs.FromDB(s.repos.Sales.WithTx(tx).CreateSO(ctx, so), "sales order")
	})
	if err != nil {
		return nil, err
	}
	s.metrics.DocumentCreated("SO")
	s.logger.Info("Sales order created", zap.String("so_number", so.SONumber), zap.String("grand_total", so.GrandTotal.String()))
	return s.Get(ctx, so.ID)
}

func (s *SalesService) Get(ctx context.Context, id string) (*entity.SalesOrder, error) {
	so, err := s.repos.Sales.GetSOByID(ctx, id)
	if err != nil {
		return nil, errs.FromDB(err, "sales order")
	}
	return so, nil
}

func (s *SalesService) List(ctx context.Context, params repository.SOListParams) ([]entity.SalesOrder, int64, error) {
	list, total, err := s.repos.Sales.ListSOs(ctx, params)
	if err != nil {
		return nil, 0, errs.FromDB(err, "sales order")
	}
	return list, total, nil
}

type DeliverRequest struct {
	Items []DeliveryLine `json:"items" binding:"required,min=1,dive"`
}

type DeliveryLine struct {
	SOItemID string          `json:"so_item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"gt=0"`
	Weight   decimal.Decimal `json:"weight" binding:"gte=0"`
}

// Deliver 出库（SALE 流水），全部交付后销售单完成
func (s *SalesService) Deliver(ctx context.Context, id string, req DeliverRequest, userID string) (*entity.SalesOrder, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repos.Sales.WithTx(tx)
		so, err := repo.LockSO(ctx, id)
		if err != nil {
			return errs.FromDB(err, "sales order")
		}
		if so.SaleStatus != entity.SaleStatusPending {
			s.metrics.Conflict("so_deliver")
			return transitionConflict("sales order", so.SONumber, so.SaleStatus, "deliver")
		}
		lines := make(map[string]*entity.SOItem, len(so.Items))
		keys := make([]string, 0, len(so.Items))
		for i := range so.Items {
			lines[so.Items[i].ID] = &so.Items[i]
			keys = append(keys, stockKey(so.Items[i].InventoryItemID, so.BranchID))
		}
		if err := holdKeys(ctx, tx, keys...); err != nil {
			return lockError(err, "stock")
		}

		for i, d := range req.Items {
			line, ok := lines[d.SOItemID]
			if !ok {
				return errs.Validation("items[%d].so_item_id %s does not belong to sales order %s", i, d.SOItemID, so.SONumber)
			}
			qty := measure(d.Quantity)
			delivered := line.DeliveredQuantity.Add(qty)
			if delivered.GreaterThan(line.Quantity) {
				return errs.Validation("items[%d] delivers %s but only %s remain on the line", i, qty, line.Quantity.Sub(line.DeliveredQuantity))
			}
			if _, err := s.stock.Post(ctx, tx, Movement{
				InventoryItemID: line.InventoryItemID,
				BranchID:        so.BranchID,
				Type:            entity.MovementSale,
				Quantity:        qty.Neg(),
				Weight:          d.Weight.Neg(),
				ReferenceType:   entity.RefSalesOrder,
				ReferenceID:     so.ID,
				ReferenceNumber: so.SONumber,
				CreatedBy:       userID,
			}); err != nil {
				return err
			}
			line.DeliveredQuantity = delivered
			line.DeliveredWeight = line.DeliveredWeight.Add(measure(d.Weight))
			if delivered.Equal(line.Quantity) {
				line.Status = entity.LineStatusDelivered
			} else {
				line.Status = entity.LineStatusPartiallyDelivered
			}
		}

		allDelivered := true
		for i := range so.Items {
			if so.Items[i].Status != entity.LineStatusDelivered {
				allDelivered = false
			}
		}
		for i := range so.Items {
			if allDelivered {
				so.Items[i].Status = entity.LineStatusCompleted
			}
			if err := repo.UpdateSOItem(ctx, &so.Items[i]); err != nil {
				return errs.FromDB(err, "sales order item")
			}
		}
		if allDelivered {
			so.SaleStatus = entity.SaleStatusCompleted
		}
		so.Items = nil
		return errs.FromDB(repo.UpdateSO(ctx, so), "sales order")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Sales order delivered", zap.String("so_id", id), zap.Int("lines", len(req.Items)))
	return s.Get(ctx, id)
}

type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"gt=0"`
	Narration string          `json:"narration"`
}

// RecordPayment 收款：更新已付/未付，客户账贷记
func (s *SalesService) RecordPayment(ctx context.Context, id string, req PaymentRequest, userID string) (*entity.SalesOrder, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	amount := money(req.Amount)
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repos.Sales.WithTx(tx)
		so, err := repo.LockSO(ctx, id)
		if err != nil {
			return errs.FromDB(err, "sales order")
		}
		if so.SaleStatus == entity.SaleStatusCancelled {
			return transitionConflict("sales order", so.SONumber, so.SaleStatus, "record payment")
		}
		if amount.GreaterThan(so.BalanceDue) {
			return errs.Validation("payment %s exceeds balance due %s", amount, so.BalanceDue)
		}
		so.PaidAmount = so.PaidAmount.Add(amount)
		so.BalanceDue = so.GrandTotal.Sub(so.PaidAmount)
		so.PaymentStatus = paymentStatus(so.PaidAmount, so.BalanceDue)

		narration := req.Narration
		if narration == "" {
			narration = "payment received for " + so.SONumber
		}
		if _, err := s.ledger.Post(ctx, tx, Posting{
			PartyType:       entity.PartyCustomer,
			PartyID:         so.CustomerID,
			EntryType:       entity.EntryCredit,
			Amount:          amount,
			ReferenceType:   entity.RefSalesOrder,
			ReferenceID:     so.ID,
			ReferenceNumber: so.SONumber,
			Narration:       narration,
			CreatedBy:       userID,
		}); err != nil {
			return err
		}
		so.Items = nil
		return errs.FromDB(repo.UpdateSO(ctx, so), "sales order")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func paymentStatus(paid, due decimal.Decimal) string {
	switch {
	case !due.IsPositive():
		return entity.PaymentPaid
	case paid.IsPositive():
		return entity.PaymentPartial
	default:
		return entity.PaymentUnpaid
	}
}

// Cancel 仅限未交付、未开票、未收款的待处理销售单
func (s *SalesService) Cancel(ctx context.Context, id, userID string) (*entity.SalesOrder, error) {
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repos.Sales.WithTx(tx)
		so, err := repo.LockSO(ctx, id)
		if err != nil {
			return errs.FromDB(err, "sales order")
		}
		if so.SaleStatus != entity.SaleStatusPending {
			s.metrics.Conflict("so_cancel")
			return transitionConflict("sales order", so.SONumber, so.SaleStatus, "cancel")
		}
		for _, it := range so.Items {
			if it.DeliveredQuantity.IsPositive() {
				return errs.Conflict("sales order %s has deliveries and cannot be cancelled", so.SONumber)
			}
		}
		if so.PaidAmount.IsPositive() {
			return errs.Conflict("sales order %s has payments and cannot be cancelled", so.SONumber)
		}
		n, err := repo.CountInvoicesBySale(ctx, so.ID)
		if err != nil {
			return errs.FromDB(err, "invoice")
		}
		if n > 0 {
			return errs.Conflict("sales order %s is invoiced and cannot be cancelled", so.SONumber)
		}
		for i := range so.Items {
			so.Items[i].Status = entity.LineStatusCancelled
			if err := repo.UpdateSOItem(ctx, &so.Items[i]); err != nil {
				return errs.FromDB(err, "sales order item")
			}
		}
		so.SaleStatus = entity.SaleStatusCancelled
		so.Items = nil
		return errs.FromDB(repo.UpdateSO(ctx, so), "sales order")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Sales order cancelled", zap.String("so_id", id), zap.String("user_id", userID))
	return s.Get(ctx, id)
}
