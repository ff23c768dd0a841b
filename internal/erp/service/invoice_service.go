package service

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InvoiceService 每张销售单最多一张发票，由 sale_id 唯一索引保证
type InvoiceService struct {
	repos   *repository.Repositories
	numbers *Numberer
	ledger  *LedgerService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewInvoiceService(repos *repository.Repositories, numbers *Numberer, ledger *LedgerService, m *metrics.Metrics, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{repos: repos, numbers: numbers, ledger: ledger, metrics: m, logger: logger}
}

// Generate 从销售单生成发票并借记客户账，同一事务
func (s *InvoiceService) Generate(ctx context.Context, saleID, userID string) (*entity.Invoice, error) {
	var inv *entity.Invoice
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repos.Sales.WithTx(tx)
		so, err := repo.LockSO(ctx, saleID)
		if err != nil {
			return errs.FromDB(err, "sales order")
		}
		if so.SaleStatus == entity.SaleStatusCancelled {
			return errs.Conflict("sales order %s is cancelled and cannot be invoiced", so.SONumber)
		}
		n, err := repo.CountInvoicesBySale(ctx, so.ID)
		if err != nil {
			return errs.FromDB(err, "invoice")
		}
		if n > 0 {
			return errs.Conflict("sales order %s is already invoiced", so.SONumber)
		}

		inv = &entity.Invoice{
			ID:            entity.NewID(),
			SaleID:        so.ID,
			CustomerID:    so.CustomerID,
			BranchID:      so.BranchID,
			InvoiceDate:   time.Now(),
			OrderDiscount: so.OrderDiscount,
			OrderTax:      so.OrderTax,
			ShippingCost:  so.ShippingCost,
			GeneratedBy:   userID,
		}
		for _, it := range so.Items {
			base, total := lineAmounts(it.Quantity, it.Rate, it.Discount, it.Tax)
			inv.Items = append(inv.Items, entity.InvoiceItem{
				ID:              entity.NewID(),
				InvoiceID:       inv.ID,
				SOItemID:        it.ID,
				InventoryItemID: it.InventoryItemID,
				Quantity:        it.Quantity,
				Weight:          it.Weight,
				Rate:            it.Rate,
				Discount:        it.Discount,
				Tax:             it.Tax,
				LineTotal:       total,
				SortOrder:       it.SortOrder,
			})
			inv.SubTotal = inv.SubTotal.Add(base)
			inv.TaxAmount = inv.TaxAmount.Add(it.Tax)
		}
		inv.GrandTotal = inv.SubTotal.Add(inv.TaxAmount).Sub(inv.OrderDiscount).Add(inv.OrderTax).Add(inv.ShippingCost)

		number, err := s.numbers.Next(ctx, tx, SeqInvoice)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number
		if err := repo.CreateInvoice(ctx, inv); err != nil {
			if errs.IsUniqueViolation(err) {
				return errs.Wrap(errs.KindConflict, "sales order "+so.SONumber+" is already invoiced", err)
			}
			return errs.FromDB(err, "invoice")
		}

		if inv.GrandTotal.IsPositive() {
			if _, err := s.ledger.Post(ctx, tx, Posting{
				PartyType:       entity.PartyCustomer,
				PartyID:         inv.CustomerID,
				EntryType:       entity.EntryDebit,
				Amount:          inv.GrandTotal,
				ReferenceType:   entity.RefInvoice,
				ReferenceID:     inv.ID,
				ReferenceNumber: inv.InvoiceNumber,
				Narration:       "invoice for " + so.SONumber,
				CreatedBy:       userID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errs.Is(err, errs.KindConflict) {
			s.metrics.Conflict("invoice")
		}
		return nil, err
	}
	s.metrics.DocumentCreated("INV")
	s.logger.Info("Invoice generated",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("sale_id", saleID),
		zap.String("grand_total", inv.GrandTotal.String()),
		zap.String("generated_by", userID),
	)
	return s.Get(ctx, inv.ID)
}

func (s *InvoiceService) Get(ctx context.Context, id string) (*entity.Invoice, error) {
	inv, err := s.repos.Sales.GetInvoiceByID(ctx, id)
	if err != nil {
		return nil, errs.FromDB(err, "invoice")
	}
	return inv, nil
}

func (s *InvoiceService) GetBySale(ctx context.Context, saleID string) (*entity.Invoice, error) {
	inv, err := s.repos.Sales.GetInvoiceBySaleID(ctx, saleID)
	if err != nil {
		return nil, errs.FromDB(err, "invoice")
	}
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context, params repository.InvoiceListParams) ([]entity.Invoice, int64, error) {
	list, total, err := s.repos.Sales.ListInvoices(ctx, params)
	if err != nil {
		return nil, 0, errs.FromDB(err, "invoice")
	}
	return list, total, nil
}
