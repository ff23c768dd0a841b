package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerService 往来账过账。余额 = Σ借方 − Σ贷方：客户为应收，供应商为负数表示应付。
type LedgerService struct {
	repos   *repository.Repositories
	metrics *metrics.Metrics
	logger  *zap.Logger
	numbers *Numberer
}

func NewLedgerService(repos *repository.Repositories, m *metrics.Metrics, logger *zap.Logger, numbers *Numberer) *LedgerService {
	return &LedgerService{repos: repos, metrics: m, logger: logger, numbers: numbers}
}

// Posting 一笔借或贷
type Posting struct {
	PartyType       string
	PartyID         string
	EntryType       string
	Amount          decimal.Decimal
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	Narration       string
	CreatedBy       string
}

// Post 在调用方事务 tx 内追加分录并更新账簿余额
func (s *LedgerService) Post(ctx context.Context, tx *gorm.DB, p Posting) (*entity.LedgerEntry, error) {
	if !oneOf(p.PartyType, entity.PartyCustomer, entity.PartySupplier) {
		return nil, errs.Validation("party_type must be CUSTOMER or SUPPLIER")
	}
	if p.PartyID == "" {
		return nil, errs.Validation("party_id is required")
	}
	if !oneOf(p.EntryType, entity.EntryDebit, entity.EntryCredit) {
		return nil, errs.Validation("entry_type must be DEBIT or CREDIT")
	}
	amount := money(p.Amount)
	if !amount.IsPositive() {
		return nil, errs.Validation("ledger amount must be greater than 0")
	}

	if err := holdKeys(ctx, tx, ledgerKey(p.PartyType, p.PartyID)); err != nil {
		return nil, lockError(err, "ledger")
	}

	repo := s.repos.Ledger.WithTx(tx)
	if err := repo.EnsureLedger(ctx, p.PartyType, p.PartyID); err != nil {
		return nil, errs.FromDB(err, "ledger")
	}
	ledger, err := repo.LockLedger(ctx, p.PartyType, p.PartyID)
	if err != nil {
		return nil, errs.FromDB(err, "ledger")
	}

	entry := &entity.LedgerEntry{
		ID:              entity.NewID(),
		LedgerID:        ledger.ID,
		Sequence:        ledger.EntryCount + 1,
		EntryType:       p.EntryType,
		ReferenceType:   p.ReferenceType,
		ReferenceID:     p.ReferenceID,
		ReferenceNumber: p.ReferenceNumber,
		Narration:       p.Narration,
		CreatedBy:       p.CreatedBy,
		CreatedAt:       time.Now(),
	}
	if p.EntryType == entity.EntryDebit {
		entry.Debit = amount
		entry.BalanceAfter = ledger.Balance.Add(amount)
	} else {
		entry.Credit = amount
		entry.BalanceAfter = ledger.Balance.Sub(amount)
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, errs.FromDB(err, "ledger entry")
	}

	ledger.Balance = entry.BalanceAfter
	ledger.EntryCount = entry.Sequence
	if err := repo.Save(ctx, ledger); err != nil {
		return nil, errs.FromDB(err, "ledger")
	}

	s.metrics.LedgerPosted(p.PartyType, p.EntryType)
	s.logger.Info("Ledger entry posted",
		zap.String("party_type", p.PartyType),
		zap.String("party_id", p.PartyID),
		zap.String("entry_type", p.EntryType),
		zap.String("amount", amount.String()),
		zap.String("balance_after", entry.BalanceAfter.String()),
		zap.String("reference", p.ReferenceNumber),
	)
	return entry, nil
}

func (s *LedgerService) Get(ctx context.Context, id string) (*entity.Ledger, error) {
	l, err := s.repos.Ledger.GetByID(ctx, id)
	if err != nil {
		return nil, errs.FromDB(err, "ledger")
	}
	return l, nil
}

func (s *LedgerService) List(ctx context.Context, params repository.LedgerListParams) ([]entity.Ledger, int64, error) {
	list, total, err := s.repos.Ledger.List(ctx, params)
	if err != nil {
		return nil, 0, errs.FromDB(err, "ledger")
	}
	return list, total, nil
}

func (s *LedgerService) Entries(ctx context.Context, ledgerID string, page repository.Page) ([]entity.LedgerEntry, int64, error) {
	if _, err := s.Get(ctx, ledgerID); err != nil {
		return nil, 0, err
	}
	list, total, err := s.repos.Ledger.ListEntries(ctx, ledgerID, page)
	if err != nil {
		return nil, 0, errs.FromDB(err, "ledger entry")
	}
	return list, total, nil
}

// BalanceReport 账簿校验结果
type BalanceReport struct {
	LedgerID   string          `json:"ledger_id"`
	Entries    int             `json:"entries"`
	Balance    decimal.Decimal `json:"balance"`
	EntriesSum decimal.Decimal `json:"entries_sum"`
	Valid      bool            `json:"valid"`
	BrokenAt   int64           `json:"broken_at,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// Verify 余额 = Σ(借 − 贷)，且每条 balance_after 连续
func (s *LedgerService) Verify(ctx context.Context, ledgerID string) (*BalanceReport, error) {
	ledger, err := s.Get(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	chain, err := s.repos.Ledger.EntryChain(ctx, ledgerID)
	if err != nil {
		return nil, errs.FromDB(err, "ledger entry")
	}
	report := &BalanceReport{LedgerID: ledgerID, Entries: len(chain), Balance: ledger.Balance, Valid: true}
	sum := decimal.Zero
	for i, e := range chain {
		sum = sum.Add(e.Debit).Sub(e.Credit)
		if e.Sequence != int64(i+1) {
			report.Valid = false
			report.BrokenAt = e.Sequence
			report.Reason = fmt.Sprintf("entry %d found where %d was expected", e.Sequence, i+1)
			break
		}
		if !e.BalanceAfter.Equal(sum) {
			report.Valid = false
			report.BrokenAt = e.Sequence
			report.Reason = fmt.Sprintf("balance_after %s, entries sum to %s", e.BalanceAfter, sum)
			break
		}
	}
	report.EntriesSum = sum
	if report.Valid && !sum.Equal(ledger.Balance) {
		report.Valid = false
		report.BrokenAt = int64(len(chain))
		report.Reason = fmt.Sprintf("ledger balance %s, entries sum to %s", ledger.Balance, sum)
	}
	return report, nil
}

// VoucherRequest 手工收付款凭证
type VoucherRequest struct {
	PartyType string          `json:"party_type" binding:"required,oneof=CUSTOMER SUPPLIER"`
	PartyID   string          `json:"party_id" binding:"required"`
	EntryType string          `json:"entry_type" binding:"required,oneof=DEBIT CREDIT"`
	Amount    decimal.Decimal `json:"amount" binding:"gt=0"`
	Narration string          `json:"narration"`
}

// PostVoucher 编号 VCH-xxx，单独事务
func (s *LedgerService) PostVoucher(ctx context.Context, req VoucherRequest, userID string) (*entity.LedgerEntry, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	var model entity.Record = &entity.Customer{}
	what := "customer"
	if req.PartyType == entity.PartySupplier {
		model, what = &entity.Supplier{}, "supplier"
	}
	if err := requireRef(ctx, s.repos.DB(), model, req.PartyID, what); err != nil {
		return nil, err
	}

	var entry *entity.LedgerEntry
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		number, err := s.numbers.Next(ctx, tx, SeqVoucher)
		if err != nil {
			return err
		}
		entry, err = s.Post(ctx, tx, Posting{
			PartyType:       req.PartyType,
			PartyID:         req.PartyID,
			EntryType:       req.EntryType,
			Amount:          req.Amount,
			ReferenceType:   entity.RefVoucher,
			ReferenceNumber: number,
			Narration:       req.Narration,
			CreatedBy:       userID,
		})
		return err
	})
	return entry, err
}

// PartyBalance 尚无账簿时余额为0
func (s *LedgerService) PartyBalance(ctx context.Context, partyType, partyID string) (decimal.Decimal, error) {
	l, err := s.repos.Ledger.GetByParty(ctx, partyType, partyID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, errs.FromDB(err, "ledger")
	}
	return l.Balance, nil
}
