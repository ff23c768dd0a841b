package repository

import (
	"context"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) WithTx(tx *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: tx}
}

func (r *LedgerRepository) LockLedger(ctx context.Context, partyType, partyID string) (*entity.Ledger, error) {
	var l entity.Ledger
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("party_type = ? AND party_id = ?", partyType, partyID).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*entity.Ledger, error) {
	var l entity.Ledger
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LedgerRepository) GetByParty(ctx context.Context, partyType, partyID string) (*entity.Ledger, error) {
	var l entity.Ledger
	err := r.db.WithContext(ctx).Where("party_type = ? AND party_id = ?", partyType, partyID).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// EnsureLedger 首次过账时建立零余额账簿
func (r *LedgerRepository) EnsureLedger(ctx context.Context, partyType, partyID string) error {
	l := &entity.Ledger{ID: entity.NewID(), PartyType: partyType, PartyID: partyID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(l).Error
}

func (r *LedgerRepository) Save(ctx context.Context, l *entity.Ledger) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *LedgerRepository) CreateEntry(ctx context.Context, e *entity.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

type LedgerListParams struct {
	PartyType string
	PartyID   string
	Page
}

func (r *LedgerRepository) List(ctx context.Context, params LedgerListParams) ([]entity.Ledger, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Ledger{})
	if params.PartyType != "" {
		query = query.Where("party_type = ?", params.PartyType)
	}
	if params.PartyID != "" {
		query = query.Where("party_id = ?", params.PartyID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.Ledger
	err := query.Order("party_type, party_id").
		Offset(params.Offset()).Limit(params.Limit()).Find(&list).Error
	return list, total, err
}

// AllByPartyType 报表用
func (r *LedgerRepository) AllByPartyType(ctx context.Context, partyType string) ([]entity.Ledger, error) {
	query := r.db.WithContext(ctx)
	if partyType != "" {
		query = query.Where("party_type = ?", partyType)
	}
	var list []entity.Ledger
	err := query.Order("party_type, party_id").Find(&list).Error
	return list, err
}

// ListEntries 最新的在前
func (r *LedgerRepository) ListEntries(ctx context.Context, ledgerID string, page Page) ([]entity.LedgerEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).Where("ledger_id = ?", ledgerID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.LedgerEntry
	err := query.Order("sequence DESC").Offset(page.Offset()).Limit(page.Limit()).Find(&list).Error
	return list, total, err
}

// EntryChain 按序号升序
func (r *LedgerRepository) EntryChain(ctx context.Context, ledgerID string) ([]entity.LedgerEntry, error) {
	var list []entity.LedgerEntry
	err := r.db.WithContext(ctx).Where("ledger_id = ?", ledgerID).Order("sequence ASC").Find(&list).Error
	return list, err
}
