package repository

import (
	"context"
	"strings"

	"github.com/bitfantasy/nimo-jewelry/internal/shared/lock"
	"gorm.io/gorm"
)

// Repositories ERP 仓库集合
type Repositories struct {
	db     *gorm.DB
	locker lock.Locker

	Sequence      *SequenceRepository
	Purchase      *PurchaseRepository
	Stock         *StockRepository
	Sales         *SalesRepository
	Ledger        *LedgerRepository
	Manufacturing *ManufacturingRepository
	Report        *ReportRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:            db,
		locker:        lock.NewLocalLocker(),
		Sequence:      NewSequenceRepository(db),
		Purchase:      NewPurchaseRepository(db),
		Stock:         NewStockRepository(db),
		Sales:         NewSalesRepository(db),
		Ledger:        NewLedgerRepository(db),
		Manufacturing: NewManufacturingRepository(db),
		Report:        NewReportRepository(db),
	}
}

// DB returns the root handle.
func (r *Repositories) DB() *gorm.DB { return r.db }

// UseLocker 替换事务键锁实现（多实例部署用 redislock）
func (r *Repositories) UseLocker(l lock.Locker) {
	if l != nil {
		r.locker = l
	}
}

// Transaction runs fn in one database transaction; any error rolls back every write made through tx.
// Keys obtained through lock.HeldFrom(tx.Statement.Context) stay held until after commit or rollback.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if _, ok := lock.HeldFrom(ctx); ok {
		return r.db.WithContext(ctx).Transaction(fn)
	}
	held := lock.NewHeld(r.locker)
	defer held.Release()
	return r.db.WithContext(lock.WithHeld(ctx, held)).Transaction(fn)
}

// Page 分页参数
type Page struct {
	Page int
	Size int
}

// Normalize 默认第1页，每页20条，最多200条
func (p Page) Normalize() Page {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = 20
	}
	if p.Size > 200 {
		p.Size = 200
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Size
}

func (p Page) Limit() int {
	return p.Normalize().Size
}

// keywordScope builds a case-insensitive OR match over cols, portable across postgres and sqlite.
func keywordScope(keyword string, cols ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" || len(cols) == 0 {
			return db
		}
		kw := "%" + strings.ToLower(keyword) + "%"
		conds := make([]string, len(cols))
		args := make([]interface{}, len(cols))
		for i, c := range cols {
			conds[i] = "LOWER(" + c + ") LIKE ?"
			args[i] = kw
		}
		return db.Where(strings.Join(conds, " OR "), args...)
	}
}
