package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/cache"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/lock"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/metrics"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options 业务规则开关，由配置映射而来
type Options struct {
	OverReceiptPolicy       string
	OverReceiptTolerancePct decimal.Decimal
	AllowNegativeStock      bool
	ReportCacheTTL          time.Duration
}

// Deps 服务层依赖；nil 字段使用进程内默认实现
type Deps struct {
	Logger  *zap.Logger
	Locker  lock.Locker
	Cache   cache.Store
	Storage storage.ObjectStore
	Metrics *metrics.Metrics
}

// Services ERP 服务集合
type Services struct {
	Master        *MasterData
	Stock         *StockService
	Ledger        *LedgerService
	Procurement   *ProcurementService
	Sales         *SalesService
	Invoice       *InvoiceService
	Manufacturing *ManufacturingService
	Report        *ReportService
}

func NewServices(repos *repository.Repositories, deps Deps, opts Options) *Services {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocalLocker()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryStore()
	}
	if deps.Storage == nil {
		deps.Storage, _ = storage.NewMinio(storage.MinioConfig{Bucket: "jewelry"})
	}
	if opts.OverReceiptPolicy == "" {
		opts.OverReceiptPolicy = OverReceiptAllow
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = 15 * time.Minute
	}

	repos.UseLocker(deps.Locker)
	numbers := NewNumberer(repos.Sequence)
	master := NewMasterData(repos.DB(), deps.Storage, deps.Logger)
	stock := NewStockService(repos, deps.Metrics, deps.Logger, opts.AllowNegativeStock)
	ledger := NewLedgerService(repos, deps.Metrics, deps.Logger, numbers)

	return &Services{
		Master:        master,
		Stock:         stock,
		Ledger:        ledger,
		Procurement:   NewProcurementService(repos, numbers, stock, ledger, deps.Metrics, deps.Logger, opts),
		Sales:         NewSalesService(repos, numbers, stock, ledger, deps.Metrics, deps.Logger),
		Invoice:       NewInvoiceService(repos, numbers, ledger, deps.Metrics, deps.Logger),
		Manufacturing: NewManufacturingService(repos, numbers, stock, deps.Metrics, deps.Logger),
		Report:        NewReportService(repos, deps.Cache, deps.Logger, opts.ReportCacheTTL),
	}
}

// Over-receipt policies.
const (
	OverReceiptAllow     = "allow"
	OverReceiptTolerance = "tolerance"
	OverReceiptReject    = "reject"
)

var hundred = decimal.NewFromInt(100)

var errNoLockScope = errors.New("posting needs a transaction opened by Repositories.Transaction")

func stockKey(itemID, branchID string) string { return lock.Key("stock", itemID, branchID) }

func ledgerKey(partyType, partyID string) string { return lock.Key("ledger", partyType, partyID) }

// holdKeys 键锁挂在 tx 所属事务上，提交或回滚后才释放。
// 一个事务要过账多个键时，先一次性传齐，按固定顺序加锁。
func holdKeys(ctx context.Context, tx *gorm.DB, keys ...string) error {
	held, ok := lock.HeldFrom(tx.Statement.Context)
	if !ok {
		return errNoLockScope
	}
	return held.Obtain(ctx, keys...)
}

// money 金额保留2位
func money(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// measure 数量/重量/单价保留4位
func measure(d decimal.Decimal) decimal.Decimal { return d.Round(4) }

// lineAmounts 行金额 = 数量 × 单价 × (1 − 折扣%/100)，行合计 = 行金额 + 税
func lineAmounts(qty, rate, discountPct, tax decimal.Decimal) (base, total decimal.Decimal) {
	base = money(qty.Mul(rate).Mul(decimal.NewFromInt(1).Sub(discountPct.Div(hundred))))
	total = base.Add(money(tax))
	return base, total
}

// requireRef 检查引用的基础数据存在
func requireRef(ctx context.Context, db *gorm.DB, model entity.Record, id, what string) error {
	if id == "" {
		return errs.Validation("%s is required", what)
	}
	var n int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return errs.FromDB(err, what)
	}
	if n == 0 {
		return errs.NotFound("%s %s not found", what, id)
	}
	return nil
}

// optionalRef 为空时跳过
func optionalRef(ctx context.Context, db *gorm.DB, model entity.Record, id, what string) error {
	if id == "" {
		return nil
	}
	return requireRef(ctx, db, model, id, what)
}

// parseDate 接受 2006-01-02 或 RFC3339；空串返回 def
func parseDate(value, field string, def time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errs.Validation("%s must be a date (YYYY-MM-DD)", field)
	}
	return t, nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func transitionConflict(doc, number, from, action string) error {
	return errs.Conflict("%s %s is %s, cannot %s", doc, number, from, action)
}

func ptrTime(t time.Time) *time.Time { return &t }
