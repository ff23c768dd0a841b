package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/cache"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReportService 报表按 key 缓存，只有重新生成才会覆盖
type ReportService struct {
	repos  *repository.Repositories
	cache  cache.Store
	logger *zap.Logger
	ttl    time.Duration
}

func NewReportService(repos *repository.Repositories, store cache.Store, logger *zap.Logger, ttl time.Duration) *ReportService {
	return &ReportService{repos: repos, cache: store, logger: logger, ttl: ttl}
}

// Report 缓存的报表内容
type Report struct {
	Key         string            `json:"key"`
	Type        string            `json:"type"`
	Params      map[string]string `json:"params"`
	Columns     []string          `json:"columns"`
	Rows        [][]string        `json:"rows"`
	GeneratedBy string            `json:"generated_by"`
	GeneratedAt time.Time         `json:"generated_at"`
}

type reportDef struct {
	params   []string
	generate func(s *ReportService, ctx context.Context, params map[string]string) ([]string, [][]string, error)
}

var reportDefs = map[string]reportDef{
	entity.ReportStockSummary:      {params: []string{"branch"}, generate: (*ReportService).stockSummary},
	entity.ReportSalesSummary:      {params: []string{"branch", "from", "to"}, generate: (*ReportService).salesSummary},
	entity.ReportLedgerOutstanding: {params: []string{"party_type"}, generate: (*ReportService).ledgerOutstanding},
}

// ReportKey "{type}:{k=v,...}"，参数按名称排序，空值省略
func ReportKey(reportType string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return reportType + ":" + strings.Join(parts, ",")
}

// normalize 只保留该报表认识的参数
func (s *ReportService) normalize(reportType string, raw map[string]string) (reportDef, map[string]string, error) {
	def, ok := reportDefs[reportType]
	if !ok {
		return reportDef{}, nil, errs.NotFound("report type %q not found", reportType)
	}
	params := make(map[string]string)
	for _, p := range def.params {
		if v := strings.TrimSpace(raw[p]); v != "" {
			params[p] = v
		}
	}
	return def, params, nil
}

// Get 先查 redis，再查 ReportCache 表，都没有时生成
func (s *ReportService) Get(ctx context.Context, reportType string, raw map[string]string, userID string) (*Report, error) {
	def, params, err := s.normalize(reportType, raw)
	if err != nil {
		return nil, err
	}
	key := ReportKey(reportType, params)

	if b, err := s.cache.Get(ctx, key); err == nil {
		var r Report
		if err := json.Unmarshal(b, &r); err == nil {
			return &r, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("Report cache read failed", zap.String("key", key), zap.Error(err))
	}

	row, err := s.repos.Report.GetByKey(ctx, key)
	switch {
	case err == nil:
		var r Report
		if err := json.Unmarshal([]byte(row.Payload), &r); err != nil {
			return nil, errs.Internal("decode cached report", err)
		}
		s.fillCache(ctx, key, []byte(row.Payload))
		return &r, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errs.FromDB(err, "report cache")
	}
	return s.build(ctx, def, reportType, key, params, userID)
}

// Regenerate 重新计算并覆盖缓存
func (s *ReportService) Regenerate(ctx context.Context, reportType string, raw map[string]string, userID string) (*Report, error) {
	def, params, err := s.normalize(reportType, raw)
	if err != nil {
		return nil, err
	}
	return s.build(ctx, def, reportType, ReportKey(reportType, params), params, userID)
}

func (s *ReportService) build(ctx context.Context, def reportDef, reportType, key string, params map[string]string, userID string) (*Report, error) {
	columns, rows, err := def.generate(s, ctx, params)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Key:         key,
		Type:        reportType,
		Params:      params,
		Columns:     columns,
		Rows:        rows,
		GeneratedBy: userID,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, errs.Internal("encode report", err)
	}
	encodedParams, _ := json.Marshal(params)
	if err := s.repos.Report.Upsert(ctx, &entity.ReportCache{
		ID:          entity.NewID(),
		CacheKey:    key,
		ReportType:  reportType,
		Params:      string(encodedParams),
		Payload:     string(payload),
		GeneratedBy: userID,
		GeneratedAt: r.GeneratedAt,
	}); err != nil {
		return nil, errs.FromDB(err, "report cache")
	}
	s.fillCache(ctx, key, payload)
	s.logger.Info("Report generated", zap.String("key", key), zap.Int("rows", len(rows)), zap.String("user_id", userID))
	return r, nil
}

func (s *ReportService) fillCache(ctx context.Context, key string, payload []byte) {
	if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
		s.logger.Warn("Report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// numericColumns 导出时写成数字的列；sku、编号等一律按文本保留前导零
var numericColumns = map[string]bool{
	"quantity": true, "weight": true, "avg_rate": true, "value": true,
	"orders": true, "grand_total": true, "paid": true, "outstanding": true,
	"entries": true, "balance": true,
}

// Export 把报表写成 xlsx
func (s *ReportService) Export(ctx context.Context, reportType string, raw map[string]string, userID string) (*bytes.Buffer, string, error) {
	r, err := s.Get(ctx, reportType, raw, userID)
	if err != nil {
		return nil, "", err
	}
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Report"
	f.SetSheetName("Sheet1", sheet)
	for col, name := range r.Columns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, name)
	}
	for i, row := range r.Rows {
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if col < len(r.Columns) && numericColumns[r.Columns[col]] {
				if d, err := decimal.NewFromString(value); err == nil {
					v, _ := d.Float64()
					f.SetCellValue(sheet, cell, v)
					continue
				}
			}
			f.SetCellValue(sheet, cell, value)
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil && len(r.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(r.Columns), 1)
		f.SetCellStyle(sheet, "A1", last, headerStyle)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", errs.Internal("write xlsx", err)
	}
	return buf, reportType + "-" + r.GeneratedAt.Format("20060102150405") + ".xlsx", nil
}

// --- 报表生成 ---

func (s *ReportService) stockSummary(ctx context.Context, params map[string]string) ([]string, [][]string, error) {
	stocks, err := s.repos.Stock.AllStock(ctx, params["branch"])
	if err != nil {
		return nil, nil, errs.FromDB(err, "stock")
	}
	columns := []string{"branch", "sku", "item", "quantity", "weight", "avg_rate", "value"}
	rows := make([][]string, 0, len(stocks))
	for _, st := range stocks {
		branch, sku, name := st.BranchID, st.InventoryItemID, ""
		if st.Branch != nil {
			branch = st.Branch.Code
		}
		if st.InventoryItem != nil {
			sku, name = st.InventoryItem.SKU, st.InventoryItem.Name
		}
		rows = append(rows, []string{branch, sku, name,
			st.Quantity.String(), st.Weight.String(), st.AvgRate.String(), st.Value.StringFixed(2)})
	}
	return columns, rows, nil
}

type salesTotals struct {
	orders                   int
	total, paid, outstanding decimal.Decimal
}

func (s *ReportService) salesSummary(ctx context.Context, params map[string]string) ([]string, [][]string, error) {
	from, err := parseDate(params["from"], "from", time.Time{})
	if err != nil {
		return nil, nil, err
	}
	to, err := parseDate(params["to"], "to", time.Time{})
	if err != nil {
		return nil, nil, err
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, nil, errs.Validation("from must not be after to")
	}
	orders, err := s.repos.Sales.SOsBetween(ctx, params["branch"], from, to)
	if err != nil {
		return nil, nil, errs.FromDB(err, "sales order")
	}

	byBranch := make(map[string]*salesTotals)
	var branches []string
	for _, so := range orders {
		t, ok := byBranch[so.BranchID]
		if !ok {
			t = &salesTotals{}
			byBranch[so.BranchID] = t
			branches = append(branches, so.BranchID)
		}
		t.orders++
		t.total = t.total.Add(so.GrandTotal)
		t.paid = t.paid.Add(so.PaidAmount)
		t.outstanding = t.outstanding.Add(so.BalanceDue)
	}
	sort.Strings(branches)

	columns := []string{"branch_id", "orders", "grand_total", "paid", "outstanding"}
	rows := make([][]string, 0, len(branches))
	for _, b := range branches {
		t := byBranch[b]
		rows = append(rows, []string{b, strconv.Itoa(t.orders),
			t.total.StringFixed(2), t.paid.StringFixed(2), t.outstanding.StringFixed(2)})
	}
	return columns, rows, nil
}

func (s *ReportService) ledgerOutstanding(ctx context.Context, params map[string]string) ([]string, [][]string, error) {
	partyType := strings.ToUpper(params["party_type"])
	if partyType != "" && !oneOf(partyType, entity.PartyCustomer, entity.PartySupplier) {
		return nil, nil, errs.Validation("party_type must be CUSTOMER or SUPPLIER")
	}
	ledgers, err := s.repos.Ledger.AllByPartyType(ctx, partyType)
	if err != nil {
		return nil, nil, errs.FromDB(err, "ledger")
	}
	columns := []string{"party_type", "party_id", "entries", "balance"}
	rows := make([][]string, 0, len(ledgers))
	for _, l := range ledgers {
		if l.Balance.IsZero() {
			continue
		}
		rows = append(rows, []string{l.PartyType, l.PartyID, strconv.FormatInt(l.EntryCount, 10), l.Balance.StringFixed(2)})
	}
	return columns, rows, nil
}
