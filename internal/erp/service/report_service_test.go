package service_test

import (
	"encoding/json"
	"testing"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/testutil"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReportKey_SortedParams(t *testing.T) {
	a := service.ReportKey("sales-summary", map[string]string{"to": "2024-02-01", "from": "2024-01-01", "branch": "b1"})
	b := service.ReportKey("sales-summary", map[string]string{"branch": "b1", "from": "2024-01-01", "to": "2024-02-01"})
	assert.Equal(t, a, b)
	assert.Equal(t, "sales-summary:branch=b1,from=2024-01-01,to=2024-02-01", a)
	assert.Equal(t, "stock-summary:", service.ReportKey("stock-summary", map[string]string{"branch": ""}))
}

func TestReport_RepeatedGetsAreIdentical(t *testing.T) {
	f := newFixture(t, service.Options{})
	f.stockIn(t, f.item, f.branch, "10", "20", "100")
	params := map[string]string{"branch": f.branch.ID, "ignored": "x"}

	first, err := f.svc.Report.Get(ctx, entity.ReportStockSummary, params, user)
	require.NoError(t, err)
	require.Len(t, first.Rows, 1)
	assert.Equal(t, "MAIN", first.Rows[0][0])
	assert.NotContains(t, first.Params, "ignored")

	// 库存变化后，未重新生成前返回同一份内容
	f.stockIn(t, f.item, f.branch, "5", "10", "100")

	second, err := f.svc.Report.Get(ctx, entity.ReportStockSummary, params, "someone-else")
	require.NoError(t, err)
	b1, _ := json.Marshal(first)
	b2, _ := json.Marshal(second)
	assert.Equal(t, string(b1), string(b2))

	regenerated, err := f.svc.Report.Regenerate(ctx, entity.ReportStockSummary, params, "someone-else")
	require.NoError(t, err)
	requireDec(t, "15", d(regenerated.Rows[0][3]))
	assert.Equal(t, "someone-else", regenerated.GeneratedBy)

	third, err := f.svc.Report.Get(ctx, entity.ReportStockSummary, params, user)
	require.NoError(t, err)
	b3, _ := json.Marshal(third)
	b4, _ := json.Marshal(regenerated)
	assert.Equal(t, string(b4), string(b3))

	var rows int64
	require.NoError(t, f.db.Model(&entity.ReportCache{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestReport_CacheRowSurvivesCacheLoss(t *testing.T) {
	f := newFixture(t, service.Options{})
	f.stockIn(t, f.item, f.branch, "1", "1", "10")

	first, err := f.svc.Report.Get(ctx, entity.ReportStockSummary, nil, user)
	require.NoError(t, err)

	// 新的服务实例（空的内存缓存）从 ReportCache 表读取
	fresh := f.freshServices()
	again, err := fresh.Report.Get(ctx, entity.ReportStockSummary, nil, user)
	require.NoError(t, err)
	b1, _ := json.Marshal(first)
	b2, _ := json.Marshal(again)
	assert.Equal(t, string(b1), string(b2))
}

func TestReport_SalesAndLedger(t *testing.T) {
	f := newFixture(t, service.Options{})
	so := f.sale(t)
	_, err := f.svc.Invoice.Generate(ctx, so.ID, user)
	require.NoError(t, err)
	_, err = f.svc.Sales.RecordPayment(ctx, so.ID, service.PaymentRequest{Amount: d("15")}, user)
	require.NoError(t, err)

	sales, err := f.svc.Report.Get(ctx, entity.ReportSalesSummary, map[string]string{"from": "2000-01-01"}, user)
	require.NoError(t, err)
	require.Len(t, sales.Rows, 1)
	assert.Equal(t, []string{f.branch.ID, "1", "1015.00", "15.00", "1000.00"}, sales.Rows[0])

	ledger, err := f.svc.Report.Get(ctx, entity.ReportLedgerOutstanding, map[string]string{"party_type": "CUSTOMER"}, user)
	require.NoError(t, err)
	require.Len(t, ledger.Rows, 1)
	assert.Equal(t, "1000.00", ledger.Rows[0][3])

	_, err = f.svc.Report.Get(ctx, entity.ReportSalesSummary, map[string]string{"from": "2024-02-01", "to": "2024-01-01"}, user)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	_, err = f.svc.Report.Get(ctx, "profit-and-loss", nil, user)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestReport_Export(t *testing.T) {
	f := newFixture(t, service.Options{})
	f.stockIn(t, f.item, f.branch, "3", "6", "100")

	buf, name, err := f.svc.Report.Export(ctx, entity.ReportStockSummary, nil, user)
	require.NoError(t, err)
	assert.Contains(t, name, "stock-summary-")

	book, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Report")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "branch", rows[0][0])
	assert.Equal(t, "RING-22K", rows[1][1])
}

func TestReport_ExportKeepsNumericLookingSKUAsText(t *testing.T) {
	f := newFixture(t, service.Options{})
	item := testutil.SeedItem(t, f.db, "0075")
	f.stockIn(t, item, f.branch, "4", "8", "25")

	buf, _, err := f.svc.Report.Export(ctx, entity.ReportStockSummary, map[string]string{"branch": f.branch.ID}, user)
	require.NoError(t, err)
	book, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer book.Close()

	sku, err := book.GetCellValue("Report", "B2")
	require.NoError(t, err)
	assert.Equal(t, "0075", sku)

	qty, err := book.GetCellValue("Report", "D2")
	require.NoError(t, err)
	assert.Equal(t, "4", qty)
}
