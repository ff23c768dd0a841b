package service_test

import (
	"testing"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStock_WeightedAverage(t *testing.T) {
	f := newFixture(t, service.Options{})

	f.stockIn(t, f.item, f.branch, "10", "10", "100")
	f.stockIn(t, f.item, f.branch, "5", "5", "130")

	stock, err := f.svc.Stock.GetStock(ctx, f.item.ID, f.branch.ID)
	require.NoError(t, err)
	requireDec(t, "15", stock.Quantity)
	requireDec(t, "110", stock.AvgRate)
	requireDec(t, "1650", stock.Value)
	assert.Equal(t, int64(2), stock.MovementSeq)

	report := f.requireChainValid(t, f.item.ID, f.branch.ID)
	assert.Equal(t, 2, report.Movements)
	requireDec(t, "15", report.Quantity)
}

func TestStock_OutboundCostedAtAverage(t *testing.T) {
	f := newFixture(t, service.Options{})
	f.stockIn(t, f.item, f.branch, "10", "10", "100")
	f.stockIn(t, f.item, f.branch, "5", "5", "130")

	mv, err := f.svc.Stock.Adjust(ctx, service.AdjustmentRequest{
		InventoryItemID: f.item.ID,
		BranchID:        f.branch.ID,
		Quantity:        d("-3"),
		Weight:          d("-3"),
		Reason:          "damaged",
	}, user)
	require.NoError(t, err)
	requireDec(t, "110", mv.Rate)
	requireDec(t, "-330", mv.Value)
	requireDec(t, "12", mv.BalanceQuantity)
	requireDec(t, "1320", mv.BalanceValue)

	stock, err := f.svc.Stock.GetStock(ctx, f.item.ID, f.branch.ID)
	require.NoError(t, err)
	requireDec(t, "110", stock.AvgRate)
	f.requireChainValid(t, f.item.ID, f.branch.ID)
}

func TestStock_NegativeRejected(t *testing.T) {
	f := newFixture(t, service.Options{})

	_, err := f.svc.Stock.Adjust(ctx, service.AdjustmentRequest{
		InventoryItemID: f.item.ID,
		BranchID:        f.branch.ID,
		Quantity:        d("-1"),
		Reason:          "count",
	}, user)
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	// 失败的过账不留下任何流水
	list, total, err := f.svc.Stock.ListMovements(ctx, repository.MovementListParams{InventoryItemID: f.item.ID})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestStock_NegativeAllowedByConfig(t *testing.T) {
	f := newFixture(t, service.Options{AllowNegativeStock: true})

	mv, err := f.svc.Stock.Adjust(ctx, service.AdjustmentRequest{
		InventoryItemID: f.item.ID,
		BranchID:        f.branch.ID,
		Quantity:        d("-2"),
		Reason:          "oversold",
	}, user)
	require.NoError(t, err)
	requireDec(t, "-2", mv.BalanceQuantity)
	f.requireChainValid(t, f.item.ID, f.branch.ID)
}

func TestStock_Transfer(t *testing.T) {
	f := newFixture(t, service.Options{})
	f.stockIn(t, f.item, f.branch, "10", "20", "100")

	res, err := f.svc.Stock.Transfer(ctx, service.TransferRequest{
		InventoryItemID: f.item.ID,
		FromBranchID:    f.branch.ID,
		ToBranchID:      f.branch2.ID,
		Quantity:        d("4"),
		Weight:          d("8"),
	}, user)
	require.NoError(t, err)
	assert.Equal(t, "TRF-001", res.Number)
	assert.Equal(t, entity.MovementTransfer, res.Out.Type)

	src, err := f.svc.Stock.GetStock(ctx, f.item.ID, f.branch.ID)
	require.NoError(t, err)
	requireDec(t, "6", src.Quantity)
	requireDec(t, "12", src.Weight)
	requireDec(t, "600", src.Value)

	dst, err := f.svc.Stock.GetStock(ctx, f.item.ID, f.branch2.ID)
	require.NoError(t, err)
	requireDec(t, "4", dst.Quantity)
	requireDec(t, "100", dst.AvgRate)
	requireDec(t, "400", dst.Value)

	f.requireChainValid(t, f.item.ID, f.branch.ID)
	f.requireChainValid(t, f.item.ID, f.branch2.ID)
}

func TestStock_TransferSameBranch(t *testing.T) {
	f := newFixture(t, service.Options{})
	_, err := f.svc.Stock.Transfer(ctx, service.TransferRequest{
		InventoryItemID: f.item.ID,
		FromBranchID:    f.branch.ID,
		ToBranchID:      f.branch.ID,
		Quantity:        d("1"),
	}, user)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestStock_ListMovementsNewestFirst(t *testing.T) {
	f := newFixture(t, service.Options{})
	f.stockIn(t, f.item, f.branch, "1", "1", "10")
	f.stockIn(t, f.item, f.branch, "2", "2", "10")
	f.stockIn(t, f.item, f.branch2, "3", "3", "10")

	list, total, err := f.svc.Stock.ListMovements(ctx, repository.MovementListParams{
		InventoryItemID: f.item.ID,
		BranchID:        f.branch.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].Sequence)

	// 不带过滤条件时返回全部
	_, total, err = f.svc.Stock.ListMovements(ctx, repository.MovementListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestStock_VerifyDetectsTampering(t *testing.T) {
	f := newFixture(t, service.Options{})
	f.stockIn(t, f.item, f.branch, "10", "10", "100")
	f.stockIn(t, f.item, f.branch, "5", "5", "100")

	require.NoError(t, f.db.Model(&entity.StockMovement{}).
		Where("inventory_item_id = ? AND sequence = ?", f.item.ID, 2).
		Update("balance_quantity", 99).Error)

	report, err := f.svc.Stock.VerifyChain(ctx, f.item.ID, f.branch.ID)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, int64(2), report.BrokenAt)
}
