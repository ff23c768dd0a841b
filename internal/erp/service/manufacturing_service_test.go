package service_test

import (
	"testing"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/testutil"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManufacturing_CompleteRecordsSignedWastage(t *testing.T) {
	f := newFixture(t, service.Options{})
	raw := testutil.SeedItem(t, f.db, "GOLD-BAR")
	ring := testutil.SeedItem(t, f.db, "RING-01")
	chain := testutil.SeedItem(t, f.db, "CHAIN-01")
	f.stockIn(t, raw, f.branch, "10", "100", "50")

	mo, err := f.svc.Manufacturing.Create(ctx, service.CreateMORequest{
		BranchID: f.branch.ID,
		Inputs:   []service.MOInputInput{{InventoryItemID: raw.ID, Quantity: d("10"), Weight: d("100")}},
		Outputs: []service.MOOutputInput{
			{InventoryItemID: ring.ID, Quantity: d("2"), ExpectedWeight: d("60")},
			{InventoryItemID: chain.ID, Quantity: d("1"), ExpectedWeight: d("30")},
		},
	}, user)
	require.NoError(t, err)
	assert.Equal(t, "MO-001", mo.MONumber)
	assert.Equal(t, entity.MOStatusDraft, mo.Status)
	requireDec(t, "50", mo.Inputs[0].Rate, "rate defaults to the current average")
	requireDec(t, "90", mo.TotalExpectedWeight)

	_, err = f.svc.Manufacturing.Complete(ctx, mo.ID, service.CompleteMORequest{}, user)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	complete := service.CompleteMORequest{Outputs: []service.OutputActual{
		{OutputID: mo.Outputs[0].ID, ActualWeight: d("58")},
		{OutputID: mo.Outputs[1].ID, ActualWeight: d("31")},
	}}
	_, err = f.svc.Manufacturing.Complete(ctx, mo.ID, complete, user)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err), "draft order must be started first")

	mo, err = f.svc.Manufacturing.Start(ctx, mo.ID, user)
	require.NoError(t, err)
	assert.Equal(t, entity.MOStatusInProgress, mo.Status)
	assert.NotNil(t, mo.StartedAt)

	mo, err = f.svc.Manufacturing.Complete(ctx, mo.ID, complete, user)
	require.NoError(t, err)
	assert.Equal(t, entity.MOStatusCompleted, mo.Status)
	requireDec(t, "2", mo.Outputs[0].Wastage)
	requireDec(t, "-1", mo.Outputs[1].Wastage)
	requireDec(t, "1", mo.TotalWastage)
	requireDec(t, "89", mo.TotalActualWeight)
	requireDec(t, "500", mo.TotalInputValue)

	rawStock, err := f.svc.Stock.GetStock(ctx, raw.ID, f.branch.ID)
	require.NoError(t, err)
	requireDec(t, "0", rawStock.Quantity)
	requireDec(t, "0", rawStock.Weight)
	requireDec(t, "0", rawStock.Value)

	ringStock, err := f.svc.Stock.GetStock(ctx, ring.ID, f.branch.ID)
	require.NoError(t, err)
	requireDec(t, "2", ringStock.Quantity)
	requireDec(t, "58", ringStock.Weight)

	chainStock, err := f.svc.Stock.GetStock(ctx, chain.ID, f.branch.ID)
	require.NoError(t, err)
	requireDec(t, "31", chainStock.Weight)

	// 产出成本按预计重量分摊，合计不超过投入成本的舍入误差
	total := ringStock.Value.Add(chainStock.Value)
	assert.True(t, total.Sub(d("500")).Abs().LessThanOrEqual(d("0.001")), "allocated %s", total)
	assert.True(t, ringStock.Value.GreaterThan(chainStock.Value))

	wastage, _, err := f.svc.Stock.ListMovements(ctx, repository.MovementListParams{
		InventoryItemID: chain.ID, Type: entity.MovementWastage,
	})
	require.NoError(t, err)
	require.Len(t, wastage, 1)
	requireDec(t, "1", wastage[0].Weight)
	requireDec(t, "0", wastage[0].Quantity)
	requireDec(t, "0", wastage[0].Value)

	for _, item := range []*entity.InventoryItem{raw, ring, chain} {
		f.requireChainValid(t, item.ID, f.branch.ID)
	}

	_, err = f.svc.Manufacturing.Cancel(ctx, mo.ID, user)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestManufacturing_CompleteRollsBackOnShortage(t *testing.T) {
	f := newFixture(t, service.Options{})
	raw := testutil.SeedItem(t, f.db, "SILVER")
	ring := testutil.SeedItem(t, f.db, "RING-02")
	f.stockIn(t, raw, f.branch, "1", "10", "20")

	mo, err := f.svc.Manufacturing.Create(ctx, service.CreateMORequest{
		BranchID: f.branch.ID,
		Inputs:   []service.MOInputInput{{InventoryItemID: raw.ID, Quantity: d("5"), Weight: d("50")}},
		Outputs:  []service.MOOutputInput{{InventoryItemID: ring.ID, Quantity: d("1"), ExpectedWeight: d("45")}},
	}, user)
	require.NoError(t, err)
	_, err = f.svc.Manufacturing.Start(ctx, mo.ID, user)
	require.NoError(t, err)

	_, err = f.svc.Manufacturing.Complete(ctx, mo.ID, service.CompleteMORequest{Outputs: []service.OutputActual{
		{OutputID: mo.Outputs[0].ID, ActualWeight: d("44")},
	}}, user)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	mo, err = f.svc.Manufacturing.Get(ctx, mo.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MOStatusInProgress, mo.Status)
	_, total, err := f.svc.Stock.ListMovements(ctx, repository.MovementListParams{ReferenceID: mo.ID})
	require.NoError(t, err)
	assert.Zero(t, total)

	mo, err = f.svc.Manufacturing.Cancel(ctx, mo.ID, user)
	require.NoError(t, err)
	assert.Equal(t, entity.MOStatusCancelled, mo.Status)
}

func TestManufacturing_CreateValidation(t *testing.T) {
	f := newFixture(t, service.Options{})

	_, err := f.svc.Manufacturing.Create(ctx, service.CreateMORequest{
		BranchID: f.branch.ID,
		Inputs:   []service.MOInputInput{{InventoryItemID: f.item.ID, Quantity: d("1")}},
	}, user)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err), "outputs are required")

	_, err = f.svc.Manufacturing.Create(ctx, service.CreateMORequest{
		BranchID:  f.branch.ID,
		KarigarID: "missing",
		Inputs:    []service.MOInputInput{{InventoryItemID: f.item.ID, Quantity: d("1")}},
		Outputs:   []service.MOOutputInput{{InventoryItemID: f.item.ID, Quantity: d("1")}},
	}, user)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}
