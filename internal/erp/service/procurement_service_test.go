package service_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePO_LineTotals(t *testing.T) {
	f := newFixture(t, service.Options{})

	po, err := f.svc.Procurement.CreatePO(ctx, service.CreatePORequest{
		SupplierID: f.supplier.ID,
		BranchID:   f.branch.ID,
		OrderDate:  "2024-05-01",
		Items: []service.POItemInput{
			{InventoryItemID: f.item.ID, Quantity: d("10"), Weight: d("25.5"), Rate: d("200"), Discount: d("10"), Tax: d("50")},
		},
	}, user)
	require.NoError(t, err)

	assert.Equal(t, "PO-001", po.PONumber)
	assert.Equal(t, entity.POStatusDraft, po.Status)
	require.Len(t, po.Items, 1)
	requireDec(t, "1850", po.Items[0].LineTotal)
	requireDec(t, "1800", po.TotalAmount)
	requireDec(t, "50", po.TaxAmount)
	requireDec(t, "1850", po.GrandTotal)
	require.NotNil(t, po.Supplier)
	assert.Equal(t, f.supplier.Code, po.Supplier.Code)
}

func TestCreatePO_Validation(t *testing.T) {
	f := newFixture(t, service.Options{})

	tests := []struct {
		name string
		req  service.CreatePORequest
		kind errs.Kind
	}{
		{"no items", service.CreatePORequest{SupplierID: f.supplier.ID, BranchID: f.branch.ID}, errs.KindValidation},
		{"zero quantity", service.CreatePORequest{SupplierID: f.supplier.ID, BranchID: f.branch.ID,
			Items: []service.POItemInput{{InventoryItemID: f.item.ID, Quantity: d("0")}}}, errs.KindValidation},
		{"discount over 100", service.CreatePORequest{SupplierID: f.supplier.ID, BranchID: f.branch.ID,
			Items: []service.POItemInput{{InventoryItemID: f.item.ID, Quantity: d("1"), Discount: d("120")}}}, errs.KindValidation},
		{"unknown supplier", service.CreatePORequest{SupplierID: "missing", BranchID: f.branch.ID,
			Items: []service.POItemInput{{InventoryItemID: f.item.ID, Quantity: d("1")}}}, errs.KindNotFound},
		{"unknown item", service.CreatePORequest{SupplierID: f.supplier.ID, BranchID: f.branch.ID,
			Items: []service.POItemInput{{InventoryItemID: "missing", Quantity: d("1")}}}, errs.KindNotFound},
		{"bad date", service.CreatePORequest{SupplierID: f.supplier.ID, BranchID: f.branch.ID, OrderDate: "May 1",
			Items: []service.POItemInput{{InventoryItemID: f.item.ID, Quantity: d("1")}}}, errs.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Procurement.CreatePO(ctx, tt.req, user)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err), err.Error())
		})
	}
}

func TestPO_TransitionsForwardOnly(t *testing.T) {
	f := newFixture(t, service.Options{})
	po, err := f.svc.Procurement.CreatePO(ctx, service.CreatePORequest{
		SupplierID: f.supplier.ID,
		BranchID:   f.branch.ID,
		Items:      []service.POItemInput{{InventoryItemID: f.item.ID, Quantity: d("1"), Rate: d("10")}},
	}, user)
	require.NoError(t, err)

	_, err = f.svc.Procurement.TransitionPO(ctx, po.ID, service.POActionApprove, user)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err), "draft cannot be approved directly")

	po, err = f.svc.Procurement.TransitionPO(ctx, po.ID, service.POActionSubmit, user)
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusPending, po.Status)

	po, err = f.svc.Procurement.TransitionPO(ctx, po.ID, service.POActionApprove, user)
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusApproved, po.Status)
	assert.Equal(t, user, po.ApprovedBy)
	assert.NotNil(t, po.ApprovedAt)

	_, err = f.svc.Procurement.TransitionPO(ctx, po.ID, service.POActionSubmit, user)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	// 审批后行项目不可修改
	_, err = f.svc.Procurement.ReplaceItems(ctx, po.ID, service.ReplacePOItemsRequest{
		Items: []service.POItemInput{{InventoryItemID: f.item.ID, Quantity: d("5")}},
	})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	po, err = f.svc.Procurement.TransitionPO(ctx, po.ID, service.POActionCancel, user)
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusCancelled, po.Status)

	_, err = f.svc.Procurement.TransitionPO(ctx, po.ID, service.POActionCancel, user)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = f.svc.Procurement.TransitionPO(ctx, po.ID, "reopen", user)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestPO_ReplaceItemsWhileDraft(t *testing.T) {
	f := newFixture(t, service.Options{})
	po, err := f.svc.Procurement.CreatePO(ctx, service.CreatePORequest{
		SupplierID: f.supplier.ID,
		BranchID:   f.branch.ID,
		Items:      []service.POItemInput{{InventoryItemID: f.item.ID, Quantity: d("1"), Rate: d("10")}},
	}, user)
	require.NoError(t, err)

	po, err = f.svc.Procurement.ReplaceItems(ctx, po.ID, service.ReplacePOItemsRequest{
		Items: []service.POItemInput{
			{InventoryItemID: f.item.ID, Quantity: d("2"), Rate: d("100")},
			{InventoryItemID: f.item.ID, Quantity: d("1"), Rate: d("50"), Tax: d("5")},
		},
	})
	require.NoError(t, err)
	require.Len(t, po.Items, 2)
	requireDec(t, "255", po.GrandTotal)
}

func TestGRN_RequiresApprovedPO(t *testing.T) {
	f := newFixture(t, service.Options{})
	po, err := f.svc.Procurement.CreatePO(ctx, service.CreatePORequest{
		SupplierID: f.supplier.ID,
		BranchID:   f.branch.ID,
		Items:      []service.POItemInput{{InventoryItemID: f.item.ID, Quantity: d("1"), Rate: d("10")}},
	}, user)
	require.NoError(t, err)

	req := service.CreateGRNRequest{Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("1")}}}
	_, err = f.svc.Procurement.CreateGRN(ctx, po.ID, req, user)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = f.svc.Procurement.CreateGRN(ctx, "missing", req, user)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestGRN_ConcurrentNumbersAreDistinct(t *testing.T) {
	f := newFixture(t, service.Options{})
	po := f.approvedPO(t, "1000", "10")

	const n = 50
	numbers := make([]string, n)
	errList := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			grn, err := f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
				Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("1")}},
			}, user)
			errList[i] = err
			if err == nil {
				numbers[i] = grn.GRNNumber
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errList[i])
		assert.False(t, seen[numbers[i]], "duplicate number %s", numbers[i])
		seen[numbers[i]] = true
	}
	assert.Len(t, seen, n)
	assert.True(t, seen["GRN-001"])
	assert.True(t, seen["GRN-050"])
}

func TestGRN_VerifyPostsStockAndLedger(t *testing.T) {
	f := newFixture(t, service.Options{})
	po := f.approvedPO(t, "10", "200")

	grn, err := f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
		Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("10"), ReceivedWeight: d("10"), StoneCost: d("500")}},
	}, user)
	require.NoError(t, err)
	assert.Equal(t, "GRN-001", grn.GRNNumber)
	assert.Equal(t, entity.GRNStatusDraft, grn.Status)
	requireDec(t, "2000", grn.MetalCost)
	requireDec(t, "2500", grn.TotalCost)
	requireDec(t, "10", grn.Items[0].OrderedQuantity)

	grn, err = f.svc.Procurement.ReceiveGRN(ctx, grn.ID, user)
	require.NoError(t, err)
	assert.Equal(t, entity.GRNStatusReceived, grn.Status)

	grn, err = f.svc.Procurement.VerifyGRN(ctx, grn.ID, user)
	require.NoError(t, err)
	assert.Equal(t, entity.GRNStatusVerified, grn.Status)
	assert.Equal(t, user, grn.VerifiedBy)

	stock, err := f.svc.Stock.GetStock(ctx, f.item.ID, f.branch.ID)
	require.NoError(t, err)
	requireDec(t, "10", stock.Quantity)
	requireDec(t, "250", stock.AvgRate)
	requireDec(t, "2500", stock.Value)
	f.requireChainValid(t, f.item.ID, f.branch.ID)

	balance, err := f.svc.Ledger.PartyBalance(ctx, entity.PartySupplier, f.supplier.ID)
	require.NoError(t, err)
	requireDec(t, "-2500", balance)

	po, err = f.svc.Procurement.GetPO(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusCompleted, po.Status)
	requireDec(t, "10", po.Items[0].ReceivedQuantity)

	// 已核验的收货单不能再次核验或取消
	_, err = f.svc.Procurement.VerifyGRN(ctx, grn.ID, user)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	_, err = f.svc.Procurement.CancelGRN(ctx, grn.ID, user)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestGRN_PartialReceiptKeepsPOApproved(t *testing.T) {
	f := newFixture(t, service.Options{})
	po := f.approvedPO(t, "10", "100")

	grn, err := f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
		Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("4")}},
	}, user)
	require.NoError(t, err)
	_, err = f.svc.Procurement.VerifyGRN(ctx, grn.ID, user)
	require.NoError(t, err)

	po, err = f.svc.Procurement.GetPO(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusApproved, po.Status)
	requireDec(t, "6", po.Items[0].PendingQuantity())
}

func TestGRN_OverReceiptPolicies(t *testing.T) {
	t.Run("allow", func(t *testing.T) {
		f := newFixture(t, service.Options{})
		po := f.approvedPO(t, "10", "1")
		_, err := f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
			Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("25")}},
		}, user)
		require.NoError(t, err)
	})

	t.Run("tolerance", func(t *testing.T) {
		f := newFixture(t, service.Options{OverReceiptPolicy: service.OverReceiptTolerance, OverReceiptTolerancePct: d("10")})
		po := f.approvedPO(t, "10", "1")
		_, err := f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
			Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("11")}},
		}, user)
		require.NoError(t, err)
		_, err = f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
			Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("1")}},
		}, user)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	})

	t.Run("reject", func(t *testing.T) {
		f := newFixture(t, service.Options{OverReceiptPolicy: service.OverReceiptReject})
		po := f.approvedPO(t, "10", "1")
		_, err := f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
			Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("11")}},
		}, user)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))

		grn, err := f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
			Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("10")}},
		}, user)
		require.NoError(t, err)

		// 取消的收货单不计入累计
		_, err = f.svc.Procurement.CancelGRN(ctx, grn.ID, user)
		require.NoError(t, err)
		_, err = f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
			Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("10")}},
		}, user)
		require.NoError(t, err)
	})
}

func TestGRN_LineMustBelongToPO(t *testing.T) {
	f := newFixture(t, service.Options{})
	po := f.approvedPO(t, "10", "1")
	other := f.approvedPO(t, "10", "1")

	_, err := f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
		Items: []service.GRNItemInput{{POItemID: other.Items[0].ID, ReceivedQuantity: d("1")}},
	}, user)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestDeletePO_BlockedByGRN(t *testing.T) {
	f := newFixture(t, service.Options{})
	po := f.approvedPO(t, "10", "1")
	_, err := f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
		Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("1")}},
	}, user)
	require.NoError(t, err)

	err = f.svc.Procurement.DeletePO(ctx, po.ID)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	empty := f.approvedPO(t, "1", "1")
	require.NoError(t, f.svc.Procurement.DeletePO(ctx, empty.ID))
	_, err = f.svc.Procurement.GetPO(ctx, empty.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestGRN_VerifyRecomputesWeightedAverage(t *testing.T) {
	f := newFixture(t, service.Options{})
	f.stockIn(t, f.item, f.branch, "10", "10", "100")
	po := f.approvedPO(t, "5", "130")

	grn, err := f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
		Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("5"), ReceivedWeight: d("5")}},
	}, user)
	require.NoError(t, err)
	_, err = f.svc.Procurement.VerifyGRN(ctx, grn.ID, user)
	require.NoError(t, err)

	stock, err := f.svc.Stock.GetStock(ctx, f.item.ID, f.branch.ID)
	require.NoError(t, err)
	requireDec(t, "15", stock.Quantity)
	requireDec(t, "110", stock.AvgRate)
	f.requireChainValid(t, f.item.ID, f.branch.ID)
}

func TestProcurement_RepeatedReadsAreIdentical(t *testing.T) {
	f := newFixture(t, service.Options{})
	po := f.approvedPO(t, "10", "100")
	grn, err := f.svc.Procurement.CreateGRN(ctx, po.ID, service.CreateGRNRequest{
		Items: []service.GRNItemInput{{POItemID: po.Items[0].ID, ReceivedQuantity: d("4"), ReceivedWeight: d("4")}},
	}, user)
	require.NoError(t, err)
	_, err = f.svc.Procurement.VerifyGRN(ctx, grn.ID, user)
	require.NoError(t, err)

	read := func() []byte {
		gotPO, err := f.svc.Procurement.GetPO(ctx, po.ID)
		require.NoError(t, err)
		grns, _, err := f.svc.Procurement.ListGRNsByPO(ctx, po.ID, repository.Page{})
		require.NoError(t, err)
		stock, err := f.svc.Stock.GetStock(ctx, f.item.ID, f.branch.ID)
		require.NoError(t, err)
		b, err := json.Marshal([]interface{}{gotPO, grns, stock})
		require.NoError(t, err)
		return b
	}
	assert.Equal(t, string(read()), string(read()))
}

func TestPO_NumbersComeFromSequenceNotRowCount(t *testing.T) {
	f := newFixture(t, service.Options{})
	first := f.approvedPO(t, "1", "1")
	second := f.approvedPO(t, "1", "1")
	assert.Equal(t, "PO-001", first.PONumber)
	assert.Equal(t, "PO-002", second.PONumber)

	require.NoError(t, f.svc.Procurement.DeletePO(ctx, first.ID))
	third := f.approvedPO(t, "1", "1")
	assert.Equal(t, "PO-003", third.PONumber)
}
