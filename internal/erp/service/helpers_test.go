package service_test

import (
	"context"
	"testing"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ctx = context.Background()

const user = testutil.UserID

type fixture struct {
	db       *gorm.DB
	svc      *service.Services
	branch   *entity.Branch
	branch2  *entity.Branch
	supplier *entity.Supplier
	customer *entity.Customer
	item     *entity.InventoryItem
}

func newFixture(t *testing.T, opts service.Options) *fixture {
	t.Helper()
	db, svc := testutil.SetupServices(t, opts)
	return &fixture{
		db:       db,
		svc:      svc,
		branch:   testutil.SeedBranch(t, db, "MAIN"),
		branch2:  testutil.SeedBranch(t, db, "EAST"),
		supplier: testutil.SeedSupplier(t, db, "SUP-1"),
		customer: testutil.SeedCustomer(t, db, "CUS-1"),
		item:     testutil.SeedItem(t, db, "RING-22K"),
	}
}

var d = testutil.D

// freshServices 同一个库上的新服务实例，内存缓存为空
func (f *fixture) freshServices() *service.Services {
	return service.NewServices(repository.NewRepositories(f.db), service.Deps{Logger: zap.NewNop()}, service.Options{})
}

// requireDec compares decimals by value
func requireDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, got.Equal(d(want)), "want %s, got %s %v", want, got, msgAndArgs)
}

// approvedPO 建单并审批：一行，数量 qty，单价 rate
func (f *fixture) approvedPO(t *testing.T, qty, rate string) *entity.PurchaseOrder {
	t.Helper()
	po, err := f.svc.Procurement.CreatePO(ctx, service.CreatePORequest{
		SupplierID: f.supplier.ID,
		BranchID:   f.branch.ID,
		Items: []service.POItemInput{
			{InventoryItemID: f.item.ID, Quantity: d(qty), Weight: d(qty), Rate: d(rate)},
		},
	}, user)
	require.NoError(t, err)
	_, err = f.svc.Procurement.TransitionPO(ctx, po.ID, service.POActionSubmit, user)
	require.NoError(t, err)
	po, err = f.svc.Procurement.TransitionPO(ctx, po.ID, service.POActionApprove, user)
	require.NoError(t, err)
	return po
}

// stockIn 带成本的盘盈入库
func (f *fixture) stockIn(t *testing.T, item *entity.InventoryItem, branch *entity.Branch, qty, weight, rate string) {
	t.Helper()
	_, err := f.svc.Stock.Adjust(ctx, service.AdjustmentRequest{
		InventoryItemID: item.ID,
		BranchID:        branch.ID,
		Quantity:        d(qty),
		Weight:          d(weight),
		Rate:            decimal.NewNullDecimal(d(rate)),
		Reason:          "opening stock",
	}, user)
	require.NoError(t, err)
}

func (f *fixture) requireChainValid(t *testing.T, itemID, branchID string) *service.ChainReport {
	t.Helper()
	report, err := f.svc.Stock.VerifyChain(ctx, itemID, branchID)
	require.NoError(t, err)
	require.True(t, report.Valid, "chain broken at %d: %s", report.BrokenAt, report.Reason)
	return report
}
