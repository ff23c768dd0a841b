package service_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaster_CRUD(t *testing.T) {
	f := newFixture(t, service.Options{})
	units := f.svc.Master.Units

	u, err := units.Create(ctx, &entity.Unit{Code: "GM", Name: "Gram"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = units.Create(ctx, &entity.Unit{Code: "GM", Name: "Another gram"})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err), "duplicate code")

	_, err = units.Create(ctx, &entity.Unit{Code: "CT"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err), "name is required")

	updated, err := units.Update(ctx, u.ID, &entity.Unit{Code: "GM", Name: "Grams", Description: "weight"})
	require.NoError(t, err)
	assert.Equal(t, "Grams", updated.Name)
	assert.Equal(t, "weight", updated.Description)

	_, err = units.Update(ctx, "missing", &entity.Unit{Code: "X", Name: "X"})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = units.Create(ctx, &entity.Unit{Code: "CT", Name: "Carat"})
	require.NoError(t, err)
	list, total, err := units.List(ctx, repository.MasterListParams{Keyword: "carat"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "CT", list[0].Code)

	require.NoError(t, units.Delete(ctx, u.ID))
	_, err = units.Get(ctx, u.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(units.Delete(ctx, u.ID)))
}

func TestMaster_ReferenceChecks(t *testing.T) {
	f := newFixture(t, service.Options{})

	_, err := f.svc.Master.Locations.Create(ctx, &entity.Location{BranchID: "missing", Code: "A1"})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	loc, err := f.svc.Master.Locations.Create(ctx, &entity.Location{BranchID: f.branch.ID, Code: "A1"})
	require.NoError(t, err)
	assert.Equal(t, f.branch.ID, loc.BranchID)

	_, err = f.svc.Master.Purities.Create(ctx, &entity.Purity{Name: "22K", MetalType: "copper"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = f.svc.Master.Karigars.Create(ctx, &entity.Karigar{Code: "K1", Name: "Ravi", WageRate: d("-1")})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = f.svc.Master.InventoryItems.Create(ctx, &entity.InventoryItem{SKU: "X-1", Name: "X", PurityID: "missing"})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestMaster_DeleteBlockedByDocuments(t *testing.T) {
	f := newFixture(t, service.Options{})
	f.stockIn(t, f.item, f.branch, "1", "1", "10")
	f.approvedPO(t, "1", "10")
	_, err := f.svc.Ledger.PostVoucher(ctx, service.VoucherRequest{
		PartyType: entity.PartyCustomer, PartyID: f.customer.ID, EntryType: entity.EntryDebit, Amount: d("5"),
	}, user)
	require.NoError(t, err)

	cases := []struct {
		name string
		del  func() error
	}{
		{"branch with stock", func() error { return f.svc.Master.Branches.Delete(ctx, f.branch.ID) }},
		{"item with movements", func() error { return f.svc.Master.InventoryItems.Delete(ctx, f.item.ID) }},
		{"supplier with purchase order", func() error { return f.svc.Master.Suppliers.Delete(ctx, f.supplier.ID) }},
		{"customer with ledger", func() error { return f.svc.Master.Customers.Delete(ctx, f.customer.ID) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.del()
			require.Equal(t, errs.KindConflict, errs.KindOf(err))
			assert.Contains(t, errs.As(err).Message(), "referenced by")
		})
	}

	_, err = f.svc.Master.Branches.Get(ctx, f.branch.ID)
	require.NoError(t, err)

	// 无引用的仍可删除
	require.NoError(t, f.svc.Master.Branches.Delete(ctx, f.branch2.ID))
	_, err = f.svc.Master.Branches.Get(ctx, f.branch2.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestMaster_UploadImage(t *testing.T) {
	f := newFixture(t, service.Options{})
	stones := f.svc.Master.Stones
	assert.True(t, stones.SupportsImages())
	assert.False(t, f.svc.Master.Units.SupportsImages())

	stone, err := stones.Create(ctx, &entity.Stone{Name: "Ruby", StoneType: "precious"})
	require.NoError(t, err)

	content := []byte("fake-png-bytes")
	up := service.Upload{FileName: "ruby.PNG", Size: int64(len(content)), ContentType: "image/png", Body: bytes.NewReader(content)}
	got, err := stones.UploadImage(ctx, stone.ID, up)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.ImagePath, "stones/"), got.ImagePath)
	assert.True(t, strings.HasSuffix(got.ImagePath, ".png"), got.ImagePath)

	// 普通更新不会清掉图片路径
	updated, err := stones.Update(ctx, stone.ID, &entity.Stone{Name: "Ruby", Color: "red"})
	require.NoError(t, err)
	assert.Equal(t, got.ImagePath, updated.ImagePath)
	assert.Equal(t, "red", updated.Color)

	_, err = stones.UploadImage(ctx, stone.ID, service.Upload{FileName: "ruby.exe", Size: 3, Body: bytes.NewReader([]byte("abc"))})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	_, err = stones.UploadImage(ctx, "missing", up)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	unit, err := f.svc.Master.Units.Create(ctx, &entity.Unit{Code: "PC", Name: "Piece"})
	require.NoError(t, err)
	_, err = f.svc.Master.Units.UploadImage(ctx, unit.ID, up)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}
