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

func TestLedger_VouchersAndVerify(t *testing.T) {
	f := newFixture(t, service.Options{})

	first, err := f.svc.Ledger.PostVoucher(ctx, service.VoucherRequest{
		PartyType: entity.PartyCustomer, PartyID: f.customer.ID, EntryType: entity.EntryDebit, Amount: d("100"),
	}, user)
	require.NoError(t, err)
	assert.Equal(t, "VCH-001", first.ReferenceNumber)
	assert.Equal(t, int64(1), first.Sequence)
	requireDec(t, "100", first.BalanceAfter)

	second, err := f.svc.Ledger.PostVoucher(ctx, service.VoucherRequest{
		PartyType: entity.PartyCustomer, PartyID: f.customer.ID, EntryType: entity.EntryCredit, Amount: d("40.50"),
	}, user)
	require.NoError(t, err)
	requireDec(t, "59.5", second.BalanceAfter)

	ledger, err := f.svc.Ledger.Get(ctx, first.LedgerID)
	require.NoError(t, err)
	requireDec(t, "59.5", ledger.Balance)
	assert.Equal(t, int64(2), ledger.EntryCount)

	report, err := f.svc.Ledger.Verify(ctx, ledger.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 2, report.Entries)

	entries, total, err := f.svc.Ledger.Entries(ctx, ledger.ID, repository.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(2), entries[0].Sequence, "newest first")

	_, _, err = f.svc.Ledger.Entries(ctx, "missing", repository.Page{})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestLedger_VoucherValidation(t *testing.T) {
	f := newFixture(t, service.Options{})

	tests := []struct {
		name string
		req  service.VoucherRequest
		kind errs.Kind
	}{
		{"bad party type", service.VoucherRequest{PartyType: "EMPLOYEE", PartyID: f.customer.ID, EntryType: entity.EntryDebit, Amount: d("1")}, errs.KindValidation},
		{"bad entry type", service.VoucherRequest{PartyType: entity.PartyCustomer, PartyID: f.customer.ID, EntryType: "BOTH", Amount: d("1")}, errs.KindValidation},
		{"zero amount", service.VoucherRequest{PartyType: entity.PartyCustomer, PartyID: f.customer.ID, EntryType: entity.EntryDebit, Amount: d("0")}, errs.KindValidation},
		{"unknown supplier", service.VoucherRequest{PartyType: entity.PartySupplier, PartyID: f.customer.ID, EntryType: entity.EntryDebit, Amount: d("1")}, errs.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Ledger.PostVoucher(ctx, tt.req, user)
			assert.Equal(t, tt.kind, errs.KindOf(err))
		})
	}

	_, total, err := f.svc.Ledger.List(ctx, repository.LedgerListParams{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestLedger_VerifyDetectsDrift(t *testing.T) {
	f := newFixture(t, service.Options{})
	entry, err := f.svc.Ledger.PostVoucher(ctx, service.VoucherRequest{
		PartyType: entity.PartySupplier, PartyID: f.supplier.ID, EntryType: entity.EntryCredit, Amount: d("10"),
	}, user)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&entity.Ledger{}).Where("id = ?", entry.LedgerID).Update("balance", 5).Error)

	report, err := f.svc.Ledger.Verify(ctx, entry.LedgerID)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	requireDec(t, "-10", report.EntriesSum)
	assert.Equal(t, int64(1), report.BrokenAt)
	assert.Contains(t, report.Reason, "ledger balance")
}

func TestLedger_VerifyPointsAtTamperedEntry(t *testing.T) {
	f := newFixture(t, service.Options{})
	var ledgerID string
	for _, amount := range []string{"10", "20", "30"} {
		entry, err := f.svc.Ledger.PostVoucher(ctx, service.VoucherRequest{
			PartyType: entity.PartyCustomer, PartyID: f.customer.ID, EntryType: entity.EntryDebit, Amount: d(amount),
		}, user)
		require.NoError(t, err)
		ledgerID = entry.LedgerID
	}
	require.NoError(t, f.db.Model(&entity.LedgerEntry{}).
		Where("ledger_id = ? AND sequence = ?", ledgerID, 2).Update("balance_after", 999).Error)

	report, err := f.svc.Ledger.Verify(ctx, ledgerID)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, int64(2), report.BrokenAt)
	assert.Contains(t, report.Reason, "balance_after")
}
