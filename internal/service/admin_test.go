package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velmark/eventa-coins/internal/domain/models"
	"github.com/velmark/eventa-coins/internal/service"
)

// Корректировка баланса администратором проходит через общий леджер:
// зачисление и списание попадают в журнал, минус по балансу невозможен.
func TestAdminAdjustBalance(t *testing.T) {
	ledger := newFakeLedger()
	unlockRepo := newFakeUnlockRepo()
	vendorRepo := newFakeVendorRepo()
	svc := service.NewAdminService(testLogger(), ledger, unlockRepo, vendorRepo)
	ctx := context.Background()

	ledger.balances[1] = 3

	balance, err := svc.AdjustBalance(ctx, 1, 5, "promo credit")
	assert.NoError(t, err)
	assert.Equal(t, int64(8), balance)

	balance, err = svc.AdjustBalance(ctx, 1, -2, "correction")
	assert.NoError(t, err)
	assert.Equal(t, int64(6), balance)

	// списание больше баланса отклоняется общим примитивом
	_, err = svc.AdjustBalance(ctx, 1, -100, "broken correction")
	assert.True(t, errors.Is(err, service.ErrInsufficientFunds))
	assert.Equal(t, int64(6), ledger.balance(1))

	_, err = svc.AdjustBalance(ctx, 1, 0, "noop")
	assert.True(t, errors.Is(err, service.ErrInvalidAmount))

	assert.Equal(t, ledger.balance(1), ledger.sumDeltas(1), "Every adjustment must hit the journal")
}

// Принудительная смена статуса игнорирует правила переходов оркестратора.
func TestAdminForceUnlockStatus(t *testing.T) {
	ledger := newFakeLedger()
	unlockRepo := newFakeUnlockRepo()
	vendorRepo := newFakeVendorRepo()
	svc := service.NewAdminService(testLogger(), ledger, unlockRepo, vendorRepo)
	ctx := context.Background()

	_, err := unlockRepo.CreateUnlock(ctx, 1, 10, models.TierStandard, 1, 0)
	require.NoError(t, err)

	// прыжок unlocked -> completed разрешен только администратору
	assert.NoError(t, svc.ForceUnlockStatus(ctx, 1, 10, models.UnlockStatusCompleted))

	unlock, err := unlockRepo.GetUnlockByClientAndVendor(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, models.UnlockStatusCompleted, unlock.Status)
}

func TestAdminSetVerification(t *testing.T) {
	ledger := newFakeLedger()
	unlockRepo := newFakeUnlockRepo()
	vendorRepo := newFakeVendorRepo()
	svc := service.NewAdminService(testLogger(), ledger, unlockRepo, vendorRepo)
	ctx := context.Background()

	vendorRepo.vendors[10] = &models.Vendor{ID: 10}

	assert.NoError(t, svc.SetVerification(ctx, 10, true))
	assert.True(t, vendorRepo.vendors[10].Verified)

	err := svc.SetVerification(ctx, 99, true)
	assert.Error(t, err)
}
