package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velmark/eventa-coins/internal/domain/models"
	"github.com/velmark/eventa-coins/internal/service"
	"github.com/velmark/eventa-coins/internal/storage"
)

// orphanListRepo отдает фиксированный список осиротевших списаний —
// имитация списания, за которым так и не появилась запись в реестре.
type orphanListRepo struct {
	orphans []*models.CoinTransaction
}

var _ storage.CoinTransactionStorage = (*orphanListRepo)(nil)

func (r *orphanListRepo) CreateTransaction(ctx context.Context, tx *sql.Tx, accountID int64, amount int64, kind string, description string, relatedVendorID *int64, relatedTxID *int64) (int64, error) {
	return 0, nil
}

func (r *orphanListRepo) GetTransactionsByAccountID(ctx context.Context, accountID int64) ([]*models.CoinTransaction, error) {
	return nil, nil
}

func (r *orphanListRepo) ListOrphanedUnlockDebits(ctx context.Context, olderThan time.Time) ([]*models.CoinTransaction, error) {
	return r.orphans, nil
}

func (r *orphanListRepo) HasRefundForTx(ctx context.Context, tx *sql.Tx, debitTxID int64) (bool, error) {
	return false, nil
}

// Сверка возвращает монеты по осиротевшему списанию ровно один раз:
// повторный проход по тому же списанию не создает второй возврат.
func TestReconciler_RefundsOrphanedDebitOnce(t *testing.T) {
	ledger := newFakeLedger()
	ctx := context.Background()

	// списание прошло, запись в реестр так и не состоялась
	ledger.balances[1] = 2
	vendorID := int64(10)
	txID, _, err := ledger.Debit(ctx, 1, 2, "unlock vendor 10 (standard)", &vendorID)
	require.NoError(t, err)
	require.Equal(t, int64(0), ledger.balance(1))

	repo := &orphanListRepo{orphans: []*models.CoinTransaction{
		{ID: txID, AccountID: 1, Amount: -2, Kind: models.TxKindDebit, RelatedVendorID: &vendorID},
	}}

	reconciler := service.NewReconciler(testLogger(), ledger, repo, time.Minute, 10*time.Minute)

	require.NoError(t, reconciler.RunOnce(ctx))
	assert.Equal(t, int64(2), ledger.balance(1), "Orphaned debit should be refunded")
	assert.Equal(t, 1, ledger.countKind(1, models.TxKindCredit))

	// Список все еще содержит то же списание, но возврат уже есть
	require.NoError(t, reconciler.RunOnce(ctx))
	assert.Equal(t, int64(2), ledger.balance(1), "Second pass must not refund again")
	assert.Equal(t, 1, ledger.countKind(1, models.TxKindCredit))
	assert.Equal(t, ledger.balance(1), ledger.sumDeltas(1))
}

func TestReconciler_NoOrphansIsNoop(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances[1] = 5

	reconciler := service.NewReconciler(testLogger(), ledger, &orphanListRepo{}, time.Minute, 10*time.Minute)
	require.NoError(t, reconciler.RunOnce(context.Background()))
	assert.Equal(t, int64(5), ledger.balance(1))
	assert.Equal(t, 0, ledger.countKind(1, models.TxKindCredit))
}
