package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/velmark/eventa-coins/internal/domain/models"
)

// CoinTransactionStorage описывает методы для работы с журналом монет.
type CoinTransactionStorage interface {
	// CreateTransaction добавляет запись в журнал и возвращает её id.
	// Вызывается только внутри транзакции вместе с обновлением баланса.
	CreateTransaction(ctx context.Context, tx *sql.Tx, accountID int64, amount int64, kind string, description string, relatedVendorID *int64, relatedTxID *int64) (int64, error)
	// GetTransactionsByAccountID возвращает список записей журнала для аккаунта.
	GetTransactionsByAccountID(ctx context.Context, accountID int64) ([]*models.CoinTransaction, error)
	// ListOrphanedUnlockDebits возвращает списания за разблокировку старше olderThan,
	// для которых нет ни записи в реестре разблокировок, ни компенсирующего возврата.
	ListOrphanedUnlockDebits(ctx context.Context, olderThan time.Time) ([]*models.CoinTransaction, error)
	// HasRefundForTx проверяет внутри транзакции, существует ли уже возврат
	// для указанного списания.
	HasRefundForTx(ctx context.Context, tx *sql.Tx, debitTxID int64) (bool, error)
}

type coinTransactionRepository struct {
	db *sql.DB
}

func NewCoinTransactionRepository(db *sql.DB) CoinTransactionStorage {
	return &coinTransactionRepository{db: db}
}

func (r *coinTransactionRepository) CreateTransaction(ctx context.Context, tx *sql.Tx, accountID int64, amount int64, kind string, description string, relatedVendorID *int64, relatedTxID *int64) (int64, error) {
	query := `INSERT INTO coin_transactions (account_id, amount, kind, description, related_vendor_id, related_tx_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id`
	var id int64
	if err := tx.QueryRowContext(ctx, query, accountID, amount, kind, description, relatedVendorID, relatedTxID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create coin transaction: %w", err)
	}
	return id, nil
}

func (r *coinTransactionRepository) GetTransactionsByAccountID(ctx context.Context, accountID int64) ([]*models.CoinTransaction, error) {
	query := `
		SELECT id, account_id, amount, kind, description, related_vendor_id, related_tx_id, created_at
		FROM coin_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query coin transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.CoinTransaction
	for rows.Next() {
		tx := &models.CoinTransaction{}
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Amount, &tx.Kind, &tx.Description, &tx.RelatedVendorID, &tx.RelatedTxID, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan coin transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

// ListOrphanedUnlockDebits ищет "осиротевшие" списания: монеты списаны,
// но записи в реестре разблокировок так и не появилось и возврат еще не делался.
func (r *coinTransactionRepository) ListOrphanedUnlockDebits(ctx context.Context, olderThan time.Time) ([]*models.CoinTransaction, error) {
	query := `
		SELECT d.id, d.account_id, d.amount, d.kind, d.description, d.related_vendor_id, d.related_tx_id, d.created_at
		FROM coin_transactions d
		WHERE d.kind = 'debit'
		  AND d.related_vendor_id IS NOT NULL
		  AND d.created_at < $1
		  AND NOT EXISTS (
		      SELECT 1 FROM unlocks u
		      WHERE u.client_id = d.account_id AND u.vendor_id = d.related_vendor_id
		  )
		  AND NOT EXISTS (
		      SELECT 1 FROM coin_transactions c
		      WHERE c.kind = 'credit' AND c.related_tx_id = d.id
		  )
		ORDER BY d.created_at`
	rows, err := r.db.QueryContext(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphaned debits: %w", err)
	}
	defer rows.Close()

	var debits []*models.CoinTransaction
	for rows.Next() {
		tx := &models.CoinTransaction{}
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Amount, &tx.Kind, &tx.Description, &tx.RelatedVendorID, &tx.RelatedTxID, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan orphaned debit: %w", err)
		}
		debits = append(debits, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return debits, nil
}

func (r *coinTransactionRepository) HasRefundForTx(ctx context.Context, tx *sql.Tx, debitTxID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM coin_transactions WHERE kind = 'credit' AND related_tx_id = $1)`
	if err := tx.QueryRowContext(ctx, query, debitTxID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check refund existence: %w", err)
	}
	return exists, nil
}
