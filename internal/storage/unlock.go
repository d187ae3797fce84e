package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/velmark/eventa-coins/internal/domain/models"
)

var (
	ErrUnlockNotFound  = errors.New("unlock not found")
	ErrDuplicateUnlock = errors.New("unlock already exists")
)

// UnlockStorage описывает методы для работы с реестром разблокировок.
type UnlockStorage interface {
	// CreateUnlock вставляет новую запись. Возвращает ErrDuplicateUnlock,
	// если запись для пары (clientID, vendorID) уже существует —
	// уникальный индекс БД является арбитром гонки двух первых запросов.
	CreateUnlock(ctx context.Context, clientID, vendorID int64, tier string, coinsSpent, amountCharged int64) (*models.Unlock, error)
	GetUnlockByClientAndVendor(ctx context.Context, clientID, vendorID int64) (*models.Unlock, error)
	GetUnlocksByClientID(ctx context.Context, clientID int64) ([]*models.Unlock, error)
	// UpdateUnlockStatus переводит статус записи без каких-либо проверок переходов,
	// правила переходов — на уровне сервиса.
	UpdateUnlockStatus(ctx context.Context, clientID, vendorID int64, status string) error
}

type unlockRepository struct {
	db *sql.DB
}

func NewUnlockRepository(db *sql.DB) UnlockStorage {
	return &unlockRepository{db: db}
}

func (r *unlockRepository) CreateUnlock(ctx context.Context, clientID, vendorID int64, tier string, coinsSpent, amountCharged int64) (*models.Unlock, error) {
	unlock := &models.Unlock{
		ClientID:      clientID,
		VendorID:      vendorID,
		Tier:          tier,
		CoinsSpent:    coinsSpent,
		AmountCharged: amountCharged,
		Status:        models.UnlockStatusUnlocked,
	}
	query := `INSERT INTO unlocks (client_id, vendor_id, tier, coins_spent, amount_charged, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, clientID, vendorID, tier, coinsSpent, amountCharged, unlock.Status).
		Scan(&unlock.ID, &unlock.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return nil, ErrDuplicateUnlock
			}
		}
		return nil, fmt.Errorf("failed to create unlock: %w", err)
	}
	return unlock, nil
}

func (r *unlockRepository) GetUnlockByClientAndVendor(ctx context.Context, clientID, vendorID int64) (*models.Unlock, error) {
	unlock := &models.Unlock{}
	query := `SELECT id, client_id, vendor_id, tier, coins_spent, amount_charged, status, created_at
	          FROM unlocks WHERE client_id = $1 AND vendor_id = $2`
	row := r.db.QueryRowContext(ctx, query, clientID, vendorID)
	if err := row.Scan(&unlock.ID, &unlock.ClientID, &unlock.VendorID, &unlock.Tier, &unlock.CoinsSpent, &unlock.AmountCharged, &unlock.Status, &unlock.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnlockNotFound
		}
		return nil, err
	}
	return unlock, nil
}

func (r *unlockRepository) GetUnlocksByClientID(ctx context.Context, clientID int64) ([]*models.Unlock, error) {
	query := `SELECT id, client_id, vendor_id, tier, coins_spent, amount_charged, status, created_at
	          FROM unlocks WHERE client_id = $1
	          ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []*models.Unlock
	for rows.Next() {
		unlock := &models.Unlock{}
		if err := rows.Scan(&unlock.ID, &unlock.ClientID, &unlock.VendorID, &unlock.Tier, &unlock.CoinsSpent, &unlock.AmountCharged, &unlock.Status, &unlock.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unlock: %w", err)
		}
		unlocks = append(unlocks, unlock)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return unlocks, nil
}

func (r *unlockRepository) UpdateUnlockStatus(ctx context.Context, clientID, vendorID int64, status string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE unlocks SET status = $1 WHERE client_id = $2 AND vendor_id = $3", status, clientID, vendorID)
	if err != nil {
		return fmt.Errorf("failed to update unlock status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUnlockNotFound
	}
	return nil
}
