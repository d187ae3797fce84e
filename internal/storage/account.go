package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/velmark/eventa-coins/internal/domain/models"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountStorage interface {
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error)
	// LockAccountByIDTx блокирует строку аккаунта до конца транзакции (FOR UPDATE)
	LockAccountByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Account, error)
	UpdateAccountBalance(ctx context.Context, tx *sql.Tx, id int64, newBalance int64) error
	SetProfileCompleted(ctx context.Context, tx *sql.Tx, id int64) error
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *accountRepository {
	return &accountRepository{db: db}
}

// получение уже существующего аккаунта по email
func (r *accountRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	account := &models.Account{}
	row := r.db.QueryRowContext(ctx, "SELECT id, email, pass_hash, role, coin_balance, profile_completed FROM users WHERE email = $1", email)
	if err := row.Scan(&account.ID, &account.Email, &account.PassHash, &account.Role, &account.CoinBalance, &account.ProfileCompleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *accountRepository) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	account := &models.Account{}
	row := r.db.QueryRowContext(ctx, "SELECT id, email, pass_hash, role, coin_balance, profile_completed FROM users WHERE id = $1", id)
	if err := row.Scan(&account.ID, &account.Email, &account.PassHash, &account.Role, &account.CoinBalance, &account.ProfileCompleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *accountRepository) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users (email, pass_hash, role, coin_balance, profile_completed) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		account.Email, account.PassHash, account.Role, account.CoinBalance, account.ProfileCompleted,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	account.ID = id
	return account, nil
}

func (r *accountRepository) UpdateAccountBalance(ctx context.Context, tx *sql.Tx, id int64, newBalance int64) error {
	res, err := tx.ExecContext(ctx, "UPDATE users SET coin_balance = $1 WHERE id = $2", newBalance, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) SetProfileCompleted(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, "UPDATE users SET profile_completed = TRUE WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) LockAccountByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Account, error) {
	account := &models.Account{}

	row := tx.QueryRowContext(ctx, "SELECT id, email, pass_hash, role, coin_balance, profile_completed FROM users WHERE id = $1 FOR UPDATE NOWAIT", id)
	if err := row.Scan(&account.ID, &account.Email, &account.PassHash, &account.Role, &account.CoinBalance, &account.ProfileCompleted); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock
				return nil, fmt.Errorf("resource is locked, please try again: %w", err)
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}
