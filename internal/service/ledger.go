package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/velmark/eventa-coins/internal/domain/models"
	"github.com/velmark/eventa-coins/internal/storage"
)

var (
	// ErrInvalidAmount — неположительная сумма операции, ошибка программиста, не ретраится
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInsufficientFunds — на балансе недостаточно монет для списания
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAlreadyRefunded — возврат по этому списанию уже проведён
	ErrAlreadyRefunded = errors.New("debit already refunded")
)

// LedgerService — единственный путь изменения балансов. Каждая операция
// атомарно обновляет баланс и добавляет запись в журнал, параллельные операции
// по одному аккаунту сериализуются блокировкой строки в БД.
type LedgerService interface {
	// Credit увеличивает баланс аккаунта и возвращает новый баланс.
	Credit(ctx context.Context, accountID int64, amount int64, description string) (int64, error)
	// Debit списывает монеты; если баланс меньше суммы — ErrInsufficientFunds,
	// запись в журнал при этом не создаётся. Возвращает id записи журнала и новый баланс.
	Debit(ctx context.Context, accountID int64, amount int64, description string, relatedVendorID *int64) (int64, int64, error)
	// Refund — компенсирующее зачисление по конкретному списанию.
	// Повторный возврат по тому же списанию не проводится (ErrAlreadyRefunded).
	Refund(ctx context.Context, accountID int64, amount int64, description string, debitTxID int64) (int64, error)
}

type ledgerService struct {
	log         *slog.Logger
	db          *sql.DB
	accountRepo storage.AccountStorage
	coinTxRepo  storage.CoinTransactionStorage
}

func NewLedgerService(log *slog.Logger, db *sql.DB, accountRepo storage.AccountStorage, coinTxRepo storage.CoinTransactionStorage) LedgerService {
	return &ledgerService{
		log:         log,
		db:          db,
		accountRepo: accountRepo,
		coinTxRepo:  coinTxRepo,
	}
}

// Credit зачисляет монеты на баланс аккаунта.
// Если что-то идет не так, транзакция откатывается
func (s *ledgerService) Credit(ctx context.Context, accountID int64, amount int64, description string) (int64, error) {
	const op = "service.LedgerService.Credit"
	logger := s.log.With(slog.String("op", op), slog.Int64("accountID", accountID), slog.Int64("amount", amount))

	if amount <= 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	// Блокируем строку аккаунта до конца транзакции
	account, err := s.accountRepo.LockAccountByIDTx(ctx, tx, accountID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to lock account", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to lock account: %w", op, err)
	}

	newBalance := account.CoinBalance + amount
	if err := s.accountRepo.UpdateAccountBalance(ctx, tx, accountID, newBalance); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to update balance", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to update balance: %w", op, err)
	}

	if _, err := s.coinTxRepo.CreateTransaction(ctx, tx, accountID, amount, models.TxKindCredit, description, nil, nil); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to record transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to record transaction: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("credit completed", slog.Int64("newBalance", newBalance))
	return newBalance, nil
}

// Debit списывает монеты с баланса аккаунта.
// Проверка достаточности средств и списание выполняются под блокировкой строки,
// поэтому два параллельных списания не могут вместе превысить баланс.
func (s *ledgerService) Debit(ctx context.Context, accountID int64, amount int64, description string, relatedVendorID *int64) (int64, int64, error) {
	const op = "service.LedgerService.Debit"
	logger := s.log.With(slog.String("op", op), slog.Int64("accountID", accountID), slog.Int64("amount", amount))

	if amount <= 0 {
		return 0, 0, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return 0, 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	account, err := s.accountRepo.LockAccountByIDTx(ctx, tx, accountID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to lock account", slog.Any("error", err))
		return 0, 0, fmt.Errorf("%s: failed to lock account: %w", op, err)
	}

	// Проверяем, достаточно ли средств
	if account.CoinBalance < amount {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Warn("insufficient funds", slog.Int64("balance", account.CoinBalance))
		return 0, 0, fmt.Errorf("%s: %w", op, ErrInsufficientFunds)
	}

	newBalance := account.CoinBalance - amount
	if err := s.accountRepo.UpdateAccountBalance(ctx, tx, accountID, newBalance); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to update balance", slog.Any("error", err))
		return 0, 0, fmt.Errorf("%s: failed to update balance: %w", op, err)
	}

	// В журнале списание хранится с отрицательной дельтой
	txID, err := s.coinTxRepo.CreateTransaction(ctx, tx, accountID, -amount, models.TxKindDebit, description, relatedVendorID, nil)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to record transaction", slog.Any("error", err))
		return 0, 0, fmt.Errorf("%s: failed to record transaction: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return 0, 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("debit completed", slog.Int64("newBalance", newBalance), slog.Int64("txID", txID))
	return txID, newBalance, nil
}

// Refund проводит компенсирующее зачисление по списанию debitTxID.
// Проверка "возврат еще не проводился" выполняется в той же транзакции,
// что и зачисление, поэтому повторный вызов (оркестратором или фоновой сверкой)
// не приведет к двойному возврату.
func (s *ledgerService) Refund(ctx context.Context, accountID int64, amount int64, description string, debitTxID int64) (int64, error) {
	const op = "service.LedgerService.Refund"
	logger := s.log.With(slog.String("op", op), slog.Int64("accountID", accountID), slog.Int64("debitTxID", debitTxID))

	if amount <= 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	account, err := s.accountRepo.LockAccountByIDTx(ctx, tx, accountID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to lock account", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to lock account: %w", op, err)
	}

	refunded, err := s.coinTxRepo.HasRefundForTx(ctx, tx, debitTxID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to check refund", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to check refund: %w", op, err)
	}
	if refunded {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Warn("refund already exists")
		return 0, fmt.Errorf("%s: %w", op, ErrAlreadyRefunded)
	}

	newBalance := account.CoinBalance + amount
	if err := s.accountRepo.UpdateAccountBalance(ctx, tx, accountID, newBalance); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to update balance", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to update balance: %w", op, err)
	}

	if _, err := s.coinTxRepo.CreateTransaction(ctx, tx, accountID, amount, models.TxKindCredit, description, nil, &debitTxID); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to record transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to record transaction: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("refund completed", slog.Int64("newBalance", newBalance))
	return newBalance, nil
}
