package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	security "github.com/velmark/eventa-coins/internal/auth"
	"github.com/velmark/eventa-coins/internal/domain/models"
	"github.com/velmark/eventa-coins/internal/storage"
)

type AuthService struct {
	log         *slog.Logger
	db          *sql.DB
	accountRepo storage.AccountStorage
	coinTxRepo  storage.CoinTransactionStorage
	signupBonus int64
	tokenTTL    time.Duration
}

func NewAuthService(log *slog.Logger, db *sql.DB, accountRepo storage.AccountStorage, coinTxRepo storage.CoinTransactionStorage, signupBonus int64, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:         log,
		db:          db,
		accountRepo: accountRepo,
		coinTxRepo:  coinTxRepo,
		signupBonus: signupBonus,
		tokenTTL:    tokenTTL,
	}
}

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (string, error)
	ActivateProfile(ctx context.Context, accountID int64) (int64, error)
}

// Login осуществляет аутентификацию пользователя.
// Если аккаунт не найден, он создаётся с нулевым балансом (пароль хэшируется через bcrypt).
// Стартовые монеты зачисляются отдельно, только после заполнения профиля (ActivateProfile).
// После успешной проверки генерируется JWT-токен с ролью аккаунта.
func (a *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "auth.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking account")

	account, err := a.accountRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			logger.Info("account not found, creating new account")
			passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				logger.Error("failed to hash password", slog.Any("error", err))
				return "", fmt.Errorf("%s: failed to hash password: %w", op, err)
			}
			newAccount := &models.Account{
				Email:       email,
				PassHash:    passHash,
				Role:        models.RoleClient,
				CoinBalance: 0, // стартовый бонус начисляется при активации профиля
			}
			account, err = a.accountRepo.CreateAccount(ctx, newAccount)
			if err != nil {
				logger.Error("failed to create account", slog.Any("error", err))
				return "", fmt.Errorf("%s: failed to create account: %w", op, err)
			}
		} else {
			logger.Error("failed to get account", slog.Any("error", err))
			return "", fmt.Errorf("%s: failed to get account: %w", op, err)
		}
	} else {
		if err := bcrypt.CompareHashAndPassword(account.PassHash, []byte(password)); err != nil {
			logger.Warn("invalid password")
			return "", fmt.Errorf("%s: invalid credentials: %w", op, err)
		}
	}

	// Генерация JWT-токена, секрет берется из переменной окружения JWT_SECRET.
	token, err := security.NewToken(ctx, account, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("account logged in successfully", slog.Int64("accountID", account.ID))
	return token, nil
}

// ActivateProfile отмечает профиль заполненным и один раз зачисляет стартовый бонус.
// Флаг и зачисление выполняются в одной транзакции БД, повторный вызов — no-op.
// Возвращает текущий баланс.
func (a *AuthService) ActivateProfile(ctx context.Context, accountID int64) (int64, error) {
	const op = "auth.ActivateProfile"
	logger := a.log.With(slog.String("op", op), slog.Int64("accountID", accountID))
	logger.Info("activating profile")

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	account, err := a.accountRepo.LockAccountByIDTx(ctx, tx, accountID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to lock account", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to lock account: %w", op, err)
	}

	// Повторная активация не зачисляет бонус еще раз
	if account.ProfileCompleted {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Info("profile already completed")
		return account.CoinBalance, nil
	}

	if err := a.accountRepo.SetProfileCompleted(ctx, tx, accountID); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to mark profile completed", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to mark profile completed: %w", op, err)
	}

	newBalance := account.CoinBalance + a.signupBonus
	if err := a.accountRepo.UpdateAccountBalance(ctx, tx, accountID, newBalance); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to update balance", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to update balance: %w", op, err)
	}

	if _, err := a.coinTxRepo.CreateTransaction(ctx, tx, accountID, a.signupBonus, models.TxKindCredit, "signup bonus", nil, nil); err != nil {
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

	logger.Info("profile activated", slog.Int64("balance", newBalance))
	return newBalance, nil
}
