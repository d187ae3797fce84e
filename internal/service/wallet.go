package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/velmark/eventa-coins/internal/domain/models"
	"github.com/velmark/eventa-coins/internal/storage"
)

// ErrPaymentNotConfirmed — пополнение без подтверждения оплаты от платежного шлюза
var ErrPaymentNotConfirmed = errors.New("payment is not confirmed")

// WalletService определяет интерфейс для работы с кошельком пользователя.
type WalletService interface {
	GetWallet(ctx context.Context, accountID int64) (*WalletResponse, error)
	// TopUp зачисляет купленные монеты. Подлинность платежа сервис не проверяет:
	// он доверяет признаку confirmed от вызывающего слоя (шлюз — внешняя система).
	TopUp(ctx context.Context, accountID int64, amount int64, paymentRef string, confirmed bool) (int64, error)
}

// walletService — конкретная реализация WalletService.
type walletService struct {
	log         *slog.Logger
	ledger      LedgerService
	accountRepo storage.AccountStorage
	coinTxRepo  storage.CoinTransactionStorage
	unlockRepo  storage.UnlockStorage
}

func NewWalletService(log *slog.Logger, ledger LedgerService, accountRepo storage.AccountStorage, coinTxRepo storage.CoinTransactionStorage, unlockRepo storage.UnlockStorage) WalletService {
	return &walletService{
		log:         log,
		ledger:      ledger,
		accountRepo: accountRepo,
		coinTxRepo:  coinTxRepo,
		unlockRepo:  unlockRepo,
	}
}

// WalletResponse — структура, возвращаемая сервисом, аналогична той, что в транспортном слое
type WalletResponse struct {
	Coins   int64            `json:"coins"`
	History []HistoryEntry   `json:"history"`
	Unlocks []*models.Unlock `json:"unlocks"`
}

type HistoryEntry struct {
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// GetWallet собирает баланс, историю операций и список разблокировок пользователя.
func (s *walletService) GetWallet(ctx context.Context, accountID int64) (*WalletResponse, error) {
	const op = "service.WalletService.GetWallet"
	s.log.Info("getting wallet", slog.String("op", op), slog.Int64("accountID", accountID))

	account, err := s.accountRepo.GetAccountByID(ctx, accountID)
	if err != nil {
		s.log.Error("failed to get account by id", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	transactions, err := s.coinTxRepo.GetTransactionsByAccountID(ctx, accountID)
	if err != nil {
		s.log.Error("failed to get coin transactions", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get coin transactions: %w", err)
	}

	var history []HistoryEntry
	for _, tx := range transactions {
		history = append(history, HistoryEntry{
			Amount:      tx.Amount,
			Kind:        tx.Kind,
			Description: tx.Description,
		})
	}

	unlocks, err := s.unlockRepo.GetUnlocksByClientID(ctx, accountID)
	if err != nil {
		s.log.Error("failed to get unlocks", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get unlocks: %w", err)
	}

	resp := &WalletResponse{
		Coins:   account.CoinBalance,
		History: history,
		Unlocks: unlocks,
	}
	return resp, nil
}

// TopUp зачисляет монеты после подтвержденной оплаты.
func (s *walletService) TopUp(ctx context.Context, accountID int64, amount int64, paymentRef string, confirmed bool) (int64, error) {
	const op = "service.WalletService.TopUp"
	logger := s.log.With(slog.String("op", op), slog.Int64("accountID", accountID), slog.Int64("amount", amount), slog.String("paymentRef", paymentRef))

	if !confirmed {
		logger.Warn("top-up without payment confirmation")
		return 0, fmt.Errorf("%s: %w", op, ErrPaymentNotConfirmed)
	}

	newBalance, err := s.ledger.Credit(ctx, accountID, amount, fmt.Sprintf("top-up %s", paymentRef))
	if err != nil {
		logger.Error("failed to credit top-up", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to credit: %w", op, err)
	}

	logger.Info("top-up completed", slog.Int64("newBalance", newBalance))
	return newBalance, nil
}
