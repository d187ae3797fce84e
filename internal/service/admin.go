package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/velmark/eventa-coins/internal/storage"
)

// AdminService — привилегированный путь изменения балансов и состояния разблокировок.
// Правила ценообразования и идемпотентности оркестратора здесь не действуют,
// но изменения балансов идут через LedgerService, поэтому инвариант
// неотрицательности и запись в журнал сохраняются.
type AdminService interface {
	// AdjustBalance изменяет баланс на delta (положительная — зачисление,
	// отрицательная — списание). Возвращает новый баланс.
	AdjustBalance(ctx context.Context, accountID int64, delta int64, reason string) (int64, error)
	// ForceUnlockStatus выставляет статус разблокировки без правил переходов.
	ForceUnlockStatus(ctx context.Context, clientID, vendorID int64, status string) error
	// SetVerification выставляет флаг верификации исполнителя.
	SetVerification(ctx context.Context, vendorID int64, verified bool) error
}

type adminService struct {
	log        *slog.Logger
	ledger     LedgerService
	unlockRepo storage.UnlockStorage
	vendorRepo storage.VendorStorage
}

func NewAdminService(log *slog.Logger, ledger LedgerService, unlockRepo storage.UnlockStorage, vendorRepo storage.VendorStorage) AdminService {
	return &adminService{
		log:        log,
		ledger:     ledger,
		unlockRepo: unlockRepo,
		vendorRepo: vendorRepo,
	}
}

func (s *adminService) AdjustBalance(ctx context.Context, accountID int64, delta int64, reason string) (int64, error) {
	const op = "service.AdminService.AdjustBalance"
	logger := s.log.With(slog.String("op", op), slog.Int64("accountID", accountID), slog.Int64("delta", delta), slog.String("reason", reason))
	logger.Info("adjusting balance")

	if delta == 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	var newBalance int64
	var err error
	if delta > 0 {
		newBalance, err = s.ledger.Credit(ctx, accountID, delta, reason)
	} else {
		// списание через общий примитив, поэтому баланс не может уйти в минус
		_, newBalance, err = s.ledger.Debit(ctx, accountID, -delta, reason, nil)
	}
	if err != nil {
		logger.Error("failed to adjust balance", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to adjust balance: %w", op, err)
	}

	logger.Info("balance adjusted", slog.Int64("newBalance", newBalance))
	return newBalance, nil
}

func (s *adminService) ForceUnlockStatus(ctx context.Context, clientID, vendorID int64, status string) error {
	const op = "service.AdminService.ForceUnlockStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("clientID", clientID), slog.Int64("vendorID", vendorID), slog.String("status", status))

	if err := s.unlockRepo.UpdateUnlockStatus(ctx, clientID, vendorID, status); err != nil {
		logger.Error("failed to force unlock status", slog.Any("error", err))
		return fmt.Errorf("%s: failed to force unlock status: %w", op, err)
	}

	logger.Info("unlock status forced")
	return nil
}

func (s *adminService) SetVerification(ctx context.Context, vendorID int64, verified bool) error {
	const op = "service.AdminService.SetVerification"
	logger := s.log.With(slog.String("op", op), slog.Int64("vendorID", vendorID), slog.Bool("verified", verified))

	if err := s.vendorRepo.SetVendorVerified(ctx, vendorID, verified); err != nil {
		logger.Error("failed to set verification", slog.Any("error", err))
		return fmt.Errorf("%s: failed to set verification: %w", op, err)
	}

	logger.Info("vendor verification updated")
	return nil
}
