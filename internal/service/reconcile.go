package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/velmark/eventa-coins/internal/storage"
)

// Reconciler — фоновая сверка журнала и реестра разблокировок.
// Если монеты списаны, а запись в реестре так и не появилась (клиент отвалился
// между списанием и записью), сверка возвращает монеты после grace-периода.
type Reconciler struct {
	log         *slog.Logger
	ledger      LedgerService
	coinTxRepo  storage.CoinTransactionStorage
	interval    time.Duration
	gracePeriod time.Duration
}

func NewReconciler(log *slog.Logger, ledger LedgerService, coinTxRepo storage.CoinTransactionStorage, interval, gracePeriod time.Duration) *Reconciler {
	return &Reconciler{
		log:         log,
		ledger:      ledger,
		coinTxRepo:  coinTxRepo,
		interval:    interval,
		gracePeriod: gracePeriod,
	}
}

// Start запускает цикл сверки до отмены контекста.
func (r *Reconciler) Start(ctx context.Context) {
	const op = "service.Reconciler.Start"
	logger := r.log.With(slog.String("op", op))
	logger.Info("reconciler started", slog.Duration("interval", r.interval), slog.Duration("gracePeriod", r.gracePeriod))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				logger.Error("reconciliation pass failed", slog.Any("error", err))
			}
		}
	}
}

// RunOnce выполняет один проход сверки: находит осиротевшие списания
// старше grace-периода и возвращает монеты по каждому.
// Повторный возврат по одному списанию исключен на уровне LedgerService.Refund.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	const op = "service.Reconciler.RunOnce"
	logger := r.log.With(slog.String("op", op))

	orphaned, err := r.coinTxRepo.ListOrphanedUnlockDebits(ctx, time.Now().Add(-r.gracePeriod))
	if err != nil {
		return fmt.Errorf("%s: failed to list orphaned debits: %w", op, err)
	}
	if len(orphaned) == 0 {
		return nil
	}

	logger.Warn("orphaned unlock debits found", slog.Int("count", len(orphaned)))

	for _, debit := range orphaned {
		// в журнале списание хранится с отрицательной дельтой
		amount := -debit.Amount
		description := fmt.Sprintf("auto-refund: unlock debit %d had no registry entry", debit.ID)
		if _, err := r.ledger.Refund(ctx, debit.AccountID, amount, description, debit.ID); err != nil {
			if errors.Is(err, ErrAlreadyRefunded) {
				continue
			}
			logger.Error("failed to refund orphaned debit",
				slog.Int64("txID", debit.ID),
				slog.Int64("accountID", debit.AccountID),
				slog.Any("error", err),
			)
			continue
		}
		logger.Info("orphaned debit refunded", slog.Int64("txID", debit.ID), slog.Int64("accountID", debit.AccountID))
	}
	return nil
}
