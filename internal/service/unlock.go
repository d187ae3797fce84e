package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/velmark/eventa-coins/internal/config"
	"github.com/velmark/eventa-coins/internal/domain/models"
	"github.com/velmark/eventa-coins/internal/storage"
)

var (
	// ErrVendorSuspended — исполнитель заблокирован и недоступен для разблокировки
	ErrVendorSuspended = errors.New("vendor is suspended")
	// ErrUrgentUnavailable — срочный тариф недоступен: исполнитель не включил
	// panic-режим или сегодня недоступен
	ErrUrgentUnavailable = errors.New("urgent tier is not available for this vendor")
	// ErrInvalidTier — неизвестный тариф в запросе
	ErrInvalidTier = errors.New("invalid tier")
	// ErrNotUnlocked — контакты запрошены без оплаченной разблокировки
	ErrNotUnlocked = errors.New("vendor is not unlocked for this client")
	// ErrInvalidStatusChange — недопустимый переход статуса разблокировки
	ErrInvalidStatusChange = errors.New("invalid unlock status change")
)

// количество попыток записи в реестр после успешного списания
const registerAttempts = 3

// UnlockService определяет интерфейс оркестратора разблокировок.
type UnlockService interface {
	// Unlock выполняет разблокировку контактов исполнителя для клиента.
	// Возвращает запись реестра и признак того, была ли она создана этим вызовом
	// (false — повторный запрос, списания не было).
	Unlock(ctx context.Context, clientID, vendorID int64, tier string) (*models.Unlock, bool, error)
	// AdvanceStatus переводит разблокировку по цепочке unlocked -> contacted -> completed.
	AdvanceStatus(ctx context.Context, clientID, vendorID int64, status string) error
	// ContactInfo возвращает контакты исполнителя, если разблокировка оплачена.
	ContactInfo(ctx context.Context, clientID, vendorID int64) (*models.Vendor, error)
}

type unlockService struct {
	log        *slog.Logger
	pricing    config.PricingConfig
	ledger     LedgerService
	unlockRepo storage.UnlockStorage
	vendorRepo storage.VendorStorage
	notifier   Notifier
}

func NewUnlockService(log *slog.Logger, pricing config.PricingConfig, ledger LedgerService, unlockRepo storage.UnlockStorage, vendorRepo storage.VendorStorage, notifier Notifier) UnlockService {
	return &unlockService{
		log:        log,
		pricing:    pricing,
		ledger:     ledger,
		unlockRepo: unlockRepo,
		vendorRepo: vendorRepo,
		notifier:   notifier,
	}
}

// Unlock — одна логическая операция: проверка повторного запроса, расчет цены,
// списание монет и запись в реестр. Списание и запись в реестр — две отдельные
// транзакции БД: после успешного списания запись ретраится, а проигравший
// гонку двух первых запросов получает возврат и запись победителя.
func (s *unlockService) Unlock(ctx context.Context, clientID, vendorID int64, tier string) (*models.Unlock, bool, error) {
	const op = "service.UnlockService.Unlock"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("clientID", clientID),
		slog.Int64("vendorID", vendorID),
		slog.String("tier", tier),
	)
	logger.Info("starting unlock")

	if tier != models.TierStandard && tier != models.TierUrgent {
		return nil, false, fmt.Errorf("%s: %w", op, ErrInvalidTier)
	}

	// Проверка идемпотентности: повторный клик не должен списывать монеты
	existing, err := s.unlockRepo.GetUnlockByClientAndVendor(ctx, clientID, vendorID)
	if err == nil {
		logger.Info("unlock already exists, returning existing record")
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrUnlockNotFound) {
		logger.Error("failed to check existing unlock", slog.Any("error", err))
		return nil, false, fmt.Errorf("%s: failed to check existing unlock: %w", op, err)
	}

	vendor, err := s.vendorRepo.GetVendorByID(ctx, vendorID)
	if err != nil {
		logger.Error("failed to get vendor", slog.Any("error", err))
		return nil, false, fmt.Errorf("%s: failed to get vendor: %w", op, err)
	}

	// Заблокированный исполнитель отклоняется до расчета цены
	if vendor.Suspended {
		logger.Warn("vendor is suspended")
		return nil, false, fmt.Errorf("%s: %w", op, ErrVendorSuspended)
	}

	cost, amountCharged, err := s.price(vendor, tier)
	if err != nil {
		logger.Warn("pricing rejected", slog.Any("error", err))
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	description := fmt.Sprintf("unlock vendor %d (%s)", vendorID, tier)
	debitTxID, _, err := s.ledger.Debit(ctx, clientID, cost, description, &vendorID)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			logger.Warn("insufficient funds for unlock", slog.Int64("cost", cost))
		} else {
			logger.Error("debit failed", slog.Any("error", err))
		}
		return nil, false, fmt.Errorf("%s: debit failed: %w", op, err)
	}

	// Списание прошло — теперь оно источник истины. Запись в реестр ретраится,
	// окончательно потерянные списания возвращает фоновая сверка.
	var unlock *models.Unlock
	var createErr error
	for attempt := 1; attempt <= registerAttempts; attempt++ {
		unlock, createErr = s.unlockRepo.CreateUnlock(ctx, clientID, vendorID, tier, cost, amountCharged)
		if createErr == nil || errors.Is(createErr, storage.ErrDuplicateUnlock) {
			break
		}
		logger.Warn("registry write failed, retrying", slog.Int("attempt", attempt), slog.Any("error", createErr))
	}

	if errors.Is(createErr, storage.ErrDuplicateUnlock) {
		// Проигрыш гонки двух первых запросов: возвращаем монеты
		// и отдаем запись победителя как обычный повторный запрос
		logger.Warn("concurrent unlock detected, refunding debit")
		refundDesc := fmt.Sprintf("refund: duplicate unlock of vendor %d", vendorID)
		if _, refErr := s.ledger.Refund(ctx, clientID, cost, refundDesc, debitTxID); refErr != nil && !errors.Is(refErr, ErrAlreadyRefunded) {
			logger.Error("refund failed", slog.Any("error", refErr))
			return nil, false, fmt.Errorf("%s: refund failed: %w", op, refErr)
		}
		winner, getErr := s.unlockRepo.GetUnlockByClientAndVendor(ctx, clientID, vendorID)
		if getErr != nil {
			logger.Error("failed to get winning unlock", slog.Any("error", getErr))
			return nil, false, fmt.Errorf("%s: failed to get winning unlock: %w", op, getErr)
		}
		return winner, false, nil
	}

	if createErr != nil {
		// Монеты уже списаны, запись так и не удалась: не возвращаем здесь,
		// это сделает фоновая сверка после grace-периода
		logger.Error("failed to register unlock after retries", slog.Any("error", createErr))
		return nil, false, fmt.Errorf("%s: failed to register unlock: %w", op, createErr)
	}

	s.notifier.ContactUnlocked(ctx, UnlockEvent{
		ClientID:   clientID,
		VendorID:   vendorID,
		Tier:       tier,
		CoinsSpent: cost,
	})

	logger.Info("unlock completed", slog.Int64("coinsSpent", cost))
	return unlock, true, nil
}

// price вычисляет стоимость в монетах и отображаемую цену panic-режима.
// Стоимость стандартного тарифа зависит от доступности исполнителя сегодня,
// срочный тариф стоит фиксированно и доступен только при включенном
// panic-режиме у доступного исполнителя.
func (s *unlockService) price(vendor *models.Vendor, tier string) (int64, int64, error) {
	switch tier {
	case models.TierStandard:
		if vendor.AvailableToday {
			return s.pricing.StandardAvailableCost, 0, nil
		}
		return s.pricing.StandardCost, 0, nil
	case models.TierUrgent:
		if !vendor.PanicModeOptIn || !vendor.AvailableToday {
			return 0, 0, ErrUrgentUnavailable
		}
		return s.pricing.UrgentCost, vendor.PanicModePrice, nil
	default:
		return 0, 0, ErrInvalidTier
	}
}

// разрешенные переходы статусов разблокировки
var statusTransitions = map[string]string{
	models.UnlockStatusUnlocked:  models.UnlockStatusContacted,
	models.UnlockStatusContacted: models.UnlockStatusCompleted,
}

func (s *unlockService) AdvanceStatus(ctx context.Context, clientID, vendorID int64, status string) error {
	const op = "service.UnlockService.AdvanceStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("clientID", clientID), slog.Int64("vendorID", vendorID), slog.String("status", status))

	unlock, err := s.unlockRepo.GetUnlockByClientAndVendor(ctx, clientID, vendorID)
	if err != nil {
		logger.Error("failed to get unlock", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get unlock: %w", op, err)
	}

	if statusTransitions[unlock.Status] != status {
		logger.Warn("invalid status change", slog.String("current", unlock.Status))
		return fmt.Errorf("%s: %w", op, ErrInvalidStatusChange)
	}

	if err := s.unlockRepo.UpdateUnlockStatus(ctx, clientID, vendorID, status); err != nil {
		logger.Error("failed to update status", slog.Any("error", err))
		return fmt.Errorf("%s: failed to update status: %w", op, err)
	}

	logger.Info("unlock status advanced")
	return nil
}

// ContactInfo — единственный путь, по которому клиент видит контакты исполнителя.
func (s *unlockService) ContactInfo(ctx context.Context, clientID, vendorID int64) (*models.Vendor, error) {
	const op = "service.UnlockService.ContactInfo"
	logger := s.log.With(slog.String("op", op), slog.Int64("clientID", clientID), slog.Int64("vendorID", vendorID))

	if _, err := s.unlockRepo.GetUnlockByClientAndVendor(ctx, clientID, vendorID); err != nil {
		if errors.Is(err, storage.ErrUnlockNotFound) {
			logger.Warn("contact requested without unlock")
			return nil, fmt.Errorf("%s: %w", op, ErrNotUnlocked)
		}
		logger.Error("failed to check unlock", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to check unlock: %w", op, err)
	}

	vendor, err := s.vendorRepo.GetVendorByID(ctx, vendorID)
	if err != nil {
		logger.Error("failed to get vendor", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get vendor: %w", op, err)
	}
	return vendor, nil
}
