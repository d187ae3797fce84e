package service

import (
	"context"
	"log/slog"
)

// UnlockEvent — событие успешной разблокировки для слоя уведомлений/UI.
type UnlockEvent struct {
	ClientID   int64
	VendorID   int64
	Tier       string
	CoinsSpent int64
}

// Notifier — порт для слоя уведомлений. Само уведомление (push, email, UI)
// живет снаружи этого сервиса.
type Notifier interface {
	ContactUnlocked(ctx context.Context, event UnlockEvent)
}

type logNotifier struct {
	log *slog.Logger
}

// NewLogNotifier возвращает Notifier, который пишет событие в лог.
func NewLogNotifier(log *slog.Logger) Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) ContactUnlocked(ctx context.Context, event UnlockEvent) {
	n.log.Info("contact unlocked",
		slog.Int64("clientID", event.ClientID),
		slog.Int64("vendorID", event.VendorID),
		slog.String("tier", event.Tier),
		slog.Int64("coinsSpent", event.CoinsSpent),
	)
}
