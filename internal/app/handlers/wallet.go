package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/velmark/eventa-coins/internal/auth/jwtmiddleware"
	"github.com/velmark/eventa-coins/internal/service"
)

// WalletHandler обрабатывает запрос GET /api/wallet.
func WalletHandler(log *slog.Logger, walletService service.WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.WalletHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		resp, err := walletService.GetWallet(r.Context(), userID)
		if err != nil {
			logger.Error("failed to get wallet", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}
}

// TopUpRequest представляет входной JSON для пополнения после оплаты.
// Подлинность платежа здесь не проверяется: шлюз — внешняя система,
// сервис доверяет признаку confirmed от вызывающего слоя.
type TopUpRequest struct {
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	PaymentRef string `json:"paymentRef" validate:"required"`
	Confirmed  bool   `json:"confirmed"`
}

// TopUpResponse представляет ответ при успешном пополнении.
type TopUpResponse struct {
	Coins int64 `json:"coins"`
}

// TopUpHandler обрабатывает запрос POST /api/wallet/topup.
func TopUpHandler(log *slog.Logger, walletService service.WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TopUpHandler"
		logger := log.With(slog.String("op", op))

		var req TopUpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		balance, err := walletService.TopUp(r.Context(), userID, req.Amount, req.PaymentRef, req.Confirmed)
		if err != nil {
			logger.Error("failed to top up", slog.Any("error", err))
			if errors.Is(err, service.ErrPaymentNotConfirmed) {
				http.Error(w, "payment is not confirmed", http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := TopUpResponse{Coins: balance}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}
}
