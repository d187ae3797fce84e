package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/velmark/eventa-coins/internal/service"
	"github.com/velmark/eventa-coins/internal/storage"
)

// AdjustBalanceRequest представляет входной JSON для ручной корректировки баланса.
type AdjustBalanceRequest struct {
	AccountID int64  `json:"accountId" validate:"required,gt=0"`
	Delta     int64  `json:"delta" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

// AdjustBalanceResponse представляет ответ с новым балансом.
type AdjustBalanceResponse struct {
	Coins int64 `json:"coins"`
}

// AdjustBalanceHandler обрабатывает запрос POST /api/admin/balance.
func AdjustBalanceHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdjustBalanceHandler"
		logger := log.With(slog.String("op", op))

		var req AdjustBalanceRequest
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

		balance, err := adminService.AdjustBalance(r.Context(), req.AccountID, req.Delta, req.Reason)
		if err != nil {
			logger.Error("failed to adjust balance", slog.Any("error", err))
			switch {
			case errors.Is(err, service.ErrInsufficientFunds):
				http.Error(w, "insufficient funds", http.StatusBadRequest)
			case errors.Is(err, storage.ErrAccountNotFound):
				http.Error(w, err.Error(), http.StatusNotFound)
			default:
				http.Error(w, err.Error(), http.StatusBadRequest)
			}
			return
		}

		resp := AdjustBalanceResponse{Coins: balance}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}
}

// ForceUnlockStatusRequest представляет входной JSON для принудительной смены статуса.
type ForceUnlockStatusRequest struct {
	ClientID int64  `json:"clientId" validate:"required,gt=0"`
	VendorID int64  `json:"vendorId" validate:"required,gt=0"`
	Status   string `json:"status" validate:"required,oneof=unlocked contacted completed"`
}

// ForceUnlockStatusHandler обрабатывает запрос POST /api/admin/unlock-status.
func ForceUnlockStatusHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ForceUnlockStatusHandler"
		logger := log.With(slog.String("op", op))

		var req ForceUnlockStatusRequest
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

		if err := adminService.ForceUnlockStatus(r.Context(), req.ClientID, req.VendorID, req.Status); err != nil {
			logger.Error("failed to force unlock status", slog.Any("error", err))
			if errors.Is(err, storage.ErrUnlockNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(UnlockStatusResponse{Message: "Unlock status updated"}); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}
}

// VerificationRequest представляет входной JSON для смены флага верификации.
type VerificationRequest struct {
	VendorID int64 `json:"vendorId" validate:"required,gt=0"`
	Verified bool  `json:"verified"`
}

// VerificationResponse представляет ответ при успешной смене флага.
type VerificationResponse struct {
	Message string `json:"message"`
}

// VerificationHandler обрабатывает запрос POST /api/admin/verification.
func VerificationHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.VerificationHandler"
		logger := log.With(slog.String("op", op))

		var req VerificationRequest
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

		if err := adminService.SetVerification(r.Context(), req.VendorID, req.Verified); err != nil {
			logger.Error("failed to set verification", slog.Any("error", err))
			if errors.Is(err, storage.ErrVendorNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(VerificationResponse{Message: "Vendor verification updated"}); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}
}
