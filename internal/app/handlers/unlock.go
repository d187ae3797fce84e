package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/velmark/eventa-coins/internal/auth/jwtmiddleware"
	"github.com/velmark/eventa-coins/internal/domain/models"
	"github.com/velmark/eventa-coins/internal/service"
	"github.com/velmark/eventa-coins/internal/storage"
)

// UnlockRequest представляет входной JSON для разблокировки контактов.
type UnlockRequest struct {
	VendorID int64  `json:"vendorId" validate:"required,gt=0"`
	Tier     string `json:"tier" validate:"required,oneof=standard urgent"`
}

// UnlockResponse представляет ответ с записью разблокировки.
// AlreadyUnlocked=true означает повторный запрос: монеты не списывались.
type UnlockResponse struct {
	Unlock          *models.Unlock `json:"unlock"`
	AlreadyUnlocked bool           `json:"alreadyUnlocked"`
}

// UnlockHandler обрабатывает запрос POST /api/unlock.
func UnlockHandler(log *slog.Logger, unlockService service.UnlockService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UnlockHandler"
		logger := log.With(slog.String("op", op))

		var req UnlockRequest
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

		// Извлекаем userID из контекста (установленный JWT middleware)
		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		unlock, created, err := unlockService.Unlock(r.Context(), userID, req.VendorID, req.Tier)
		if err != nil {
			logger.Error("failed to unlock", slog.Any("error", err))
			switch {
			case errors.Is(err, service.ErrInsufficientFunds):
				// пользователю нужно пополнить баланс
				http.Error(w, "insufficient funds, top up required", http.StatusPaymentRequired)
			case errors.Is(err, service.ErrVendorSuspended), errors.Is(err, service.ErrUrgentUnavailable), errors.Is(err, service.ErrInvalidTier):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, storage.ErrVendorNotFound), errors.Is(err, storage.ErrAccountNotFound):
				http.Error(w, err.Error(), http.StatusNotFound)
			default:
				http.Error(w, "try again later", http.StatusInternalServerError)
			}
			return
		}

		resp := UnlockResponse{Unlock: unlock, AlreadyUnlocked: !created}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}
}

// UnlockStatusRequest представляет входной JSON для смены статуса разблокировки.
type UnlockStatusRequest struct {
	VendorID int64  `json:"vendorId" validate:"required,gt=0"`
	Status   string `json:"status" validate:"required,oneof=contacted completed"`
}

// UnlockStatusResponse представляет ответ при успешной смене статуса.
type UnlockStatusResponse struct {
	Message string `json:"message"`
}

// UnlockStatusHandler обрабатывает запрос POST /api/unlock/status.
func UnlockStatusHandler(log *slog.Logger, unlockService service.UnlockService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UnlockStatusHandler"
		logger := log.With(slog.String("op", op))

		var req UnlockStatusRequest
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

		if err := unlockService.AdvanceStatus(r.Context(), userID, req.VendorID, req.Status); err != nil {
			logger.Error("failed to advance status", slog.Any("error", err))
			if errors.Is(err, storage.ErrUnlockNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := UnlockStatusResponse{Message: "Unlock status updated"}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}
}

// VendorContactResponse — контакты исполнителя, видимые после оплаченной разблокировки.
type VendorContactResponse struct {
	VendorID int64  `json:"vendorId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// VendorContactHandler обрабатывает запрос GET /api/vendors/{vendorID}/contact
func VendorContactHandler(log *slog.Logger, unlockService service.UnlockService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.VendorContactHandler"
		logger := log.With(slog.String("op", op))

		// Извлекаем идентификатор исполнителя из URL
		vendorIDStr := chi.URLParam(r, "vendorID")
		vendorID, err := strconv.ParseInt(vendorIDStr, 10, 64)
		if err != nil || vendorID <= 0 {
			logger.Error("invalid vendorID parameter", slog.String("vendorID", vendorIDStr))
			http.Error(w, "invalid vendor id", http.StatusBadRequest)
			return
		}

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		vendor, err := unlockService.ContactInfo(r.Context(), userID, vendorID)
		if err != nil {
			logger.Error("failed to get contact info", slog.Any("error", err))
			switch {
			case errors.Is(err, service.ErrNotUnlocked):
				http.Error(w, "vendor is not unlocked", http.StatusForbidden)
			case errors.Is(err, storage.ErrVendorNotFound):
				http.Error(w, err.Error(), http.StatusNotFound)
			default:
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		resp := VendorContactResponse{
			VendorID: vendor.ID,
			Name:     vendor.Name,
			Email:    vendor.ContactEmail,
			Phone:    vendor.ContactPhone,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}
}
