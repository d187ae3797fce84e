package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/velmark/eventa-coins/internal/app"
	"github.com/velmark/eventa-coins/internal/app/handlers"
	"github.com/velmark/eventa-coins/internal/auth/jwtmiddleware"
	"github.com/velmark/eventa-coins/internal/config"
	"github.com/velmark/eventa-coins/internal/lib/logger"
	"github.com/velmark/eventa-coins/internal/lib/logger/handlers/urllog"
	"github.com/velmark/eventa-coins/internal/service"
	"github.com/velmark/eventa-coins/internal/storage"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	accountRepo := storage.NewAccountRepository(application.DB)
	coinTxRepo := storage.NewCoinTransactionRepository(application.DB)
	unlockRepo := storage.NewUnlockRepository(application.DB)
	vendorRepo := storage.NewVendorRepository(application.DB)

	ledgerService := service.NewLedgerService(application.Logger, application.DB, accountRepo, coinTxRepo)
	authService := service.NewAuthService(application.Logger, application.DB, accountRepo, coinTxRepo, cfg.Pricing.SignupBonus, time.Duration(application.Config.JWT.TokenTTL)*time.Minute)
	notifier := service.NewLogNotifier(application.Logger)
	unlockService := service.NewUnlockService(application.Logger, cfg.Pricing, ledgerService, unlockRepo, vendorRepo, notifier)
	walletService := service.NewWalletService(application.Logger, ledgerService, accountRepo, coinTxRepo, unlockRepo)
	adminService := service.NewAdminService(application.Logger, ledgerService, unlockRepo, vendorRepo)

	// эндпоинт для аутентификации
	router.Post("/api/auth", handlers.AuthHandler(application.Logger, authService))

	router.Group(func(r chi.Router) {
		jwtMW := jwtmiddleware.NewJWTMiddleware()
		r.Use(jwtMW)
		// активация профиля (зачисляет стартовый бонус один раз)
		r.Post("/api/profile/activate", handlers.ActivateProfileHandler(application.Logger, authService))
		// эндпоинт кошелька: баланс, история операций, разблокировки
		r.Get("/api/wallet", handlers.WalletHandler(application.Logger, walletService))
		// пополнение монет после подтвержденной оплаты
		r.Post("/api/wallet/topup", handlers.TopUpHandler(application.Logger, walletService))
		// разблокировка контактов исполнителя
		r.Post("/api/unlock", handlers.UnlockHandler(application.Logger, unlockService))
		// смена статуса разблокировки (contacted, completed)
		r.Post("/api/unlock/status", handlers.UnlockStatusHandler(application.Logger, unlockService))
		// контакты исполнителя (только после оплаченной разблокировки)
		r.Get("/api/vendors/{vendorID}/contact", handlers.VendorContactHandler(application.Logger, unlockService))

		// административные операции
		r.Group(func(ar chi.Router) {
			ar.Use(jwtmiddleware.RequireAdmin)
			ar.Post("/api/admin/balance", handlers.AdjustBalanceHandler(application.Logger, adminService))
			ar.Post("/api/admin/unlock-status", handlers.ForceUnlockStatusHandler(application.Logger, adminService))
			ar.Post("/api/admin/verification", handlers.VerificationHandler(application.Logger, adminService))
		})
	})

	// фоновая сверка осиротевших списаний
	reconcilerCtx, cancelReconciler := context.WithCancel(context.Background())
	defer cancelReconciler()
	if cfg.Reconciler.Enabled {
		reconciler := service.NewReconciler(application.Logger, ledgerService, coinTxRepo, cfg.Reconciler.Interval, cfg.Reconciler.GracePeriod)
		go reconciler.Start(reconcilerCtx)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	cancelReconciler()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
