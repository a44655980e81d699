package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mt5_bridge/internal/api"
	"mt5_bridge/internal/auth"
	"mt5_bridge/internal/config"
	"mt5_bridge/internal/events"
	"mt5_bridge/internal/notify"
	"mt5_bridge/internal/storage"
	"mt5_bridge/internal/trading"
	"mt5_bridge/pkg/services/mt5gateway"
	"mt5_bridge/pkg/services/paper"
)

const reconnectInterval = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP bridge",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.Info("=== MT5 Trading Bridge ===")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, cleanup, err := openSession(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open terminal session", slog.Any("error", err))
		return err
	}
	defer cleanup()

	exec := trading.NewExecutor(session, trading.ExecParams{
		MagicNumber:  cfg.MagicNumber,
		MaxDeviation: cfg.MaxDeviation,
	}, logger)

	dispatcher := trading.NewDispatcher(exec, trading.Defaults{
		Instrument:        cfg.Symbol,
		Volume:            cfg.LotSize,
		StopLossPercent:   cfg.SLPercent,
		TakeProfitPercent: cfg.TPPercent,
	}, logger)

	notifier := newNotifier(cfg, logger)
	if c, ok := notifier.(interface{ Close() error }); ok {
		defer c.Close()
	}

	authService := auth.NewService(cfg.JWTSecret, cfg.JWTTTL, cfg.APIKeyHash)

	handler := api.New(session, dispatcher, authService, events.NewHub(), notifier, api.Options{
		Passphrase:        cfg.WebhookPassphrase,
		SessionTimeout:    cfg.SessionTimeout,
		WebhookRatePerMin: cfg.WebhookRatePerMin,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.SetupRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SessionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("🚀 Server starting...", slog.String("port", cfg.Port), slog.String("terminal", cfg.TerminalMode))
		logger.Info(fmt.Sprintf("📡 Webhook at http://localhost:%s/webhook/tradingview", cfg.Port))
		logger.Info(fmt.Sprintf("🏥 Health check at http://localhost:%s/health", cfg.Port))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server failed to start", slog.Any("error", err))
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("✅ Server stopped")

	return nil
}

// openSession builds the terminal session selected by TERMINAL_MODE.
func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (trading.Session, func(), error) {
	if cfg.TerminalMode == config.ModeGateway {
		client := mt5gateway.NewClient(mt5gateway.Config{
			BaseURL:  cfg.GatewayURL,
			Token:    cfg.GatewayToken,
			Login:    cfg.MT5Login,
			Password: cfg.MT5Password,
			Server:   cfg.MT5Server,
			Path:     cfg.MT5Path,
		}, logger)

		initCtx, cancel := context.WithTimeout(ctx, cfg.SessionTimeout)
		if err := client.Initialize(initCtx); err != nil {
			logger.Error("❌ MT5 initialization failed, retrying in background", slog.Any("error", err))
		}
		cancel()

		go client.KeepAlive(ctx, reconnectInterval)

		return client, func() {}, nil
	}

	store, err := storage.New(cfg.PaperDBPath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open paper storage: %w", err)
	}

	file := paper.DefaultFile()
	if cfg.PaperInstrumentsFile != "" {
		if file, err = paper.LoadFile(cfg.PaperInstrumentsFile); err != nil {
			store.Close()
			return nil, nil, err
		}
	}

	term, err := paper.New(ctx, store, file, cfg.PaperBalance, logger)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("start paper terminal: %w", err)
	}

	return term, func() { store.Close() }, nil
}

func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if !cfg.NotificationsEnabled() {
		return notify.NewLog(logger)
	}

	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		logger.Error("Failed to initialize Telegram, notifications go to the log", slog.Any("error", err))
		return notify.NewLog(logger)
	}

	return tg
}
