package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"mt5_bridge/internal/config"
	"mt5_bridge/internal/logging"
	"mt5_bridge/internal/monitor"
	"mt5_bridge/internal/notify"
)

func main() {
	os.Exit(run())
}

func run() int {
	bootstrap := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))

	cfg, err := config.Load(bootstrap)
	if err != nil {
		bootstrap.Error("Failed to load config", slog.Any("error", err))
		return 1
	}

	url := flag.String("url", cfg.BridgeURL, "MT5 Bridge URL")
	interval := flag.Duration("interval", cfg.MonitorInterval, "Check interval")
	once := flag.Bool("once", false, "Run one check and exit")
	token := flag.String("token", cfg.BridgeToken, "Bearer token for the protected endpoints")
	flag.Parse()

	logger, closer, err := logging.New(cfg.LogLevel, "logs/monitor.log")
	if err != nil {
		bootstrap.Error("Failed to open log file", slog.Any("error", err))
		return 1
	}
	defer closer.Close()

	var notifier notify.Notifier = notify.NewLog(logger)
	if cfg.NotificationsEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.Error("Failed to initialize Telegram, alerts go to the log", slog.Any("error", err))
		} else {
			defer tg.Close()
			notifier = tg
		}
	}

	m := monitor.New(*url, *token, monitor.DefaultThresholds(), notifier, logger)

	if *once {
		return checkOnce(m)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Run(ctx, *interval); err != nil {
		logger.Error("Monitoring stopped", slog.Any("error", err))
		return 1
	}

	logger.Info("🛑 Monitoring stopped by user")
	return 0
}

// checkOnce prints one report and its alerts. The exit code is 1 when any
// alert fired.
func checkOnce(m *monitor.Monitor) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := m.Check(ctx)

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))

	alerts := m.Alerts(report)
	if len(alerts) == 0 {
		return 0
	}

	fmt.Println("\nALERTS:")
	for _, alert := range alerts {
		fmt.Printf("  - %s\n", alert)
	}
	return 1
}
