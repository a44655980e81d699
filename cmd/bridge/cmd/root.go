package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"mt5_bridge/internal/config"
	"mt5_bridge/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Relay TradingView signals to a MetaTrader 5 terminal",
	Long: `bridge receives BUY/SELL/CLOSE alerts on /webhook/tradingview, turns them
into priced market orders with stop-loss and take-profit levels, and submits
them to an MT5 terminal (through a terminal gateway) or to a paper terminal.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configuration with a console logger, then builds the
// process logger it describes.
func loadConfig() (*config.Config, *slog.Logger, io.Closer, error) {
	bootstrap := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))

	cfg, err := config.Load(bootstrap)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, logger, closer, nil
}
