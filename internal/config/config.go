package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Режимы терминала
const (
	ModePaper   = "paper"
	ModeGateway = "gateway"
)

// Config содержит конфигурацию бриджа и монитора из переменных окружения
type Config struct {
	Port string

	// Торговые параметры по умолчанию
	Symbol       string
	LotSize      decimal.Decimal
	MagicNumber  int64
	SLPercent    decimal.Decimal
	TPPercent    decimal.Decimal
	MaxDeviation int

	// Терминал
	TerminalMode         string
	MT5Login             int64
	MT5Password          string
	MT5Server            string
	MT5Path              string
	GatewayURL           string
	GatewayToken         string
	PaperDBPath          string
	PaperInstrumentsFile string
	PaperBalance         decimal.Decimal
	SessionTimeout       time.Duration

	// Безопасность API
	JWTSecret         string
	JWTTTL            time.Duration
	APIKeyHash        string
	WebhookPassphrase string
	WebhookRatePerMin int

	// Уведомления
	TelegramToken  string
	TelegramChatID int64

	// Логирование
	LogLevel slog.Level
	LogFile  string

	// Мониторинг
	BridgeURL       string
	BridgeToken     string
	MonitorInterval time.Duration
}

// Load загружает .env (если есть) и переменные окружения. Некорректные
// значения заменяются значениями по умолчанию с предупреждением
func Load(logger *slog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", slog.Any("error", err))
	}

	e := env{logger: logger}

	cfg := &Config{
		Port:         e.str("BRIDGE_PORT", "5000"),
		Symbol:       strings.ToUpper(e.str("TRADING_SYMBOL", "EURUSD")),
		LotSize:      e.decimal("LOT_SIZE", decimal.RequireFromString("0.01")),
		MagicNumber:  e.int64("MAGIC_NUMBER", 123456),
		SLPercent:    e.decimal("SL_PERCENT", decimal.NewFromFloat(1.0)),
		TPPercent:    e.decimal("TP_PERCENT", decimal.NewFromFloat(2.0)),
		MaxDeviation: int(e.int64("MAX_DEVIATION", 10)),

		TerminalMode:         strings.ToLower(e.str("TERMINAL_MODE", ModePaper)),
		MT5Login:             e.int64("MT5_LOGIN", 0),
		MT5Password:          os.Getenv("MT5_PASSWORD"),
		MT5Server:            os.Getenv("MT5_SERVER"),
		MT5Path:              e.str("MT5_PATH", "/opt/mt5"),
		GatewayURL:           e.str("GATEWAY_URL", "http://localhost:8228"),
		GatewayToken:         os.Getenv("GATEWAY_TOKEN"),
		PaperDBPath:          e.str("PAPER_DB_PATH", "./paper.db"),
		PaperInstrumentsFile: os.Getenv("PAPER_INSTRUMENTS_FILE"),
		PaperBalance:         e.decimal("PAPER_BALANCE", decimal.NewFromInt(10000)),
		SessionTimeout:       e.duration("SESSION_TIMEOUT", 10*time.Second),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTTTL:            e.duration("JWT_TTL", 24*time.Hour),
		APIKeyHash:        os.Getenv("API_KEY_HASH"),
		WebhookPassphrase: os.Getenv("WEBHOOK_PASSPHRASE"),
		WebhookRatePerMin: int(e.int64("WEBHOOK_RATE_PER_MIN", 60)),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: e.int64("TELEGRAM_CHAT_ID", 0),

		LogLevel: e.level("LOG_LEVEL", slog.LevelInfo),
		LogFile:  e.str("LOG_FILE", "logs/mt5_bridge.log"),

		BridgeURL:       strings.TrimRight(e.str("BRIDGE_URL", "http://localhost:5000"), "/"),
		BridgeToken:     os.Getenv("BRIDGE_TOKEN"),
		MonitorInterval: e.duration("MONITOR_INTERVAL", 60*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.TerminalMode == ModePaper {
		logger.Info("🔍 Paper terminal - no real trades", slog.String("db", cfg.PaperDBPath))
	} else {
		logger.Warn("⚠️  Gateway terminal - REAL TRADES WILL BE EXECUTED!", slog.String("gateway", cfg.GatewayURL))
	}

	if cfg.JWTSecret == "" {
		logger.Warn("⚠️  JWT_SECRET not set, read endpoints are unauthenticated")
	}

	return cfg, nil
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	var errs []error

	switch c.TerminalMode {
	case ModePaper:
	case ModeGateway:
		if c.GatewayURL == "" {
			errs = append(errs, errors.New("GATEWAY_URL is required in gateway mode"))
		}
		if c.MT5Login == 0 {
			errs = append(errs, errors.New("MT5_LOGIN is required in gateway mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("TERMINAL_MODE must be %q or %q, got %q", ModePaper, ModeGateway, c.TerminalMode))
	}

	if !c.LotSize.IsPositive() {
		errs = append(errs, errors.New("LOT_SIZE must be positive"))
	}
	if c.SLPercent.IsNegative() || c.TPPercent.IsNegative() {
		errs = append(errs, errors.New("SL_PERCENT and TP_PERCENT must not be negative"))
	}
	if c.APIKeyHash != "" && c.JWTSecret == "" {
		errs = append(errs, errors.New("API_KEY_HASH requires JWT_SECRET"))
	}

	return errors.Join(errs...)
}

// NotificationsEnabled сообщает, настроены ли уведомления в Telegram
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

type env struct {
	logger *slog.Logger
}

func (e env) str(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (e env) warn(key, value string, fallback any) {
	e.logger.Warn("⚠️  Invalid config value, using default",
		slog.String("key", key),
		slog.String("value", value),
		slog.Any("default", fallback))
}

func (e env) int64(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.warn(key, v, fallback)
		return fallback
	}
	return n
}

func (e env) decimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		e.warn(key, v, fallback.String())
		return fallback
	}
	return d
}

// duration принимает Go duration ("10s") или число секунд
func (e env) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.warn(key, v, fallback.String())
		return fallback
	}
	return d
}

func (e env) level(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
		e.warn(key, v, fallback.String())
		return fallback
	}
	return lvl
}
