package notify

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const queueSize = 64

// Telegram sends alerts to a single chat. Messages are queued and delivered
// by one goroutine so callers never wait on the Bot API.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan string
	done   chan struct{}
}

// NewTelegram authorizes the bot and starts the delivery loop.
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, tgbotapi.APIEndpoint, chatID, logger)
}

// NewTelegramWithEndpoint is NewTelegram against a custom Bot API endpoint
// (format "https://host/bot%s/%s").
func NewTelegramWithEndpoint(token, endpoint string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	client := &http.Client{Timeout: 15 * time.Second}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("authorize telegram bot: %w", err)
	}

	logger.Info("✅ Bot authorized", slog.String("username", bot.Self.UserName))

	t := &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: logger,
		queue:  make(chan string, queueSize),
		done:   make(chan struct{}),
	}
	go t.run()

	return t, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.logger.Warn("Telegram notifier closed, message dropped")
		return
	}

	select {
	case t.queue <- msg:
	default:
		t.logger.Warn("⚠️  Telegram queue full, message dropped")
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Close flushes queued messages and stops the delivery loop.
func (t *Telegram) Close() error {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	t.mu.Unlock()

	<-t.done
	return nil
}

func (t *Telegram) run() {
	defer close(t.done)

	for msg := range t.queue {
		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, msg)); err != nil {
			t.logger.Error("Failed to send telegram message", slog.Any("error", err))
		}
	}
}
