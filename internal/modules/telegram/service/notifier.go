package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parity_bot/internal/modules/config"
	"parity_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier — пассивный телеграм-нотифайер: только исходящие сообщения,
// команд и кнопок нет. Без токена превращается в no-op, сервис при этом
// работает как обычно.
type Notifier struct {
	bot    *tgbot.BotAPI
	cfg    config.TelegramConfig
	chatID int64

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewNotifier(cfg *config.Config) (*Notifier, error) {
	n := &Notifier{
		cfg:      cfg.Telegram,
		chatID:   cfg.Telegram.ChatID,
		lastSent: make(map[string]time.Time),
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		logger.Info("telegram notifier disabled")
		return n, nil
	}
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	n.bot = b
	return n, nil
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.bot != nil && n.chatID != 0
}

func (n *Notifier) Send(_ context.Context, msg string) {
	if !n.Enabled() {
		return
	}
	if _, err := n.bot.Send(tgbot.NewMessage(n.chatID, msg)); err != nil {
		logger.Warn("telegram send: %v", err)
	}
}

func (n *Notifier) SendF(ctx context.Context, format string, args ...any) {
	n.Send(ctx, fmt.Sprintf(format, args...))
}

// SendService — служебные сообщения (warmup, переполнение очереди и т.п.).
func (n *Notifier) SendService(ctx context.Context, format string, args ...any) {
	n.Send(ctx, fmt.Sprintf(format, args...))
}

// SendThrottled шлёт не чаще раза в throttle_seconds на один ключ.
// Ключ — класс события ("stale_feed:BTCUSDT", "reject:bad_secret"), чтобы
// шторм однотипных ошибок не засыпал чат.
func (n *Notifier) SendThrottled(ctx context.Context, key, msg string) {
	if !n.Enabled() {
		return
	}
	throttle := time.Duration(n.cfg.ThrottleSeconds) * time.Second
	if throttle <= 0 {
		n.Send(ctx, msg)
		return
	}

	now := time.Now()
	n.mu.Lock()
	last, seen := n.lastSent[key]
	if seen && now.Sub(last) < throttle {
		n.mu.Unlock()
		return
	}
	n.lastSent[key] = now
	n.mu.Unlock()

	n.Send(ctx, msg)
}

func (n *Notifier) SendThrottledF(ctx context.Context, key, format string, args ...any) {
	n.SendThrottled(ctx, key, fmt.Sprintf(format, args...))
}
