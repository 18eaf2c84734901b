package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const (
	updateTimeoutSec = 30

	// Telegram allows roughly 30 outgoing messages per second bot-wide.
	sendRatePerSec = 25
	sendBurst      = 5
)

// TelegramBot runs the long-polling loop and renders engine replies.
type TelegramBot struct {
	api     *tgbotapi.BotAPI
	engine  *Engine
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewTelegramBot authenticates against the Bot API.
func NewTelegramBot(token string, engine *Engine, logger *slog.Logger) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)
	return &TelegramBot{
		api:     api,
		engine:  engine,
		limiter: rate.NewLimiter(rate.Limit(sendRatePerSec), sendBurst),
		logger:  logger,
	}, nil
}

// Run polls for updates until the context is cancelled. Updates are handled
// sequentially, so per-session state transitions never race.
func (b *TelegramBot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = updateTimeoutSec
	updates := b.api.GetUpdatesChan(cfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			b.handleUpdate(ctx, update.Message)
		}
	}
}

func (b *TelegramBot) handleUpdate(ctx context.Context, msg *tgbotapi.Message) {
	started := time.Now()
	replies := b.engine.HandleMessage(ctx, msg.Chat.ID, msg.Text)
	for _, reply := range replies {
		if err := b.send(ctx, msg.Chat.ID, reply); err != nil {
			b.logger.Error("failed to send reply", "chat_id", msg.Chat.ID, "error", err)
			return
		}
	}
	b.logger.Debug("handled message",
		"chat_id", msg.Chat.ID,
		"replies", len(replies),
		"took", time.Since(started))
}

func (b *TelegramBot) send(ctx context.Context, chatID int64, reply Reply) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	if reply.ImageURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(reply.ImageURL))
		photo.Caption = reply.Text
		if reply.Menu != nil {
			photo.ReplyMarkup = keyboard(reply.Menu)
		}
		if _, err := b.api.Send(photo); err != nil {
			// The remote image may be gone; fall back to plain text so the
			// reply itself still arrives.
			b.logger.Warn("photo send failed, falling back to text",
				"chat_id", chatID, "image_url", reply.ImageURL, "error", err)
			return b.sendText(chatID, reply)
		}
		return nil
	}
	return b.sendText(chatID, reply)
}

func (b *TelegramBot) sendText(chatID int64, reply Reply) error {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if reply.Menu != nil {
		msg.ReplyMarkup = keyboard(reply.Menu)
	}
	_, err := b.api.Send(msg)
	return err
}

// keyboard renders a Menu as a persistent reply keyboard.
func keyboard(menu *Menu) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(menu.Rows))
	for _, row := range menu.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}
