package notify

import (
	"context"
	"errors"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xpwu/go-config/configs"
)

// TelegramConfig Telegram配置
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
}

// TelegramConfigValue 全局Telegram配置
var TelegramConfigValue = TelegramConfig{}

func init() {
	configs.Unmarshal(&TelegramConfigValue)
}

// Telegram 通过Telegram机器人发送HTML消息
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

// NewTelegram 创建Telegram通知渠道
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tgbot.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{bot: b, chatID: cfg.ChatID}, nil
}

// Send 发送消息
func (t *Telegram) Send(_ context.Context, msg string) error {
	m := tgbot.NewMessage(t.chatID, msg)
	m.ParseMode = tgbot.ModeHTML
	m.DisableWebPagePreview = true
	if _, err := t.bot.Send(m); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
