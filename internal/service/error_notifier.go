// Package service holds cross-cutting services shared by the relay's components.
package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"go.uber.org/zap"

	"meta-relay/internal/config"
	"meta-relay/internal/utils"
)

const notifyDebounce = 1 * time.Hour

type ErrorType string

const (
	ErrorTypeDatabase     ErrorType = "database"
	ErrorTypeRedis        ErrorType = "redis"
	ErrorTypeProviderAuth ErrorType = "provider_auth"
	ErrorTypeSystem       ErrorType = "system"
)

// messageSender is the part of *gotgbot.Bot the notifier uses.
type messageSender interface {
	SendMessage(chatId int64, text string, opts *gotgbot.SendMessageOpts) (*gotgbot.Message, error)
}

// ErrorNotifier forwards critical errors to operators on Telegram,
// at most once per error type per hour.
type ErrorNotifier struct {
	bot          messageSender
	chatIDs      []int64
	logger       *zap.Logger
	notifiedErrs map[string]time.Time
	mutex        sync.Mutex
	now          func() time.Time
}

// NewAlertBot creates the Telegram client used for alerts, sharing the proxy-aware http client.
func NewAlertBot(cfg config.AlertsConfig, httpClient *http.Client) (*gotgbot.Bot, error) {
	opts := &gotgbot.BotOpts{
		DisableTokenCheck: true,
	}
	if httpClient != nil {
		opts.BotClient = &gotgbot.BaseBotClient{
			Client: *httpClient,
		}
	}

	b, err := gotgbot.NewBot(cfg.TelegramToken, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert bot: %w", err)
	}
	return b, nil
}

func NewErrorNotifier(bot messageSender, cfg config.AlertsConfig, logger *zap.Logger) *ErrorNotifier {
	return &ErrorNotifier{
		bot:          bot,
		chatIDs:      cfg.ChatIDs,
		logger:       logger,
		notifiedErrs: make(map[string]time.Time),
		now:          time.Now,
	}
}

func (en *ErrorNotifier) NotifyCriticalError(ctx context.Context, errType ErrorType, err error, details string) {
	en.mutex.Lock()
	defer en.mutex.Unlock()

	key := string(errType)
	now := en.now()
	lastNotified, exists := en.notifiedErrs[key]

	if exists && now.Sub(lastNotified) < notifyDebounce {
		en.logger.Debug("Error notification skipped due to debounce",
			zap.String("error_type", key),
			zap.Time("last_notified", lastNotified))
		return
	}

	en.notifiedErrs[key] = now

	message := fmt.Sprintf(
		"*Meta Relay Alert*\n\n"+
			"Type: `%s`\n"+
			"Error: %s\n"+
			"Details: %s\n"+
			"Time: %s",
		string(errType),
		utils.EscapeMarkdown(fmt.Sprintf("%v", err)),
		utils.EscapeMarkdown(details),
		now.Format("2006-01-02 15:04:05"),
	)

	for _, chatID := range en.chatIDs {
		if ctx.Err() != nil {
			break
		}
		_, sendErr := en.bot.SendMessage(chatID, message, &gotgbot.SendMessageOpts{
			ParseMode: "Markdown",
		})
		if sendErr != nil {
			en.logger.Warn("Failed to send error notification",
				zap.Int64("chat_id", chatID),
				zap.Error(sendErr))
		}
	}

	en.logger.Error("Critical error notified to operators",
		zap.String("error_type", key),
		zap.Error(err))
}
