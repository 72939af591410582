package telegram

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/mailbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultPollTimeout = 10 * time.Second

// allowedUpdates limits Telegram to the update kinds the bot routes. Edits,
// callbacks and chat member changes are never requested.
var allowedUpdates = []string{"message"}

// PollTimeout returns the effective long-polling timeout for cfg.
func PollTimeout(cfg coreconfig.TelegramConfig) time.Duration {
	if cfg.LongPollTimeoutSeconds <= 0 {
		return defaultPollTimeout
	}
	return time.Duration(cfg.LongPollTimeoutSeconds) * time.Second
}

// BuildPoller returns the webhook or long poller selected by cfg.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(cfg.Telegram.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:         fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			AllowedUpdates: allowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{
		Timeout:        PollTimeout(cfg.Telegram),
		AllowedUpdates: allowedUpdates,
	}
}
