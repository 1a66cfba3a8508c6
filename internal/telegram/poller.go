package telegram

import (
	"fmt"
	"time"

	"github.com/m3rciful/otpbot/internal/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// buildPoller returns the update source matching the configured run mode.
func buildPoller(cfg *config.Config) tele.Poller {
	if cfg.Telegram.RunMode == config.RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}

	timeout := defaultLongPollTimeout
	if cfg.Telegram.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}
