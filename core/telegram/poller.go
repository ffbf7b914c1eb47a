package telegram

import (
	coreconfig "github.com/m3rciful/lessonbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// AllowedUpdates limits delivery to the update kinds the router handles.
var AllowedUpdates = []string{"message", "callback_query"}

// BuildPoller returns a webhook or long poller for the normalized cfg.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         cfg.Webhook.Addr(),
			SecretToken:    cfg.Webhook.Secret,
			AllowedUpdates: AllowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{
		Timeout:        cfg.Telegram.LongPollTimeout(),
		AllowedUpdates: AllowedUpdates,
	}
}
