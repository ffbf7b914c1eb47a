package telegram

import (
	"testing"
	"time"

	coreconfig "github.com/m3rciful/lessonbot/core/config"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerLongpoll(t *testing.T) {
	cfg := &coreconfig.Config{Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll, LongPollTimeoutSeconds: 25}}
	p, ok := BuildPoller(cfg).(*tele.LongPoller)
	if !ok {
		t.Fatalf("poller = %T", BuildPoller(cfg))
	}
	if p.Timeout != 25*time.Second || len(p.AllowedUpdates) != 2 {
		t.Fatalf("poller = %+v", p)
	}
}

func TestBuildPollerWebhook(t *testing.T) {
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeWebhook},
		Webhook:  coreconfig.WebhookConfig{URL: "https://bot.example.org/hook", Listen: "0.0.0.0", Port: 8443, Secret: "s3"},
	}
	w, ok := BuildPoller(cfg).(*tele.Webhook)
	if !ok {
		t.Fatalf("poller = %T", BuildPoller(cfg))
	}
	if w.Listen != "0.0.0.0:8443" || w.SecretToken != "s3" || w.Endpoint.PublicURL != "https://bot.example.org/hook" {
		t.Fatalf("webhook = %+v", w)
	}
}
