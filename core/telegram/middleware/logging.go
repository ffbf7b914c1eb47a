package middleware

import (
	"log/slog"

	"github.com/m3rciful/lessonbot/core/logger"
	"github.com/m3rciful/lessonbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/lessonbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// UpdateKind classifies an update for rate limiting and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// messageContent names what a message carries.
func messageContent(msg *tele.Message) string {
	switch {
	case msg.Audio != nil:
		return "audio"
	case msg.Voice != nil:
		return "voice"
	case msg.Document != nil:
		return "document"
	case msg.Text != "":
		return "text"
	}
	return "other"
}

// LoggerMiddleware attaches the logging context to an update and writes a
// sampled "update.received" debug line. Only the outermost application acts,
// so fields added by inner middleware survive.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := tghelpers.ContextFrom(c); ok {
			return next(c)
		}
		ctx := tghelpers.BuildContext(c)
		if !logger.SampleDebug("update.received") {
			return next(c)
		}

		upd := c.Update()
		attrs := []slog.Attr{slog.String("kind", UpdateKind(upd))}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user := c.Sender(); user != nil && user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		switch {
		case upd.Callback != nil:
			d := callbacks.Parse(upd.Callback)
			attrs = append(attrs,
				slog.String("cb_key", logger.SanitizeLimit(d.Unique, 64)),
				slog.String("payload", logger.SanitizeLimit(d.Payload, 64)),
			)
		case upd.Message != nil:
			attrs = append(attrs, slog.String("content", messageContent(upd.Message)))
			if upd.Message.Text != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(upd.Message.Text, 128)))
			}
		}
		logger.Debug(ctx, logger.CompTG, "update.received", attrs...)
		return next(c)
	}
}
