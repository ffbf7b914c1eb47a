package router

import (
	"log/slog"

	tg "github.com/m3rciful/lessonbot/core/telegram"
	"github.com/m3rciful/lessonbot/core/telegram/callbacks"
	"github.com/m3rciful/lessonbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises the answer for unknown callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every inline button press by its unique through
// the registry. Handlers acknowledge the press themselves so they can attach
// a toast.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	notFound := opts.NotFound
	if notFound == nil && reg != nil {
		notFound = reg.CallbackNotFound()
	}

	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		d := callbacks.Parse(cb)
		key := d.Unique
		attrs := []slog.Attr{
			slog.String("cb_key", key),
			slog.Int("payload_len", len(d.Payload)),
		}

		var h tele.HandlerFunc
		if reg != nil {
			h, _ = reg.GetCallback(key)
		}
		if h == nil {
			if notFound == nil {
				skipped(c, "callback.unknown", attrs...)
				return nil
			}
			return run(c, "callback.unknown", func() error { return notFound(c) }, attrs...)
		}
		return run(c, "callback."+normalizeHandlerName(key), func() error { return h(c) }, attrs...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
