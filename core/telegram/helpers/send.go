package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/lessonbot/core/logger"
	"github.com/m3rciful/lessonbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs the queue used by the send helpers. nil makes them
// call the Bot API inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// Send queues an outbound call for the update's chat. It runs inline when no
// dispatcher is installed or the queue turns the job away.
func Send(c tele.Context, action, method string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, method, run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, logger.CompSender, "queue.fallback",
			slog.String("action", action),
			slog.String("method", method),
			logger.Err(err),
		)
		return run()
	}
	return err
}

// SendText queues plain text for the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	args := make([]any, 0, 1)
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return Send(c, "send.text", "sendMessage", func() error {
		return c.Send(text, args...)
	})
}

func markdown(markup []*tele.ReplyMarkup) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return opts
}

// SendMD queues Markdown text with an optional keyboard.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return SendText(c, text, markdown(markup))
}

// EditOrSendMD replaces the pressed message's text, or sends a new message
// when there is nothing to edit. It runs inline so callers see edit errors.
func EditOrSendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return c.EditOrSend(text, markdown(markup))
}

// Respond acknowledges a callback query, with an optional toast.
func Respond(c tele.Context, text string) error {
	switch {
	case c.Callback() == nil:
		return nil
	case text == "":
		return c.Respond()
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}
