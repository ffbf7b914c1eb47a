package router

import (
	tg "github.com/m3rciful/lessonbot/core/telegram"
	"github.com/m3rciful/lessonbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Workflow is a per-user conversational flow that claims messages while active.
type Workflow interface {
	InProgress(userID int64) bool
	Handle(c tele.Context) error
}

// Fallbacks answers updates that no command, callback or workflow claims.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownMedia() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// MessageOptions controls fallbacks for text and media outside a workflow.
type MessageOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
	// Admin guards admin-only commands reached through an alias.
	Admin middleware.AdminOptions
}

// MessageRoutes builds handlers for text, audio, voice and document messages.
// Updates from users with an active workflow go to the workflow first, then
// text is matched against command aliases.
func MessageRoutes(flow Workflow, reg *tg.Registry, opts MessageOptions) []tg.Route {
	active := func(c tele.Context) bool {
		s := c.Sender()
		return flow != nil && s != nil && flow.InProgress(s.ID)
	}
	fallback := func(c tele.Context, name string, h tele.HandlerFunc) error {
		if h == nil {
			skipped(c, name)
			return nil
		}
		return run(c, name, func() error { return h(c) })
	}

	onText := func(c tele.Context) error {
		if active(c) {
			return run(c, "workflow.text", func() error { return flow.Handle(c) })
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok {
				h := middleware.WithAdminCheck(opts.Admin, cmd.AdminOnly, cmd.Handler)
				return run(c, normalizeHandlerName(key), func() error { return h(c) })
			}
		}
		return fallback(c, "unknown_text", opts.UnknownText)
	}

	onMedia := func(kind string) tele.HandlerFunc {
		return func(c tele.Context) error {
			if active(c) {
				return run(c, "workflow."+kind, func() error { return flow.Handle(c) })
			}
			return fallback(c, "unexpected_"+kind, opts.UnknownMedia)
		}
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(onText)},
		{Endpoint: tele.OnAudio, Handler: wrap(onMedia("audio"))},
		{Endpoint: tele.OnVoice, Handler: wrap(onMedia("voice"))},
		{Endpoint: tele.OnDocument, Handler: wrap(onMedia("document"))},
	}
}
