package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/lessonbot/core/logger"
	tg "github.com/m3rciful/lessonbot/core/telegram"
	"github.com/m3rciful/lessonbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes binds every registered command to its slash endpoint.
// Admin-only commands go through the admin check first.
func CommandRoutes(reg *tg.Registry, admin middleware.AdminOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	entries := reg.Commands()
	routes := make([]tg.Route, 0, len(entries))
	for _, e := range entries {
		name := normalizeHandlerName(e.Name)
		handler := e.Handler
		h := func(c tele.Context) error {
			return run(c, name, func() error { return handler(c) })
		}
		h = middleware.WithAdminCheck(admin, e.AdminOnly, h)
		h = middleware.LoggerMiddleware(h)
		h = middleware.RecoverMiddleware(h)
		routes = append(routes, tg.Route{
			Endpoint: e.Name,
			Handler:  h,
		})
	}

	logger.Info(context.Background(), logger.CompWire, "wire.complete",
		slog.Int("commands", len(entries)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
