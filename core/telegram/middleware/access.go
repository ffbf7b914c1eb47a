package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/lessonbot/core/logger"
	tghelpers "github.com/m3rciful/lessonbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminChecker reports whether userID may run admin-only handlers.
type AdminChecker func(ctx context.Context, userID int64) (bool, error)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	IsAdmin  AdminChecker
	OnReject tele.HandlerFunc
}

// WithAdminCheck guards handler with AdminOnlyMiddleware when adminOnly is set.
func WithAdminCheck(opts AdminOptions, adminOnly bool, handler tele.HandlerFunc) tele.HandlerFunc {
	if !adminOnly {
		return handler
	}
	return AdminOnlyMiddleware(opts)(handler)
}

// AdminOnlyMiddleware lets only admins reach next. Without a checker every
// sender is rejected. A failing lookup is returned to the caller instead of
// being treated as a denial.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			ctx := tghelpers.BuildContext(c)
			ok := false
			if opts.IsAdmin != nil {
				var err error
				if ok, err = opts.IsAdmin(ctx, sender.ID); err != nil {
					return err
				}
			}
			if !ok {
				logger.Info(ctx, logger.CompTG, "access.admin",
					slog.String("status", "denied"),
					slog.Int64("user_id", sender.ID),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
