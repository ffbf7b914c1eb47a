package state

import (
	"context"

	"github.com/m3rciful/lessonbot/core/logger"
	tghelpers "github.com/m3rciful/lessonbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// SessionIDFunc resolves the log identifier of a user's active session.
type SessionIDFunc func(userID int64) (string, bool)

// WithSessionID tags the update's logging context with the sender's session id.
func WithSessionID(lookup SessionIDFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if lookup == nil || c.Sender() == nil {
				return next(c)
			}
			if id, ok := lookup(c.Sender().ID); ok {
				tghelpers.Enrich(c, func(ctx context.Context) context.Context {
					return logger.WithSession(ctx, id)
				})
			}
			return next(c)
		}
	}
}
