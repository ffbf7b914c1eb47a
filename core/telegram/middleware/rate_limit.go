package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/lessonbot/core/logger"
	tghelpers "github.com/m3rciful/lessonbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds, as reported by UpdateKind, that bypass the limit.
	Exclude map[string]struct{}
	// Exempt reports users whose updates are never limited, such as those in
	// the middle of a multi-step conversation.
	Exempt    func(userID int64) bool
	OnLimited tele.HandlerFunc
	// Now is overridable for tests.
	Now func() time.Time
}

// limiter remembers when each user was last let through.
type limiter struct {
	interval time.Duration

	mu   sync.Mutex
	last map[int64]time.Time
}

// sweepAt is the table size above which stale users are dropped.
const sweepAt = 1024

func (l *limiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.last[userID]; ok && now.Sub(prev) < l.interval {
		return false
	}
	l.last[userID] = now
	if len(l.last) > sweepAt {
		for id, seen := range l.last {
			if now.Sub(seen) >= l.interval {
				delete(l.last, id)
			}
		}
	}
	return true
}

// RateLimitMiddleware lets through at most one update per user per Interval.
// Updates over the limit are dropped after OnLimited runs.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	lim := &limiter{interval: opts.Interval, last: make(map[int64]time.Time)}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if opts.Exempt != nil && opts.Exempt(user.ID) {
				return next(c)
			}
			if lim.allow(user.ID, now()) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), logger.CompTG, "rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
