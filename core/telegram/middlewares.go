package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/lessonbot/core/config"
	"github.com/m3rciful/lessonbot/core/telegram/middleware"
	"github.com/m3rciful/lessonbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions carries the optional hooks of the shared chain.
type MiddlewareOptions struct {
	OnLimited func(tele.Context) error
	// RateExempt lifts the rate limit for the given user.
	RateExempt func(userID int64) bool
	// CountUpdate receives the kind of every inbound update.
	CountUpdate func(kind string)
	// SessionID tags update logs with the sender's workflow session.
	SessionID state.SessionIDFunc
	// Track sees every update, including those the rate limit drops.
	Track tele.MiddlewareFunc
}

// DefaultMiddlewares builds the shared middleware chain. Rate-limit
// exclusions are expected to be normalized by config loading.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if opts.CountUpdate != nil {
		mws = append(mws, Middleware{Name: "update_counter", Use: middleware.UpdateCounterMiddleware(opts.CountUpdate)})
	}
	if opts.Track != nil {
		mws = append(mws, Middleware{Name: "track_users", Use: opts.Track})
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[t] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					Exempt:    opts.RateExempt,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	if opts.SessionID != nil {
		mws = append(mws, Middleware{Name: "session_id", Use: state.WithSessionID(opts.SessionID)})
	}
	mws = append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware})

	return mws
}
