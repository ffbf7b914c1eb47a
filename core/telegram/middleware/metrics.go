package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const countersKey = "lessonbot.out"

// Counters summarise what a handler sent back for one update.
type Counters struct {
	Messages int
	// Media counts audio and voice deliveries, which are included in Messages.
	Media    int
	Keyboard bool
}

// countingContext wraps tele.Context and records successful outbound calls.
type countingContext struct {
	tele.Context
	out *Counters
}

func (m countingContext) record(what any, opts []any, err error) error {
	if err != nil {
		return err
	}
	m.out.Messages++
	switch what.(type) {
	case *tele.Audio, *tele.Voice:
		m.out.Media++
	}
	if hasKeyboard(opts) {
		m.out.Keyboard = true
	}
	return nil
}

func hasKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m countingContext) Send(what any, opts ...any) error {
	return m.record(what, opts, m.Context.Send(what, opts...))
}

func (m countingContext) Reply(what any, opts ...any) error {
	return m.record(what, opts, m.Context.Reply(what, opts...))
}

func (m countingContext) Edit(what any, opts ...any) error {
	return m.record(what, opts, m.Context.Edit(what, opts...))
}

func (m countingContext) EditOrSend(what any, opts ...any) error {
	return m.record(what, opts, m.Context.EditOrSend(what, opts...))
}

// MessageMetricsMiddleware counts the messages, media and keyboards a handler
// sends so the handler summary can report them.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		out := &Counters{}
		c.Set(countersKey, out)
		return next(countingContext{Context: c, out: out})
	}
}

// GetCounters returns the counters recorded for c, or zero values when the
// middleware is not installed.
func GetCounters(c tele.Context) Counters {
	if out, ok := c.Get(countersKey).(*Counters); ok && out != nil {
		return *out
	}
	return Counters{}
}

// UpdateCounterMiddleware reports the kind of every inbound update to count.
func UpdateCounterMiddleware(count func(kind string)) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if count == nil {
			return next
		}
		return func(c tele.Context) error {
			count(UpdateKind(c.Update()))
			return next(c)
		}
	}
}
