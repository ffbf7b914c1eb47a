package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/lessonbot/core/logger"
)

// Sessions is an in-memory store holding at most one value per user.
type Sessions[T any] struct {
	mu       sync.Mutex
	entries  map[int64]*entry[T]
	idle     time.Duration
	onExpire ExpireFunc[T]
	now      func() time.Time
}

// NewSessions constructs an empty store.
func NewSessions[T any](opts Options[T]) *Sessions[T] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Sessions[T]{
		entries:  make(map[int64]*entry[T]),
		idle:     opts.IdleTimeout,
		onExpire: opts.OnExpire,
		now:      now,
	}
}

func (s *Sessions[T]) acquire(userID int64) *entry[T] {
	s.mu.Lock()
	e, ok := s.entries[userID]
	if !ok {
		e = &entry[T]{}
		s.entries[userID] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return e
}

// release must be called with e.mu held.
func (s *Sessions[T]) release(userID int64, e *entry[T]) {
	s.mu.Lock()
	e.refs--
	if e.refs == 0 && e.value == nil {
		delete(s.entries, userID)
	}
	s.mu.Unlock()
	e.mu.Unlock()
}

func (s *Sessions[T]) expired(e *entry[T], now time.Time) bool {
	return e.value != nil && s.idle > 0 && now.Sub(e.touched) > s.idle
}

// expireLocked drops an idle value. Caller holds e.mu.
func (s *Sessions[T]) expireLocked(userID int64, e *entry[T], now time.Time) {
	if !s.expired(e, now) {
		return
	}
	v := *e.value
	e.value = nil
	if s.onExpire != nil {
		s.onExpire(userID, v)
	}
}

// Update runs fn with the user's current value (nil when absent or expired)
// while holding that user's lock. The returned value replaces the stored one
// even when fn also returns an error; returning nil removes the session.
func (s *Sessions[T]) Update(userID int64, fn func(cur *T) (*T, error)) error {
	e := s.acquire(userID)
	defer s.release(userID, e)

	now := s.now()
	s.expireLocked(userID, e, now)

	var cur *T
	if e.value != nil {
		v := *e.value
		cur = &v
	}
	next, err := fn(cur)
	if next == nil {
		e.value = nil
	} else {
		v := *next
		e.value = &v
		e.touched = now
	}
	return err
}

// Peek returns a copy of the user's value without touching it.
func (s *Sessions[T]) Peek(userID int64) (T, bool) {
	e := s.acquire(userID)
	defer s.release(userID, e)

	s.expireLocked(userID, e, s.now())
	if e.value == nil {
		var zero T
		return zero, false
	}
	return *e.value, true
}

// Active reports whether the user has a live session.
func (s *Sessions[T]) Active(userID int64) bool {
	_, ok := s.Peek(userID)
	return ok
}

// Len counts stored sessions, including idle ones not yet swept.
func (s *Sessions[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.refs == 0 && e.value != nil {
			n++
		}
	}
	return n
}

// Sweep removes idle sessions that no goroutine is currently using.
func (s *Sessions[T]) Sweep(now time.Time) int {
	if s.idle <= 0 {
		return 0
	}
	type dropped struct {
		userID int64
		value  T
	}
	var out []dropped

	s.mu.Lock()
	for id, e := range s.entries {
		if e.refs != 0 || !s.expired(e, now) {
			continue
		}
		out = append(out, dropped{userID: id, value: *e.value})
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if s.onExpire != nil {
		for _, d := range out {
			s.onExpire(d.userID, d.value)
		}
	}
	return len(out)
}

// RunJanitor sweeps on every tick until ctx is cancelled.
func (s *Sessions[T]) RunJanitor(ctx context.Context, interval time.Duration) error {
	if s.idle <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info(ctx, logger.CompTG, "fsm.janitor",
		slog.String("status", "started"),
		slog.Duration("interval", interval),
		slog.Duration("idle_timeout", s.idle),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				logger.Info(ctx, logger.CompTG, "fsm.sweep",
					slog.Int("expired", n),
					slog.Int("active", s.Len()),
				)
			}
		}
	}
}
