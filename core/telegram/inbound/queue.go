// Package inbound runs update handlers on per-user lanes. Updates from one
// user are handled one at a time in the order the poller delivered them;
// different users proceed in parallel.
package inbound

import (
	"context"
	"log/slog"
	"sync"

	"github.com/m3rciful/lessonbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Options controls the lane layout.
type Options struct {
	// Lanes is the number of ordered workers. Defaults to 8.
	Lanes int
	// QueueSize is the capacity of each lane. A full lane blocks the poller
	// until the lane drains. Defaults to 32.
	QueueSize int
	// OnError receives errors returned by handlers.
	OnError func(error, tele.Context)
}

type task struct {
	c    tele.Context
	next tele.HandlerFunc
}

// Queue hands updates to the lane owning their sender. The bot must run in
// synchronous mode so that updates reach Middleware in arrival order.
type Queue struct {
	opts  Options
	lanes []chan task

	mu     sync.RWMutex
	closed bool

	wg sync.WaitGroup
}

// NewQueue starts the lane workers.
func NewQueue(opts Options) *Queue {
	if opts.Lanes <= 0 {
		opts.Lanes = 8
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 32
	}
	q := &Queue{opts: opts, lanes: make([]chan task, opts.Lanes)}
	q.wg.Add(opts.Lanes)
	for i := range q.lanes {
		q.lanes[i] = make(chan task, opts.QueueSize)
		go q.worker(q.lanes[i])
	}
	return q
}

// Middleware queues the update and returns without waiting for next. Once the
// queue is closed, updates run on the caller's goroutine.
func (q *Queue) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		q.mu.RLock()
		defer q.mu.RUnlock()
		if q.closed {
			return next(c)
		}
		id := keyOf(c)
		lane := q.lanes[q.laneFor(id)]
		t := task{c: c, next: next}
		select {
		case lane <- t:
		default:
			logger.Warn(context.Background(), logger.CompTG, "update.lane_full",
				slog.Int64("user_id", id),
				slog.Int("capacity", q.opts.QueueSize),
			)
			lane <- t
		}
		return nil
	}
}

// Close stops accepting updates and waits for queued handlers to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, l := range q.lanes {
		close(l)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) laneFor(id int64) int {
	return int(uint64(id) % uint64(len(q.lanes)))
}

func (q *Queue) worker(lane <-chan task) {
	defer q.wg.Done()
	for t := range lane {
		if err := t.next(t.c); err != nil && q.opts.OnError != nil {
			q.opts.OnError(err, t.c)
		}
	}
}

// keyOf picks the sender, falling back to the chat for anonymous updates.
func keyOf(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	if ch := c.Chat(); ch != nil {
		return ch.ID
	}
	return 0
}
