package state

import (
	"sync"
	"time"
)

// ExpireFunc observes a session dropped for inactivity.
type ExpireFunc[T any] func(userID int64, value T)

// Options configures a Sessions store.
type Options[T any] struct {
	// IdleTimeout of zero disables expiry.
	IdleTimeout time.Duration
	OnExpire    ExpireFunc[T]
	Now         func() time.Time
}

type entry[T any] struct {
	mu      sync.Mutex
	value   *T
	touched time.Time
	// refs counts goroutines holding or waiting on mu; guarded by Sessions.mu.
	refs int
}
