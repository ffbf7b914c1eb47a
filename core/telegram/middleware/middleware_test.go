package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

// fakeContext implements the subset of tele.Context the middleware touches.
type fakeContext struct {
	tele.Context
	update tele.Update
	store  map[string]any
}

func newFake(userID int64, upd tele.Update) *fakeContext {
	if upd.Message == nil && upd.Callback == nil {
		upd.Message = &tele.Message{}
	}
	if upd.Message != nil {
		upd.Message.Sender = &tele.User{ID: userID}
		upd.Message.Chat = &tele.Chat{ID: userID, Type: tele.ChatPrivate}
	}
	if upd.Callback != nil {
		upd.Callback.Sender = &tele.User{ID: userID}
	}
	return &fakeContext{update: upd, store: map[string]any{}}
}

func (f *fakeContext) Update() tele.Update { return f.update }
func (f *fakeContext) Get(k string) any    { return f.store[k] }
func (f *fakeContext) Set(k string, v any) { f.store[k] = v }

func (f *fakeContext) Sender() *tele.User {
	switch {
	case f.update.Callback != nil:
		return f.update.Callback.Sender
	case f.update.Message != nil:
		return f.update.Message.Sender
	}
	return nil
}

func (f *fakeContext) Chat() *tele.Chat {
	if f.update.Message != nil {
		return f.update.Message.Chat
	}
	return nil
}

func TestAdminOnlyMiddleware(t *testing.T) {
	admins := map[int64]bool{7: true}
	var rejected int
	mw := AdminOnlyMiddleware(AdminOptions{
		IsAdmin: func(_ context.Context, id int64) (bool, error) {
			if id == 99 {
				return false, errors.New("db down")
			}
			return admins[id], nil
		},
		OnReject: func(tele.Context) error { rejected++; return nil },
	})
	var ran int
	h := mw(func(tele.Context) error { ran++; return nil })

	if err := h(newFake(7, tele.Update{})); err != nil || ran != 1 {
		t.Fatalf("admin: err=%v ran=%d", err, ran)
	}
	if err := h(newFake(8, tele.Update{})); err != nil || ran != 1 || rejected != 1 {
		t.Fatalf("non-admin: err=%v ran=%d rejected=%d", err, ran, rejected)
	}
	if err := h(newFake(99, tele.Update{})); err == nil {
		t.Fatal("lookup failure must surface")
	}
}

func TestWithAdminCheckSkipsPublicHandlers(t *testing.T) {
	called := false
	h := WithAdminCheck(AdminOptions{
		IsAdmin: func(context.Context, int64) (bool, error) { return false, nil },
	}, false, func(tele.Context) error { called = true; return nil })
	if err := h(newFake(1, tele.Update{})); err != nil || !called {
		t.Fatalf("public handler not called: %v", err)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Unix(1000, 0)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
		Now:       func() time.Time { return now },
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	_ = h(newFake(1, tele.Update{}))
	_ = h(newFake(1, tele.Update{}))
	if passed != 1 || limited != 1 {
		t.Fatalf("passed=%d limited=%d", passed, limited)
	}

	// Other users and excluded kinds are unaffected.
	_ = h(newFake(2, tele.Update{}))
	_ = h(newFake(1, tele.Update{Callback: &tele.Callback{}}))
	if passed != 3 {
		t.Fatalf("passed=%d", passed)
	}

	now = now.Add(time.Second)
	_ = h(newFake(1, tele.Update{}))
	if passed != 4 {
		t.Fatalf("passed=%d after interval", passed)
	}
}

func TestRateLimitExemptsActiveConversation(t *testing.T) {
	now := time.Unix(1000, 0)
	busy := map[int64]bool{1: true}
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Exempt:    func(id int64) bool { return busy[id] },
		OnLimited: func(tele.Context) error { limited++; return nil },
		Now:       func() time.Time { return now },
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	for range 3 {
		_ = h(newFake(1, tele.Update{}))
	}
	if passed != 3 || limited != 0 {
		t.Fatalf("passed=%d limited=%d", passed, limited)
	}

	// Once the conversation ends the limit applies again.
	busy[1] = false
	_ = h(newFake(1, tele.Update{}))
	_ = h(newFake(1, tele.Update{}))
	if passed != 4 || limited != 1 {
		t.Fatalf("passed=%d limited=%d", passed, limited)
	}
}

func TestUpdateCounterMiddleware(t *testing.T) {
	var kinds []string
	h := UpdateCounterMiddleware(func(k string) { kinds = append(kinds, k) })(func(tele.Context) error { return nil })
	_ = h(newFake(1, tele.Update{}))
	_ = h(newFake(1, tele.Update{Callback: &tele.Callback{}}))
	if len(kinds) != 2 || kinds[0] != "message" || kinds[1] != "callback" {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestRecoverMiddlewareSwallowsPanic(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(newFake(1, tele.Update{})); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestAdminCheckWithoutCheckerRejects(t *testing.T) {
	rejected := false
	h := WithAdminCheck(AdminOptions{
		OnReject: func(tele.Context) error { rejected = true; return nil },
	}, true, func(tele.Context) error {
		t.Fatal("admin handler ran without a checker")
		return nil
	})
	if err := h(newFake(1, tele.Update{})); err != nil || !rejected {
		t.Fatalf("err = %v rejected = %v", err, rejected)
	}
}
