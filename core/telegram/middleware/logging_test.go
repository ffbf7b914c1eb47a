package middleware

import (
	"testing"

	"github.com/m3rciful/lessonbot/core/logger"
	tghelpers "github.com/m3rciful/lessonbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func TestLoggerMiddlewareAttachesContext(t *testing.T) {
	c := newFake(7, tele.Update{ID: 10, Message: &tele.Message{Text: "/books"}})
	var seen logger.Fields
	h := LoggerMiddleware(func(c tele.Context) error {
		ctx, ok := tghelpers.ContextFrom(c)
		if !ok {
			t.Fatal("context not attached")
		}
		seen = logger.FieldsFrom(ctx)
		return nil
	})
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if seen.UpdateID != 10 || seen.UserID != 7 || seen.RID != logger.BuildRID(10, 7, 7) {
		t.Fatalf("fields = %+v", seen)
	}
}

func TestLoggerMiddlewareKeepsExistingContext(t *testing.T) {
	c := newFake(7, tele.Update{ID: 10})
	tghelpers.WithHandler(c, "/upload")
	h := LoggerMiddleware(func(c tele.Context) error {
		ctx, _ := tghelpers.ContextFrom(c)
		if got := logger.FieldsFrom(ctx).Handler; got != "/upload" {
			t.Fatalf("handler = %q", got)
		}
		return nil
	})
	if err := h(c); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateKind(t *testing.T) {
	cases := map[string]tele.Update{
		"callback": {Callback: &tele.Callback{}},
		"message":  {Message: &tele.Message{}},
		"other":    {},
	}
	for want, upd := range cases {
		if got := UpdateKind(upd); got != want {
			t.Errorf("UpdateKind = %q, want %q", got, want)
		}
	}
}
