package router

import (
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"
)

type codedErr struct{ code string }

func (e codedErr) Error() string { return "coded" }
func (e codedErr) Code() string  { return e.code }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{codedErr{"storage error"}, "STORAGE_ERROR"},
		{fmt.Errorf("AddLesson: %w", codedErr{"not_found"}), "NOT_FOUND"},
		{&plainErr{}, "PLAINERR"},
		{fmt.Errorf("send: %w", &tele.Error{Code: 403}), "TG_403"},
	}
	for _, tc := range cases {
		if got := deriveErrorCode(tc.err); got != tc.want {
			t.Errorf("deriveErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if got := deriveErrorCode(errors.New("x")); got != "ERRORSTRING" {
		t.Errorf("errors.New code = %q", got)
	}
}

func TestNormalizeHandlerName(t *testing.T) {
	cases := map[string]string{
		"/Upload": "upload",
		"":        "unknown",
		" book ":  "book",
		"a b":     "a_b",
	}
	for in, want := range cases {
		if got := normalizeHandlerName(in); got != want {
			t.Errorf("normalizeHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}
