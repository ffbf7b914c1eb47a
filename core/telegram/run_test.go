package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/lessonbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// fakeAPI answers every Bot API method and records the methods called.
type fakeAPI struct {
	mu      sync.Mutex
	methods []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndexByte(r.URL.Path, '/')+1:]
	f.mu.Lock()
	f.methods = append(f.methods, method)
	f.mu.Unlock()
	switch method {
	case "getMe":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"lessonbot","username":"lessonbot"}}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeAPI) called(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.methods {
		if m == method {
			return true
		}
	}
	return false
}

func TestNewBotClearsWebhookInLongpoll(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	cfg := &coreconfig.Config{Telegram: coreconfig.TelegramConfig{
		Token:                  "123:abc",
		APIURL:                 srv.URL,
		RunMode:                coreconfig.RunModeLongpoll,
		LongPollTimeoutSeconds: 1,
	}}
	bot, err := newBot(context.Background(), RunOptions{Config: cfg, OnError: defaultOnError})
	if err != nil {
		t.Fatalf("newBot: %v", err)
	}
	if bot.Me.Username != "lessonbot" {
		t.Fatalf("me = %+v", bot.Me)
	}
	if !api.called("deleteWebhook") {
		t.Fatalf("methods = %v", api.methods)
	}
}

func TestInstallKeepsUserOrder(t *testing.T) {
	srv := httptest.NewServer(&fakeAPI{})
	defer srv.Close()

	bot, err := tele.NewBot(tele.Settings{URL: srv.URL, Token: "123:abc", Offline: true, Synchronous: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}

	var (
		mu   sync.Mutex
		seen []string
	)
	opts := RunOptions{Routes: []Route{{Endpoint: tele.OnText, Handler: func(c tele.Context) error {
		if c.Text() == "slow" {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		seen = append(seen, c.Text())
		mu.Unlock()
		return nil
	}}}}
	updates := NewUpdateQueue(opts)
	Install(bot, opts, updates)

	user := &tele.User{ID: 7}
	for i, text := range []string{"slow", "second", "third"} {
		bot.ProcessUpdate(tele.Update{ID: i + 1, Message: &tele.Message{
			ID:     i + 1,
			Sender: user,
			Chat:   &tele.Chat{ID: 7, Type: tele.ChatPrivate},
			Text:   text,
		}})
	}
	updates.Close()

	if strings.Join(seen, ",") != "slow,second,third" {
		t.Fatalf("order = %v", seen)
	}
}

func TestRunTelegramRequiresConfig(t *testing.T) {
	if err := RunTelegram(context.Background(), RunOptions{}); err == nil {
		t.Fatal("expected error without config")
	}
}
