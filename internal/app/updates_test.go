package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	coretelegram "github.com/m3rciful/lessonbot/core/telegram"
	"github.com/m3rciful/lessonbot/internal/store"

	tele "gopkg.in/telebot.v4"
)

// botAPI acknowledges every call with a sent message.
func botAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":7,"type":"private"}}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBatchedUploadIsHandledInOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.SetAdmin(ctx, 7, true); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}
	a := New(testConfig(), nil, st)
	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("TelegramRunOptions: %v", err)
	}

	srv := botAPI(t)
	b, err := tele.NewBot(tele.Settings{URL: srv.URL, Token: "123:abc", Offline: true, Synchronous: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	updates := coretelegram.NewUpdateQueue(opts)
	coretelegram.Install(b, opts, updates)

	admin := &tele.User{ID: 7, FirstName: "Admin"}
	chat := &tele.Chat{ID: 7, Type: tele.ChatPrivate}
	msgs := []*tele.Message{
		{Text: "/upload"},
		{Text: "Tafsir"},
		{Audio: &tele.Audio{File: tele.File{FileID: "A"}, FileName: "a.mp3"}},
		{Text: "Lesson 1"},
	}
	for i, m := range msgs {
		m.ID, m.Sender, m.Chat = i+1, admin, chat
		b.ProcessUpdate(tele.Update{ID: i + 1, Message: m})
	}
	updates.Close()

	books, err := st.GetAllBooks(ctx)
	if err != nil {
		t.Fatalf("GetAllBooks: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Tafsir" || books[0].LessonCount != 1 {
		t.Fatalf("books = %+v", books)
	}
	lessons, err := st.GetLessonsByBook(ctx, books[0].ID)
	if err != nil || len(lessons) != 1 || lessons[0].Title != "Lesson 1" || lessons[0].FileID != "A" {
		t.Fatalf("lessons = %+v err = %v", lessons, err)
	}
}
