package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tg "github.com/m3rciful/lessonbot/core/telegram"
	"github.com/m3rciful/lessonbot/core/telegram/format"
	"github.com/m3rciful/lessonbot/core/telegram/keyboard"
	"github.com/m3rciful/lessonbot/internal/browse"
	"github.com/m3rciful/lessonbot/internal/library"
	"github.com/m3rciful/lessonbot/internal/upload"

	tele "gopkg.in/telebot.v4"
)

// Callback uniques.
const (
	cbBook   = "book"
	cbLesson = "lesson"
	cbBack   = "back"
	cbUpload = "upload"
	cbPage   = "page"
)

// renderHelp lists cmds; restricted commands only appear for admins.
func renderHelp(cmds []tg.Entry, admin bool) string {
	var public, restricted strings.Builder
	for _, e := range cmds {
		line := fmt.Sprintf("%s - %s\n", format.MD(e.Usage(e.Name)), format.MD(e.Description))
		if e.Restricted() {
			restricted.WriteString(line)
			continue
		}
		public.WriteString(line)
	}
	text := "📚 *Lesson library*\n\n" + public.String()
	if admin && restricted.Len() > 0 {
		text += "\n*Admins*\n" + restricted.String()
	}
	return strings.TrimRight(text, "\n")
}

func lessonsWord(n int) string {
	if n == 1 {
		return "lesson"
	}
	return "lessons"
}

// renderWelcome greets a user by first name.
func renderWelcome(firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("👋 Hello, %s!\n\nThis bot hosts audio lessons grouped into books. Use /books to start listening.", format.MD(name))
}

// renderReply turns an upload step into message text and an optional keyboard.
// An empty text means nothing should be sent.
func renderReply(r upload.Reply) (string, *tele.ReplyMarkup) {
	cancel := keyboard.Cancel(cbUpload, "")
	switch r.Kind {
	case upload.ReplyDenied:
		return "⛔ Only admins can upload books.", nil
	case upload.ReplyAskBookName:
		text := "📚 Send the title of the new book."
		if r.Replaced {
			text = "The previous upload was discarded.\n" + text
		}
		return text, cancel
	case upload.ReplyEmptyTitle:
		if r.Step == upload.StepBookName {
			return "The book title cannot be empty. Send it again.", cancel
		}
		return "The lesson title cannot be empty. Send it again.", cancel
	case upload.ReplyAskAudio:
		return fmt.Sprintf("📖 Book: *%s*\nNow send the first lesson as an audio file or a voice note.", format.MD(r.BookTitle)), cancel
	case upload.ReplyAskLessonName:
		kind := "Audio"
		if r.Voice {
			kind = "Voice note"
		}
		return fmt.Sprintf("🎧 %s received (%s). Send the lesson title.", kind, format.MD(r.FileName)), cancel
	case upload.ReplyLessonSaved:
		return fmt.Sprintf("✅ Lesson *%s* saved to *%s* (%d %s so far).\nSend the next audio or /finish.",
			format.MD(r.LessonTitle), format.MD(r.BookTitle), r.Lessons, lessonsWord(r.Lessons)), cancel
	case upload.ReplyFinished:
		return fmt.Sprintf("🎉 Upload complete: *%s* with %d %s.", format.MD(r.BookTitle), r.Lessons, lessonsWord(r.Lessons)), nil
	case upload.ReplyNoLessons:
		return "Upload closed. No lessons were added, so no book was created.", nil
	case upload.ReplyCancelled:
		text := "❌ Upload cancelled."
		if r.Lessons > 0 {
			text += fmt.Sprintf(" %d %s already saved stay in the library.", r.Lessons, lessonsWord(r.Lessons))
		}
		return text, nil
	case upload.ReplyNoUpload:
		return "No upload in progress.", nil
	case upload.ReplyFailed:
		return "⚠️ Could not save to the library. Please try again.", cancel
	}
	return "", nil
}

// menuPager pages book and lesson lists. Search results are not paged.
var menuPager = keyboard.Pager{Size: 20, Unique: cbPage}

// renderMenu turns a browse menu into message text and the keyboard for page.
func renderMenu(m browse.Menu, page int) (string, *tele.ReplyMarkup) {
	var text string
	switch m.Notice {
	case browse.NoticeNoBooks:
		return "The library is empty for now.", nil
	case browse.NoticeUsage:
		return "Usage: /search <title>", nil
	case browse.NoticeNoResults:
		return fmt.Sprintf("No books match \"%s\".", format.MD(m.Title)), nil
	case browse.NoticeBookNotFound:
		return "This book no longer exists.", keyboard.Column([]keyboard.Button{{Text: "Back to books", Unique: cbBack}})
	case browse.NoticeNoLessons:
		text = fmt.Sprintf("📖 *%s* has no lessons yet.", format.MD(m.Title))
	case browse.NoticeLessonNotFound:
		return "This lesson no longer exists.", nil
	default:
		switch {
		case m.BookID > 0:
			text = fmt.Sprintf("📖 *%s*\nChoose a lesson:", format.MD(m.Title))
		case m.Title != "":
			text = fmt.Sprintf("🔎 Results for \"%s\":", format.MD(m.Title))
		default:
			text = "📚 Choose a book:"
		}
	}

	var list, footer []keyboard.Button
	for _, it := range m.Items {
		b := keyboard.Button{Text: it.Label, Unique: string(it.Action), Payload: it.Payload}
		if it.Action == browse.ActionBack {
			footer = append(footer, b)
			continue
		}
		list = append(list, b)
	}
	if len(list)+len(footer) == 0 {
		return text, nil
	}

	pager := menuPager
	scope := "0"
	switch {
	case m.BookID > 0:
		scope = strconv.FormatInt(m.BookID, 10)
	case m.Title != "":
		pager.Unique = ""
		if len(list) > pager.Size {
			text += fmt.Sprintf("\n_Showing the first %d matches, refine the title to narrow it down._", pager.Size)
		}
	}
	markup, page := pager.Page(scope, list, page, footer...)
	if pages := pager.Pages(len(list)); pager.Unique != "" && pages > 1 {
		text += fmt.Sprintf("\nPage %d/%d", page+1, pages)
	}
	return text, markup
}

// renderCaption labels a delivered lesson.
func renderCaption(d browse.Delivery) string {
	return fmt.Sprintf("🎧 *%s*\n📖 %s · lesson %d", format.MD(d.Title), format.MD(d.BookTitle), d.Position+1)
}

func renderStats(s library.Stats) string {
	return fmt.Sprintf("📊 *Library*\nBooks: %d\nLessons: %d\nUsers: %d", s.Books, s.Lessons, s.Users)
}

// Status is the snapshot shown by /status.
type Status struct {
	Version        string
	Driver         string
	Uptime         time.Duration
	ActiveSessions int
}

func renderStatus(s Status) string {
	return fmt.Sprintf("🟢 *Status*\nVersion: %s\nStorage: %s\nUptime: %s\nActive uploads: %d",
		format.MD(s.Version), format.MD(s.Driver), s.Uptime.Truncate(time.Second), s.ActiveSessions)
}
