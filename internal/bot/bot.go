// Package bot binds the upload machine and the browse presenter to Telegram
// commands, callbacks and messages.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/m3rciful/lessonbot/core/buildinfo"
	"github.com/m3rciful/lessonbot/core/logger"
	tg "github.com/m3rciful/lessonbot/core/telegram"
	"github.com/m3rciful/lessonbot/core/telegram/callbacks"
	"github.com/m3rciful/lessonbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/lessonbot/core/telegram/helpers"
	"github.com/m3rciful/lessonbot/core/telegram/keyboard"
	"github.com/m3rciful/lessonbot/internal/browse"
	"github.com/m3rciful/lessonbot/internal/library"
	"github.com/m3rciful/lessonbot/internal/upload"

	tele "gopkg.in/telebot.v4"
)

// Options configures a Bot.
type Options struct {
	Store   library.Store
	Machine *upload.Machine
	// Driver is reported by /status.
	Driver string
	Now    func() time.Time
}

// Bot holds the Telegram-facing handlers.
type Bot struct {
	store     library.Store
	machine   *upload.Machine
	presenter *browse.Presenter
	driver    string
	now       func() time.Time
	startedAt time.Time
	commands  []tg.Entry
}

// New builds the handler set.
func New(opts Options) *Bot {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Bot{
		store:     opts.Store,
		machine:   opts.Machine,
		presenter: browse.New(opts.Store),
		driver:    opts.Driver,
		now:       now,
		startedAt: now(),
	}
}

// Register adds every command and callback to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: b.onStart, Description: "Welcome message"}},
		{"/help", commands.Command{Handler: b.onHelp, Description: "How to use the bot"}},
		{"/books", commands.Command{Handler: b.onBooks, Description: "Browse books", Aliases: []string{"library"}}},
		{"/search", commands.Command{Handler: b.onSearch, Description: "Search books by title", Args: "<title>"}},
		{"/stats", commands.Command{Handler: b.onStats, Description: "Library totals"}},
		{"/upload", commands.Command{Handler: b.onUpload, Description: "Upload a new book", Hidden: true}},
		{"/finish", commands.Command{Handler: b.onFinish, Description: "Finish the current upload", Hidden: true}},
		{"/cancel", commands.Command{Handler: b.onCancel, Description: "Cancel the current upload", Hidden: true}},
		{"/status", commands.Command{Handler: b.onStatus, Description: "Service status", AdminOnly: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}
	b.commands = reg.Commands()

	cbs := map[string]tele.HandlerFunc{
		cbBook:   b.onBookSelected,
		cbLesson: b.onLessonSelected,
		cbBack:   b.onBack,
		cbUpload: b.onUploadCancel,
		cbPage:   b.onPage,
	}
	for key, h := range cbs {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(b.UnknownCallback())
	return nil
}

// InProgress reports whether userID has an open upload.
func (b *Bot) InProgress(userID int64) bool {
	return b.machine.InProgress(userID)
}

// Handle feeds a message from a user with an open upload into the machine.
func (b *Bot) Handle(c tele.Context) error {
	msg := c.Message()
	if msg == nil || c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	uid := c.Sender().ID

	var (
		r   upload.Reply
		err error
	)
	switch {
	case msg.Audio != nil:
		r, err = b.machine.Media(ctx, uid, upload.Media{FileID: msg.Audio.FileID, FileName: msg.Audio.FileName})
	case msg.Voice != nil:
		r, err = b.machine.Media(ctx, uid, upload.Media{FileID: msg.Voice.FileID, Voice: true})
	case msg.Document != nil:
		return tghelpers.SendText(c, "Only audio files and voice notes can be added as lessons.")
	default:
		r, err = b.machine.Text(ctx, uid, msg.Text)
	}
	return b.replyUpload(c, r, err)
}

// replyUpload renders r and surfaces only errors worth a handler failure.
func (b *Bot) replyUpload(c tele.Context, r upload.Reply, err error) error {
	if text, markup := renderReply(r); text != "" {
		if c.Callback() != nil {
			_ = tghelpers.Respond(c, "")
			if sendErr := tghelpers.EditOrSendMD(c, text, markup); sendErr != nil && err == nil {
				err = sendErr
			}
		} else if sendErr := tghelpers.SendMD(c, text, markup); sendErr != nil && err == nil {
			err = sendErr
		}
	}
	if library.KindOf(err) == library.KindPermission {
		return nil
	}
	return err
}

func (b *Bot) onStart(c tele.Context) error {
	name := ""
	if s := c.Sender(); s != nil {
		name = s.FirstName
	}
	return tghelpers.SendMD(c, renderWelcome(name))
}

// onHelp lists public commands, plus the upload and admin commands for admins.
func (b *Bot) onHelp(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	admin := false
	if s := c.Sender(); s != nil {
		ok, err := b.store.IsAdmin(ctx, s.ID)
		if err != nil {
			logger.Warn(ctx, logger.CompLibrary, "user.is_admin", slog.String("status", "fail"), logger.Err(err))
		}
		admin = ok
	}
	return tghelpers.SendMD(c, renderHelp(b.commands, admin))
}

func (b *Bot) onUpload(c tele.Context) error {
	r, err := b.machine.Start(tghelpers.BuildContext(c), c.Sender().ID)
	return b.replyUpload(c, r, err)
}

func (b *Bot) onFinish(c tele.Context) error {
	r, err := b.machine.Finish(tghelpers.BuildContext(c), c.Sender().ID)
	return b.replyUpload(c, r, err)
}

func (b *Bot) onCancel(c tele.Context) error {
	r, err := b.machine.Cancel(tghelpers.BuildContext(c), c.Sender().ID)
	return b.replyUpload(c, r, err)
}

func (b *Bot) onUploadCancel(c tele.Context) error {
	return b.onCancel(c)
}

func (b *Bot) sendMenu(c tele.Context, m browse.Menu, page int, err error) error {
	if err != nil && library.KindOf(err) != library.KindValidation {
		_ = tghelpers.Respond(c, "")
		_ = tghelpers.SendText(c, "⚠️ The library is unavailable right now. Please try again later.")
		return err
	}
	text, markup := renderMenu(m, page)
	if c.Callback() != nil {
		_ = tghelpers.Respond(c, "")
		return tghelpers.EditOrSendMD(c, text, markup)
	}
	return tghelpers.SendMD(c, text, markup)
}

func (b *Bot) onBooks(c tele.Context) error {
	m, err := b.presenter.ListBooks(tghelpers.BuildContext(c))
	return b.sendMenu(c, m, 0, err)
}

func (b *Bot) onSearch(c tele.Context) error {
	m, err := b.presenter.SearchBooks(tghelpers.BuildContext(c), c.Message().Payload)
	return b.sendMenu(c, m, 0, err)
}

func (b *Bot) onBack(c tele.Context) error {
	m, err := b.presenter.NavigateBack(tghelpers.BuildContext(c))
	return b.sendMenu(c, m, 0, err)
}

func (b *Bot) onBookSelected(c tele.Context) error {
	id, err := browse.ParseID(callbacks.Payload(c))
	if err != nil {
		return tghelpers.Respond(c, "Unsupported action")
	}
	m, err := b.presenter.SelectBook(tghelpers.BuildContext(c), id)
	return b.sendMenu(c, m, 0, err)
}

// onPage moves a book or lesson list to another page. Scope 0 is the book
// list, any other scope is a book id.
func (b *Bot) onPage(c tele.Context) error {
	scope, page, err := keyboard.ParsePage(callbacks.Payload(c))
	if err != nil {
		return tghelpers.Respond(c, "Unsupported action")
	}
	ctx := tghelpers.BuildContext(c)
	if scope == "0" {
		m, err := b.presenter.ListBooks(ctx)
		return b.sendMenu(c, m, page, err)
	}
	id, err := browse.ParseID(scope)
	if err != nil {
		return tghelpers.Respond(c, "Unsupported action")
	}
	m, err := b.presenter.SelectBook(ctx, id)
	return b.sendMenu(c, m, page, err)
}

func (b *Bot) onLessonSelected(c tele.Context) error {
	id, err := browse.ParseID(callbacks.Payload(c))
	if err != nil {
		return tghelpers.Respond(c, "Unsupported action")
	}
	d, notice, err := b.presenter.SelectLesson(tghelpers.BuildContext(c), id)
	if err != nil {
		_ = tghelpers.Respond(c, "The library is unavailable right now.")
		return err
	}
	if notice != browse.NoticeNone {
		text, _ := renderMenu(browse.Menu{Notice: notice}, 0)
		return tghelpers.Respond(c, text)
	}
	_ = tghelpers.Respond(c, "")
	return b.deliver(c, d)
}

// deliver sends a lesson as audio, retrying as a voice note when Telegram
// rejects the file id for the audio endpoint.
func (b *Bot) deliver(c tele.Context, d browse.Delivery) error {
	caption := renderCaption(d)
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	return tghelpers.Send(c, "send.audio", "sendAudio", func() error {
		audio := &tele.Audio{File: tele.File{FileID: d.FileID}, Caption: caption, FileName: d.FileName}
		err := c.Send(audio, opts)
		var apiErr *tele.Error
		if err == nil || !errors.As(err, &apiErr) || apiErr.Code != http.StatusBadRequest {
			return err
		}
		logger.Debug(tghelpers.BuildContext(c), logger.CompTG, "send.audio.voice_fallback", logger.Err(err))
		return c.Send(&tele.Voice{File: tele.File{FileID: d.FileID}, Caption: caption}, opts)
	})
}

func (b *Bot) onStats(c tele.Context) error {
	s, err := b.presenter.Stats(tghelpers.BuildContext(c))
	if err != nil {
		_ = tghelpers.SendText(c, "⚠️ The library is unavailable right now. Please try again later.")
		return err
	}
	return tghelpers.SendMD(c, renderStats(s))
}

func (b *Bot) onStatus(c tele.Context) error {
	return tghelpers.SendMD(c, renderStatus(Status{
		Version:        buildinfo.String(),
		Driver:         b.driver,
		Uptime:         b.now().Sub(b.startedAt),
		ActiveSessions: b.machine.ActiveSessions(),
	}))
}

// UnknownText answers free text outside an upload.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, "Use /books to browse the library or /help for all commands.")
	}
}

// UnknownMedia answers audio sent outside an upload.
func (b *Bot) UnknownMedia() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, "To add lessons, start an upload with /upload first.")
	}
}

// UnknownCallback answers stale or foreign buttons.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.Respond(c, "Unsupported action")
	}
}

// RejectAdmin answers admin-only commands from other users.
func (b *Bot) RejectAdmin(c tele.Context) error {
	return tghelpers.SendText(c, "⛔ This command is for admins only.")
}

// RateLimited answers users who send updates too quickly.
func (b *Bot) RateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return tghelpers.Respond(c, "Slow down, please.")
	}
	return tghelpers.SendText(c, "⏳ Too many messages at once, that one was skipped. Please send it again.")
}

// TrackUsers refreshes the sender's profile on every update. Failures are
// logged and never block the update.
func (b *Bot) TrackUsers() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if s := c.Sender(); s != nil && !s.IsBot {
				ctx := tghelpers.BuildContext(c)
				if err := b.trackUser(ctx, s); err != nil {
					logger.Warn(ctx, logger.CompLibrary, "user.track",
						slog.String("status", "fail"),
						logger.Err(err),
					)
				}
			}
			return next(c)
		}
	}
}

func (b *Bot) trackUser(ctx context.Context, s *tele.User) error {
	return b.store.AddOrUpdateUser(ctx, library.Profile{
		ID:        s.ID,
		Username:  s.Username,
		FirstName: s.FirstName,
		LastName:  s.LastName,
	})
}
