package logger

import (
	"context"
	"log/slog"
	"strconv"
)

// Fields are the correlation values a context carries into every log line.
type Fields struct {
	RID      string
	UpdateID int
	UserID   int64
	ChatID   int64
	Handler  string
	Session  string
	BookID   int64
}

type (
	fieldsKey struct{}
	loggerKey struct{}
)

// FieldsFrom returns the correlation fields stored in ctx.
func FieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	f, _ := ctx.Value(fieldsKey{}).(Fields)
	return f
}

// with stores a modified copy of the fields so parent contexts are unaffected.
func with(ctx context.Context, set func(*Fields)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	f := FieldsFrom(ctx)
	set(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithLogger stores log in ctx; it is used when no component logger exists.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, log)
}

// FromContext returns the logger stored in ctx or the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// WithRID sets the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return with(ctx, func(f *Fields) { f.RID = rid })
}

// WithUpdateMeta sets the Telegram update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return with(ctx, func(f *Fields) {
		f.UpdateID = updateID
		f.UserID = userID
		f.ChatID = chatID
	})
}

// WithHandler names the handler processing the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	return with(ctx, func(f *Fields) { f.Handler = handler })
}

// WithSession tags the context with an upload session id.
func WithSession(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return with(ctx, func(f *Fields) { f.Session = sessionID })
}

// WithBook tags the context with the book an upload writes to.
func WithBook(ctx context.Context, bookID int64) context.Context {
	if bookID == 0 {
		return ctx
	}
	return with(ctx, func(f *Fields) { f.BookID = bookID })
}

// RIDFrom returns the correlation id stored in ctx.
func RIDFrom(ctx context.Context) string { return FieldsFrom(ctx).RID }

// BuildRID derives a short correlation id from the update, chat and user ids,
// each in base 36.
func BuildRID(updateID int, chatID, userID int64) string {
	return strconv.FormatInt(int64(updateID), 36) + "." +
		strconv.FormatInt(chatID, 36) + "." +
		strconv.FormatInt(userID, 36)
}

// attrs lists the non-zero fields as log attributes.
func (f Fields) attrs() []slog.Attr {
	out := make([]slog.Attr, 0, 7)
	if f.RID != "" {
		out = append(out, slog.String("rid", f.RID))
	}
	if f.UpdateID != 0 {
		out = append(out, slog.Int("update_id", f.UpdateID))
	}
	if f.UserID != 0 {
		out = append(out, slog.Int64("user_id", f.UserID))
	}
	if f.ChatID != 0 {
		out = append(out, slog.Int64("chat_id", f.ChatID))
	}
	if f.Handler != "" {
		out = append(out, slog.String("handler", f.Handler))
	}
	if f.Session != "" {
		out = append(out, slog.String("session_id", f.Session))
	}
	if f.BookID != 0 {
		out = append(out, slog.Int64("book_id", f.BookID))
	}
	return out
}
