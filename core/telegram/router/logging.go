package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/lessonbot/core/logger"
	tghelpers "github.com/m3rciful/lessonbot/core/telegram/helpers"
	"github.com/m3rciful/lessonbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// run executes fn as handler name and writes one summary line for the update.
func run(c tele.Context, name string, fn func() error, extras ...slog.Attr) error {
	start := time.Now()
	tghelpers.WithHandler(c, name)
	err := fn()
	summarize(c, name, start, err, "", extras...)
	return err
}

// skipped records an update no handler claimed.
func skipped(c tele.Context, name string, extras ...slog.Attr) {
	tghelpers.WithHandler(c, name)
	summarize(c, name, time.Now(), nil, "skip", extras...)
}

func summarize(c tele.Context, name string, start time.Time, err error, status string, extras ...slog.Attr) {
	ctx := tghelpers.BuildContext(c)
	out := middleware.GetCounters(c)

	if status == "" {
		status = "ok"
		if err != nil {
			status = "fail"
		}
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.Int("messages", out.Messages),
		slog.Int("media", out.Media),
		slog.Bool("kb", out.Keyboard),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	attrs = append(attrs, extras...)
	if err == nil {
		logger.Info(ctx, logger.CompTG, "handler.handled", attrs...)
		return
	}
	attrs = append(attrs,
		slog.String("err_code", deriveErrorCode(err)),
		logger.Err(err),
	)
	logger.Warn(ctx, logger.CompTG, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// deriveErrorCode prefers an explicit Code() on the chain, then Telegram API
// error codes, then the concrete type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return "TG_FLOOD"
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return "TG_" + strconv.Itoa(apiErr.Code)
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
