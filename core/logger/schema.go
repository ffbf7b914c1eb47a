package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

// enum maps accepted spellings onto canonical values.
type enum map[string]string

func newEnum(values ...string) enum {
	e := make(enum, len(values))
	for _, v := range values {
		e[v] = v
	}
	return e
}

// lookup returns the canonical spelling of v and whether it is known.
func (e enum) lookup(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if canonical, ok := e[v]; ok {
		return canonical, true
	}
	return v, false
}

var levels = enum{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// statuses describe how a single step went. Unknown values pass through.
var statuses = newEnum("ok", "fail", "skip", "retry", "started", "denied", "rate_limited", "cancelled")

// outcomes describe how an update or upload session ended. Unknown values
// are dropped so dashboards only see the fixed set.
var outcomes = newEnum("ok", "fail", "ignored", "rate_limited",
	"finished", "empty", "cancelled", "replaced", "expired")

func init() {
	statuses["canceled"] = "cancelled"
	outcomes["canceled"] = "cancelled"
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if canonical, ok := levels.lookup(level); ok {
		return canonical
	}
	return strings.ToUpper(level)
}

// defaultKeyOrder puts correlation keys first, then the upload and library
// keys, then diagnostics. Keys not listed follow alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "update_id", "user_id", "chat_id", "handler",
	"session_id", "step", "book_id", "lesson_id", "position", "lessons", "outcome",
	"cb_key", "query", "results", "count",
	"duration_ms", "messages", "media", "kb",
	"action", "method", "attempt", "attempts", "delay_ms",
	"mode", "listen", "public_url", "db", "host", "port",
	"err", "err_code", "kind", "ts_unix_nano",
}
