// Package keyboard builds inline keyboards, including paged lists that stay
// under Telegram's per-message button limit.
package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// MaxButtons is Telegram's limit on inline buttons in a single message.
const MaxButtons = 100

// Button is one inline button. Unique routes the press and Payload travels
// with it as callback data.
type Button struct {
	Text    string
	Unique  string
	Payload string
}

// Rows builds an inline keyboard from rows of buttons. Empty rows are dropped.
func Rows(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Payload).Inline()
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// Column places each button on its own row.
func Column(btns []Button) *tele.ReplyMarkup {
	return Rows(column(btns)...)
}

func column(btns []Button) [][]Button {
	rows := make([][]Button, 0, len(btns))
	for _, b := range btns {
		rows = append(rows, []Button{b})
	}
	return rows
}

// Cancel is a one-button keyboard whose press arrives as unique|cancel.
func Cancel(unique, label string) *tele.ReplyMarkup {
	if label == "" {
		label = "❌ Cancel"
	}
	return Rows([]Button{{Text: label, Unique: unique, Payload: "cancel"}})
}

// Pager splits long button lists into pages. Navigation presses arrive on
// Unique with a payload of "<scope>:<page>".
type Pager struct {
	Size     int
	Unique   string
	PrevText string
	NextText string
}

// Pages reports how many pages n items span.
func (p Pager) Pages(n int) int {
	size := p.size()
	if n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

func (p Pager) size() int {
	if p.Size <= 0 || p.Size > MaxButtons-3 {
		return 20
	}
	return p.Size
}

// Page lays out one page of btns in a column, then a navigation row when the
// list spans several pages, then footer on its own row. page is clamped to
// the valid range and returned.
func (p Pager) Page(scope string, btns []Button, page int, footer ...Button) (*tele.ReplyMarkup, int) {
	pages := p.Pages(len(btns))
	page = max(0, min(page, pages-1))
	size := p.size()
	lo := page * size
	hi := min(lo+size, len(btns))

	rows := column(btns[lo:hi])
	if pages > 1 && p.Unique != "" {
		var nav []Button
		if page > 0 {
			nav = append(nav, Button{Text: orDefault(p.PrevText, "‹ Prev"), Unique: p.Unique, Payload: PagePayload(scope, page-1)})
		}
		if page < pages-1 {
			nav = append(nav, Button{Text: orDefault(p.NextText, "Next ›"), Unique: p.Unique, Payload: PagePayload(scope, page+1)})
		}
		rows = append(rows, nav)
	}
	rows = append(rows, footer)
	return Rows(rows...), page
}

// PagePayload encodes a navigation target.
func PagePayload(scope string, page int) string {
	return scope + ":" + strconv.Itoa(page)
}

// ParsePage decodes a payload produced by PagePayload.
func ParsePage(payload string) (scope string, page int, err error) {
	i := strings.LastIndexByte(payload, ':')
	if i < 0 {
		return "", 0, fmt.Errorf("keyboard: malformed page payload %q", payload)
	}
	page, err = strconv.Atoi(payload[i+1:])
	if err != nil || page < 0 {
		return "", 0, fmt.Errorf("keyboard: malformed page number in %q", payload)
	}
	return payload[:i], page, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
