// Package callbacks decodes inline button presses.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Data is a decoded button press: the route key and its payload.
type Data struct {
	Unique  string
	Payload string
}

// Parse decodes a callback. Telebot fills Unique itself for routed buttons;
// otherwise Data holds the raw "\f<unique>|<payload>" form.
func Parse(cb *tele.Callback) Data {
	if cb == nil {
		return Data{}
	}
	if cb.Unique != "" {
		return Data{Unique: cb.Unique, Payload: cb.Data}
	}
	unique, payload, _ := strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return Data{Unique: strings.TrimSpace(unique), Payload: payload}
}

// Payload returns the payload of the pressed button, if any.
func Payload(c tele.Context) string {
	return Parse(c.Callback()).Payload
}
