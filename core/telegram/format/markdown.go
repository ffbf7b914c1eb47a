// Package format escapes user text for Telegram's Markdown parse modes.
package format

import "strings"

var (
	legacy = replacerFor("_*`[")
	v2     = replacerFor("_*[]()~`>#+-=|{}.!\\")
)

func replacerFor(special string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(special))
	for _, r := range special {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// MD escapes text for the legacy Markdown mode used by the bot's messages.
func MD(text string) string {
	return legacy.Replace(text)
}

// MDv2 escapes text for MarkdownV2.
func MDv2(text string) string {
	return v2.Replace(text)
}
