// Package commands describes the slash commands held by the bot registry.
package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Args is printed after the name in help output, e.g. "<title>".
	Args string
	// AdminOnly commands run behind the admin check.
	AdminOnly bool
	// Hidden commands are accepted but left out of the Telegram menu.
	Hidden  bool
	Aliases []string
}

// Listed reports whether the command belongs in the Telegram command menu.
func (c Command) Listed() bool { return !c.Hidden && !c.AdminOnly }

// Restricted reports whether only admins should see the command in help.
func (c Command) Restricted() bool { return c.Hidden || c.AdminOnly }

// Usage renders "name args" for help output.
func (c Command) Usage(name string) string {
	return strings.TrimSpace(name + " " + c.Args)
}
