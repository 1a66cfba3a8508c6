// Package telegram hosts the bot runtime: poller selection, HTTP client,
// command registry and the run loop.
package telegram

import (
	"context"
	"sort"
	"strings"

	"log/slog"

	"github.com/m3rciful/otpbot/internal/logger"

	tele "gopkg.in/telebot.v4"
)

// Command describes a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Hidden      bool
	Aliases     []string
}

// Registry holds the bot's commands and the free-text fallback. Callback
// updates are not registered here; they are parsed into typed actions by
// the router.
type Registry struct {
	commands     map[string]Command
	textFallback tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// RegisterCommand adds a command under its slash-prefixed name.
func (r *Registry) RegisterCommand(name string, cmd Command) {
	if r == nil || name == "" || cmd.Handler == nil || cmd.Description == "" {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "invalid"),
		)
		return
	}
	if name[0] != '/' {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "no_slash_prefix"),
		)
		return
	}
	if _, exists := r.commands[name]; exists {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.duplicate",
			slog.String("name", name),
		)
		return
	}
	r.commands[name] = cmd
}

// ListCommands returns tele.Command entries for the command menu,
// optionally filtering out hidden ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for name, meta := range r.commands {
		if visibleOnly && meta.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves a name or alias to its canonical command. The
// argument may arrive with or without the leading slash and may carry a
// trailing argument ("/generate work").
func (r *Registry) LookupCommand(name string) (string, Command, bool) {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, ' '); i > 0 {
		name = name[:i]
	}
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if alias == name || "/"+alias == name {
				return key, cmd, true
			}
		}
	}
	return "", Command{}, false
}

// Commands returns all registered commands keyed by name.
func (r *Registry) Commands() map[string]Command {
	return r.commands
}

// SetTextFallback installs the handler for text that matches no command
// and no active conversation step.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the installed fallback, which may be nil.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// SetupCommands publishes the visible command menu to Telegram.
func SetupCommands(bot *tele.Bot, reg *Registry) {
	if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
