// Package bot implements the chat-facing behaviour: slash commands, the
// multi-step set/rename dialogs and inline keyboard callbacks, on top of
// the vault service.
package bot

import (
	"io"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/otpbot/internal/conversation"
	tg "github.com/m3rciful/otpbot/internal/telegram"
	"github.com/m3rciful/otpbot/internal/telegram/helpers"
	"github.com/m3rciful/otpbot/internal/telegram/keyboard"
	"github.com/m3rciful/otpbot/internal/vault"
)

// FileFetcher downloads Telegram-hosted files; *tele.Bot satisfies it.
type FileFetcher interface {
	File(file *tele.File) (io.ReadCloser, error)
}

// Bot holds the handlers' shared collaborators.
type Bot struct {
	svc   *vault.Service
	conv  *conversation.Registry
	files FileFetcher
}

// New builds a Bot. The file fetcher is attached later via SetFiles,
// once the Telegram client exists.
func New(svc *vault.Service, conv *conversation.Registry) *Bot {
	return &Bot{svc: svc, conv: conv}
}

// SetFiles wires the photo download transport. Must be called before
// updates start flowing.
func (b *Bot) SetFiles(f FileFetcher) {
	b.files = f
}

// Register adds all commands to the registry. Callback handling is not
// registry-based; see DispatchCallback.
func (b *Bot) Register(reg *tg.Registry) {
	reg.RegisterCommand("/set", tg.Command{
		Handler:     b.handleSet,
		Description: "Add a new secret key",
	})
	reg.RegisterCommand("/cancel", tg.Command{
		Handler:     b.handleCancel,
		Description: "Cancel the current operation",
	})
	reg.RegisterCommand("/generate", tg.Command{
		Handler:     b.handleGenerate,
		Description: "Generate a TOTP",
	})
	reg.RegisterCommand("/delete", tg.Command{
		Handler:     b.handleDelete,
		Description: "Delete a key",
	})
	reg.RegisterCommand("/rename", tg.Command{
		Handler:     b.handleRename,
		Description: "Rename a key",
	})
	reg.RegisterCommand("/help", tg.Command{
		Handler:     b.handleHelp,
		Description: "Show available commands",
		Aliases:     []string{"/start"},
	})
	reg.RegisterCommand("/echo", tg.Command{
		Handler:     b.handleEcho,
		Description: "Echo a message back",
		Hidden:      true,
	})
}

func chatAndOwner(c tele.Context) (chatID, ownerID int64) {
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		ownerID = user.ID
	}
	return chatID, ownerID
}

// commandPayload returns the argument after the command, e.g. "work"
// for "/generate work".
func commandPayload(c tele.Context) string {
	if msg := c.Message(); msg != nil && msg.Payload != "" {
		return strings.TrimSpace(msg.Payload)
	}
	return ""
}

// keyMenu builds a one-button-per-row keyboard of the owner's key names
// with the given callback prefix.
func keyMenu(names []string, prefix string) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(names))
	for _, name := range names {
		buttons = append(buttons, keyboard.InlineBtn{Text: name, Data: prefix + name})
	}
	return keyboard.Inline(buttons)
}

func sendWithMenu(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return helpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
}
