package bot

import (
	"errors"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/otpbot/internal/conversation"
	"github.com/m3rciful/otpbot/internal/storage"
	"github.com/m3rciful/otpbot/internal/telegram/helpers"
	"github.com/m3rciful/otpbot/internal/telegram/keyboard"
	"github.com/m3rciful/otpbot/internal/vault"
)

func (b *Bot) handleSet(c tele.Context) error {
	chatID, _ := chatAndOwner(c)
	// /set always restarts, discarding any in-flight conversation.
	b.conv.Begin(chatID, conversation.StepAwaitingName)
	return helpers.SendText(c, msgSetPrompt)
}

func (b *Bot) handleCancel(c tele.Context) error {
	chatID, _ := chatAndOwner(c)
	if b.conv.Get(chatID) == nil {
		return helpers.SendText(c, msgNothingToDo)
	}
	b.conv.Clear(chatID)
	return helpers.SendText(c, msgCancelled)
}

func (b *Bot) handleGenerate(c tele.Context) error {
	if name := commandPayload(c); name != "" {
		return b.sendToken(c, name, false)
	}
	return b.sendKeyMenu(c, cbGenerate, msgChooseGenerate, msgNoKeysYet)
}

func (b *Bot) handleDelete(c tele.Context) error {
	return b.sendKeyMenu(c, cbDelete, msgChooseDelete, msgNoKeysDelete)
}

func (b *Bot) handleRename(c tele.Context) error {
	return b.sendKeyMenu(c, cbRename, msgChooseRename, msgNoKeysRename)
}

func (b *Bot) sendKeyMenu(c tele.Context, prefix, header, emptyMsg string) error {
	ctx := helpers.BuildContext(c)
	_, ownerID := chatAndOwner(c)

	names, err := b.svc.ListNames(ctx, ownerID)
	if err != nil {
		logFailure(ctx, "keys.list.fail", err)
		return helpers.SendText(c, msgGenericError)
	}
	if len(names) == 0 {
		return helpers.SendText(c, emptyMsg)
	}
	return sendWithMenu(c, header, keyMenu(names, prefix))
}

func (b *Bot) handleHelp(c tele.Context) error {
	markup := keyboard.Inline([]keyboard.InlineBtn{
		{Text: "/set - Add a new secret key", Data: cbHelp + "set"},
		{Text: "/generate - Generate a TOTP", Data: cbHelp + "generate"},
		{Text: "/delete - Delete a key", Data: cbHelp + "delete"},
		{Text: "/rename - Rename a key", Data: cbHelp + "rename"},
	})
	return sendWithMenu(c, msgHelpHeader, markup)
}

func (b *Bot) handleEcho(c tele.Context) error {
	text := commandPayload(c)
	if text == "" {
		return nil
	}
	return helpers.SendText(c, text)
}

// sendToken looks up the key and delivers the code. When edit is true
// the callback's menu message is rewritten in place.
func (b *Bot) sendToken(c tele.Context, name string, edit bool) error {
	ctx := helpers.BuildContext(c)
	_, ownerID := chatAndOwner(c)

	code, err := b.svc.Generate(ctx, ownerID, name)

	var text string
	markdown := false
	switch {
	case err == nil:
		text = msgToken(name, code)
		markdown = true
	case errors.Is(err, storage.ErrNotFound):
		text = msgNoKeyFound(name)
	case errors.Is(err, vault.ErrBadSecret):
		text = msgBadSecret
	default:
		logFailure(ctx, "token.generate.fail", err)
		text = msgGenericError
	}

	switch {
	case edit && markdown:
		return helpers.EditMDV2(c, text)
	case edit:
		return helpers.EditText(c, text)
	case markdown:
		return helpers.SendMDV2(c, text)
	default:
		return helpers.SendText(c, text)
	}
}
