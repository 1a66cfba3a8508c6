package bot

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/otpbot/internal/conversation"
	"github.com/m3rciful/otpbot/internal/logger"
	"github.com/m3rciful/otpbot/internal/telegram/helpers"
	"github.com/m3rciful/otpbot/internal/telegram/keyboard"
)

// DispatchCallback decodes the button press once and routes it by the
// typed action. Unknown data is logged and dropped.
func (b *Bot) DispatchCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}

	action, ok := parseCallbackAction(cb.Data)
	if !ok {
		ctx := helpers.BuildContext(c)
		logger.Warn(ctx, "bot", "callback.unknown",
			slog.String("cb_data", logger.SanitizeLimit(cb.Data, 128)),
		)
		return nil
	}

	switch action.Kind {
	case actionGenerate:
		return b.cbGenerate(c, action.Name)
	case actionDelete:
		return b.cbDeleteConfirm(c, action.Name)
	case actionConfirmDelete:
		return b.cbDelete(c, action.Name)
	case actionCancelDelete:
		return helpers.EditText(c, msgDeleteAborted)
	case actionRename:
		return b.cbRename(c, action.Name)
	case actionHelp:
		return helpers.EditText(c, helpTopicText(action.Name))
	}
	return nil
}

func (b *Bot) cbGenerate(c tele.Context, name string) error {
	if err := helpers.EditText(c, msgGenerating(name)); err != nil {
		return err
	}
	return b.sendToken(c, name, true)
}

// cbDeleteConfirm swaps the key menu for a yes/no gate. Deletion is the
// only destructive action, so it alone gets this extra step.
func (b *Bot) cbDeleteConfirm(c tele.Context, name string) error {
	markup := keyboard.InlineRows([]keyboard.InlineBtn{
		{Text: "Yes, delete it", Data: cbConfirmDelete + name},
		{Text: "No, cancel", Data: cbCancelDelete},
	})
	return helpers.EditText(c, msgDeleteConfirm(name), markup)
}

func (b *Bot) cbDelete(c tele.Context, name string) error {
	ctx := helpers.BuildContext(c)
	_, ownerID := chatAndOwner(c)

	if err := b.svc.Delete(ctx, ownerID, name); err != nil {
		logFailure(ctx, "key.delete.fail", err)
		return helpers.EditText(c, msgDeleteError)
	}
	return helpers.EditText(c, msgDeleted(name))
}

func (b *Bot) cbRename(c tele.Context, name string) error {
	chatID, _ := chatAndOwner(c)
	b.conv.Begin(chatID, conversation.StepAwaitingNewName)
	b.conv.Advance(chatID, conversation.StepAwaitingNewName, func(cv *conversation.Conversation) {
		cv.PendingOldName = name
	})
	return helpers.EditText(c, msgRenameSelected(name))
}

func helpTopicText(topic string) string {
	switch topic {
	case "set":
		return helpTextSet
	case "generate":
		return helpTextGenerate
	case "delete":
		return helpTextDelete
	case "rename":
		return helpTextRename
	default:
		return msgHelpUnknownTopic
	}
}
