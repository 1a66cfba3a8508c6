package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/otpbot/internal/conversation"
	"github.com/m3rciful/otpbot/internal/qr"
	"github.com/m3rciful/otpbot/internal/telegram/helpers"
	"github.com/m3rciful/otpbot/internal/vault"
)

// Active reports whether the chat is mid-dialog. The router calls this
// before command lookup on free text.
func (b *Bot) Active(chatID int64) bool {
	return b.conv.Get(chatID) != nil
}

// HandleText advances the chat's conversation with a text message.
func (b *Bot) HandleText(c tele.Context) error {
	chatID, _ := chatAndOwner(c)
	conv := b.conv.Get(chatID)
	if conv == nil {
		return nil
	}

	switch conv.Step {
	case conversation.StepAwaitingName:
		return b.stepName(c, strings.TrimSpace(c.Text()))
	case conversation.StepAwaitingSecret:
		return b.stepSecret(c, conv, c.Text())
	case conversation.StepAwaitingNewName:
		return b.stepNewName(c, conv, strings.TrimSpace(c.Text()))
	}
	return nil
}

// HandlePhoto advances the conversation with a photo. Only the secret
// step accepts one; other steps re-issue their text prompt.
func (b *Bot) HandlePhoto(c tele.Context) error {
	chatID, _ := chatAndOwner(c)
	conv := b.conv.Get(chatID)
	if conv == nil {
		return nil
	}

	if conv.Step != conversation.StepAwaitingSecret {
		switch conv.Step {
		case conversation.StepAwaitingName:
			return helpers.SendText(c, msgNameEmpty)
		case conversation.StepAwaitingNewName:
			return helpers.SendText(c, msgNewNameEmpty)
		}
		return nil
	}

	ctx := helpers.BuildContext(c)
	secret, err := b.decodePhotoSecret(ctx, c)
	if err != nil {
		logFailure(ctx, "qr.decode.fail", err)
		b.conv.Clear(chatID)
		return helpers.SendText(c, msgInvalidQR)
	}
	return b.stepSecret(c, conv, secret)
}

func (b *Bot) stepName(c tele.Context, name string) error {
	ctx := helpers.BuildContext(c)
	chatID, _ := chatAndOwner(c)

	switch err := b.svc.CheckName(ctx, name); {
	case err == nil:
	case errors.Is(err, vault.ErrEmptyName):
		b.conv.Clear(chatID)
		return helpers.SendText(c, msgNameEmpty)
	case errors.Is(err, vault.ErrNameTaken):
		b.conv.Clear(chatID)
		return helpers.SendText(c, msgNameInUse)
	default:
		logFailure(ctx, "name.check.fail", err)
		b.conv.Clear(chatID)
		return helpers.SendText(c, msgGenericError)
	}

	b.conv.Advance(chatID, conversation.StepAwaitingSecret, func(cv *conversation.Conversation) {
		cv.PendingName = name
	})
	return helpers.SendText(c, msgNameAccepted(name))
}

func (b *Bot) stepSecret(c tele.Context, conv *conversation.Conversation, secret string) error {
	ctx := helpers.BuildContext(c)
	chatID, ownerID := chatAndOwner(c)

	if strings.TrimSpace(secret) == "" {
		return helpers.SendText(c, msgSecretPrompt)
	}

	name := conv.PendingName
	switch err := b.svc.Save(ctx, ownerID, name, secret); {
	case err == nil:
		b.conv.Clear(chatID)
		return helpers.SendText(c, msgSaved(name))
	case errors.Is(err, vault.ErrSecretInUse):
		// Stay on this step so the user can try another secret.
		return helpers.SendText(c, msgSecretInUse)
	default:
		logFailure(ctx, "secret.save.fail", err)
		b.conv.Clear(chatID)
		return helpers.SendText(c, msgSaveError)
	}
}

func (b *Bot) stepNewName(c tele.Context, conv *conversation.Conversation, newName string) error {
	ctx := helpers.BuildContext(c)
	chatID, ownerID := chatAndOwner(c)

	oldName := conv.PendingOldName
	switch err := b.svc.Rename(ctx, ownerID, oldName, newName); {
	case err == nil:
		b.conv.Clear(chatID)
		return helpers.SendText(c, msgRenamed(oldName, newName))
	case errors.Is(err, vault.ErrEmptyName):
		return helpers.SendText(c, msgNewNameEmpty)
	case errors.Is(err, vault.ErrNameTaken):
		return helpers.SendText(c, msgNewNameTaken)
	default:
		logFailure(ctx, "key.rename.fail", err)
		b.conv.Clear(chatID)
		return helpers.SendText(c, msgRenameError)
	}
}

// decodePhotoSecret downloads the photo and extracts the QR payload.
// Telebot keeps only the largest size in Message.Photo.
func (b *Bot) decodePhotoSecret(_ context.Context, c tele.Context) (string, error) {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return "", fmt.Errorf("no photo in message")
	}
	if b.files == nil {
		return "", fmt.Errorf("file transport not attached")
	}

	rc, err := b.files.File(&msg.Photo.File)
	if err != nil {
		return "", fmt.Errorf("download photo: %w", err)
	}
	defer rc.Close()

	text, err := qr.Decode(rc)
	if err != nil {
		return "", err
	}
	return text, nil
}
