package bot

import "fmt"

// User-facing texts. Wording is part of the bot's contract with existing
// users, so handlers never improvise strings.
const (
	msgSetPrompt     = "Let's set up a new secret. What would you like to name it?"
	msgNameEmpty     = "Please provide a name for your key."
	msgNameInUse     = "Name already in use"
	msgSecretPrompt  = "Please send me the secret key as text, or a QR code image."
	msgSecretInUse   = "This secret is already in use. Please provide a different one."
	msgSaveError     = "An error occurred while saving your data."
	msgInvalidQR     = "Invalid QR code."
	msgNewNameEmpty  = "Please provide a new name for your key."
	msgNewNameTaken  = "This name is already taken. Please choose another one."
	msgRenameError   = "An error occurred while renaming the key."
	msgDeleteError   = "An error occurred while deleting the key."
	msgDeleteAborted = "Deletion cancelled."
	msgCancelled     = "The current operation has been cancelled."
	msgNothingToDo   = "There is no operation to cancel."
	msgGenericError  = "An error occurred."
	msgBadSecret     = "Could not generate a token. Is the secret valid?"

	msgNoKeysYet      = "You don't have any keys saved yet. Use /set to add one."
	msgNoKeysDelete   = "You don't have any keys to delete."
	msgNoKeysRename   = "You don't have any keys to rename."
	msgChooseGenerate = "Choose a key to generate a token:"
	msgChooseDelete   = "Choose a key to delete:"
	msgChooseRename   = "Choose a key to rename:"

	msgHelpHeader       = "Here are the commands you can use:"
	msgHelpUnknownTopic = "Unknown command. Please select from the options."

	helpTextSet      = "Use /set to add a new secret key. The bot will guide you through the process of providing a name and the secret (either as text or a QR code image)."
	helpTextGenerate = "Use /generate to get a TOTP. If you don't specify a key name (e.g., /generate mykey), the bot will show you a list of your saved keys to choose from."
	helpTextDelete   = "Use /delete to remove a saved key. The bot will ask you to choose which key to delete from a list and confirm your choice."
	helpTextRename   = "Use /rename to change the name of an existing key. The bot will guide you through selecting the key and providing a new name."
)

func msgNameAccepted(name string) string {
	return fmt.Sprintf(`Great! The name is set to "%s". Now, please send me the secret key, or a QR code containing it.`, name)
}

func msgSaved(name string) string {
	return fmt.Sprintf(`Success! Your secret for "%s" has been saved.`, name)
}

func msgRenamed(oldName, newName string) string {
	return fmt.Sprintf(`The key "%s" has been renamed to "%s".`, oldName, newName)
}

func msgDeleted(name string) string {
	return fmt.Sprintf(`The key "%s" has been deleted.`, name)
}

func msgDeleteConfirm(name string) string {
	return fmt.Sprintf(`Are you sure you want to delete the key "%s"?`, name)
}

func msgRenameSelected(name string) string {
	return fmt.Sprintf(`You have selected to rename "%s". What would you like to rename it to?`, name)
}

func msgGenerating(name string) string {
	return fmt.Sprintf(`Generating token for "%s"...`, name)
}

func msgNoKeyFound(name string) string {
	return fmt.Sprintf(`No key found with the name "%s".`, name)
}

// msgToken renders the MarkdownV2 spoiler with the code hidden until
// tapped. The name is escaped; the code is always plain digits.
func msgToken(name, code string) string {
	return fmt.Sprintf("Your TOTP for %s is: ||%s||", escapeMarkdownV2(name), code)
}
