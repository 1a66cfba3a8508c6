package bot

import "strings"

// actionKind enumerates the callback actions the bot understands.
type actionKind int

const (
	actionUnknown actionKind = iota
	actionGenerate
	actionDelete
	actionConfirmDelete
	actionCancelDelete
	actionRename
	actionHelp
)

func (k actionKind) String() string {
	switch k {
	case actionGenerate:
		return "generate"
	case actionDelete:
		return "delete"
	case actionConfirmDelete:
		return "confirm_delete"
	case actionCancelDelete:
		return "cancel_delete"
	case actionRename:
		return "rename"
	case actionHelp:
		return "help"
	default:
		return "unknown"
	}
}

// callbackAction is the decoded form of a button press. Name holds the
// key name, or the topic for help actions.
type callbackAction struct {
	Kind actionKind
	Name string
}

// Callback data prefixes. The order of prefix checks matters, since
// "confirm_delete_" would otherwise never win over plain delete.
const (
	cbGenerate      = "generate_"
	cbDelete        = "delete_"
	cbConfirmDelete = "confirm_delete_"
	cbCancelDelete  = "cancel_delete"
	cbRename        = "rename_"
	cbHelp          = "help_"
)

// parseCallbackAction decodes raw callback data into a typed action.
// Data arriving through telebot may carry the "\f" unique prefix; strip
// it so both encodings parse the same.
func parseCallbackAction(data string) (callbackAction, bool) {
	data = strings.TrimSpace(strings.TrimPrefix(data, "\f"))

	switch {
	case data == cbCancelDelete:
		return callbackAction{Kind: actionCancelDelete}, true
	case strings.HasPrefix(data, cbConfirmDelete):
		return callbackAction{Kind: actionConfirmDelete, Name: data[len(cbConfirmDelete):]}, true
	case strings.HasPrefix(data, cbGenerate):
		return callbackAction{Kind: actionGenerate, Name: data[len(cbGenerate):]}, true
	case strings.HasPrefix(data, cbDelete):
		return callbackAction{Kind: actionDelete, Name: data[len(cbDelete):]}, true
	case strings.HasPrefix(data, cbRename):
		return callbackAction{Kind: actionRename, Name: data[len(cbRename):]}, true
	case strings.HasPrefix(data, cbHelp):
		return callbackAction{Kind: actionHelp, Name: data[len(cbHelp):]}, true
	}
	return callbackAction{}, false
}
