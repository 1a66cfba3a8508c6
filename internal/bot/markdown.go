package bot

import "strings"

const markdownV2Specials = `_*[]()~` + "`" + `>#+-=|{}.!`

// escapeMarkdownV2 backslash-escapes every character Telegram treats as
// markup in MarkdownV2 parse mode.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
