// Package keyboard builds inline keyboards from plain data strings. The
// buttons carry raw callback data so handlers can parse it by prefix.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes one inline button.
type InlineBtn struct {
	Text string
	Data string
}

// Inline builds an inline keyboard with each button on its own row.
func Inline(buttons []InlineBtn) *tele.ReplyMarkup {
	rows := make([][]InlineBtn, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineBtn{b})
	}
	return InlineRows(rows...)
}

// InlineRows builds an inline keyboard from explicit rows.
func InlineRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = tele.InlineButton{Text: btn.Text, Data: btn.Data}
		}
		inline[i] = r
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}

// RemoveKeyboard returns a markup that hides any reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}
