package tgui

import tele "gopkg.in/telebot.v4"

// Reply builds a persistent reply keyboard row by row.
type Reply struct {
	rows    [][]tele.ReplyButton
	resize  bool
	oneTime bool
}

func NewReply() *Reply {
	return &Reply{resize: true}
}

// Row appends one keyboard row. Each label is both the visible button text
// and the exact message text Telegram sends when it is pressed.
func (r *Reply) Row(labels ...string) *Reply {
	if len(labels) == 0 {
		return r
	}
	row := make([]tele.ReplyButton, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		row = append(row, tele.ReplyButton{Text: l})
	}
	if len(row) > 0 {
		r.rows = append(r.rows, row)
	}
	return r
}

// OneTime hides the keyboard after the first press.
func (r *Reply) OneTime() *Reply {
	r.oneTime = true
	return r
}

// Markup renders the builder into telebot send options markup.
func (r *Reply) Markup() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{
		ReplyKeyboard:   r.rows,
		ResizeKeyboard:  r.resize,
		OneTimeKeyboard: r.oneTime,
	}
}

// RemoveReply tells the client to drop the current reply keyboard.
func RemoveReply() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}
