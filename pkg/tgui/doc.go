// Package tgui provides small Telegram UI helpers:
//   - Reply keyboard builders (persistent button menus)
//   - Keyboard removal markup
//
// Design goals:
//   - Ergonomic for plugins (one builder covers rows + options)
//   - Button labels double as the plain-text triggers the dispatcher matches
package tgui
