// Package tgui holds small Telegram UI helpers: an inline-keyboard builder
// and HTML escaping for message bodies rendered with ParseMode=HTML.
package tgui
