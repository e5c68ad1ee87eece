// Package telegram implements the chat transport and notifier on the Telegram
// Bot API.
//
// Outbound messages are rate limited and retried with exponential backoff.
// Markdown messages that Telegram rejects with HTTP 400 are resent as plain
// text. Inbound events come from getUpdates long polling; HTTP 409 (another
// consumer is polling the same bot) is reported as chat.ErrConflict.
//
// When no chat id is configured the client still polls but every outbound
// message is skipped with a warning.
package telegram
