// Package chat defines the contracts between the approval workflow and a chat
// transport: outbound notifications, inbound decision events and the callback
// identifiers that link the two.
package chat
