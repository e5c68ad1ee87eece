// Package poller runs the inbound event loop that turns button presses into
// approval decisions.
//
// The loop long-polls the chat transport, advances its cursor past every event
// it receives and dispatches events whose action identifier carries a decision
// prefix to the approval coordinator. Other events are ignored.
//
// Resume actions run inline on the poller goroutine. A slow action (a large
// spreadsheet edit, for example) delays the next poll by its duration, which
// bounds approval throughput to one decision at a time. Interactive approval
// volume is low enough for this to be acceptable.
//
// Stop only clears the running flag. An in-flight long poll completes before
// the loop notices and exits; use Done to wait for that.
package poller
