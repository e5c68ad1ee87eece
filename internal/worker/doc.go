// Package worker runs the mailbox cycle: fetch unread email, summarize the
// attachments, ask the AI for an analysis, relay it to the chat and mark the
// email read.
//
// Spreadsheets with data-quality issues additionally produce an approval
// request. The worker registers it with the coordinator, sends the prompt with
// decision buttons and moves on without waiting; the edit itself runs later in
// the apply_edits resume action when the human approves.
package worker
