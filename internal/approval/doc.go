// Package approval implements the human-in-the-loop confirmation workflow.
//
// A worker registers a proposed change with RequestApproval and immediately moves
// on. The returned id travels with the chat prompt; when the human presses a
// button, the poller calls Resolve with that id and the coordinator runs the
// resume action registered for the chosen branch.
//
// # Components
//
//   - Store: in-memory map of pending requests with expiry based on an injected Clock.
//     Take is exactly-once: concurrent callers on one id see a single success.
//   - Coordinator: creates requests, interprets resume actions through a handler
//     registry, and converts every outcome (including handler panics) into a Result.
//
// # Expiry
//
// A request created at T with timeout W can be taken at any time before T+W.
// At T+W or later it is reported as not found, whether it was removed by Sweep
// or discovered by Take. Expiry never runs a resume action.
package approval
