// Package workflow defines the workflow record, the pure state machine
// that governs task transitions within it, and the workflow store
// interface.
//
// # State machine
//
// Build constructs a workflow from a declarative spec, resolving
// dependency names to task IDs and rejecting cycles. Transition applies
// a single task state change: it validates the edge against the task
// graph, gates entry into in_progress on completed dependencies, keeps
// the current-task pointer honest, and advances the workflow when a
// task completes. All mutation happens on a clone so callers can
// persist first and swap in the new state only once the write lands.
//
// # Advancement
//
// When a task completes, the current-task pointer moves to the first
// pending task in creation order whose dependencies are all completed.
// If every task is completed the workflow itself completes; completed
// workflows never reactivate.
package workflow
