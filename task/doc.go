// Package task defines the task record, its five-state lifecycle, and
// the fixed transition graph that governs it.
//
// # States
//
// A task is created pending, moves to in_progress when an agent picks
// it up, optionally passes through review, and ends completed. Blocked
// is an escape hatch reachable from every non-terminal state; a blocked
// task re-enters the flow through pending or in_progress. Completed is
// terminal.
//
// # Transitions
//
// The graph is fixed and validated by CanTransition. Dependency gating
// (a task may only start once every dependency is completed) is layered
// on top by the workflow state machine; this package only knows about
// edges between states.
package task
