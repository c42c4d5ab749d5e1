// Package middleware provides composable middleware for coordinator
// operations.
//
// The default stack applied by the coordinator is:
//
//	Recover → Tracing → Metrics → Logging
//
// Custom middleware appended via coordinator options run innermost,
// just before the operation itself.
package middleware
