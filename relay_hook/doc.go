// Package relayhook bridges Handoff lifecycle events to Relay for webhook
// delivery. When registered as an extension, it emits typed webhook events
// (handoff.task.completed, handoff.agent.disconnected, etc.) at every
// lifecycle point.
//
// Usage:
//
//	r, _ := relay.New(relay.WithStore(store))
//	relayhook.RegisterAll(ctx, r)
//
//	hook := relayhook.New(r)
//	coordinator.WithExtension(hook)
//
// To restrict which events are emitted:
//
//	hook := relayhook.New(r,
//	    relayhook.WithEvents(
//	        relayhook.EventTaskCompleted,
//	        relayhook.EventAgentDisconnected,
//	    ),
//	)
package relayhook
