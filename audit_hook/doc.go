// Package audithook is a Handoff extension that bridges lifecycle events
// to an immutable audit trail backend such as Chronicle.
//
// Every workflow, task, and agent lifecycle hook emits a structured audit
// event through the [Recorder] interface. The extension assigns appropriate
// severity levels (info for normal operations, warning for blocked tasks and
// agent loss) and rich metadata (workflow name, task state, assigned agent,
// elapsed time).
//
// # Usage with Chronicle
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return chronicle.Info(ctx, evt.Action, evt.Resource, evt.ResourceID).
//	        Category(evt.Category).
//	        Outcome(evt.Outcome).
//	        Record()
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionTaskBlocked,
//	        audithook.ActionAgentDisconnected,
//	    ),
//	)
package audithook
