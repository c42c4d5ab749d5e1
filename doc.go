// Package handoff provides a durable coordinator for multi-step workflows
// that are decomposed into dependent tasks and handed off sequentially
// between autonomous worker agents.
//
// Handoff is designed as a library, not a service. Import it, configure a
// store, and drive workflows through the coordinator:
//
//	co, err := coordinator.New(coordinator.WithStore(memory.New()))
//	if err != nil { ... }
//	if err := co.Initialize(ctx); err != nil { ... }
//
//	wf, err := co.CreateWorkflow(ctx, workflow.Spec{
//	    Name: "deploy",
//	    Tasks: []task.Spec{
//	        {Name: "build"},
//	        {Name: "test", DependsOn: []string{"build"}},
//	        {Name: "ship", DependsOn: []string{"test"}},
//	    },
//	})
//
// # Architecture
//
// Handoff follows a composable store pattern where each subsystem (workflow,
// audit, agent) defines its own store interface. A single backend implements
// all of them; Postgres, Bun, SQLite, Redis, and Memory backends ship with
// the library.
//
// Three components form the core. The state machine (workflow.Machine) is the
// pure in-memory authority over transition legality, dependency gating, and
// workflow advancement. The persistence layer is a write-through durable
// mirror and the sole crash-recovery mechanism. The coordinator sequences the
// two and emits lifecycle events consumed by the stream broker and the push
// channel.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers. Agent identities are caller-supplied
// strings, never generated by Handoff.
package handoff
