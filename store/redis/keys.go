package redis

// Redis key naming conventions for handoff data.
// All keys are prefixed with "handoff:" to avoid collisions.

const keyPrefix = "handoff:"

// ── Workflow keys ──

// workflowKey returns the key for a workflow entity: handoff:wf:{id}
func workflowKey(id string) string { return keyPrefix + "wf:" + id }

// workflowIDsKey is the Sorted Set tracking all workflow IDs, scored
// by creation time so listings come back in creation order.
const workflowIDsKey = keyPrefix + "wf_ids"

// activeWorkflowsKey is the Set of workflow IDs that have not completed.
const activeWorkflowsKey = keyPrefix + "wf_active"

// ── Transition keys ──

// workflowTrailKey returns the List key holding a workflow's transition
// trail in append order: handoff:trail:wf:{id}
func workflowTrailKey(id string) string { return keyPrefix + "trail:wf:" + id }

// taskTrailKey returns the List key holding a task's transition trail
// in append order: handoff:trail:task:{id}
func taskTrailKey(id string) string { return keyPrefix + "trail:task:" + id }

// ── Agent keys ──

// agentKey returns the key for an agent entity: handoff:agent:{id}
func agentKey(id string) string { return keyPrefix + "agent:" + id }

// agentIDsKey is the Sorted Set tracking all agent IDs by registration
// time.
const agentIDsKey = keyPrefix + "agent_ids"
