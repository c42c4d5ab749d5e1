// Package agent tracks the agents that work tasks: a registry of who
// is connected, heartbeat bookkeeping, and a liveness monitor that
// sweeps stale agents offline.
package agent

import (
	"time"

	"github.com/xraph/handoff"
)

// Status represents an agent's connection state.
type Status string

const (
	// StatusOnline means the agent is connected and heartbeating.
	StatusOnline Status = "online"
	// StatusOffline means the agent disconnected or went stale.
	StatusOffline Status = "offline"
)

// Agent is a registered worker identity. IDs are caller-chosen strings;
// the coordinator treats them as opaque.
type Agent struct {
	handoff.Entity

	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Status      Status            `json:"status"`
	ConnectedAt time.Time         `json:"connected_at"`
	LastSeen    time.Time         `json:"last_seen"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Stale reports whether the agent's last heartbeat is older than ttl.
func (a *Agent) Stale(now time.Time, ttl time.Duration) bool {
	return a.Status == StatusOnline && now.Sub(a.LastSeen) > ttl
}

// Clone returns a copy of the agent.
func (a *Agent) Clone() *Agent {
	cp := *a
	if a.Metadata != nil {
		cp.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
