package agent

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu     sync.Mutex
	agents map[string]*Agent
}

func newFakeStore() *fakeStore {
	return &fakeStore{agents: make(map[string]*Agent)}
}

func (s *fakeStore) SaveAgent(_ context.Context, a *Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a.Clone()
	return nil
}

func (s *fakeStore) GetAgent(_ context.Context, agentID string) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agents[agentID].Clone(), nil
}

func (s *fakeStore) ListAgents(_ context.Context) ([]*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (s *fakeStore) UpdateAgentStatus(_ context.Context, agentID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agentID].Status = status
	return nil
}

func (s *fakeStore) Heartbeat(_ context.Context, agentID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agentID].LastSeen = at
	return nil
}

func TestSweepMarksStaleAgentsOffline(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Now()
	_ = store.SaveAgent(context.Background(), &Agent{
		ID: "stale", Status: StatusOnline, LastSeen: now.Add(-time.Minute),
	})
	_ = store.SaveAgent(context.Background(), &Agent{
		ID: "fresh", Status: StatusOnline, LastSeen: now,
	})

	var disconnected []string
	m, err := NewMonitor(store, func(_ context.Context, agentID string) error {
		disconnected = append(disconnected, agentID)
		return nil
	}, nil, WithTTL(30*time.Second))
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	m.Sweep(context.Background())

	got, _ := store.GetAgent(context.Background(), "stale")
	if got.Status != StatusOffline {
		t.Errorf("stale agent status = %s, want offline", got.Status)
	}
	got, _ = store.GetAgent(context.Background(), "fresh")
	if got.Status != StatusOnline {
		t.Errorf("fresh agent status = %s, want online", got.Status)
	}
	if len(disconnected) != 1 || disconnected[0] != "stale" {
		t.Errorf("disconnect callbacks = %v, want [stale]", disconnected)
	}
}

func TestSweepSkipsOfflineAgents(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	_ = store.SaveAgent(context.Background(), &Agent{
		ID: "gone", Status: StatusOffline, LastSeen: time.Now().Add(-time.Hour),
	})

	calls := 0
	m, err := NewMonitor(store, func(context.Context, string) error {
		calls++
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	m.Sweep(context.Background())
	if calls != 0 {
		t.Errorf("disconnect called %d times for already-offline agent", calls)
	}
}

func TestNewMonitorRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	if _, err := NewMonitor(newFakeStore(), nil, nil, WithSchedule("not a schedule")); err == nil {
		t.Error("expected parse error for bad schedule")
	}
}
