package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// DisconnectFunc is the callback the monitor invokes for each agent it
// sweeps offline. This breaks the import cycle: the coordinator
// provides the implementation.
type DisconnectFunc func(ctx context.Context, agentID string) error

// sweepParser supports standard 5-field cron and descriptors like
// "@every 10s".
var sweepParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithTTL sets how long an agent may go without a heartbeat before the
// sweep marks it offline.
func WithTTL(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.ttl = d }
}

// WithSchedule sets the sweep schedule as a cron expression or
// descriptor. The default is "@every 10s".
func WithSchedule(expr string) MonitorOption {
	return func(m *Monitor) { m.scheduleExpr = expr }
}

// Monitor periodically scans the agent registry and marks agents that
// stopped heartbeating as offline, invoking the disconnect callback for
// each so their in-flight tasks can be blocked.
type Monitor struct {
	store        Store
	disconnect   DisconnectFunc
	logger       *slog.Logger
	ttl          time.Duration
	scheduleExpr string
	schedule     cronlib.Schedule

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor creates a Monitor. disconnect may be nil, in which case
// stale agents are only marked offline.
func NewMonitor(store Store, disconnect DisconnectFunc, logger *slog.Logger, opts ...MonitorOption) (*Monitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		store:        store,
		disconnect:   disconnect,
		logger:       logger,
		ttl:          30 * time.Second,
		scheduleExpr: "@every 10s",
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	sched, err := sweepParser.Parse(m.scheduleExpr)
	if err != nil {
		return nil, err
	}
	m.schedule = sched
	return m, nil
}

// Start launches the sweep goroutine.
func (m *Monitor) Start(_ context.Context) error {
	m.wg.Add(1)
	go m.sweepLoop()
	m.logger.Info("agent monitor started",
		slog.String("schedule", m.scheduleExpr),
		slog.Duration("ttl", m.ttl),
	)
	return nil
}

// Stop signals the sweep goroutine and waits for it to exit.
func (m *Monitor) Stop(_ context.Context) error {
	close(m.stopCh)
	m.wg.Wait()
	return nil
}

func (m *Monitor) sweepLoop() {
	defer m.wg.Done()
	for {
		next := m.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-m.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			m.Sweep(context.Background())
		}
	}
}

// Sweep runs one pass over the registry. Exported for tests and for
// callers that want an immediate check.
func (m *Monitor) Sweep(ctx context.Context) {
	agents, err := m.store.ListAgents(ctx)
	if err != nil {
		m.logger.Error("agent sweep: list failed", slog.Any("error", err))
		return
	}
	now := time.Now()
	for _, a := range agents {
		if !a.Stale(now, m.ttl) {
			continue
		}
		if err := m.store.UpdateAgentStatus(ctx, a.ID, StatusOffline); err != nil {
			m.logger.Error("agent sweep: mark offline failed",
				slog.String("agent_id", a.ID),
				slog.Any("error", err),
			)
			continue
		}
		m.logger.Warn("agent went stale",
			slog.String("agent_id", a.ID),
			slog.Time("last_seen", a.LastSeen),
		)
		if m.disconnect != nil {
			if err := m.disconnect(ctx, a.ID); err != nil {
				m.logger.Error("agent sweep: disconnect handling failed",
					slog.String("agent_id", a.ID),
					slog.Any("error", err),
				)
			}
		}
	}
}
