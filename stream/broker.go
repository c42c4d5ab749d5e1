package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/ext"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Broker)(nil)
	_ ext.WorkflowCreated   = (*Broker)(nil)
	_ ext.WorkflowCompleted = (*Broker)(nil)
	_ ext.TaskAssigned      = (*Broker)(nil)
	_ ext.TaskStarted       = (*Broker)(nil)
	_ ext.TaskTransitioned  = (*Broker)(nil)
	_ ext.TaskCompleted     = (*Broker)(nil)
	_ ext.TaskBlocked       = (*Broker)(nil)
	_ ext.TaskHandoff       = (*Broker)(nil)
	_ ext.AgentConnected    = (*Broker)(nil)
	_ ext.AgentDisconnected = (*Broker)(nil)
	_ ext.Shutdown          = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Broker is the real-time stream broker. It implements the ext.Extension
// interface to receive lifecycle events and fans them out to subscribers
// via topic-based pub/sub.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	// Subscriber management.
	subscribers sync.Map // subscriberID → *Subscriber

	// Metrics.
	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	// dropLog throttles the slow-subscriber warning so a stuck client
	// does not flood the log.
	dropLog rate.Sometimes

	// Config.
	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker creates a new stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		dropLog:        rate.Sometimes{Interval: 10 * time.Second},
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry for external use (e.g., push server).
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID string, topics ...string) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return
	}
	sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	b.subscribers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    b.totalDropped.Load(),
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// publish creates an event and broadcasts it to all matching topics.
func (b *Broker) publish(evt *Event) {
	topics := resolveTopics(evt)
	delivered, dropped := b.topics.Broadcast(topics, evt)
	b.totalPublished.Add(int64(delivered))
	if dropped > 0 {
		b.totalDropped.Add(int64(dropped))
		b.dropLog.Do(func() {
			b.logger.Warn("stream events dropped for slow subscribers",
				slog.String("event_type", string(evt.Type)),
				slog.Int64("total_dropped", b.totalDropped.Load()),
			)
		})
	}
}

// mustMarshal marshals data to JSON, panicking on error (programming error).
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("stream: marshal event data: " + err.Error())
	}
	return data
}

func workflowData(wf *workflow.Workflow) WorkflowEventData {
	d := WorkflowEventData{
		WorkflowID: wf.ID.String(),
		Name:       wf.Name,
		Status:     string(wf.Status),
	}
	if wf.CurrentTaskID != nil {
		d.CurrentTaskID = wf.CurrentTaskID.String()
	}
	return d
}

func taskData(wf *workflow.Workflow, t *task.Task) TaskEventData {
	return TaskEventData{
		WorkflowID: wf.ID.String(),
		TaskID:     t.ID.String(),
		TaskName:   t.Name,
		State:      string(t.State),
		Agent:      t.AssignedAgent,
	}
}

// ── Workflow lifecycle hooks ────────────────────────

func (b *Broker) OnWorkflowCreated(_ context.Context, wf *workflow.Workflow) error {
	b.publish(&Event{
		Type:      EventWorkflowCreated,
		Timestamp: time.Now().UTC(),
		Topic:     WorkflowTopic(wf.ID.String()),
		Data:      mustMarshal(workflowData(wf)),
	})
	return nil
}

func (b *Broker) OnWorkflowCompleted(_ context.Context, wf *workflow.Workflow, elapsed time.Duration) error {
	d := workflowData(wf)
	d.ElapsedMs = elapsed.Milliseconds()
	b.publish(&Event{
		Type:      EventWorkflowCompleted,
		Timestamp: time.Now().UTC(),
		Topic:     WorkflowTopic(wf.ID.String()),
		Data:      mustMarshal(d),
	})
	return nil
}

// ── Task lifecycle hooks ────────────────────────────

func (b *Broker) OnTaskAssigned(_ context.Context, wf *workflow.Workflow, t *task.Task) error {
	b.publish(&Event{
		Type:      EventTaskAssigned,
		Timestamp: time.Now().UTC(),
		Topic:     TaskTopic(t.ID.String()),
		Data:      mustMarshal(taskData(wf, t)),
	})
	return nil
}

func (b *Broker) OnTaskStarted(_ context.Context, wf *workflow.Workflow, t *task.Task) error {
	b.publish(&Event{
		Type:      EventTaskStarted,
		Timestamp: time.Now().UTC(),
		Topic:     TaskTopic(t.ID.String()),
		Data:      mustMarshal(taskData(wf, t)),
	})
	return nil
}

func (b *Broker) OnTaskTransitioned(_ context.Context, wf *workflow.Workflow, t *task.Task, from, _ task.State) error {
	d := taskData(wf, t)
	d.FromState = string(from)
	b.publish(&Event{
		Type:      EventTaskTransitioned,
		Timestamp: time.Now().UTC(),
		Topic:     TaskTopic(t.ID.String()),
		Data:      mustMarshal(d),
	})
	return nil
}

func (b *Broker) OnTaskCompleted(_ context.Context, wf *workflow.Workflow, t *task.Task, elapsed time.Duration) error {
	d := taskData(wf, t)
	d.ElapsedMs = elapsed.Milliseconds()
	b.publish(&Event{
		Type:      EventTaskCompleted,
		Timestamp: time.Now().UTC(),
		Topic:     TaskTopic(t.ID.String()),
		Data:      mustMarshal(d),
	})
	return nil
}

func (b *Broker) OnTaskBlocked(_ context.Context, wf *workflow.Workflow, t *task.Task) error {
	b.publish(&Event{
		Type:      EventTaskBlocked,
		Timestamp: time.Now().UTC(),
		Topic:     TaskTopic(t.ID.String()),
		Data:      mustMarshal(taskData(wf, t)),
	})
	return nil
}

func (b *Broker) OnTaskHandoff(_ context.Context, wf *workflow.Workflow, completed, next *task.Task) error {
	d := taskData(wf, completed)
	if next != nil {
		d.NextTaskID = next.ID.String()
		d.NextTaskName = next.Name
	}
	b.publish(&Event{
		Type:      EventTaskHandoff,
		Timestamp: time.Now().UTC(),
		Topic:     WorkflowTopic(wf.ID.String()),
		Data:      mustMarshal(d),
	})
	return nil
}

// ── Agent lifecycle hooks ───────────────────────────

func (b *Broker) OnAgentConnected(_ context.Context, a *agent.Agent) error {
	b.publish(&Event{
		Type:      EventAgentConnected,
		Timestamp: time.Now().UTC(),
		Topic:     AgentTopic(a.ID),
		Data: mustMarshal(AgentEventData{
			AgentID: a.ID,
			Name:    a.Name,
		}),
	})
	return nil
}

func (b *Broker) OnAgentDisconnected(_ context.Context, agentID string, blocked []id.TaskID) error {
	blockedIDs := make([]string, len(blocked))
	for i, tid := range blocked {
		blockedIDs[i] = tid.String()
	}
	b.publish(&Event{
		Type:      EventAgentDisconnected,
		Timestamp: time.Now().UTC(),
		Topic:     AgentTopic(agentID),
		Data: mustMarshal(AgentEventData{
			AgentID:      agentID,
			BlockedTasks: blockedIDs,
		}),
	})
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (b *Broker) OnShutdown(_ context.Context) error {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		sub.Close()
		b.subscribers.Delete(key)
		return true
	})
	b.logger.Info("stream broker shut down")
	return nil
}
