package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

func testWorkflow() (*workflow.Workflow, *task.Task) {
	t := &task.Task{
		ID:    id.NewTaskID(),
		Name:  "design",
		State: task.StateInProgress,
	}
	wf := &workflow.Workflow{
		ID:     id.NewWorkflowID(),
		Name:   "release",
		Status: workflow.StatusActive,
		Tasks:  map[id.TaskID]*task.Task{t.ID: t},
		Order:  []id.TaskID{t.ID},
	}
	return wf, t
}

func recvEvent(t *testing.T, sub *Subscriber) *Event {
	t.Helper()
	select {
	case evt := <-sub.C():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBrokerFanout(t *testing.T) {
	t.Parallel()

	b := NewBroker(slog.Default())
	wf, tk := testWorkflow()

	fire := b.Subscribe("fire", TopicFirehose)
	tasks := b.Subscribe("tasks", TopicTasks)
	thisTask := b.Subscribe("this-task", TaskTopic(tk.ID.String()))
	workflows := b.Subscribe("workflows", TopicWorkflows)

	if err := b.OnTaskStarted(context.Background(), wf, tk); err != nil {
		t.Fatalf("OnTaskStarted: %v", err)
	}

	for _, sub := range []*Subscriber{fire, tasks, thisTask} {
		evt := recvEvent(t, sub)
		if evt.Type != EventTaskStarted {
			t.Errorf("%s got %s, want task.started", sub.ID(), evt.Type)
		}
		var data TaskEventData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if data.TaskID != tk.ID.String() || data.TaskName != "design" {
			t.Errorf("%s data = %+v", sub.ID(), data)
		}
	}

	// Workflow-topic subscriber must not see a task event.
	select {
	case evt := <-workflows.C():
		t.Errorf("workflows subscriber got unexpected %s", evt.Type)
	default:
	}
}

func TestBrokerDeduplicatesAcrossTopics(t *testing.T) {
	t.Parallel()

	b := NewBroker(slog.Default())
	wf, tk := testWorkflow()

	// Subscribed to both firehose and the task topic; one delivery only.
	sub := b.Subscribe("both", TopicFirehose, TaskTopic(tk.ID.String()))

	_ = b.OnTaskBlocked(context.Background(), wf, tk)

	recvEvent(t, sub)
	select {
	case evt := <-sub.C():
		t.Errorf("duplicate delivery: %s", evt.Type)
	default:
	}
}

func TestBrokerHandoffEvent(t *testing.T) {
	t.Parallel()

	b := NewBroker(slog.Default())
	wf, tk := testWorkflow()
	next := &task.Task{ID: id.NewTaskID(), Name: "build", State: task.StatePending}

	sub := b.Subscribe("wf", WorkflowTopic(wf.ID.String()))
	_ = b.OnTaskHandoff(context.Background(), wf, tk, next)

	evt := recvEvent(t, sub)
	if evt.Type != EventTaskHandoff {
		t.Fatalf("type = %s", evt.Type)
	}
	var data TaskEventData
	_ = json.Unmarshal(evt.Data, &data)
	if data.NextTaskID != next.ID.String() || data.NextTaskName != "build" {
		t.Errorf("handoff data = %+v", data)
	}
}

func TestSubscriberCredits(t *testing.T) {
	t.Parallel()

	b := NewBroker(slog.Default(), WithDefaultCredits(2))
	wf, tk := testWorkflow()
	sub := b.Subscribe("limited", TopicTasks)

	for i := 0; i < 5; i++ {
		_ = b.OnTaskStarted(context.Background(), wf, tk)
	}

	// Only two events delivered; the rest dropped for lack of credits.
	recvEvent(t, sub)
	recvEvent(t, sub)
	select {
	case evt := <-sub.C():
		t.Errorf("got event past credit limit: %s", evt.Type)
	default:
	}
	if sub.Credits() != 0 {
		t.Errorf("credits = %d, want 0", sub.Credits())
	}
	if sub.Dropped() != 3 {
		t.Errorf("dropped = %d, want 3", sub.Dropped())
	}
	if got := b.Stats().TotalDropped; got != 3 {
		t.Errorf("broker dropped = %d, want 3", got)
	}

	// Replenishing credits resumes delivery.
	sub.AddCredits(10)
	_ = b.OnTaskStarted(context.Background(), wf, tk)
	recvEvent(t, sub)
}

func TestSubscriberFilter(t *testing.T) {
	t.Parallel()

	b := NewBroker(slog.Default())
	wf, tk := testWorkflow()
	sub := b.Subscribe("filtered", TopicFirehose)
	sub.SetFilter(func(evt *Event) bool { return evt.Type == EventTaskCompleted })

	_ = b.OnTaskStarted(context.Background(), wf, tk)
	_ = b.OnTaskCompleted(context.Background(), wf, tk, time.Second)

	evt := recvEvent(t, sub)
	if evt.Type != EventTaskCompleted {
		t.Errorf("type = %s, want task.completed", evt.Type)
	}
}

func TestRemoveSubscriber(t *testing.T) {
	t.Parallel()

	b := NewBroker(slog.Default())
	sub := b.Subscribe("gone", TopicFirehose, TopicTasks)

	b.RemoveSubscriber("gone")

	if _, ok := b.GetSubscriber("gone"); ok {
		t.Error("subscriber still registered")
	}
	if got := b.Topics().TopicCount(); got != 0 {
		t.Errorf("topic count = %d, want 0", got)
	}
	// Channel closed.
	if _, open := <-sub.C(); open {
		t.Error("channel still open")
	}
}

func TestValidateTopic(t *testing.T) {
	t.Parallel()

	valid := []string{
		TopicFirehose, TopicTasks, TopicWorkflows, TopicAgents,
		WorkflowTopic("wf_1"), TaskTopic("task_1"), AgentTopic("a1"),
	}
	for _, topic := range valid {
		if err := ValidateTopic(topic); err != nil {
			t.Errorf("ValidateTopic(%q) = %v", topic, err)
		}
	}
	invalid := []string{"", "jobs", "queue:default", "task:", ":id"}
	for _, topic := range invalid {
		if err := ValidateTopic(topic); err == nil {
			t.Errorf("ValidateTopic(%q) should fail", topic)
		}
	}
}

func TestShutdownClosesSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBroker(slog.Default())
	sub := b.Subscribe("s1", TopicFirehose)

	if err := b.OnShutdown(context.Background()); err != nil {
		t.Fatalf("OnShutdown: %v", err)
	}
	if _, open := <-sub.C(); open {
		t.Error("subscriber channel still open after shutdown")
	}
}
