package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/handoff/push"
	"github.com/xraph/handoff/stream"
)

// Subscribe subscribes to a stream topic and returns a channel of events.
// The channel is closed when the client disconnects or Unsubscribe is called.
//
// Topics follow the handoff stream convention:
//   - "workflow:<workflowID>" — events for a specific workflow
//   - "task:<taskID>"         — events for a specific task
//   - "agent:<agentID>"       — events for a specific agent
//   - "workflows"             — all workflow lifecycle events
//   - "tasks"                 — all task lifecycle events
//   - "agents"                — all agent lifecycle events
//   - "firehose"              — everything
func (c *Client) Subscribe(ctx context.Context, channel string) (<-chan *stream.Event, error) {
	// Send subscribe request.
	_, err := c.request(ctx, push.MethodSubscribe, push.SubscribeRequest{
		Channel: channel,
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %q: %w", channel, err)
	}

	ch := make(chan *stream.Event, 64)
	c.subs.Store(channel, ch)

	return ch, nil
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(ctx context.Context, channel string) error {
	_, err := c.request(ctx, push.MethodUnsubscribe, push.UnsubscribeRequest{
		Channel: channel,
	})

	// Close and remove the local channel regardless.
	if val, ok := c.subs.LoadAndDelete(channel); ok {
		ch := val.(chan *stream.Event) //nolint:errcheck // subs map always stores chan *stream.Event
		close(ch)
	}

	return err
}

// Watch subscribes to events for a specific workflow and returns an
// event channel. This is a convenience method that subscribes to
// "workflow:<workflowID>".
func (c *Client) Watch(ctx context.Context, workflowID string) (<-chan *stream.Event, error) {
	return c.Subscribe(ctx, stream.WorkflowTopic(workflowID))
}

// WatchTask subscribes to events for a specific task.
func (c *Client) WatchTask(ctx context.Context, taskID string) (<-chan *stream.Event, error) {
	return c.Subscribe(ctx, stream.TaskTopic(taskID))
}

// Stats retrieves broker and connection statistics from the server.
func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.request(ctx, push.MethodStats, nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
