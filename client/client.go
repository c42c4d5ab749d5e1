// Package client provides a Go client for connecting to a remote Handoff
// coordinator via the Handoff Push Protocol (HPP) over WebSocket.
//
// Usage:
//
//	c, err := client.Dial("wss://api.example.com/push",
//	    client.WithToken("hk_..."),
//	)
//	defer c.Close()
//
//	// Create a workflow.
//	wf, err := c.CreateWorkflow(ctx, spec)
//
//	// Register an agent and watch workflow events.
//	_, err = c.RegisterAgent(ctx, "agent-researcher", "Researcher")
//	ch, err := c.Watch(ctx, wf.WorkflowID)
//	for evt := range ch {
//	    fmt.Printf("%s: %s\n", evt.Type, evt.Data)
//	}
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/handoff/backoff"
	"github.com/xraph/handoff/push"
	"github.com/xraph/handoff/stream"
)

// Client is an HPP client that communicates with a remote coordinator.
type Client struct {
	url    string
	token  string
	format string
	logger *slog.Logger

	// Reconnection.
	reconnect  bool
	maxRetries int
	retryDelay backoff.Strategy

	// Connection state.
	conn      net.Conn
	mu        sync.Mutex
	closed    atomic.Bool
	sessionID string

	// Request-response correlation.
	pending sync.Map // frameID → chan *push.Frame

	// Subscriptions.
	subs sync.Map // channel → chan *stream.Event
}

// Dial connects to an HPP server and authenticates.
func Dial(url string, opts ...Option) (*Client, error) {
	return DialContext(context.Background(), url, opts...)
}

// DialContext connects to an HPP server with a context.
func DialContext(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:        url,
		format:     "json",
		logger:     slog.Default(),
		maxRetries: 5,
		retryDelay: backoff.DefaultStrategy(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.connect(ctx); err != nil {
		return nil, fmt.Errorf("handoff/client: dial: %w", err)
	}

	// Start the read loop.
	go c.readLoop()

	return c, nil
}

// connect establishes the WebSocket connection and sends the auth frame.
// It reads the auth response directly since the readLoop hasn't started yet.
func (c *Client) connect(ctx context.Context) error {
	conn, _, _, err := ws.Dial(ctx, c.url)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn

	// Send auth frame.
	authFrame := &push.Frame{
		ID:     push.GenerateFrameID(),
		Type:   push.FrameRequest,
		Method: push.MethodAuth,
		Token:  c.token,
	}
	authData, marshalErr := json.Marshal(push.AuthRequest{
		Token:  c.token,
		Format: c.format,
	})
	if marshalErr != nil {
		_ = conn.Close()
		return fmt.Errorf("marshal auth request: %w", marshalErr)
	}
	authFrame.Data = authData
	authFrame.Timestamp = time.Now().UTC()

	if writeErr := c.writeFrame(authFrame); writeErr != nil {
		_ = conn.Close()
		return fmt.Errorf("write auth frame: %w", writeErr)
	}

	// Read the auth response directly from the WebSocket.
	// We cannot use readLoop here because it hasn't been started yet
	// (DialContext starts it after connect returns).
	type readResult struct {
		resp *push.Frame
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		data, readErr := wsutil.ReadServerText(conn)
		if readErr != nil {
			resultCh <- readResult{err: fmt.Errorf("read auth response: %w", readErr)}
			return
		}
		var frame push.Frame
		if unmarshalErr := json.Unmarshal(data, &frame); unmarshalErr != nil {
			resultCh <- readResult{err: fmt.Errorf("unmarshal auth response: %w", unmarshalErr)}
			return
		}
		resultCh <- readResult{resp: &frame}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			_ = conn.Close()
			return result.err
		}
		resp := result.resp
		if resp.Type == push.FrameErr {
			_ = conn.Close()
			msg := "unknown error"
			if resp.Error != nil {
				msg = resp.Error.Message
			}
			return fmt.Errorf("auth failed: %s", msg)
		}
		// Extract session ID.
		var authResp push.AuthResponse
		if len(resp.Data) > 0 {
			if unmarshalErr := json.Unmarshal(resp.Data, &authResp); unmarshalErr != nil {
				c.logger.Warn("failed to unmarshal auth response", slog.String("error", unmarshalErr.Error()))
			}
		}
		c.sessionID = authResp.SessionID
		c.logger.Info("push client connected",
			slog.String("session_id", c.sessionID),
			slog.String("format", authResp.Format),
		)
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-time.After(10 * time.Second):
		_ = conn.Close()
		return fmt.Errorf("auth timeout")
	}
}

// readLoop reads frames from the WebSocket and dispatches them.
func (c *Client) readLoop() {
	for {
		if c.closed.Load() {
			return
		}

		data, err := wsutil.ReadServerText(c.conn)
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("push client read error", slog.String("error", err.Error()))
			if c.reconnect {
				c.tryReconnect()
			}
			return
		}

		var frame push.Frame
		if unmarshalErr := json.Unmarshal(data, &frame); unmarshalErr != nil {
			c.logger.Warn("push client: invalid frame", slog.String("error", unmarshalErr.Error()))
			continue
		}

		// Route the frame.
		switch frame.Type {
		case push.FrameResponse, push.FrameErr:
			// Correlate with pending request.
			if val, ok := c.pending.Load(frame.CorrelID); ok {
				ch := val.(chan *push.Frame) //nolint:errcheck // pending map always stores chan *push.Frame
				select {
				case ch <- &frame:
				default:
				}
			}
		case push.FrameEvent:
			var evt stream.Event
			if json.Unmarshal(frame.Data, &evt) == nil {
				c.routeEvent(frame.Channel, &evt)
			}
		case push.FramePong:
			// Ignore pong frames.
		}
	}
}

// routeEvent delivers an event to every local subscription it matches.
// The server tags event frames with the entity topic (e.g. "workflow:<id>"),
// so aggregate subscriptions like "tasks" or "firehose" are matched by
// the event type prefix rather than the frame channel.
func (c *Client) routeEvent(channel string, evt *stream.Event) {
	deliver := func(key string) {
		val, ok := c.subs.Load(key)
		if !ok {
			return
		}
		ch := val.(chan *stream.Event) //nolint:errcheck // subs map always stores chan *stream.Event
		select {
		case ch <- evt:
		default:
			// Drop if subscriber is slow.
		}
	}

	if channel != "" {
		deliver(channel)
	}
	evtType := string(evt.Type)
	switch {
	case strings.HasPrefix(evtType, "workflow."):
		deliver(stream.TopicWorkflows)
	case strings.HasPrefix(evtType, "task."):
		deliver(stream.TopicTasks)
	case strings.HasPrefix(evtType, "agent."):
		deliver(stream.TopicAgents)
	}
	deliver(stream.TopicFirehose)
}

// tryReconnect attempts to reconnect with the configured backoff strategy.
func (c *Client) tryReconnect() {
	for i := range c.maxRetries {
		delay := c.retryDelay.Delay(i + 1)
		c.logger.Info("push client reconnecting",
			slog.Int("attempt", i+1),
			slog.Duration("delay", delay),
		)
		time.Sleep(delay)

		if err := c.connect(context.Background()); err != nil {
			c.logger.Warn("push client reconnect failed", slog.String("error", err.Error()))
			continue
		}

		c.logger.Info("push client reconnected")
		go c.readLoop()
		return
	}
	c.logger.Error("push client: max reconnection attempts reached")
}

// request sends a request frame and waits for the correlated response.
func (c *Client) request(ctx context.Context, method string, data any) (*push.Frame, error) {
	frame := &push.Frame{
		ID:        push.GenerateFrameID(),
		Type:      push.FrameRequest,
		Method:    method,
		Timestamp: time.Now().UTC(),
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal request data: %w", err)
		}
		frame.Data = raw
	}

	respCh := make(chan *push.Frame, 1)
	c.pending.Store(frame.ID, respCh)
	defer c.pending.Delete(frame.ID)

	if err := c.writeFrame(frame); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Type == push.FrameErr {
			msg := "unknown error"
			if resp.Error != nil {
				msg = resp.Error.Message
			}
			return nil, fmt.Errorf("push error: %s", msg)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writeFrame JSON-encodes and sends a frame over the WebSocket.
func (c *Client) writeFrame(frame *push.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return wsutil.WriteClientText(c.conn, data)
}

// SessionID returns the session ID assigned by the server.
func (c *Client) SessionID() string { return c.sessionID }

// Close closes the client connection.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}

	// Close all subscription channels.
	c.subs.Range(func(key, val any) bool {
		ch := val.(chan *stream.Event) //nolint:errcheck // subs map always stores chan *stream.Event
		close(ch)
		c.subs.Delete(key)
		return true
	})

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
