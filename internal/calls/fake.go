package calls

import (
	"context"
	"sync"
)

// FakeDialer records every dialed connection. Used by tests and by local
// development when no voice SDK credentials are configured.
type FakeDialer struct {
	mu      sync.Mutex
	clients map[uint]*FakeClient

	// DialErr, when set, fails every Dial.
	DialErr error
}

func NewFakeDialer() *FakeDialer {
	return &FakeDialer{clients: make(map[uint]*FakeClient)}
}

func (d *FakeDialer) Dial(ctx context.Context, sessionID uint) (Client, error) {
	if d.DialErr != nil {
		return nil, d.DialErr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	client := &FakeClient{events: make(chan Event, 16)}
	d.clients[sessionID] = client
	return client, nil
}

// Client returns the fake connection dialed for a session, if any.
func (d *FakeDialer) Client(sessionID uint) *FakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[sessionID]
}

// FakeClient records Start/Stop calls and lets tests push events.
type FakeClient struct {
	mu       sync.Mutex
	events   chan Event
	started  bool
	stopped  bool
	Config   AssistantConfig
	Vars     Variables
	StartErr error
}

func (c *FakeClient) Start(ctx context.Context, config AssistantConfig, vars Variables) error {
	if c.StartErr != nil {
		return c.StartErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	c.Config = config
	c.Vars = vars
	return nil
}

func (c *FakeClient) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		close(c.events)
	}
	return nil
}

func (c *FakeClient) Events() <-chan Event {
	return c.events
}

// Emit pushes an event as the remote side would.
func (c *FakeClient) Emit(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.events <- event
}

func (c *FakeClient) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *FakeClient) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
