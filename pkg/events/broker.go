package events

import (
	"errors"
	"fmt"
	"sync"
)

// Broker fans events out between in-process fuzzing instances.
type Broker struct {
	mu      sync.RWMutex
	backlog int
	clients []*Client
}

// NewBroker creates a broker whose clients buffer up to backlog events each.
func NewBroker(backlog int) *Broker {
	if backlog <= 0 {
		backlog = 1024
	}
	return &Broker{backlog: backlog}
}

// Connect registers a new instance.
func (b *Broker) Connect(name string) *Client {
	c := &Client{
		name:   name,
		broker: b,
		inbox:  make(chan Event, b.backlog),
	}
	b.mu.Lock()
	b.clients = append(b.clients, c)
	b.mu.Unlock()
	return c
}

// Client is one instance's endpoint. Fire sends to every other client; Drain
// reads what the others sent.
type Client struct {
	name   string
	broker *Broker
	inbox  chan Event
}

func (c *Client) Name() string {
	return c.name
}

// Fire never blocks. A full peer inbox yields ErrBacklog for that peer while
// the remaining peers still receive the event.
func (c *Client) Fire(ev Event) error {
	stamp(ev, c.name)

	c.broker.mu.RLock()
	defer c.broker.mu.RUnlock()

	var errs []error
	for _, peer := range c.broker.clients {
		if peer == c {
			continue
		}
		select {
		case peer.inbox <- ev:
		default:
			errs = append(errs, fmt.Errorf("%w: %s", ErrBacklog, peer.name))
		}
	}
	return errors.Join(errs...)
}

func (c *Client) Drain(fn func(ev Event) error) (int, error) {
	n := 0
	for {
		select {
		case ev := <-c.inbox:
			n++
			if err := fn(ev); err != nil {
				return n, err
			}
		default:
			return n, nil
		}
	}
}

// Pending returns the number of undrained events.
func (c *Client) Pending() int {
	return len(c.inbox)
}

func stamp(ev Event, instance string) {
	switch e := ev.(type) {
	case *Stats:
		if e.Instance == "" {
			e.Instance = instance
		}
	case interface{ setInstance(string) }:
		e.setInstance(instance)
	}
}

func (e *NewTestcase[I]) setInstance(name string) {
	if e.Instance == "" {
		e.Instance = name
	}
}

func (e *Objective[I]) setInstance(name string) {
	if e.Instance == "" {
		e.Instance = name
	}
}
