package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akhi28/dmzalloc/internal/idgen"
	"github.com/akhi28/dmzalloc/protocol"
)

// Relay pairs connections with handlers in process. It stands in for the
// DMZ host: handlers register under an identity, connections dispatch to
// whatever is registered at dial time.
type Relay struct {
	mu       sync.RWMutex
	handlers map[string]protocol.Handler
}

// NewRelay creates an empty in-process relay.
func NewRelay() *Relay {
	return &Relay{handlers: make(map[string]protocol.Handler)}
}

// Register exposes handler under identity. Registering nil removes the
// identity. The context argument keeps the signature aligned with the
// file-exchange listener, which has mailboxes to create.
func (r *Relay) Register(ctx context.Context, identity string, handler protocol.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if handler == nil {
		delete(r.handlers, identity)
		return nil
	}
	r.handlers[identity] = handler
	return nil
}

// lookup resolves the handler currently registered under identity.
func (r *Relay) lookup(identity string) (protocol.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[identity]
	if !ok {
		return nil, fmt.Errorf("no endpoint registered for %q", identity)
	}
	return handler, nil
}

// Connector returns a protocol.Connector dialing through this relay. The
// dmzHost and serverHost arguments are recorded for diagnostics only; in
// process there is nothing to reach.
func (r *Relay) Connector() protocol.Connector {
	return func(ctx context.Context, dmzHost, serverHost, identity string) (protocol.Connection, error) {
		if _, err := r.lookup(identity); err != nil {
			return nil, err
		}
		return &connection{relay: r, identity: identity}, nil
	}
}

// connection is one dialed channel to a relay identity.
type connection struct {
	relay    *Relay
	identity string
	mu       sync.Mutex
	closed   bool
}

// Invoke implements protocol.Connection.
func (c *connection) Invoke(ctx context.Context, op string, args ...interface{}) (interface{}, error) {
	return c.dispatch(ctx, op, args, false)
}

// Send implements protocol.Connection.
func (c *connection) Send(ctx context.Context, op string, args ...interface{}) error {
	_, err := c.dispatch(ctx, op, args, true)
	return err
}

func (c *connection) dispatch(ctx context.Context, op string, args []interface{}, oneWay bool) (interface{}, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, protocol.ErrClosed
	}
	handler, err := c.relay.lookup(c.identity)
	if err != nil {
		return nil, err
	}
	req := &protocol.Request{
		ID:        idgen.New(),
		Identity:  c.identity,
		Op:        op,
		Args:      args,
		OneWay:    oneWay,
		CreatedAt: time.Now(),
	}
	result, err := handler.Handle(ctx, req)
	if oneWay {
		// One-way requests surface dispatch failures only; handler results
		// and errors are discarded as they would be on a real transport.
		return nil, nil
	}
	return result, err
}

// Close implements protocol.Connection.
func (c *connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return protocol.ErrClosed
	}
	c.closed = true
	return nil
}

var _ protocol.Connection = (*connection)(nil)
