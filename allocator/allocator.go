package allocator

import (
	"context"
	"fmt"
	"sync"

	"github.com/akhi28/dmzalloc/access"
	"github.com/akhi28/dmzalloc/protocol"
	"github.com/akhi28/dmzalloc/resource"
	"github.com/akhi28/dmzalloc/server"
	"github.com/akhi28/dmzalloc/tracing"
	"github.com/viant/toolbox"
)

// accessTable declares the caller privilege required per operation; it is
// consumed by the authorizer checked at each public boundary.
var accessTable = access.Table{
	"configure":     access.Unrestricted,
	"max_servers":   access.Unrestricted,
	"time_estimate": access.Unrestricted,
	"deploy":        access.Unrestricted,
	"release":       access.OwnerOrUser,
}

// Allocator arbitrates resource requests for one remote host reached
// through a relay, and owns the servers it deployed there.
type Allocator struct {
	name       string
	owner      string
	dmzHost    string
	serverHost string
	connect    protocol.Connector
	conn       protocol.Connection
	auth       *access.Authorizer
	mu         sync.Mutex
	servers    []*server.Server
}

// Option customises an allocator.
type Option func(a *Allocator)

// WithHosts sets the relay and server hosts at construction.
func WithHosts(dmzHost, serverHost string) Option {
	return func(a *Allocator) {
		a.dmzHost = dmzHost
		a.serverHost = serverHost
	}
}

// WithConnector sets the transport used to reach the remote side.
func WithConnector(connect protocol.Connector) Option {
	return func(a *Allocator) {
		a.connect = connect
	}
}

// WithOwner sets the owning user checked by owner-gated operations.
func WithOwner(owner string) Option {
	return func(a *Allocator) {
		a.owner = owner
	}
}

// New creates an allocator. When both hosts are supplied the connection
// is established immediately; otherwise it is deferred to Configure.
func New(ctx context.Context, name string, options ...Option) (*Allocator, error) {
	a := &Allocator{name: name}
	for _, option := range options {
		option(a)
	}
	if a.connect == nil {
		return nil, fmt.Errorf("allocator %s: connector is required", name)
	}
	a.auth = access.NewAuthorizer(a.owner, accessTable)
	if a.dmzHost != "" && a.serverHost != "" {
		if err := a.dial(ctx); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Name returns the allocator identity used for routing and server paths.
func (a *Allocator) Name() string {
	return a.name
}

// Configure supplies or overrides the relay and server hosts, typically
// from a configuration source keyed by this allocator's name. Empty
// arguments keep the current value. Each call with a complete host pair
// (re-)opens the connection; the call is safe to repeat.
func (a *Allocator) Configure(ctx context.Context, dmzHost, serverHost string) error {
	if err := a.auth.Authorize(ctx, "configure"); err != nil {
		return err
	}
	if dmzHost != "" {
		a.dmzHost = dmzHost
	}
	if serverHost != "" {
		a.serverHost = serverHost
	}
	if a.dmzHost == "" || a.serverHost == "" {
		return nil
	}
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
	return a.dial(ctx)
}

func (a *Allocator) dial(ctx context.Context) error {
	conn, err := a.connect(ctx, a.dmzHost, a.serverHost, a.name)
	if err != nil {
		return fmt.Errorf("allocator %s: %w", a.name, err)
	}
	a.conn = conn
	return nil
}

// checkLocal filters locally-decidable routing keys. It returns either a
// stripped copy to forward, or the estimate to hand straight back to the
// caller. The input description is never mutated.
func (a *Allocator) checkLocal(desc resource.Description) (resource.Description, *Estimate) {
	rdesc := desc.Clone()
	if rdesc.Has(resource.KeyLocalhost) {
		if rdesc.Bool(resource.KeyLocalhost, false) {
			return nil, unsupported(resource.KeyLocalhost, "requested local host")
		}
		delete(rdesc, resource.KeyLocalhost)
	}
	if rdesc.Has(resource.KeyAllocator) {
		if rdesc.String(resource.KeyAllocator, "") != a.name {
			return nil, unsupported(resource.KeyAllocator, "wrong allocator")
		}
		delete(rdesc, resource.KeyAllocator)
	}
	return rdesc, nil
}

// MaxServers returns how many servers could be deployed for desc. The
// count is advisory, used to bound concurrency; an ineligible request
// yields zero rather than a reason.
func (a *Allocator) MaxServers(ctx context.Context, desc resource.Description) (int, error) {
	if err := a.auth.Authorize(ctx, "max_servers"); err != nil {
		return 0, err
	}
	rdesc, info := a.checkLocal(desc)
	if info != nil {
		return 0, nil
	}
	result, err := a.invoke(ctx, "max_servers", rdesc)
	if err != nil {
		return 0, err
	}
	return toolbox.AsInt(result), nil
}

// TimeEstimate reports how well this allocator can satisfy desc. Routing
// ineligibility is answered locally; everything else is the remote side's
// verdict, returned verbatim.
func (a *Allocator) TimeEstimate(ctx context.Context, desc resource.Description) (*Estimate, error) {
	if err := a.auth.Authorize(ctx, "time_estimate"); err != nil {
		return nil, err
	}
	rdesc, info := a.checkLocal(desc)
	if info != nil {
		return info, nil
	}
	result, err := a.invoke(ctx, "time_estimate", rdesc)
	if err != nil {
		return nil, err
	}
	return decodeEstimate(result)
}

// Deploy provisions a server for desc and returns a proxy bound to it.
// criteria is the dictionary returned by TimeEstimate. An empty name is
// generated from the count of tracked servers. No feasibility re-check is
// performed; Deploy trusts the caller already consulted TimeEstimate.
func (a *Allocator) Deploy(ctx context.Context, name string, desc resource.Description, criteria map[string]interface{}) (*server.Server, error) {
	if err := a.auth.Authorize(ctx, "deploy"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if name == "" {
		name = fmt.Sprintf("sim-%d", len(a.servers)+1)
	}
	path := a.name + "/" + name
	if _, err := a.invoke(ctx, "deploy", name, desc, criteria, path); err != nil {
		return nil, err
	}
	conn, err := a.connect(ctx, a.dmzHost, a.serverHost, path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to deployed server %s: %w", path, err)
	}
	srv := server.New(name, path, conn, server.WithOwner(a.owner))
	a.servers = append(a.servers, srv)
	return srv, nil
}

// Release shuts down a server deployed by this allocator and stops
// tracking it. Releasing a server this allocator does not track fails
// with ErrUnknownServer and has no side effect; removal precedes shutdown
// so a concurrent second Release cannot shut the server down twice.
func (a *Allocator) Release(ctx context.Context, srv *server.Server) error {
	if err := a.auth.Authorize(ctx, "release"); err != nil {
		return err
	}
	a.mu.Lock()
	index := -1
	for i, candidate := range a.servers {
		if candidate == srv {
			index = i
			break
		}
	}
	if index < 0 {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownServer, srv.Name())
	}
	a.servers = append(a.servers[:index], a.servers[index+1:]...)
	a.mu.Unlock()
	return srv.Shutdown(ctx)
}

// Servers returns a snapshot of the currently tracked servers.
func (a *Allocator) Servers() []*server.Server {
	a.mu.Lock()
	defer a.mu.Unlock()
	ret := make([]*server.Server, len(a.servers))
	copy(ret, a.servers)
	return ret
}

// invoke forwards one operation to the remote side, tracing the round
// trip. Transport failures propagate unchanged; there are no retries.
func (a *Allocator) invoke(ctx context.Context, op string, args ...interface{}) (interface{}, error) {
	if a.conn == nil {
		return nil, fmt.Errorf("allocator %s: %w", a.name, ErrNotConfigured)
	}
	ctx, span := tracing.StartSpan(ctx, "allocator."+op, "CLIENT")
	result, err := a.conn.Invoke(ctx, op, args...)
	span.SetStatus(err)
	span.OnDone()
	return result, err
}
