package server

import (
	"context"
	"sync"
	"testing"

	"github.com/akhi28/dmzalloc/access"
	"github.com/akhi28/dmzalloc/protocol"
	"github.com/akhi28/dmzalloc/resource"
	"github.com/stretchr/testify/assert"
)

type invocation struct {
	op   string
	args []interface{}
}

type fakeConn struct {
	mu      sync.Mutex
	invokes []invocation
	sends   []invocation
	closed  bool
	handler func(op string, args []interface{}) (interface{}, error)
}

func (c *fakeConn) Invoke(ctx context.Context, op string, args ...interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, protocol.ErrClosed
	}
	c.invokes = append(c.invokes, invocation{op: op, args: args})
	if c.handler != nil {
		return c.handler(op, args)
	}
	return nil, nil
}

func (c *fakeConn) Send(ctx context.Context, op string, args ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return protocol.ErrClosed
	}
	c.sends = append(c.sends, invocation{op: op, args: args})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return protocol.ErrClosed
	}
	c.closed = true
	return nil
}

func TestEchoForwardsVerbatim(t *testing.T) {
	conn := &fakeConn{handler: func(op string, args []interface{}) (interface{}, error) {
		return args, nil
	}}
	srv := New("sim-1", "pleiades/sim-1", conn)

	result, err := srv.Echo(context.Background(), 1, "a", true)
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{1, "a", true}, result)
	assert.Equal(t, invocation{op: "echo", args: []interface{}{1, "a", true}}, conn.invokes[0])
}

func TestExecuteCommandForwardsStructuredDescription(t *testing.T) {
	conn := &fakeConn{handler: func(op string, args []interface{}) (interface{}, error) {
		return map[string]interface{}{"return_code": 0}, nil
	}}
	srv := New("sim-1", "pleiades/sim-1", conn)

	desc := resource.Description{
		resource.KeyRemoteCommand: "mdao",
		resource.KeyArgs:          []string{"-v", "case1"},
		resource.KeyJobName:       "wing-opt",
	}
	result, err := srv.ExecuteCommand(context.Background(), desc)
	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"return_code": 0}, result)

	// The structured description travels, not a flattened command line.
	assert.Equal(t, "execute_command", conn.invokes[0].op)
	assert.Equal(t, desc, conn.invokes[0].args[0])
}

func TestExecuteCommandRequiresRemoteCommand(t *testing.T) {
	conn := &fakeConn{}
	srv := New("sim-1", "pleiades/sim-1", conn)

	_, err := srv.ExecuteCommand(context.Background(), resource.Description{resource.KeyJobName: "x"})
	assert.Error(t, err)
	assert.Empty(t, conn.invokes)
}

func TestFileOperationsForward(t *testing.T) {
	conn := &fakeConn{handler: func(op string, args []interface{}) (interface{}, error) {
		switch op {
		case "isdir":
			return true, nil
		case "listdir":
			return []interface{}{"input.dat", "output.dat"}, nil
		}
		return nil, nil
	}}
	srv := New("sim-1", "pleiades/sim-1", conn)
	ctx := context.Background()

	isDir, err := srv.IsDir(ctx, "results")
	assert.NoError(t, err)
	assert.True(t, isDir)

	names, err := srv.ListDir(ctx, "results")
	assert.NoError(t, err)
	assert.Equal(t, []string{"input.dat", "output.dat"}, names)

	assert.NoError(t, srv.Chmod(ctx, "run.sh", 0o755))
	assert.NoError(t, srv.Remove(ctx, "stale.log"))

	_, err = srv.PackZipfile(ctx, []string{"*.dat"}, "results.zip")
	assert.NoError(t, err)
	_, err = srv.UnpackZipfile(ctx, "inputs.zip")
	assert.NoError(t, err)

	ops := make([]string, 0, len(conn.invokes))
	for _, call := range conn.invokes {
		ops = append(ops, call.op)
	}
	assert.Equal(t, []string{"isdir", "listdir", "chmod", "remove", "pack_zipfile", "unpack_zipfile"}, ops)
}

func TestOpenAndStatNotImplemented(t *testing.T) {
	conn := &fakeConn{}
	srv := New("sim-1", "pleiades/sim-1", conn)
	ctx := context.Background()

	_, err := srv.Open(ctx, "data.csv", "r", -1)
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = srv.Stat(ctx, "data.csv")
	assert.ErrorIs(t, err, ErrNotImplemented)

	// Neither ever reaches the transport.
	assert.Empty(t, conn.invokes)
	assert.Empty(t, conn.sends)
}

func TestShutdown(t *testing.T) {
	conn := &fakeConn{}
	srv := New("sim-1", "pleiades/sim-1", conn)
	ctx := context.Background()

	assert.NoError(t, srv.Shutdown(ctx))
	assert.Equal(t, "shutdown", conn.sends[0].op)
	assert.True(t, conn.closed)

	// The proxy is dead: operations surface the closed connection.
	_, err := srv.Echo(ctx, "ping")
	assert.ErrorIs(t, err, protocol.ErrClosed)
}

func TestOwnerGating(t *testing.T) {
	conn := &fakeConn{handler: func(op string, args []interface{}) (interface{}, error) {
		return args, nil
	}}
	srv := New("sim-1", "pleiades/sim-1", conn, WithOwner("jsmith"))
	stranger := access.WithCredential(context.Background(), &access.Credential{User: "mallory"})

	// Echo carries no side effect and stays open to anyone.
	_, err := srv.Echo(stranger, "ping")
	assert.NoError(t, err)

	var denied *access.DeniedError
	_, err = srv.ExecuteCommand(stranger, resource.Description{resource.KeyRemoteCommand: "rm"})
	assert.ErrorAs(t, err, &denied)
	assert.ErrorAs(t, srv.Chmod(stranger, "run.sh", 0o755), &denied)
	_, err = srv.ListDir(stranger, ".")
	assert.ErrorAs(t, err, &denied)

	// Only the echo reached the transport.
	assert.Len(t, conn.invokes, 1)

	owner := access.WithCredential(context.Background(), &access.Credential{User: "jsmith"})
	_, err = srv.ExecuteCommand(owner, resource.Description{resource.KeyRemoteCommand: "mdao"})
	assert.NoError(t, err)
}
