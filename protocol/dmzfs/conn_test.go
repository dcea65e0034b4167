package dmzfs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/akhi28/dmzalloc/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
)

func testConfig() Config {
	return Config{PollInterval: 5 * time.Millisecond, Timeout: 2 * time.Second}
}

func TestFileExchangeRoundTrip(t *testing.T) {
	fs := afs.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	baseURL := "mem://localhost/dmz/roundtrip"

	listener := NewListener(fs, baseURL, "pfe1", testConfig())
	err := listener.Register(ctx, "pleiades", protocol.HandlerFunc(func(ctx context.Context, req *protocol.Request) (interface{}, error) {
		switch req.Op {
		case "echo":
			return req.Args, nil
		default:
			return nil, fmt.Errorf("unknown operation %q", req.Op)
		}
	}))
	assert.NoError(t, err)
	go func() {
		_ = listener.Serve(ctx)
	}()

	conn, err := Connect(ctx, fs, baseURL, "pfe1", "pleiades", testConfig())
	assert.NoError(t, err)

	result, err := conn.Invoke(ctx, "echo", "a", true)
	assert.NoError(t, err)
	// JSON round trip yields a generic slice.
	assert.Equal(t, []interface{}{"a", true}, result)

	// Remote failures come back as remote errors, verbatim.
	_, err = conn.Invoke(ctx, "bogus")
	assert.Error(t, err)
	var remote *protocol.RemoteError
	assert.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "bogus")
}

func TestFileExchangeOneWay(t *testing.T) {
	fs := afs.New()
	ctx := context.Background()
	baseURL := "mem://localhost/dmz/oneway"

	listener := NewListener(fs, baseURL, "pfe1", testConfig())
	var ops []string
	err := listener.Register(ctx, "pleiades/sim-1", protocol.HandlerFunc(func(ctx context.Context, req *protocol.Request) (interface{}, error) {
		ops = append(ops, req.Op)
		return nil, nil
	}))
	assert.NoError(t, err)

	conn, err := Connect(ctx, fs, baseURL, "pfe1", "pleiades/sim-1", testConfig())
	assert.NoError(t, err)

	// Send returns before the envelope is consumed.
	assert.NoError(t, conn.Send(ctx, "shutdown"))
	assert.Empty(t, ops)

	assert.NoError(t, listener.Poll(ctx))
	assert.Equal(t, []string{"shutdown"}, ops)
}

func TestFileExchangeTimeout(t *testing.T) {
	fs := afs.New()
	ctx := context.Background()
	baseURL := "mem://localhost/dmz/timeout"

	config := Config{PollInterval: time.Millisecond, Timeout: 10 * time.Millisecond}
	conn, err := Connect(ctx, fs, baseURL, "pfe1", "pleiades", config)
	assert.NoError(t, err)

	// Nobody is listening.
	_, err = conn.Invoke(ctx, "time_estimate")
	assert.ErrorIs(t, err, protocol.ErrTimeout)
}

func TestFileExchangeClosed(t *testing.T) {
	fs := afs.New()
	ctx := context.Background()

	conn, err := Connect(ctx, fs, "mem://localhost/dmz/closed", "pfe1", "pleiades", testConfig())
	assert.NoError(t, err)
	assert.NoError(t, conn.Close())

	_, err = conn.Invoke(ctx, "echo")
	assert.ErrorIs(t, err, protocol.ErrClosed)
	assert.ErrorIs(t, conn.Send(ctx, "shutdown"), protocol.ErrClosed)
	assert.ErrorIs(t, conn.Close(), protocol.ErrClosed)
}
