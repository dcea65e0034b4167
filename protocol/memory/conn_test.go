package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/akhi28/dmzalloc/protocol"
	"github.com/stretchr/testify/assert"
)

func TestRelayRoundTrip(t *testing.T) {
	relay := NewRelay()
	relay.Register(context.Background(), "pleiades", protocol.HandlerFunc(func(ctx context.Context, req *protocol.Request) (interface{}, error) {
		if req.Op == "echo" {
			return req.Args, nil
		}
		return nil, fmt.Errorf("unknown operation %q", req.Op)
	}))

	ctx := context.Background()
	conn, err := relay.Connector()(ctx, "dmzfs1", "pfe1", "pleiades")
	assert.NoError(t, err)

	result, err := conn.Invoke(ctx, "echo", 1, "a", true)
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{1, "a", true}, result)

	_, err = conn.Invoke(ctx, "bogus")
	assert.Error(t, err)
}

func TestRelayUnknownIdentity(t *testing.T) {
	relay := NewRelay()
	_, err := relay.Connector()(context.Background(), "dmzfs1", "pfe1", "nowhere")
	assert.Error(t, err)
}

func TestConnectionClose(t *testing.T) {
	relay := NewRelay()
	relay.Register(context.Background(), "pleiades", protocol.HandlerFunc(func(ctx context.Context, req *protocol.Request) (interface{}, error) {
		return nil, nil
	}))

	ctx := context.Background()
	conn, err := relay.Connector()(ctx, "dmzfs1", "pfe1", "pleiades")
	assert.NoError(t, err)

	assert.NoError(t, conn.Close())

	_, err = conn.Invoke(ctx, "echo")
	assert.ErrorIs(t, err, protocol.ErrClosed)
	assert.ErrorIs(t, conn.Send(ctx, "shutdown"), protocol.ErrClosed)
	assert.ErrorIs(t, conn.Close(), protocol.ErrClosed)
}

func TestSendDiscardsResult(t *testing.T) {
	relay := NewRelay()
	var seen []string
	relay.Register(context.Background(), "pleiades", protocol.HandlerFunc(func(ctx context.Context, req *protocol.Request) (interface{}, error) {
		seen = append(seen, req.Op)
		return nil, fmt.Errorf("handler failure stays on the far side")
	}))

	ctx := context.Background()
	conn, err := relay.Connector()(ctx, "dmzfs1", "pfe1", "pleiades")
	assert.NoError(t, err)

	assert.NoError(t, conn.Send(ctx, "shutdown"))
	assert.Equal(t, []string{"shutdown"}, seen)
}
