package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClosed is returned by any operation on a closed connection.
	ErrClosed = errors.New("connection closed")

	// ErrTimeout is returned when a round trip exceeds the transport deadline.
	ErrTimeout = errors.New("request timed out")
)

// Connection is a bidirectional channel to a named remote endpoint reached
// via a relay host. Implementations must tolerate concurrent Invoke calls
// on one handle.
type Connection interface {
	// Invoke performs a blocking request/response round trip.
	Invoke(ctx context.Context, op string, args ...interface{}) (interface{}, error)

	// Send dispatches a one-way request; no response is awaited.
	Send(ctx context.Context, op string, args ...interface{}) error

	// Close releases the channel. Further operations return ErrClosed.
	Close() error
}

// Connector opens a connection to identity on serverHost, relayed through
// dmzHost.
type Connector func(ctx context.Context, dmzHost, serverHost, identity string) (Connection, error)

// Handler services requests on the remote side of a connection.
type Handler interface {
	// Handle executes one request and returns its result. For one-way
	// requests the result is discarded.
	Handle(ctx context.Context, req *Request) (interface{}, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) (interface{}, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (interface{}, error) {
	return f(ctx, req)
}

// Request is the wire envelope for one operation invocation.
type Request struct {
	ID        string        `json:"id"`
	Identity  string        `json:"identity"`
	Op        string        `json:"op"`
	Args      []interface{} `json:"args,omitempty"`
	OneWay    bool          `json:"oneWay,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Response is the wire envelope for one operation result.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Err converts a response-carried error string back into an error.
func (r *Response) Err() error {
	if r.Error == "" {
		return nil
	}
	return &RemoteError{Message: r.Error}
}

// RemoteError is a failure raised by the remote endpoint and relayed back
// verbatim.
type RemoteError struct {
	Message string
}

// Error implements error.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote: %s", e.Message)
}
