package dmzfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/akhi28/dmzalloc/internal/clock"
	"github.com/akhi28/dmzalloc/internal/idgen"
	"github.com/akhi28/dmzalloc/protocol"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// Config holds file-exchange transport settings.
type Config struct {
	// PollInterval is how often a caller checks for a response file.
	PollInterval time.Duration

	// Timeout bounds one request/response round trip.
	Timeout time.Duration
}

// DefaultConfig returns the standard transport configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: 100 * time.Millisecond,
		Timeout:      5 * time.Minute,
	}
}

// Connector returns a protocol.Connector exchanging envelope files on a
// shared relay store. The dmzHost argument is interpreted as the store
// base URL, so any scheme the afs service understands works: file://,
// mem://, s3://, scp://.
func Connector(fs afs.Service, config Config) protocol.Connector {
	return func(ctx context.Context, dmzHost, serverHost, identity string) (protocol.Connection, error) {
		return Connect(ctx, fs, dmzHost, serverHost, identity, config)
	}
}

// Connect opens a connection to identity on serverHost through the relay
// store rooted at baseURL, creating the mailbox directories when absent.
func Connect(ctx context.Context, fs afs.Service, baseURL, serverHost, identity string, config Config) (*Connection, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("relay base URL cannot be empty")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	conn := &Connection{
		fs:           fs,
		config:       config,
		identity:     identity,
		requestsURL:  requestsURL(baseURL, serverHost, identity),
		responsesURL: responsesURL(baseURL, serverHost, identity),
	}
	for _, dir := range []string{conn.requestsURL, conn.responsesURL} {
		exists, _ := fs.Exists(ctx, dir)
		if exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create mailbox %s: %w", dir, err)
		}
	}
	return conn, nil
}

// Connection exchanges request and response envelope files with one remote
// identity through the relay store.
type Connection struct {
	fs           afs.Service
	config       Config
	identity     string
	requestsURL  string
	responsesURL string
	mu           sync.Mutex
	closed       bool
}

// Invoke implements protocol.Connection.
func (c *Connection) Invoke(ctx context.Context, op string, args ...interface{}) (interface{}, error) {
	req, err := c.post(ctx, op, args, false)
	if err != nil {
		return nil, err
	}
	return c.await(ctx, req)
}

// Send implements protocol.Connection.
func (c *Connection) Send(ctx context.Context, op string, args ...interface{}) error {
	_, err := c.post(ctx, op, args, true)
	return err
}

// Close implements protocol.Connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return protocol.ErrClosed
	}
	c.closed = true
	return nil
}

// post uploads one request envelope to the requests mailbox.
func (c *Connection) post(ctx context.Context, op string, args []interface{}, oneWay bool) (*protocol.Request, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, protocol.ErrClosed
	}
	req := &protocol.Request{
		ID:        idgen.New(),
		Identity:  c.identity,
		Op:        op,
		Args:      args,
		OneWay:    oneWay,
		CreatedAt: clock.Now(),
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request %s: %w", req.Op, err)
	}
	target := url.Join(c.requestsURL, envelopeName(req.ID))
	if err := c.fs.Upload(ctx, target, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to post request %s: %w", req.Op, err)
	}
	return req, nil
}

// await polls the responses mailbox until the matching envelope arrives,
// the transport deadline passes, or ctx is cancelled.
func (c *Connection) await(ctx context.Context, req *protocol.Request) (interface{}, error) {
	deadline := clock.Now().Add(c.config.Timeout)
	target := url.Join(c.responsesURL, envelopeName(req.ID))
	for {
		exists, _ := c.fs.Exists(ctx, target)
		if exists {
			data, err := c.fs.DownloadWithURL(ctx, target)
			if err != nil {
				return nil, fmt.Errorf("failed to read response for %s: %w", req.Op, err)
			}
			_ = c.fs.Delete(ctx, target)
			var resp protocol.Response
			if err := json.Unmarshal(data, &resp); err != nil {
				return nil, fmt.Errorf("failed to unmarshal response for %s: %w", req.Op, err)
			}
			if err := resp.Err(); err != nil {
				return nil, err
			}
			return resp.Result, nil
		}
		if clock.Now().After(deadline) {
			return nil, fmt.Errorf("%s after %s: %w", req.Op, c.config.Timeout, protocol.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.config.PollInterval):
		}
	}
}

func envelopeName(id string) string {
	return fmt.Sprintf("%s.json", id)
}

func requestsURL(baseURL, serverHost, identity string) string {
	return url.Join(baseURL, serverHost, identity, "requests")
}

func responsesURL(baseURL, serverHost, identity string) string {
	return url.Join(baseURL, serverHost, identity, "responses")
}

var _ protocol.Connection = (*Connection)(nil)
