package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/akhi28/dmzalloc/access"
	"github.com/akhi28/dmzalloc/protocol"
	"github.com/akhi28/dmzalloc/resource"
	"github.com/akhi28/dmzalloc/tracing"
	"github.com/viant/toolbox"
)

// accessTable declares the caller privilege required per operation. Echo
// is deliberately unrestricted: it carries no side effect and serves
// infrastructure health checks that hold no job-level credential. Every
// operation touching the remote filesystem or process space is limited to
// the owner. Shutdown carries no declaration; it is reachable only
// through the owning allocator's Release.
var accessTable = access.Table{
	"echo":            access.Unrestricted,
	"execute_command": access.Owner,
	"pack_zipfile":    access.Owner,
	"unpack_zipfile":  access.Owner,
	"chmod":           access.Owner,
	"isdir":           access.Owner,
	"listdir":         access.Owner,
	"remove":          access.Owner,
	"open":            access.Owner,
	"stat":            access.Owner,
}

// Server proxies one deployed remote execution context. Every operation
// forwards 1:1 through the server's own connection; the remote endpoint
// performs all path-legality checks.
type Server struct {
	name   string
	path   string
	conn   protocol.Connection
	auth   *access.Authorizer
	logger *log.Logger
}

// Option customises a server proxy.
type Option func(s *Server)

// WithOwner sets the owning user checked by owner-gated operations.
func WithOwner(owner string) Option {
	return func(s *Server) {
		s.auth = access.NewAuthorizer(owner, accessTable)
	}
}

// New creates a proxy for the remote execution context at path, reached
// over conn.
func New(name, path string, conn protocol.Connection, options ...Option) *Server {
	s := &Server{
		name:   name,
		path:   path,
		conn:   conn,
		logger: log.New(log.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Name returns the server name.
func (s *Server) Name() string {
	return s.name
}

// Path returns the remote namespace this server is bound to.
func (s *Server) Path() string {
	return s.path
}

// Echo round-trips args through the remote side unmodified. Useful for
// latency and throughput measurement, connectivity testing and firewall
// keepalives.
func (s *Server) Echo(ctx context.Context, args ...interface{}) (interface{}, error) {
	if err := s.auth.Authorize(ctx, "echo"); err != nil {
		return nil, err
	}
	return s.invoke(ctx, "echo", args...)
}

// ExecuteCommand submits the command described by desc and waits for the
// reply. desc must carry resource.KeyRemoteCommand; the structured
// description, not a flattened command line, is what travels.
func (s *Server) ExecuteCommand(ctx context.Context, desc resource.Description) (interface{}, error) {
	if err := s.auth.Authorize(ctx, "execute_command"); err != nil {
		return nil, err
	}
	command := desc.String(resource.KeyRemoteCommand, "")
	if command == "" {
		return nil, fmt.Errorf("%s is required", resource.KeyRemoteCommand)
	}
	if args := desc.Strings(resource.KeyArgs); len(args) > 0 {
		command = command + " " + strings.Join(args, " ")
	}
	s.logger.Printf("execute_command %s %q", desc.String(resource.KeyJobName, ""), command)
	return s.invoke(ctx, "execute_command", desc)
}

// PackZipfile archives remote files matching the glob-style patterns into
// filename, subject to remote-side path checks.
func (s *Server) PackZipfile(ctx context.Context, patterns []string, filename string) (interface{}, error) {
	if err := s.auth.Authorize(ctx, "pack_zipfile"); err != nil {
		return nil, err
	}
	s.logger.Printf("pack_zipfile %q", filename)
	return s.invoke(ctx, "pack_zipfile", patterns, filename)
}

// UnpackZipfile extracts the remote archive filename, subject to
// remote-side path checks.
func (s *Server) UnpackZipfile(ctx context.Context, filename string) (interface{}, error) {
	if err := s.auth.Authorize(ctx, "unpack_zipfile"); err != nil {
		return nil, err
	}
	s.logger.Printf("unpack_zipfile %q", filename)
	return s.invoke(ctx, "unpack_zipfile", filename)
}

// Chmod changes the permission bits of a remote path.
func (s *Server) Chmod(ctx context.Context, path string, mode os.FileMode) error {
	if err := s.auth.Authorize(ctx, "chmod"); err != nil {
		return err
	}
	s.logger.Printf("chmod %q %o", path, mode)
	_, err := s.invoke(ctx, "chmod", path, uint32(mode))
	return err
}

// IsDir reports whether a remote path is a directory.
func (s *Server) IsDir(ctx context.Context, path string) (bool, error) {
	if err := s.auth.Authorize(ctx, "isdir"); err != nil {
		return false, err
	}
	s.logger.Printf("isdir %q", path)
	result, err := s.invoke(ctx, "isdir", path)
	if err != nil {
		return false, err
	}
	return toolbox.AsBoolean(result), nil
}

// ListDir lists a remote directory.
func (s *Server) ListDir(ctx context.Context, path string) ([]string, error) {
	if err := s.auth.Authorize(ctx, "listdir"); err != nil {
		return nil, err
	}
	s.logger.Printf("listdir %q", path)
	result, err := s.invoke(ctx, "listdir", path)
	if err != nil {
		return nil, err
	}
	switch actual := result.(type) {
	case []string:
		return actual, nil
	case []interface{}:
		names := make([]string, 0, len(actual))
		for _, item := range actual {
			names = append(names, toolbox.AsString(item))
		}
		return names, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected listdir payload %T", result)
}

// Remove removes a remote file.
func (s *Server) Remove(ctx context.Context, path string) error {
	if err := s.auth.Authorize(ctx, "remove"); err != nil {
		return err
	}
	s.logger.Printf("remove %q", path)
	_, err := s.invoke(ctx, "remove", path)
	return err
}

// Open is not supported: streaming a remote file handle through the relay
// protocol is out of scope. It never reaches the transport.
func (s *Server) Open(ctx context.Context, filename, mode string, bufSize int) (interface{}, error) {
	if err := s.auth.Authorize(ctx, "open"); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("open %q: %w", filename, ErrNotImplemented)
}

// Stat is not supported, for the same reason as Open. It never reaches
// the transport.
func (s *Server) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	if err := s.auth.Authorize(ctx, "stat"); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("stat %q: %w", path, ErrNotImplemented)
}

// Shutdown sends the one-way shutdown request and closes the connection.
// No acknowledgment is awaited; after Shutdown the proxy is dead and any
// further operation fails with a closed-connection error.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Printf("shutdown")
	err := s.conn.Send(ctx, "shutdown")
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// invoke forwards one operation over the server connection, tracing the
// round trip.
func (s *Server) invoke(ctx context.Context, op string, args ...interface{}) (interface{}, error) {
	ctx, span := tracing.StartSpan(ctx, "server."+op, "CLIENT")
	result, err := s.conn.Invoke(ctx, op, args...)
	span.SetStatus(err)
	span.OnDone()
	return result, err
}
