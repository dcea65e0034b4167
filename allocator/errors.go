package allocator

import "errors"

var (
	// ErrUnknownServer is returned by Release for a server this allocator
	// never deployed or already released.
	ErrUnknownServer = errors.New("unknown server")

	// ErrNotConfigured is returned by remote-forwarding operations before
	// both relay and server hosts are known.
	ErrNotConfigured = errors.New("allocator not configured")
)
