// Package protocol defines the transport contract between allocators,
// deployed servers and the remote endpoints that service them: a blocking
// request/response primitive, a distinct one-way send primitive, and the
// connector used to open a channel through the relay host.  Concrete
// transports live in the sub-packages; memory pairs both ends in process,
// dmzfs exchanges envelope files on a shared relay store.
package protocol
