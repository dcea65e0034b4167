// Package resource defines the open-ended description of a job's resource
// needs exchanged between callers, allocators and remote endpoints. Only
// the documented reserved keys carry routing semantics; everything else is
// opaque payload.
package resource
