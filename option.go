package dmzalloc

import (
	"github.com/akhi28/dmzalloc/allocator"
)

// Option customises the Service façade.
type Option func(s *Service)

// WithAllocators registers allocators at construction. Duplicate names
// are silently dropped; use Register to surface the error.
func WithAllocators(allocators ...*allocator.Allocator) Option {
	return func(s *Service) {
		for _, a := range allocators {
			_ = s.Register(a)
		}
	}
}
