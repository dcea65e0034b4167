package dmzalloc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/akhi28/dmzalloc/allocator"
	"github.com/akhi28/dmzalloc/resource"
)

// ErrNoAllocation is returned by BestEstimate when no registered
// allocator can satisfy the request.
var ErrNoAllocation = errors.New("no allocator can satisfy the request")

// Service is the resource allocation manager: a registry of named
// allocators that fans configuration out to them and arbitrates which one
// should serve a request. Selection is single shot; it is not a
// scheduler.
type Service struct {
	mu         sync.RWMutex
	allocators map[string]*allocator.Allocator
	order      []string
}

// New creates a service.
func New(options ...Option) *Service {
	s := &Service{allocators: make(map[string]*allocator.Allocator)}
	for _, option := range options {
		option(s)
	}
	return s
}

// Register adds an allocator; names must be unique.
func (s *Service) Register(a *allocator.Allocator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.allocators[a.Name()]; exists {
		return fmt.Errorf("allocator %q already registered", a.Name())
	}
	s.allocators[a.Name()] = a
	s.order = append(s.order, a.Name())
	return nil
}

// Allocator returns the allocator registered under name, or nil.
func (s *Service) Allocator(name string) *allocator.Allocator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allocators[name]
}

// Names returns the registered allocator names in registration order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]string, len(s.order))
	copy(ret, s.order)
	return ret
}

// Configure fans host configuration out to the registered allocators,
// keyed by allocator name. Entries without a matching allocator are
// ignored; allocators without an entry keep their current hosts.
func (s *Service) Configure(ctx context.Context, config *Config) error {
	if config == nil {
		return nil
	}
	if err := config.Validate(); err != nil {
		return err
	}
	for _, name := range s.Names() {
		hosts, ok := config.Allocators[name]
		if !ok {
			continue
		}
		if err := s.Allocator(name).Configure(ctx, hosts.DMZHost, hosts.ServerHost); err != nil {
			return err
		}
	}
	return nil
}

// BestEstimate probes every registered allocator for desc and returns the
// one with the best feasible estimate, lowest score first, registration
// order breaking ties. Ineligibility answers are skipped silently;
// transport failures abort the probe.
func (s *Service) BestEstimate(ctx context.Context, desc resource.Description) (*allocator.Allocator, *allocator.Estimate, error) {
	var best *allocator.Allocator
	var bestEstimate *allocator.Estimate
	for _, name := range s.Names() {
		candidate := s.Allocator(name)
		estimate, err := candidate.TimeEstimate(ctx, desc)
		if err != nil {
			return nil, nil, err
		}
		if estimate.Score < allocator.ScoreNoEstimate {
			continue
		}
		if bestEstimate == nil || estimate.Score < bestEstimate.Score {
			best = candidate
			bestEstimate = estimate
		}
	}
	if best == nil {
		return nil, nil, ErrNoAllocation
	}
	return best, bestEstimate, nil
}
