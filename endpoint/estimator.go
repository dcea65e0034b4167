package endpoint

import (
	"fmt"

	"github.com/akhi28/dmzalloc/allocator"
	"github.com/akhi28/dmzalloc/resource"
)

// unsupported checks desc against this endpoint's capacity, returning the
// offending key and a reason when the request can never be satisfied.
func (s *Service) unsupported(desc resource.Description) (string, string) {
	if n := desc.Int("n_cpus", 0); n > s.config.CPUs {
		return "n_cpus", fmt.Sprintf("requested %d cpus, have %d", n, s.config.CPUs)
	}
	return "", ""
}

// maxServers reports how many more servers could be deployed for desc.
// The count is advisory; overestimating degrades performance, never
// correctness.
func (s *Service) maxServers(desc resource.Description) int {
	if key, _ := s.unsupported(desc); key != "" {
		return 0
	}
	remaining := s.config.MaxServers - s.active()
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// timeEstimate scores desc against current capacity.
func (s *Service) timeEstimate(desc resource.Description) *allocator.Estimate {
	if key, reason := s.unsupported(desc); key != "" {
		return &allocator.Estimate{
			Score:    allocator.ScoreUnsupported,
			Criteria: map[string]interface{}{key: reason},
		}
	}
	if s.active() >= s.config.MaxServers {
		return &allocator.Estimate{
			Score:    allocator.ScoreNoResource,
			Criteria: map[string]interface{}{"max_servers": "no capacity at this time"},
		}
	}
	return &allocator.Estimate{
		Score: allocator.ScoreNoEstimate,
		Criteria: map[string]interface{}{
			"hostname":    s.config.Host,
			"total_cpus":  s.config.CPUs,
			"max_servers": s.config.MaxServers - s.active(),
		},
	}
}
