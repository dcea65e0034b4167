package allocator

import (
	"fmt"

	"github.com/viant/toolbox"
)

// Estimate scores how well an allocator can satisfy a resource request.
const (
	// ScoreNoEstimate means the request is feasible but no walltime
	// estimate is available. Positive scores are walltime in seconds.
	ScoreNoEstimate = 0

	// ScoreNoResource means the resource type is supported but currently
	// exhausted.
	ScoreNoResource = -1

	// ScoreUnsupported means the allocator cannot or will not handle the
	// request. Criteria always carries a human-readable reason.
	ScoreUnsupported = -2
)

// Estimate is the feasibility answer to a resource request.
type Estimate struct {
	Score    int                    `json:"score"`
	Criteria map[string]interface{} `json:"criteria,omitempty"`
}

// unsupported builds a ScoreUnsupported estimate with a single reason.
func unsupported(key, reason string) *Estimate {
	return &Estimate{
		Score:    ScoreUnsupported,
		Criteria: map[string]interface{}{key: reason},
	}
}

// decodeEstimate rebuilds an estimate from a transport result, which may
// arrive typed from an in-process transport or as a generic map after a
// JSON round trip.
func decodeEstimate(result interface{}) (*Estimate, error) {
	switch actual := result.(type) {
	case *Estimate:
		return actual, nil
	case Estimate:
		return &actual, nil
	case map[string]interface{}:
		ret := &Estimate{Score: toolbox.AsInt(actual["score"])}
		if criteria, ok := actual["criteria"].(map[string]interface{}); ok {
			ret.Criteria = criteria
		}
		return ret, nil
	}
	return nil, fmt.Errorf("unexpected estimate payload %T", result)
}
