// Package strategy maps named prioritization strategies to scoring weights.
package strategy

// Strategy names a prioritization preference.
type Strategy string

const (
	Fastest    Strategy = "fastest"
	HighImpact Strategy = "high-impact"
	Deadline   Strategy = "deadline"
	Smart      Strategy = "smart"
)

// Default is used when no strategy has been selected.
const Default = Smart

// Weights are the multipliers the scoring service applies to the urgency,
// importance, effort and dependency factors of every task in a batch.
type Weights struct {
	Urgency    float64 `json:"urgency_weight"`
	Importance float64 `json:"importance_weight"`
	Effort     float64 `json:"effort_weight"`
	Dependency float64 `json:"dependency_weight"`
}

// Balanced weighs every factor equally.
var Balanced = Weights{Urgency: 1, Importance: 1, Effort: 1, Dependency: 1}

// Resolve returns the weights for s. Unknown strategies resolve to Balanced.
func Resolve(s Strategy) Weights {
	switch s {
	case Fastest:
		return Weights{Urgency: 0.5, Importance: 0.5, Effort: 3, Dependency: 0.5}
	case HighImpact:
		return Weights{Urgency: 0.5, Importance: 3, Effort: 0.5, Dependency: 0.5}
	case Deadline:
		return Weights{Urgency: 3, Importance: 0.5, Effort: 0.5, Dependency: 0.5}
	default:
		return Balanced
	}
}

// All returns the known strategies in display order.
func All() []Strategy {
	return []Strategy{Smart, Fastest, HighImpact, Deadline}
}

// IsKnown reports whether s is one of the named strategies.
func IsKnown(s Strategy) bool {
	switch s {
	case Fastest, HighImpact, Deadline, Smart:
		return true
	default:
		return false
	}
}

// Describe returns a one-line summary of what s emphasizes.
func Describe(s Strategy) string {
	switch s {
	case Fastest:
		return "Low-effort quick wins first"
	case HighImpact:
		return "Most important work first"
	case Deadline:
		return "Closest due dates first"
	case Smart:
		return "Balanced across urgency, importance, effort and dependencies"
	default:
		return "Unknown strategy (scored as smart)"
	}
}

func (s Strategy) String() string {
	return string(s)
}
